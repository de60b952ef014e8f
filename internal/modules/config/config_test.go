package config

import "testing"

func TestBoolFromEnv(t *testing.T) {
	cases := []struct {
		raw  string
		def  bool
		want bool
	}{
		{"1", false, true},
		{"true", false, true},
		{"True", false, true},
		{"TRUE", false, true},
		{" t ", false, true},
		{"0", true, false},
		{"False", true, false},
		{"nonsense", true, true},
		{"", false, false},
	}
	for _, c := range cases {
		t.Setenv("SOME_FLAG", c.raw)
		if got := boolFromEnv("SOME_FLAG", c.def); got != c.want {
			t.Errorf("boolFromEnv(%q, %v) = %v, want %v", c.raw, c.def, got, c.want)
		}
	}
}

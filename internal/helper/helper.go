package helper

import (
	"math"
	"strconv"
	"strings"
)

func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "kline_")
	switch s {
	case "60m", "1h":
		return "1h"
	case "30m":
		return "30m"
	case "5m":
		return "5m"
	case "1m":
		return "1m"
	default:
		return s
	}
}

// ParseMoney вытаскивает число из денежной строки брокера:
// "-12,34 USD" -> -12.34. Символы валют и пробелы выкидываем,
// запятую считаем десятичным разделителем.
func ParseMoney(raw string) float64 {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		case r == ',':
			b.WriteRune('.')
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

// Round2 — брокер принимает уровни с двумя знаками.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WithinPct: |a-b| < tol*|b|. Используется для классификации причины выхода.
func WithinPct(a, b, tol float64) bool {
	if b == 0 {
		return false
	}
	return math.Abs(a-b) < tol*math.Abs(b)
}

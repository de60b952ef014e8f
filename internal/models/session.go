package models

import "time"

// Session — токены брокера. Владеет ими только capital.Client,
// остальные компоненты ходят через него.
type Session struct {
	CST           string    `json:"cst_token"`
	SecurityToken string    `json:"x_security_token"`
	IssuedAt      time.Time `json:"issued_at"`
}

func (s Session) Valid() bool {
	return s.CST != "" && s.SecurityToken != ""
}

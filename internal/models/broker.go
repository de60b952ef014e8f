package models

import "time"

type Account struct {
	AccountID   string
	AccountName string
	Preferred   bool
}

type Market struct {
	Epic           string
	InstrumentName string
}

// MarketSnapshot — текущие bid/offer по инструменту.
type MarketSnapshot struct {
	Bid   float64
	Offer float64
}

func (m MarketSnapshot) Mid() float64 { return (m.Bid + m.Offer) / 2 }

type OrderConfirmation struct {
	DealReference string
	Status        string // OPEN | REJECTED | ...
	Level         float64
	DealID        string
}

type OpenPosition struct {
	DealID    string
	Epic      string
	Direction Side
	Size      float64
	Level     float64
	UPL       float64
	CreatedAt time.Time
}

// Transaction — строка из истории транзакций брокера.
type Transaction struct {
	DealID   string
	Note     string
	Size     string // денежная строка вида "-12,34 USD", парсится helper.ParseMoney
	Currency string
	Price    string
	Date     time.Time
}

package service

// Ответы брокера. Числа приходят числами (в отличие от OKX), даты — строками
// ISO без зоны.

type accountsResponse struct {
	Accounts []struct {
		AccountID   string `json:"accountId"`
		AccountName string `json:"accountName"`
		Preferred   bool   `json:"preferred"`
	} `json:"accounts"`
}

type errorResponse struct {
	ErrorCode string `json:"errorCode"`
}

type marketsResponse struct {
	Markets []struct {
		Epic           string `json:"epic"`
		InstrumentName string `json:"instrumentName"`
	} `json:"markets"`
}

type marketDetailResponse struct {
	Snapshot struct {
		Bid   float64 `json:"bid"`
		Offer float64 `json:"offer"`
	} `json:"snapshot"`
}

type dealReferenceResponse struct {
	DealReference string `json:"dealReference"`
}

type confirmResponse struct {
	DealReference string  `json:"dealReference"`
	Status        string  `json:"status"`
	Level         float64 `json:"level"`
	AffectedDeals []struct {
		DealID string `json:"dealId"`
		Status string `json:"status"`
	} `json:"affectedDeals"`
}

type positionsResponse struct {
	Positions []struct {
		Position struct {
			DealID    string  `json:"dealId"`
			Direction string  `json:"direction"`
			Size      float64 `json:"size"`
			Level     float64 `json:"level"`
			UPL       float64 `json:"upl"`
			CreatedAt string  `json:"createdDate"`
		} `json:"position"`
		Market struct {
			Epic string `json:"epic"`
		} `json:"market"`
	} `json:"positions"`
}

type transactionsResponse struct {
	Transactions []struct {
		DealID   string `json:"dealId"`
		Note     string `json:"note"`
		Size     string `json:"size"`
		Currency string `json:"currency"`
		Price    string `json:"price"`
		Date     string `json:"date"`
	} `json:"transactions"`
}

package models

// Requests for model HTTP endpoints. Defined in domain for consistency and reuse.

type PredictRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"500" validate:"gte=1,lte=10000"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
}

type TrainRequest struct {
	Symbol  string `query:"symbol" json:"symbol" validate:"required"`
	N       int    `query:"n" json:"n" default:"2000" validate:"gte=1,lte=50000"`
	TF      string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
	Retrain bool   `query:"retrain" json:"retrain"`
	Async   bool   `query:"async" json:"async"`
}

type CleanupRequest struct {
	Keep int `query:"keep" json:"keep" default:"5" validate:"gte=1,lte=100"`
}

type ImportanceRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"1000" validate:"gte=1,lte=10000"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
	Top    int    `query:"top" json:"top" default:"20" validate:"gte=1,lte=500"`
}

type RetrainRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"2000" validate:"gte=1,lte=50000"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
}

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=50000"`
}

type IngestRequest struct {
	Symbol  string   `json:"symbol" validate:"required"`
	TF      string   `json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
	Candles []Candle `json:"candles" validate:"required,min=1,max=50000"`
}

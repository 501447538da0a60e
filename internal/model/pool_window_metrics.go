package model

import "time"

// PoolWindowMetrics stores aggregated journal metrics for a pool window.
type PoolWindowMetrics struct {
	PoolAddress    string
	Market         string
	CurveKind      string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	EventCount     uint64
	FillCount      uint64
	BaseVolume     string
	QuoteVolume    string
	CrankerBase    string
	CrankerQuote   string
	DepositCount   uint64
	WithdrawCount  uint64
	EndBase        string
	EndQuote       string
	EndLP          uint64
	Turnover       *string
}

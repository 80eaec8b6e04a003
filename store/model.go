package store

import (
	"time"
)

type OpportunityRecord struct {
	Id               uint64    `gorm:"primaryKey;autoIncrement;not null"`
	Timestamp        time.Time `gorm:"index;not null"`
	Pair             string    `gorm:"type:varchar(32);index;not null"`
	Token0           string    `gorm:"type:varchar(16)"`
	Token1           string    `gorm:"type:varchar(16)"`
	BuyDex           string    `gorm:"type:varchar(32)"`
	SellDex          string    `gorm:"type:varchar(32)"`
	OptimalAmount    float64
	GrossProfitUsd   float64
	GasCost          float64
	NetProfit        float64 `gorm:"index"`
	BlockNumber      uint64  `gorm:"type:bigint(20)"`
	ViabilityScore   float64 `gorm:"index"`
	HoneypotRisk     float64
	Viable           bool
	Recommendation   string `gorm:"type:varchar(16)"`
	Executed         bool
	ExecutionSuccess bool
	ActualProfit     float64
	RawData          string `gorm:"type:text"`
}

type ResearchRecord struct {
	Id            uint64    `gorm:"primaryKey;autoIncrement;not null"`
	OpportunityId uint64    `gorm:"index;not null"`
	Timestamp     time.Time `gorm:"not null"`
	Token0Data    string    `gorm:"type:text"`
	Token1Data    string    `gorm:"type:text"`
	LiquidityData string    `gorm:"type:text"`
	VolumeData    string    `gorm:"type:text"`
	RiskFactors   string    `gorm:"type:text"`
	RawResearch   string    `gorm:"type:text"`
}

type ExecutionRecord struct {
	Id            uint64    `gorm:"primaryKey;autoIncrement;not null"`
	OpportunityId uint64    `gorm:"index;not null"`
	Timestamp     time.Time `gorm:"index;not null"`
	ExecutedAt    time.Time
	Success       bool
	ActualProfit  float64
	GasUsed       float64
	ErrorMessage  string `gorm:"type:varchar(255)"`
	TxHash        string `gorm:"type:varchar(120)"`
}

type ModelPerformanceRecord struct {
	Id                 uint64    `gorm:"primaryKey;autoIncrement;not null"`
	Timestamp          time.Time `gorm:"index;not null"`
	ModelType          string    `gorm:"type:varchar(32);not null"`
	Accuracy           float64
	Precision          float64
	Recall             float64
	F1Score            float64
	TotalPredictions   int
	CorrectPredictions int
}

package researcher

import (
	"time"
)

type Token struct {
	Symbol               string  `json:"symbol"`
	Address              string  `json:"address,omitempty"`
	ContractVerified     bool    `json:"contract_verified"`
	IsOpenSource         bool    `json:"is_open_source"`
	AgeDays              float64 `json:"age_days"`
	HolderCount          int     `json:"holder_count"`
	MarketCap            float64 `json:"market_cap"`
	LiquidityUsd         float64 `json:"liquidity_usd"`
	Volume24h            float64 `json:"volume_24h"`
	PriceChange24h       float64 `json:"price_change_24h"`
	IsHoneypot           bool    `json:"is_honeypot"`
	TaxBuy               float64 `json:"tax_buy"`
	TaxSell              float64 `json:"tax_sell"`
	CanTakeBackOwnership bool    `json:"can_take_back_ownership"`
}

type Liquidity struct {
	TotalLiquidity   float64 `json:"total_liquidity"`
	BuyDexLiquidity  float64 `json:"buy_dex_liquidity"`
	SellDexLiquidity float64 `json:"sell_dex_liquidity"`
	LiquidityRatio   float64 `json:"liquidity_ratio"`
}

type Volume struct {
	Volume24h        float64 `json:"volume_24h"`
	Volume7d         float64 `json:"volume_7d"`
	TxCount24h       int     `json:"tx_count_24h"`
	UniqueTraders24h int     `json:"unique_traders_24h"`
}

// RiskFactors is the researcher's own advisory risk summary. The
// honeypot detector recomputes its figures independently and never
// trusts these.
type RiskFactors struct {
	HoneypotRisk   float64 `json:"honeypot_risk"`
	LiquidityRisk  float64 `json:"liquidity_risk"`
	VolatilityRisk float64 `json:"volatility_risk"`
	ContractRisk   float64 `json:"contract_risk"`
	OverallRisk    float64 `json:"overall_risk"`
}

type Research struct {
	Timestamp   time.Time         `json:"timestamp"`
	Pair        string            `json:"pair"`
	Tokens      map[string]*Token `json:"tokens"`
	Liquidity   Liquidity         `json:"liquidity"`
	Volume      Volume            `json:"volume"`
	RiskFactors RiskFactors       `json:"risk_factors"`
}

// Empty is the safe default substituted when research fails. Scoring
// treats its zero values as absent fields.
func Empty(pair string) *Research {
	return &Research{
		Timestamp: time.Now(),
		Pair:      pair,
		Tokens:    make(map[string]*Token),
		Liquidity: Liquidity{LiquidityRatio: 1.0},
	}
}

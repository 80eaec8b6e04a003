package scraper

import (
	"time"
)

// Opportunity is one detected cross-DEX arbitrage candidate reconstructed
// from the scanner's terminal output. Fields under "scoring" are appended
// by the pipeline after validation; everything else is fixed at emission.
type Opportunity struct {
	Pair              string   `json:"pair"`
	Token0            string   `json:"token0"`
	Token1            string   `json:"token1"`
	BuyDex            string   `json:"buy_dex"`
	SellDex           string   `json:"sell_dex"`
	OptimalAmount     float64  `json:"optimal_amount"`
	AmountToken       string   `json:"amount_token"`
	GrossProfitUsd    float64  `json:"gross_profit_usd"`
	GrossProfitWei    uint64   `json:"gross_profit_wei"`
	GasCost           float64  `json:"gas_cost"`
	NetProfit         float64  `json:"net_profit"`
	BlockNumber       uint64   `json:"block"`
	FlashloanProvider string   `json:"flashloan_provider,omitempty"`
	Addresses         []string `json:"addresses,omitempty"`
	RawText           string   `json:"raw_text"`

	Timestamp time.Time `json:"timestamp"`

	GasRatio    float64 `json:"gas_ratio"`
	IsCrossDex  bool    `json:"is_cross_dex"`
	IsUniswapV2 bool    `json:"is_uniswap_v2"`
	IsUniswapV3 bool    `json:"is_uniswap_v3"`
	IsSushiswap bool    `json:"is_sushiswap"`

	// scoring
	HoneypotRisk   float64 `json:"honeypot_risk"`
	ViabilityScore float64 `json:"viability_score"`
	HasViability   bool    `json:"has_viability"`
	Viable         bool    `json:"viable"`
	Recommendation string  `json:"recommendation,omitempty"`
}

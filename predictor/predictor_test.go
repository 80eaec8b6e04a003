package predictor

import (
	"testing"
	"time"

	"github.com/mevml/arbscan/researcher"
	"github.com/mevml/arbscan/scraper"
	"github.com/stretchr/testify/assert"
)

func newTestPredictor() *Predictor {
	p := NewPredictor(NewHistory(), nil, nil)
	// pin market conditions: Monday 10:00, off-peak weekday
	p.now = func() time.Time {
		return time.Date(2023, 10, 2, 10, 0, 0, 0, time.UTC)
	}
	return p
}

func safeToken(symbol string) *researcher.Token {
	return &researcher.Token{
		Symbol:           symbol,
		ContractVerified: true,
		AgeDays:          365,
		HolderCount:      5000,
		LiquidityUsd:     2000000,
		Volume24h:        500000,
	}
}

func safeResearch() *researcher.Research {
	research := researcher.Empty("FOO/BAR")
	research.Tokens["FOO"] = safeToken("FOO")
	research.Tokens["BAR"] = safeToken("BAR")
	return research
}

func TestProfitBrackets(t *testing.T) {
	p := newTestPredictor()
	cases := []struct {
		profit float64
		want   float64
	}{
		{-5, 0.0}, {0, 0.0}, {5, 0.2}, {25, 0.5}, {75, 0.7},
		{120, 0.85}, {499, 0.85}, {2000, 0.95}, {5000, 0.5}, {20000, 0.5},
	}
	for _, tc := range cases {
		got := p.scoreProfit(&scraper.Opportunity{NetProfit: tc.profit})
		assert.Equal(t, tc.want, got, "profit %v", tc.profit)
	}
}

func TestLiquidityBrackets(t *testing.T) {
	p := newTestPredictor()
	cases := []struct {
		liquidity float64
		want      float64
	}{
		{0, 0.0}, {5000, 0.1}, {30000, 0.3}, {80000, 0.5},
		{300000, 0.7}, {800000, 0.85}, {5000000, 1.0},
	}
	for _, tc := range cases {
		research := researcher.Empty("FOO/BAR")
		token := safeToken("FOO")
		token.LiquidityUsd = tc.liquidity
		research.Tokens["FOO"] = token
		assert.Equal(t, tc.want, p.scoreLiquidity(research), "liquidity %v", tc.liquidity)
	}
	// minimum across tokens decides
	research := safeResearch()
	research.Tokens["BAR"].LiquidityUsd = 30000
	assert.Equal(t, 0.3, p.scoreLiquidity(research))
	// no research at all
	assert.Equal(t, 0.0, p.scoreLiquidity(researcher.Empty("FOO/BAR")))
}

func TestGasEfficiencyBrackets(t *testing.T) {
	p := newTestPredictor()
	cases := []struct {
		ratio float64
		want  float64
	}{
		{0.9, 0.0}, {0.8, 0.0}, {0.6, 0.3}, {0.4, 0.5},
		{0.25, 0.7}, {0.1, 0.85}, {0.05, 1.0},
	}
	for _, tc := range cases {
		got := p.scoreGasEfficiency(&scraper.Opportunity{GasRatio: tc.ratio})
		assert.Equal(t, tc.want, got, "ratio %v", tc.ratio)
	}
}

func TestTokenSafetyCompounds(t *testing.T) {
	p := newTestPredictor()
	assert.Equal(t, 1.0, p.scoreTokenSafety(safeResearch()))

	research := researcher.Empty("FOO/BAR")
	token := safeToken("FOO")
	token.ContractVerified = false // x0.7
	token.AgeDays = 3              // x0.5
	token.HolderCount = 50         // x0.6
	token.TaxSell = 12             // x0.3
	research.Tokens["FOO"] = token
	assert.InDelta(t, 0.7*0.5*0.6*0.3, p.scoreTokenSafety(research), 1e-9)

	// degradation multiplies across tokens
	research.Tokens["BAR"] = &researcher.Token{
		Symbol: "BAR", ContractVerified: false,
		AgeDays: 365, HolderCount: 5000,
	}
	assert.InDelta(t, 0.7*0.5*0.6*0.3*0.7, p.scoreTokenSafety(research), 1e-9)
}

func TestMarketConditions(t *testing.T) {
	p := newTestPredictor()
	// weekday off-peak, congestion 0.5: 0.5 * (1.5-0.5) = 0.5
	assert.InDelta(t, 0.5, p.scoreMarketConditions(&scraper.Opportunity{}), 1e-9)
	// absolute gas penalty
	assert.InDelta(t, 0.35, p.scoreMarketConditions(&scraper.Opportunity{GasCost: 120}), 1e-9)
	assert.InDelta(t, 0.425, p.scoreMarketConditions(&scraper.Opportunity{GasCost: 60}), 1e-9)
	// quiet window, weekend, no congestion: every multiplier stacks
	p.now = func() time.Time {
		return time.Date(2023, 10, 1, 3, 0, 0, 0, time.UTC) // Sunday 03:00
	}
	p.SetCongestion(0)
	assert.InDelta(t, 0.5*1.2*1.1*1.5, p.scoreMarketConditions(&scraper.Opportunity{}), 1e-9)
}

func TestHistoricalSuccess(t *testing.T) {
	history := NewHistory()
	p := NewPredictor(history, nil, nil)

	opp := &scraper.Opportunity{Pair: "FOO/BAR", BuyDex: "DexA", SellDex: "DexB"}
	assert.Equal(t, 0.5, p.scoreHistoricalSuccess(opp), "default with no history")

	for i := 0; i < 9; i++ {
		history.Update("FOO/BAR", "DexA", "DexB", true, 10)
	}
	history.Update("FOO/BAR", "DexA", "DexB", false, 0)
	assert.InDelta(t, 0.9, p.scoreHistoricalSuccess(opp), 1e-9, "exact route rate")

	other := &scraper.Opportunity{Pair: "FOO/BAR", BuyDex: "DexC", SellDex: "DexD"}
	assert.InDelta(t, 0.9*0.8, p.scoreHistoricalSuccess(other), 1e-9, "same pair discounted")

	unrelated := &scraper.Opportunity{Pair: "XXX/YYY", BuyDex: "DexA", SellDex: "DexB"}
	assert.Equal(t, 0.5, p.scoreHistoricalSuccess(unrelated))
}

func TestPenalties(t *testing.T) {
	p := newTestPredictor()

	research := safeResearch()
	research.RiskFactors.HoneypotRisk = 0.6
	assert.InDelta(t, 1.0*(1-0.6), p.applyPenalties(1.0, &scraper.Opportunity{NetProfit: 100}, research), 1e-9)

	research = safeResearch()
	research.Tokens["FOO"].AgeDays = 0.5
	assert.InDelta(t, 0.3, p.applyPenalties(1.0, &scraper.Opportunity{NetProfit: 100}, research), 1e-9)

	assert.InDelta(t, 0.2, p.applyPenalties(1.0, &scraper.Opportunity{NetProfit: 20000}, safeResearch()), 1e-9)

	research = safeResearch()
	research.Tokens["BAR"].Volume24h = 500
	assert.InDelta(t, 0.5, p.applyPenalties(1.0, &scraper.Opportunity{NetProfit: 100}, research), 1e-9)
}

func TestRecommendationTiers(t *testing.T) {
	cases := []struct {
		score  float64
		viable bool
		tier   string
	}{
		{0.9, true, StrongBuy},
		{0.8, true, StrongBuy},
		{0.65, true, Execute},
		{0.6, false, Execute},
		{0.6000001, true, Execute},
		{0.59, false, Risky},
		{0.4, false, Risky},
		{0.2, false, Avoid},
		{0.1, false, Skip},
	}
	for _, tc := range cases {
		viable, tier := Recommendation(tc.score)
		assert.Equal(t, tc.viable, viable, "score %v", tc.score)
		assert.Equal(t, tc.tier, tier, "score %v", tc.score)
	}
}

func TestViabilityAlwaysInRange(t *testing.T) {
	p := newTestPredictor()
	extremes := []*scraper.Opportunity{
		{NetProfit: -1000000},
		{NetProfit: 1e12, GasRatio: 1e6, GasCost: 1e9},
		{},
	}
	for _, opp := range extremes {
		for _, research := range []*researcher.Research{researcher.Empty(""), safeResearch()} {
			score := p.PredictViability(opp, research)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	}
}

func TestViableOpportunityEndToEnd(t *testing.T) {
	p := newTestPredictor()
	opp := &scraper.Opportunity{
		Pair: "FOO/BAR", BuyDex: "UniswapV2", SellDex: "Sushiswap",
		NetProfit: 120, GasCost: 15, GrossProfitUsd: 150, GasRatio: 0.1,
	}
	score := p.PredictViability(opp, safeResearch())
	// 0.85*0.25 + 1.0*0.20 + 0.85*0.15 + 1.0*0.20 + 0.5*0.10 + 0.5*0.10
	assert.InDelta(t, 0.84, score, 1e-9)
	viable, tier := Recommendation(score)
	assert.True(t, viable)
	assert.Equal(t, StrongBuy, tier)
}

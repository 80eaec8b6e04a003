package honeypot

import (
	"testing"

	"github.com/mevml/arbscan/researcher"
	"github.com/mevml/arbscan/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyToken(symbol string) *researcher.Token {
	return &researcher.Token{
		Symbol:           symbol,
		Address:          "0x1111111111111111111111111111111111111111",
		ContractVerified: true,
		AgeDays:          365,
		HolderCount:      5000,
		LiquidityUsd:     500000,
		Volume24h:        100000,
	}
}

func testOpportunity() *scraper.Opportunity {
	return &scraper.Opportunity{
		Pair:      "FOO/BAR",
		Token0:    "FOO",
		Token1:    "BAR",
		BuyDex:    "UniswapV2",
		SellDex:   "Sushiswap",
		NetProfit: 120,
	}
}

func testResearch(tokens ...*researcher.Token) *researcher.Research {
	research := researcher.Empty("FOO/BAR")
	for _, token := range tokens {
		research.Tokens[token.Symbol] = token
	}
	return research
}

func TestExtremeSellTaxDominates(t *testing.T) {
	detector := NewDetector(nil, nil, nil)
	token := healthyToken("FOO")
	token.TaxSell = 60
	risk := detector.CheckHoneypot(testOpportunity(), testResearch(token, healthyToken("BAR")))
	assert.InDelta(t, 0.95, risk, 1e-9)
}

func TestSellTaxMonotonic(t *testing.T) {
	detector := NewDetector(nil, nil, nil)
	prev := -1.0
	for _, tax := range []float64{0, 5, 15, 30, 60} {
		token := healthyToken("FOO")
		token.TaxSell = tax
		risk := detector.CheckHoneypot(testOpportunity(), testResearch(token))
		require.GreaterOrEqual(t, risk, prev, "tax %v", tax)
		prev = risk
	}
	assert.InDelta(t, 0.95, prev, 1e-9)
}

func TestSeverityTable(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*researcher.Token)
		want   float64
	}{
		{"confirmed honeypot", func(tk *researcher.Token) { tk.IsHoneypot = true }, 0.9},
		{"ownership takeback", func(tk *researcher.Token) { tk.CanTakeBackOwnership = true }, 0.8},
		{"low liquidity", func(tk *researcher.Token) { tk.LiquidityUsd = 5000 }, 0.6},
		{"new contract", func(tk *researcher.Token) { tk.AgeDays = 3 }, 0.5},
		{"few holders", func(tk *researcher.Token) { tk.HolderCount = 10 }, 0.6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			detector := NewDetector(nil, nil, nil)
			token := healthyToken("FOO")
			tc.mutate(token)
			risk := detector.CheckHoneypot(testOpportunity(), testResearch(token))
			assert.InDelta(t, tc.want, risk, 1e-9)
		})
	}
}

func TestMaxAggregationNotSum(t *testing.T) {
	detector := NewDetector(nil, nil, nil)
	token := healthyToken("FOO")
	token.IsHoneypot = true
	token.CanTakeBackOwnership = true
	token.LiquidityUsd = 100
	token.AgeDays = 1
	token.HolderCount = 2
	token.TaxSell = 30
	risk := detector.CheckHoneypot(testOpportunity(), testResearch(token))
	assert.InDelta(t, 0.9, risk, 1e-9, "max of triggered severities, never a sum")
}

func TestKnownBadForcesFullRisk(t *testing.T) {
	detector := NewDetector(nil, nil, nil)
	token := healthyToken("FOO")
	detector.MarkBad(token.Address)
	risk := detector.CheckHoneypot(testOpportunity(), testResearch(token))
	assert.Equal(t, 1.0, risk)
}

func TestKnownSafeCapsRisk(t *testing.T) {
	detector := NewDetector(nil, nil, nil)
	token := healthyToken("FOO")
	token.TaxSell = 60
	detector.MarkSafe(token.Address)
	risk := detector.CheckHoneypot(testOpportunity(), testResearch(token))
	assert.InDelta(t, 0.2, risk, 1e-9)

	// a ceiling, not a floor
	clean := healthyToken("FOO")
	detector.MarkSafe(clean.Address)
	risk = detector.CheckHoneypot(testOpportunity(), testResearch(clean))
	assert.Equal(t, 0.0, risk)
}

func TestLiquidityImbalanceFloor(t *testing.T) {
	detector := NewDetector(nil, nil, nil)
	research := testResearch(healthyToken("FOO"), healthyToken("BAR"))
	research.Liquidity.BuyDexLiquidity = 500000
	research.Liquidity.SellDexLiquidity = 5000
	risk := detector.CheckHoneypot(testOpportunity(), research)
	assert.InDelta(t, 0.5, risk, 1e-9)
}

func TestPairLevelFloors(t *testing.T) {
	detector := NewDetector(nil, nil, nil)

	opp := testOpportunity()
	opp.NetProfit = 1500
	risk := detector.CheckHoneypot(opp, testResearch(healthyToken("FOO")))
	assert.InDelta(t, 0.3, risk, 1e-9)

	opp = testOpportunity()
	opp.SellDex = "NewMoonSwap"
	risk = detector.CheckHoneypot(opp, testResearch(healthyToken("FOO")))
	assert.InDelta(t, 0.4, risk, 1e-9)
}

type fakeAnomalyModel struct {
	score   float64
	anomaly bool
	ok      bool
}

func (m *fakeAnomalyModel) Predict(features []float64) (float64, bool, bool) {
	return m.score, m.anomaly, m.ok
}

func TestAnomalyModelMapping(t *testing.T) {
	cases := []struct {
		name  string
		model *fakeAnomalyModel
		want  float64
	}{
		{"worst anomaly", &fakeAnomalyModel{score: -1, anomaly: true, ok: true}, 1.0},
		{"mild anomaly", &fakeAnomalyModel{score: 1, anomaly: true, ok: true}, 0.7},
		{"worst normal", &fakeAnomalyModel{score: -1, anomaly: false, ok: true}, 0.7},
		{"clean normal", &fakeAnomalyModel{score: 1, anomaly: false, ok: true}, 0.0},
		{"unscorable", &fakeAnomalyModel{ok: false}, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			detector := NewDetector(tc.model, nil, nil)
			risk := detector.CheckHoneypot(testOpportunity(), testResearch(healthyToken("FOO")))
			assert.InDelta(t, tc.want, risk, 1e-9)
		})
	}
}

func TestEmptyResearch(t *testing.T) {
	detector := NewDetector(nil, nil, nil)
	risk := detector.CheckHoneypot(testOpportunity(), researcher.Empty("FOO/BAR"))
	assert.Equal(t, 0.0, risk)
}

func TestRiskAlwaysInRange(t *testing.T) {
	detector := NewDetector(nil, nil, nil)
	token := &researcher.Token{Symbol: "FOO", TaxSell: 1e9, LiquidityUsd: -1, HolderCount: -5, AgeDays: -100}
	opp := testOpportunity()
	opp.NetProfit = 1e12
	risk := detector.CheckHoneypot(opp, testResearch(token))
	assert.GreaterOrEqual(t, risk, 0.0)
	assert.LessOrEqual(t, risk, 1.0)
}

func TestTrainUpdatesKnownBad(t *testing.T) {
	detector := NewDetector(nil, nil, nil)
	bad := healthyToken("FOO")
	samples := []*Sample{
		{Opportunity: testOpportunity(), Research: testResearch(bad), ExecutionSuccess: false},
		{Opportunity: testOpportunity(), Research: testResearch(healthyToken("BAR")), ExecutionSuccess: true, ActualProfit: 50},
	}
	detector.Train(samples)
	assert.Equal(t, 1, detector.KnownBadCount())
	risk := detector.CheckHoneypot(testOpportunity(), testResearch(healthyToken("FOO")))
	assert.Equal(t, 1.0, risk, "address learned from failed execution")
}

func TestFeaturesFixedSize(t *testing.T) {
	features := Features(testOpportunity(), researcher.Empty("FOO/BAR"))
	assert.Len(t, features, 20)
	features = Features(testOpportunity(), testResearch(healthyToken("FOO"), healthyToken("BAR")))
	assert.Len(t, features, 20)
}

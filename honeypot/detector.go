package honeypot

import (
	"log"
	"strings"
	"sync"

	"github.com/mevml/arbscan/researcher"
	"github.com/mevml/arbscan/scraper"
)

const featureSize = 20

// AnomalyModel is an optional injected predictor over the combined
// feature vector. ok=false means the model could not score the sample.
type AnomalyModel interface {
	Predict(features []float64) (score float64, anomaly bool, ok bool)
}

// AnomalyTrainer refits the anomaly model from labeled history. Label 1
// marks a honeypot outcome.
type AnomalyTrainer interface {
	Fit(features [][]float64, labels []int) error
}

// Sample is one historical record with its realized outcome.
type Sample struct {
	Opportunity      *scraper.Opportunity
	Research         *researcher.Research
	ExecutionSuccess bool
	ActualProfit     float64
}

// Detector scores honeypot/scam risk for a completed opportunity.
// Aggregation is max-dominance: one catastrophic signal wins no matter
// how benign the rest look.
type Detector struct {
	model   AnomalyModel
	trainer AnomalyTrainer

	mu        sync.RWMutex
	knownBad  map[string]bool
	knownSafe map[string]bool

	log *log.Logger
}

func NewDetector(model AnomalyModel, trainer AnomalyTrainer, logger *log.Logger) *Detector {
	return &Detector{
		model:     model,
		trainer:   trainer,
		knownBad:  make(map[string]bool),
		knownSafe: make(map[string]bool),
		log:       logger,
	}
}

// CheckHoneypot returns overall risk in [0, 1].
func (d *Detector) CheckHoneypot(opp *scraper.Opportunity, research *researcher.Research) float64 {
	risk := 0.0
	for _, symbol := range []string{opp.Token0, opp.Token1} {
		token, ok := research.Tokens[symbol]
		if !ok {
			continue
		}
		if r := d.tokenRisk(token); r > risk {
			risk = r
		}
	}
	if r := d.pairRisk(opp, research); r > risk {
		risk = r
	}
	if d.model != nil {
		if r := d.modelRisk(opp, research); r > risk {
			risk = r
		}
	}
	risk = clamp01(risk)
	if risk > 0.7 && d.log != nil {
		d.log.Printf("high honeypot risk for %s: %.2f", opp.Pair, risk)
	}
	return risk
}

func (d *Detector) tokenRisk(token *researcher.Token) float64 {
	d.mu.RLock()
	bad := token.Address != "" && d.knownBad[token.Address]
	safe := token.Address != "" && d.knownSafe[token.Address]
	d.mu.RUnlock()
	if bad {
		return 1.0
	}

	risk := 0.0
	if token.IsHoneypot {
		risk = maxf(risk, 0.9)
	}
	switch {
	case token.TaxSell > 50:
		risk = maxf(risk, 0.95)
	case token.TaxSell > 25:
		risk = maxf(risk, 0.7)
	case token.TaxSell > 10:
		risk = maxf(risk, 0.4)
	}
	if token.CanTakeBackOwnership {
		risk = maxf(risk, 0.8)
	}
	if token.LiquidityUsd < 10000 {
		risk = maxf(risk, 0.6)
	}
	if token.AgeDays < 7 {
		risk = maxf(risk, 0.5)
	}
	if token.HolderCount < 50 {
		risk = maxf(risk, 0.6)
	}
	if safe {
		// known safe caps the risk, it is a ceiling not a floor
		risk = minf(risk, 0.2)
	}
	return clamp01(risk)
}

func (d *Detector) pairRisk(opp *scraper.Opportunity, research *researcher.Research) float64 {
	risk := 0.0
	if opp.NetProfit > 1000 {
		risk = maxf(risk, 0.3)
	}
	buyLiq := research.Liquidity.BuyDexLiquidity
	sellLiq := research.Liquidity.SellDexLiquidity
	if buyLiq > 0 && sellLiq > 0 {
		ratio := minf(buyLiq, sellLiq) / maxf(buyLiq, sellLiq)
		if ratio < 0.1 {
			risk = maxf(risk, 0.5)
		}
	}
	for _, dex := range []string{opp.BuyDex, opp.SellDex} {
		if strings.Contains(strings.ToLower(dex), "new") {
			risk = maxf(risk, 0.4)
		}
	}
	return risk
}

func (d *Detector) modelRisk(opp *scraper.Opportunity, research *researcher.Research) float64 {
	score, anomaly, ok := d.model.Predict(Features(opp, research))
	if !ok {
		return 0.5
	}
	// anomaly scores map into [0.7, 1.0], normal ones into [0, 0.7]
	if anomaly {
		return 0.7 + (1-(score+1)/2)*0.3
	}
	return maxf(0, (1-(score+1)/2)*0.7)
}

// Features builds the fixed-size vector fed to the anomaly model.
func Features(opp *scraper.Opportunity, research *researcher.Research) []float64 {
	features := make([]float64, 0, featureSize)
	features = append(features, opp.NetProfit, opp.GasRatio)
	if opp.IsCrossDex {
		features = append(features, 1)
	} else {
		features = append(features, 0)
	}
	for _, symbol := range []string{opp.Token0, opp.Token1} {
		token, ok := research.Tokens[symbol]
		if !ok {
			continue
		}
		verified := 0.0
		if token.ContractVerified {
			verified = 1.0
		}
		features = append(features, token.LiquidityUsd, token.Volume24h,
			token.AgeDays, float64(token.HolderCount), token.TaxSell, verified)
	}
	for len(features) < featureSize {
		features = append(features, 0)
	}
	return features[:featureSize]
}

// Train refreshes the known-bad address set from records whose realized
// outcome was a failed execution or a loss, then refits the anomaly
// model if a trainer was injected.
func (d *Detector) Train(samples []*Sample) {
	features := make([][]float64, 0, len(samples))
	labels := make([]int, 0, len(samples))
	bad := 0
	for _, sample := range samples {
		label := 0
		if !sample.ExecutionSuccess || sample.ActualProfit < -10 {
			label = 1
		}
		features = append(features, Features(sample.Opportunity, sample.Research))
		labels = append(labels, label)
		if label != 1 {
			continue
		}
		bad++
		d.mu.Lock()
		for _, token := range sample.Research.Tokens {
			if token.Address != "" {
				d.knownBad[token.Address] = true
			}
		}
		d.mu.Unlock()
	}
	if d.trainer != nil && len(features) >= 10 {
		if err := d.trainer.Fit(features, labels); err != nil && d.log != nil {
			d.log.Printf("anomaly model fit err: %v", err)
		}
	}
	if d.log != nil {
		d.log.Printf("trained on %d samples, %d labeled honeypot, %d known bad addresses",
			len(samples), bad, d.KnownBadCount())
	}
}

func (d *Detector) MarkSafe(address string) {
	d.mu.Lock()
	d.knownSafe[address] = true
	d.mu.Unlock()
}

func (d *Detector) MarkBad(address string) {
	d.mu.Lock()
	d.knownBad[address] = true
	d.mu.Unlock()
}

func (d *Detector) KnownBadCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.knownBad)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

package predictor

import (
	"log"
	"math"
	"time"

	"github.com/mevml/arbscan/researcher"
	"github.com/mevml/arbscan/scraper"
)

const (
	StrongBuy = "STRONG_BUY"
	Execute   = "EXECUTE"
	Risky     = "RISKY"
	Avoid     = "AVOID"
	Skip      = "SKIP"
)

// ViableThreshold is the fixed accept boundary. The EXECUTE tier starts
// here, but passing requires a score strictly above it.
const ViableThreshold = 0.6

var (
	weightProfit            = 0.25
	weightLiquidity         = 0.20
	weightGasEfficiency     = 0.15
	weightTokenSafety       = 0.20
	weightMarketConditions  = 0.10
	weightHistoricalSuccess = 0.10
)

// ViabilityModel is an optional learned ensemble input. The
// deterministic scorer below runs with or without it.
type ViabilityModel interface {
	Predict(opp *scraper.Opportunity, research *researcher.Research) float64
}

// Predictor scores execution viability as a fixed-weight blend of six
// step-function factors, then a multiplicative penalty pass.
type Predictor struct {
	history    *History
	model      ViabilityModel
	congestion float64
	now        func() time.Time
	log        *log.Logger
}

func NewPredictor(history *History, model ViabilityModel, logger *log.Logger) *Predictor {
	return &Predictor{
		history:    history,
		model:      model,
		congestion: 0.5,
		now:        time.Now,
		log:        logger,
	}
}

func (p *Predictor) History() *History {
	return p.history
}

// SetCongestion updates the network congestion estimate on a 0-1 scale.
func (p *Predictor) SetCongestion(level float64) {
	p.congestion = clamp01(level)
}

// PredictViability returns a score in [0, 1]; viable means > 0.6.
func (p *Predictor) PredictViability(opp *scraper.Opportunity, research *researcher.Research) float64 {
	viability := p.scoreProfit(opp)*weightProfit +
		p.scoreLiquidity(research)*weightLiquidity +
		p.scoreGasEfficiency(opp)*weightGasEfficiency +
		p.scoreTokenSafety(research)*weightTokenSafety +
		p.scoreMarketConditions(opp)*weightMarketConditions +
		p.scoreHistoricalSuccess(opp)*weightHistoricalSuccess
	viability = p.applyPenalties(viability, opp, research)
	viability = clamp01(viability)
	if p.model != nil && p.log != nil {
		if ml := p.model.Predict(opp, research); math.Abs(ml-viability) > 0.3 {
			p.log.Printf("model disagreement for %s: ensemble %.2f deterministic %.2f",
				opp.Pair, ml, viability)
		}
	}
	return viability
}

// Recommendation maps a viability score onto the decision tiers. The
// viable flag is strict: a score sitting exactly on the threshold reads
// EXECUTE but does not pass.
func Recommendation(viability float64) (bool, string) {
	viable := viability > ViableThreshold
	switch {
	case viability >= 0.8:
		return viable, StrongBuy
	case viability >= ViableThreshold:
		return viable, Execute
	case viability >= 0.4:
		return false, Risky
	case viability >= 0.2:
		return false, Avoid
	default:
		return false, Skip
	}
}

func (p *Predictor) scoreProfit(opp *scraper.Opportunity) float64 {
	profit := opp.NetProfit
	switch {
	case profit <= 0:
		return 0.0
	case profit < 10:
		return 0.2
	case profit < 50:
		return 0.5
	case profit < 100:
		return 0.7
	case profit < 500:
		return 0.85
	case profit >= 5000:
		// too good to be true
		return 0.5
	default:
		return 0.95
	}
}

func (p *Predictor) scoreLiquidity(research *researcher.Research) float64 {
	minLiquidity := math.Inf(1)
	for _, token := range research.Tokens {
		if token.LiquidityUsd < minLiquidity {
			minLiquidity = token.LiquidityUsd
		}
	}
	switch {
	case math.IsInf(minLiquidity, 1) || minLiquidity == 0:
		return 0.0
	case minLiquidity < 10000:
		return 0.1
	case minLiquidity < 50000:
		return 0.3
	case minLiquidity < 100000:
		return 0.5
	case minLiquidity < 500000:
		return 0.7
	case minLiquidity < 1000000:
		return 0.85
	default:
		return 1.0
	}
}

func (p *Predictor) scoreGasEfficiency(opp *scraper.Opportunity) float64 {
	switch {
	case opp.GasRatio >= 0.8:
		return 0.0
	case opp.GasRatio >= 0.5:
		return 0.3
	case opp.GasRatio >= 0.3:
		return 0.5
	case opp.GasRatio >= 0.2:
		return 0.7
	case opp.GasRatio >= 0.1:
		return 0.85
	default:
		return 1.0
	}
}

// scoreTokenSafety compounds multiplicatively across tokens: safety
// risks stack, they do not average out.
func (p *Predictor) scoreTokenSafety(research *researcher.Research) float64 {
	safety := 1.0
	for _, token := range research.Tokens {
		if !token.ContractVerified {
			safety *= 0.7
		}
		switch {
		case token.AgeDays < 7:
			safety *= 0.5
		case token.AgeDays < 30:
			safety *= 0.7
		case token.AgeDays < 90:
			safety *= 0.85
		}
		switch {
		case token.HolderCount < 100:
			safety *= 0.6
		case token.HolderCount < 500:
			safety *= 0.8
		}
		switch {
		case token.TaxSell > 10:
			safety *= 0.3
		case token.TaxSell > 5:
			safety *= 0.6
		case token.TaxSell > 2:
			safety *= 0.8
		}
	}
	return safety
}

func (p *Predictor) scoreMarketConditions(opp *scraper.Opportunity) float64 {
	score := 0.5
	now := p.now()
	hour := now.Hour()
	if hour >= 14 && hour <= 18 {
		// US peak hours
		score *= 0.8
	} else if hour >= 2 && hour <= 6 {
		score *= 1.2
	}
	day := now.Weekday()
	if day == time.Saturday || day == time.Sunday {
		score *= 1.1
	}
	score *= 1.5 - p.congestion
	if opp.GasCost > 100 {
		score *= 0.7
	} else if opp.GasCost > 50 {
		score *= 0.85
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func (p *Predictor) scoreHistoricalSuccess(opp *scraper.Opportunity) float64 {
	return p.history.Score(opp.Pair, opp.BuyDex, opp.SellDex)
}

func (p *Predictor) applyPenalties(score float64, opp *scraper.Opportunity, research *researcher.Research) float64 {
	if risk := research.RiskFactors.HoneypotRisk; risk > 0.5 {
		score *= 1 - risk
	}
	for _, token := range research.Tokens {
		if token.AgeDays < 1 {
			score *= 0.3
			break
		}
	}
	if opp.NetProfit > 10000 {
		score *= 0.2
	}
	for _, token := range research.Tokens {
		if token.Volume24h < 1000 {
			score *= 0.5
			break
		}
	}
	return score
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

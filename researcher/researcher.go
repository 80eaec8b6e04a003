package researcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mevml/arbscan/scraper"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var (
	DexscreenerApi = "https://api.dexscreener.com/latest/dex"
	EtherscanApi   = "https://api.etherscan.io/api"
	HoneypotApi    = "https://api.honeypot.is/v2"
)

var CacheDuration = time.Hour

type cacheEntry struct {
	at    time.Time
	token *Token
}

type upstream struct {
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// Researcher aggregates external market, contract and honeypot data for
// an opportunity's tokens. Every upstream failure degrades to defaults,
// Research never fails a record.
type Researcher struct {
	client       *http.Client
	upstreams    map[string]*upstream
	etherscanKey string
	mu           sync.Mutex
	cache        map[string]cacheEntry
	log          *log.Logger
}

func NewResearcher(etherscanKey string, logger *log.Logger) *Researcher {
	r := &Researcher{
		client:       &http.Client{Timeout: 10 * time.Second},
		upstreams:    make(map[string]*upstream),
		etherscanKey: etherscanKey,
		cache:        make(map[string]cacheEntry),
		log:          logger,
	}
	for _, name := range []string{"dexscreener", "etherscan", "honeypot"} {
		st := gobreaker.Settings{Name: name}
		st.Interval = 60 * time.Second
		st.Timeout = 60 * time.Second
		st.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		}
		r.upstreams[name] = &upstream{
			limiter: rate.NewLimiter(rate.Every(time.Minute/60), 1),
			breaker: gobreaker.NewCircuitBreaker(st),
		}
	}
	return r
}

// Research looks up both tokens of an opportunity plus pair-level
// metrics and the advisory risk summary.
func (r *Researcher) Research(ctx context.Context, opp *scraper.Opportunity) (*Research, error) {
	research := &Research{
		Timestamp: time.Now(),
		Pair:      opp.Pair,
		Tokens:    make(map[string]*Token),
		Liquidity: Liquidity{LiquidityRatio: 1.0},
	}

	symbols := []string{opp.Token0, opp.Token1}
	for i, symbol := range symbols {
		if symbol == "" {
			continue
		}
		address := ""
		if i < len(opp.Addresses) {
			address = opp.Addresses[i]
		}
		research.Tokens[symbol] = r.researchToken(ctx, symbol, address)
	}

	for _, token := range research.Tokens {
		research.Liquidity.TotalLiquidity += token.LiquidityUsd
		research.Volume.Volume24h += token.Volume24h
	}
	research.RiskFactors = analyzeRisks(research)
	return research, nil
}

func (r *Researcher) researchToken(ctx context.Context, symbol, address string) *Token {
	key := symbol + "_" + address
	r.mu.Lock()
	if entry, ok := r.cache[key]; ok && time.Since(entry.at) < CacheDuration {
		r.mu.Unlock()
		return entry.token
	}
	r.mu.Unlock()

	token := &Token{Symbol: symbol, Address: address}
	if address != "" {
		r.contractInfo(ctx, address, token)
	}
	r.marketData(ctx, symbol, address, token)
	if address != "" {
		r.honeypotCheck(ctx, address, token)
	}

	r.mu.Lock()
	r.cache[key] = cacheEntry{at: time.Now(), token: token}
	r.mu.Unlock()
	return token
}

type etherscanResponse struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

func (r *Researcher) contractInfo(ctx context.Context, address string, token *Token) {
	var resp etherscanResponse
	url := fmt.Sprintf("%s?module=contract&action=getsourcecode&address=%s&apikey=%s",
		EtherscanApi, address, r.etherscanKey)
	if err := r.get(ctx, "etherscan", url, &resp); err != nil {
		r.log.Printf("contract info %s: %v", address, err)
		return
	}
	var sources []struct {
		SourceCode string `json:"SourceCode"`
	}
	if resp.Status == "1" && json.Unmarshal(resp.Result, &sources) == nil && len(sources) > 0 {
		token.ContractVerified = sources[0].SourceCode != ""
		token.IsOpenSource = token.ContractVerified
	}

	url = fmt.Sprintf("%s?module=account&action=txlist&address=%s&startblock=0&endblock=99999999&page=1&offset=1&sort=asc&apikey=%s",
		EtherscanApi, address, r.etherscanKey)
	if err := r.get(ctx, "etherscan", url, &resp); err != nil {
		r.log.Printf("contract age %s: %v", address, err)
		return
	}
	var txs []struct {
		TimeStamp string `json:"timeStamp"`
	}
	if resp.Status == "1" && json.Unmarshal(resp.Result, &txs) == nil && len(txs) > 0 {
		if ts, err := strconv.ParseInt(txs[0].TimeStamp, 10, 64); err == nil && ts > 0 {
			token.AgeDays = time.Since(time.Unix(ts, 0)).Hours() / 24
		}
	}
}

type dexscreenerResponse struct {
	Pairs []struct {
		Liquidity struct {
			Usd float64 `json:"usd"`
		} `json:"liquidity"`
		Volume struct {
			H24 float64 `json:"h24"`
		} `json:"volume"`
		PriceChange struct {
			H24 float64 `json:"h24"`
		} `json:"priceChange"`
		Fdv float64 `json:"fdv"`
	} `json:"pairs"`
}

func (r *Researcher) marketData(ctx context.Context, symbol, address string, token *Token) {
	var url string
	if address != "" {
		url = fmt.Sprintf("%s/tokens/%s", DexscreenerApi, address)
	} else {
		url = fmt.Sprintf("%s/search?q=%s", DexscreenerApi, symbol)
	}
	var resp dexscreenerResponse
	if err := r.get(ctx, "dexscreener", url, &resp); err != nil {
		r.log.Printf("market data %s: %v", symbol, err)
		return
	}
	if len(resp.Pairs) == 0 {
		return
	}
	// most liquid pair first
	pair := resp.Pairs[0]
	token.LiquidityUsd = pair.Liquidity.Usd
	token.Volume24h = pair.Volume.H24
	token.PriceChange24h = pair.PriceChange.H24
	token.MarketCap = pair.Fdv
}

type honeypotResponse struct {
	Honeypot             bool    `json:"honeypot"`
	BuyTax               float64 `json:"buy_tax"`
	SellTax              float64 `json:"sell_tax"`
	CanTakeBackOwnership bool    `json:"can_take_back_ownership"`
}

func (r *Researcher) honeypotCheck(ctx context.Context, address string, token *Token) {
	var resp honeypotResponse
	url := fmt.Sprintf("%s/honeypot/%s", HoneypotApi, address)
	if err := r.get(ctx, "honeypot", url, &resp); err != nil {
		r.log.Printf("honeypot check %s: %v", address, err)
		// unknown is treated as dangerous
		token.IsHoneypot = true
		return
	}
	token.IsHoneypot = resp.Honeypot
	token.TaxBuy = resp.BuyTax
	token.TaxSell = resp.SellTax
	token.CanTakeBackOwnership = resp.CanTakeBackOwnership
}

func (r *Researcher) get(ctx context.Context, name, url string, v interface{}) error {
	up := r.upstreams[name]
	if err := up.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := up.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accepts", "application/json")
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != 200 {
			return nil, fmt.Errorf("response status code: %d", resp.StatusCode)
		}
		return nil, json.NewDecoder(resp.Body).Decode(v)
	})
	return err
}

func analyzeRisks(research *Research) RiskFactors {
	risks := RiskFactors{}
	for _, token := range research.Tokens {
		if token.IsHoneypot {
			risks.HoneypotRisk = 1.0
		}
		if token.TaxSell > 10 && risks.HoneypotRisk < 0.8 {
			risks.HoneypotRisk = 0.8
		}
		if token.CanTakeBackOwnership && risks.HoneypotRisk < 0.6 {
			risks.HoneypotRisk = 0.6
		}
		if token.LiquidityUsd < 50000 {
			if risks.LiquidityRisk < 0.8 {
				risks.LiquidityRisk = 0.8
			}
		} else if token.LiquidityUsd < 100000 && risks.LiquidityRisk < 0.5 {
			risks.LiquidityRisk = 0.5
		}
		if !token.ContractVerified && risks.ContractRisk < 0.7 {
			risks.ContractRisk = 0.7
		}
		if token.AgeDays < 7 && risks.ContractRisk < 0.6 {
			risks.ContractRisk = 0.6
		}
		if token.HolderCount < 100 && risks.ContractRisk < 0.5 {
			risks.ContractRisk = 0.5
		}
	}
	risks.OverallRisk = risks.HoneypotRisk
	if v := risks.LiquidityRisk * 0.8; v > risks.OverallRisk {
		risks.OverallRisk = v
	}
	if v := risks.ContractRisk * 0.7; v > risks.OverallRisk {
		risks.OverallRisk = v
	}
	if v := risks.VolatilityRisk * 0.5; v > risks.OverallRisk {
		risks.OverallRisk = v
	}
	return risks
}

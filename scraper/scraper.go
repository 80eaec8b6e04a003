package scraper

import (
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// A Rule binds one recognized line pattern to the field it fills. The
// grammar is table-driven so another scanner build can be supported by
// appending rules, the state machine itself never changes.
type Rule struct {
	Name  string
	Re    *regexp.Regexp
	Apply func(acc *accumulator, m []string)
}

var headerRe = regexp.MustCompile(`Opportunity #(\d+)`)
var addressRe = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)

func DefaultGrammar() []Rule {
	return []Rule{
		{
			Name: "token_pair",
			Re:   regexp.MustCompile(`Token Pair:\s+(\w+)/(\w+)`),
			Apply: func(acc *accumulator, m []string) {
				acc.opp.Token0 = m[1]
				acc.opp.Token1 = m[2]
				acc.opp.Pair = m[1] + "/" + m[2]
			},
		},
		{
			Name: "dexes",
			Re:   regexp.MustCompile(`Buy from:\s+(\w+)\s+\|\s+Sell to:\s+(\w+)`),
			Apply: func(acc *accumulator, m []string) {
				acc.opp.BuyDex = m[1]
				acc.opp.SellDex = m[2]
			},
		},
		{
			Name: "optimal_amount",
			Re:   regexp.MustCompile(`Optimal Amount:\s+([\d.]+)\s+(\w+)`),
			Apply: func(acc *accumulator, m []string) {
				acc.opp.OptimalAmount, _ = strconv.ParseFloat(m[1], 64)
				acc.opp.AmountToken = m[2]
			},
		},
		{
			Name: "gross_profit",
			Re:   regexp.MustCompile(`Gross Profit:\s+\$([\d.]+)\s+\((\d+)\s+wei\)`),
			Apply: func(acc *accumulator, m []string) {
				acc.opp.GrossProfitUsd, _ = strconv.ParseFloat(m[1], 64)
				acc.opp.GrossProfitWei, _ = strconv.ParseUint(m[2], 10, 64)
			},
		},
		{
			Name: "gas_cost",
			Re:   regexp.MustCompile(`Gas Cost:\s+\$([\d.]+)`),
			Apply: func(acc *accumulator, m []string) {
				acc.opp.GasCost, _ = strconv.ParseFloat(m[1], 64)
			},
		},
		{
			Name: "net_profit",
			Re:   regexp.MustCompile(`NET PROFIT:\s+\$([\d.]+)`),
			Apply: func(acc *accumulator, m []string) {
				acc.opp.NetProfit, _ = strconv.ParseFloat(m[1], 64)
				acc.hasNetProfit = true
			},
		},
		{
			Name: "block",
			Re:   regexp.MustCompile(`Block:\s+#(\d+)`),
			Apply: func(acc *accumulator, m []string) {
				acc.opp.BlockNumber, _ = strconv.ParseUint(m[1], 10, 64)
				acc.hasBlock = true
			},
		},
		{
			Name: "flashloan",
			Re:   regexp.MustCompile(`Flash Loan Provider:\s+(\w+(?:\s+\w+)*)`),
			Apply: func(acc *accumulator, m []string) {
				acc.opp.FlashloanProvider = m[1]
			},
		},
	}
}

type accumulator struct {
	opp          Opportunity
	rawLines     []string
	hasNetProfit bool
	hasBlock     bool
}

// Parser assembles Opportunity records from the scanner's line stream.
// It has two states: idle (pending == nil) and accumulating. A record is
// finalized either when the next opportunity header arrives or as soon as
// its own block number and net profit have both been seen, whichever
// happens first.
type Parser struct {
	grammar []Rule
	pending *accumulator
	log     *log.Logger
}

func NewParser(logger *log.Logger) *Parser {
	return &Parser{
		grammar: DefaultGrammar(),
		log:     logger,
	}
}

// FeedLine consumes one line and returns at most one completed record.
func (p *Parser) FeedLine(line string) *Opportunity {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var emitted *Opportunity
	if headerRe.MatchString(line) {
		emitted = p.finalize()
		p.pending = &accumulator{}
		p.pending.opp.Timestamp = time.Now()
	}

	if p.pending != nil {
		p.pending.rawLines = append(p.pending.rawLines, line)
		p.extract(line)
	}

	if p.pending != nil && p.pending.hasBlock && p.pending.hasNetProfit {
		if opp := p.finalize(); opp != nil {
			return opp
		}
	}
	return emitted
}

// FeedBlock consumes a multi-line chunk and flushes whatever record is
// still pending at end of input. It shares state with FeedLine.
func (p *Parser) FeedBlock(text string) []*Opportunity {
	opps := make([]*Opportunity, 0)
	for _, line := range strings.Split(text, "\n") {
		if opp := p.FeedLine(line); opp != nil {
			opps = append(opps, opp)
		}
	}
	if opp := p.Flush(); opp != nil {
		opps = append(opps, opp)
	}
	return opps
}

// Flush finalizes the pending record, if it validates.
func (p *Parser) Flush() *Opportunity {
	return p.finalize()
}

func (p *Parser) extract(line string) {
	acc := p.pending
	for i := range p.grammar {
		rule := &p.grammar[i]
		if m := rule.Re.FindStringSubmatch(line); m != nil {
			rule.Apply(acc, m)
		}
	}
	if addrs := addressRe.FindAllString(line, -1); len(addrs) > 0 {
		acc.opp.Addresses = append(acc.opp.Addresses, addrs...)
	}
}

// finalize validates and enriches the pending record. Invalid
// accumulators are dropped, they never surface as errors.
func (p *Parser) finalize() *Opportunity {
	acc := p.pending
	p.pending = nil
	if acc == nil {
		return nil
	}
	if acc.opp.Pair == "" || acc.opp.BuyDex == "" || acc.opp.SellDex == "" ||
		!acc.hasNetProfit || !acc.hasBlock {
		if p.log != nil {
			p.log.Printf("drop incomplete record: %q", strings.Join(acc.rawLines, " | "))
		}
		return nil
	}
	if acc.opp.NetProfit <= 0 {
		if p.log != nil {
			p.log.Printf("drop non-profitable record: %s %.2f", acc.opp.Pair, acc.opp.NetProfit)
		}
		return nil
	}

	opp := acc.opp
	opp.RawText = strings.Join(acc.rawLines, "\n")
	if opp.GrossProfitUsd > 0 {
		opp.GasRatio = opp.GasCost / opp.GrossProfitUsd
	} else {
		opp.GasRatio = 1.0
	}
	opp.IsCrossDex = opp.BuyDex != opp.SellDex
	opp.IsUniswapV2 = strings.Contains(opp.BuyDex, "UniswapV2") || strings.Contains(opp.SellDex, "UniswapV2")
	opp.IsUniswapV3 = strings.Contains(opp.BuyDex, "UniswapV3") || strings.Contains(opp.SellDex, "UniswapV3")
	opp.IsSushiswap = strings.Contains(opp.BuyDex, "Sushiswap") || strings.Contains(opp.SellDex, "Sushiswap")
	return &opp
}

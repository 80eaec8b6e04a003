package pipeline

import (
	"bufio"
	"context"
	"io"
	"log"
	"sync"

	"github.com/badgerodon/collections/queue"
	"github.com/mevml/arbscan/monitor"
	"github.com/mevml/arbscan/predictor"
	"github.com/mevml/arbscan/researcher"
	"github.com/mevml/arbscan/scraper"
)

// HoneypotCutoff short-circuits scoring: records at or above it never
// reach the viability pass.
const HoneypotCutoff = 0.7

type Researcher interface {
	Research(ctx context.Context, opp *scraper.Opportunity) (*researcher.Research, error)
}

type Store interface {
	StoreOpportunity(opp *scraper.Opportunity, research *researcher.Research)
}

type RiskScorer interface {
	CheckHoneypot(opp *scraper.Opportunity, research *researcher.Research) float64
}

type ViabilityScorer interface {
	PredictViability(opp *scraper.Opportunity, research *researcher.Research) float64
}

type Notifier interface {
	NotifyOpportunity(opp *scraper.Opportunity)
}

// Pipeline connects the single producer (parser fed from the scanner
// stream) to the single consumer through one unbounded FIFO. Records
// are processed strictly in completion order.
type Pipeline struct {
	ctx        context.Context
	wg         sync.WaitGroup
	parser     *scraper.Parser
	researcher Researcher
	detector   RiskScorer
	predictor  ViabilityScorer
	store      Store
	notifier   Notifier
	metrics    *monitor.Metrics

	mu     sync.Mutex
	cond   *sync.Cond
	queue  *queue.Queue
	closed bool

	log *log.Logger
}

func NewPipeline(ctx context.Context, parser *scraper.Parser, r Researcher, detector RiskScorer,
	viability ViabilityScorer, store Store, notifier Notifier, metrics *monitor.Metrics, logger *log.Logger) *Pipeline {
	p := &Pipeline{
		ctx:        ctx,
		parser:     parser,
		researcher: r,
		detector:   detector,
		predictor:  viability,
		store:      store,
		notifier:   notifier,
		metrics:    metrics,
		queue:      queue.New(),
		log:        logger,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *Pipeline) Start() {
	p.wg.Add(1)
	go p.consume()
	go func() {
		<-p.ctx.Done()
		p.cond.Broadcast()
	}()
}

// Stop waits for the consumer to finish its in-flight record and drain
// out. Call after the producer has stopped feeding.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

// Feed is the producer: it reads the scanner stream line by line until
// EOF or cancellation, then flushes the pending record.
func (p *Pipeline) Feed(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if p.ctx.Err() != nil {
			return
		}
		if opp := p.parser.FeedLine(scanner.Text()); opp != nil {
			p.Enqueue(opp)
		}
	}
	if err := scanner.Err(); err != nil {
		p.log.Printf("stream read err: %v", err)
	}
	if opp := p.parser.Flush(); opp != nil {
		p.Enqueue(opp)
	}
}

// FeedBlock pushes a multi-line chunk through the shared parser state.
func (p *Pipeline) FeedBlock(text string) {
	for _, opp := range p.parser.FeedBlock(text) {
		p.Enqueue(opp)
	}
}

func (p *Pipeline) Enqueue(opp *scraper.Opportunity) {
	p.mu.Lock()
	p.queue.Enqueue(opp)
	depth := p.queue.Len()
	p.mu.Unlock()
	p.cond.Signal()
	if p.metrics != nil {
		p.metrics.Parsed.Inc()
		p.metrics.QueueDepth.Set(float64(depth))
	}
}

func (p *Pipeline) consume() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.queue.Len() == 0 {
			if p.closed || p.ctx.Err() != nil {
				p.mu.Unlock()
				return
			}
			p.cond.Wait()
		}
		opp := p.queue.Dequeue().(*scraper.Opportunity)
		depth := p.queue.Len()
		p.mu.Unlock()
		if p.metrics != nil {
			p.metrics.QueueDepth.Set(float64(depth))
		}
		p.process(opp)
	}
}

// process runs one record through research, risk and viability scoring.
// A cancelled context does not abort the record mid-scoring.
func (p *Pipeline) process(opp *scraper.Opportunity) {
	p.log.Printf("researching pair: %s", opp.Pair)
	research, err := p.researcher.Research(p.ctx, opp)
	if err != nil || research == nil {
		p.log.Printf("research failed for %s, using defaults: %v", opp.Pair, err)
		research = researcher.Empty(opp.Pair)
	}

	opp.HoneypotRisk = p.detector.CheckHoneypot(opp, research)
	if opp.HoneypotRisk > HoneypotCutoff {
		p.log.Printf("high honeypot risk for %s: %.2f", opp.Pair, opp.HoneypotRisk)
		opp.Viable = false
		opp.Recommendation = predictor.Skip
		if p.metrics != nil {
			p.metrics.Honeypots.Inc()
		}
	} else {
		opp.ViabilityScore = p.predictor.PredictViability(opp, research)
		opp.HasViability = true
		opp.Viable, opp.Recommendation = predictor.Recommendation(opp.ViabilityScore)
		if opp.Viable {
			p.log.Printf("viable: %s, profit $%.2f, viability %.2f, recommendation %s",
				opp.Pair, opp.NetProfit, opp.ViabilityScore, opp.Recommendation)
			if p.metrics != nil {
				p.metrics.Viable.Inc()
			}
			if p.notifier != nil {
				p.notifier.NotifyOpportunity(opp)
			}
		} else {
			p.log.Printf("not viable: %s, viability %.2f", opp.Pair, opp.ViabilityScore)
		}
	}

	p.store.StoreOpportunity(opp, research)
	if p.metrics != nil {
		p.metrics.Stored.Inc()
	}
}

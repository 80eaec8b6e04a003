package trainer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mevml/arbscan/honeypot"
	"github.com/mevml/arbscan/pipeline"
	"github.com/mevml/arbscan/predictor"
	"github.com/mevml/arbscan/store"
)

// Trainer periodically refreshes the learned state from persisted
// history: the detector's known-bad set and anomaly model, and the
// predictor's success memo. It reads aggregated history only, never the
// live queue.
type Trainer struct {
	ctx        context.Context
	wg         sync.WaitGroup
	store      *store.Store
	detector   *honeypot.Detector
	history    *predictor.History
	interval   time.Duration
	windowDays int
	minSamples int
	retention  int
	log        *log.Logger
}

func NewTrainer(ctx context.Context, s *store.Store, detector *honeypot.Detector, history *predictor.History,
	interval time.Duration, windowDays, minSamples, retentionDays int, logger *log.Logger) *Trainer {
	return &Trainer{
		ctx:        ctx,
		store:      s,
		detector:   detector,
		history:    history,
		interval:   interval,
		windowDays: windowDays,
		minSamples: minSamples,
		retention:  retentionDays,
		log:        logger,
	}
}

func (t *Trainer) Start() {
	t.wg.Add(1)
	go t.run()
}

func (t *Trainer) Stop() {
	t.wg.Wait()
}

func (t *Trainer) run() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	cleanup := time.NewTicker(24 * time.Hour)
	defer cleanup.Stop()
	for {
		select {
		case <-ticker.C:
			t.Train()
		case <-cleanup.C:
			t.store.Cleanup(t.retention)
		case <-t.ctx.Done():
			return
		}
	}
}

// Train runs one retraining pass over the persisted window.
func (t *Trainer) Train() {
	samples, err := t.store.TrainingData(t.windowDays)
	if err != nil {
		t.log.Printf("training data err: %v", err)
		return
	}
	if len(samples) < t.minSamples {
		t.log.Printf("not enough data for training yet: %d < %d", len(samples), t.minSamples)
		return
	}

	detectorSamples := make([]*honeypot.Sample, 0, len(samples))
	for _, sample := range samples {
		detectorSamples = append(detectorSamples, &honeypot.Sample{
			Opportunity:      sample.Opportunity,
			Research:         sample.Research,
			ExecutionSuccess: sample.ExecutionSuccess,
			ActualProfit:     sample.ActualProfit,
		})
	}
	t.detector.Train(detectorSamples)

	rates, err := t.store.SuccessRates()
	if err != nil {
		t.log.Printf("success rates err: %v", err)
	} else {
		t.history.Seed(rates)
	}

	t.recordPerformance(detectorSamples)
	t.log.Printf("models retrained on %d samples", len(samples))
}

// recordPerformance evaluates the deterministic detector against the
// realized labels and persists the result.
func (t *Trainer) recordPerformance(samples []*honeypot.Sample) {
	correct := 0
	for _, sample := range samples {
		risk := t.detector.CheckHoneypot(sample.Opportunity, sample.Research)
		predicted := risk > pipeline.HoneypotCutoff
		actual := !sample.ExecutionSuccess || sample.ActualProfit < -10
		if predicted == actual {
			correct++
		}
	}
	record := &store.ModelPerformanceRecord{
		Timestamp:          time.Now(),
		ModelType:          "honeypot",
		TotalPredictions:   len(samples),
		CorrectPredictions: correct,
	}
	if len(samples) > 0 {
		record.Accuracy = float64(correct) / float64(len(samples))
	}
	if err := t.store.SaveModelPerformance(record); err != nil {
		t.log.Printf("save model performance err: %v", err)
	}
}

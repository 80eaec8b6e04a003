package store

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/mevml/arbscan/predictor"
	"github.com/mevml/arbscan/researcher"
	"github.com/mevml/arbscan/scraper"
)

type scoredResult struct {
	opportunity *scraper.Opportunity
	research    *researcher.Research
}

// TrainingSample is one persisted record rehydrated for retraining.
type TrainingSample struct {
	Opportunity      *scraper.Opportunity
	Research         *researcher.Research
	Executed         bool
	ExecutionSuccess bool
	ActualProfit     float64
}

// database is the persistence surface the store drives; Dao satisfies it.
type database interface {
	SaveOpportunity(record *OpportunityRecord) error
	SaveResearch(record *ResearchRecord) error
	SaveExecution(record *ExecutionRecord) error
	SaveModelPerformance(record *ModelPerformanceRecord) error
	SelectOpportunity(id uint64) (*OpportunityRecord, error)
	SelectRecentViable(limit int) ([]*OpportunityRecord, error)
	SelectTrainingWindow(windowDays int) ([]*OpportunityRecord, map[uint64]*ResearchRecord, map[uint64]*ExecutionRecord, error)
	SelectSuccessRates() ([]*RouteCount, error)
	SelectPerformance() (*Performance, error)
	DeleteStale(retentionDays int) (int64, error)
}

// Store persists scored opportunities asynchronously; writes are queued
// on a channel and drained by one worker so the pipeline never blocks on
// the database. Stop closes the intake and waits until every accepted
// record has been written.
type Store struct {
	wg         sync.WaitGroup
	resultChan chan *scoredResult
	execChan   chan *ExecutionRecord
	dao        database
	log        *log.Logger
}

func NewStore(url, scheme, user, passwd string, logger *log.Logger) *Store {
	s := &Store{
		resultChan: make(chan *scoredResult, 64),
		execChan:   make(chan *ExecutionRecord, 32),
		dao:        NewDao(url, scheme, user, passwd),
		log:        logger,
	}
	return s
}

func (s *Store) Start() {
	s.wg.Add(1)
	go s.store()
}

// Stop closes the intake and blocks until the worker has written every
// record accepted so far. Producers must be stopped first.
func (s *Store) Stop() {
	close(s.resultChan)
	close(s.execChan)
	s.wg.Wait()
}

// store drains the intake until both channels are closed and empty, so a
// record handed over late in a shutdown is still written.
func (s *Store) store() {
	defer s.wg.Done()
	results, execs := s.resultChan, s.execChan
	for results != nil || execs != nil {
		select {
		case result, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			if err := s.save(result); err != nil {
				s.log.Printf("save opportunity err: %v", err)
			}
		case record, ok := <-execs:
			if !ok {
				execs = nil
				continue
			}
			if err := s.dao.SaveExecution(record); err != nil {
				s.log.Printf("save execution err: %v", err)
			}
		}
	}
}

// StoreOpportunity queues one scored record for persistence.
func (s *Store) StoreOpportunity(opp *scraper.Opportunity, research *researcher.Research) {
	s.resultChan <- &scoredResult{opportunity: opp, research: research}
}

func (s *Store) save(result *scoredResult) error {
	opp := result.opportunity
	research := result.research
	rawData, _ := json.Marshal(opp)
	record := &OpportunityRecord{
		Timestamp:      opp.Timestamp,
		Pair:           opp.Pair,
		Token0:         opp.Token0,
		Token1:         opp.Token1,
		BuyDex:         opp.BuyDex,
		SellDex:        opp.SellDex,
		OptimalAmount:  opp.OptimalAmount,
		GrossProfitUsd: opp.GrossProfitUsd,
		GasCost:        opp.GasCost,
		NetProfit:      opp.NetProfit,
		BlockNumber:    opp.BlockNumber,
		ViabilityScore: opp.ViabilityScore,
		HoneypotRisk:   opp.HoneypotRisk,
		Viable:         opp.Viable,
		Recommendation: opp.Recommendation,
		RawData:        string(rawData),
	}
	if err := s.dao.SaveOpportunity(record); err != nil {
		return err
	}
	token0Data, _ := json.Marshal(research.Tokens[opp.Token0])
	token1Data, _ := json.Marshal(research.Tokens[opp.Token1])
	liquidityData, _ := json.Marshal(research.Liquidity)
	volumeData, _ := json.Marshal(research.Volume)
	riskFactors, _ := json.Marshal(research.RiskFactors)
	rawResearch, _ := json.Marshal(research)
	return s.dao.SaveResearch(&ResearchRecord{
		OpportunityId: record.Id,
		Timestamp:     research.Timestamp,
		Token0Data:    string(token0Data),
		Token1Data:    string(token1Data),
		LiquidityData: string(liquidityData),
		VolumeData:    string(volumeData),
		RiskFactors:   string(riskFactors),
		RawResearch:   string(rawResearch),
	})
}

// RecordExecution queues one realized outcome report.
func (s *Store) RecordExecution(opportunityId uint64, success bool, actualProfit, gasUsed float64, errorMessage, txHash string) {
	s.execChan <- &ExecutionRecord{
		OpportunityId: opportunityId,
		Timestamp:     time.Now(),
		ExecutedAt:    time.Now(),
		Success:       success,
		ActualProfit:  actualProfit,
		GasUsed:       gasUsed,
		ErrorMessage:  errorMessage,
		TxHash:        txHash,
	}
}

// TrainingData rehydrates the persisted window for retraining.
func (s *Store) TrainingData(windowDays int) ([]*TrainingSample, error) {
	opps, research, executions, err := s.dao.SelectTrainingWindow(windowDays)
	if err != nil {
		return nil, err
	}
	samples := make([]*TrainingSample, 0, len(opps))
	for _, record := range opps {
		opp := &scraper.Opportunity{}
		if err := json.Unmarshal([]byte(record.RawData), opp); err != nil {
			s.log.Printf("bad raw data for opportunity %d: %v", record.Id, err)
			continue
		}
		sample := &TrainingSample{Opportunity: opp, ExecutionSuccess: true}
		if row, ok := research[record.Id]; ok {
			res := &researcher.Research{}
			if err := json.Unmarshal([]byte(row.RawResearch), res); err == nil {
				sample.Research = res
			}
		}
		if sample.Research == nil {
			sample.Research = researcher.Empty(record.Pair)
		}
		if row, ok := executions[record.Id]; ok {
			sample.Executed = true
			sample.ExecutionSuccess = row.Success
			sample.ActualProfit = row.ActualProfit
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// SuccessRates returns per-route attempt/success counts keyed the way
// the predictor history expects.
func (s *Store) SuccessRates() (map[string][2]int, error) {
	counts, err := s.dao.SelectSuccessRates()
	if err != nil {
		return nil, err
	}
	rates := make(map[string][2]int, len(counts))
	for _, count := range counts {
		key := predictor.Key(count.Pair, count.BuyDex, count.SellDex)
		rates[key] = [2]int{count.Attempts, count.Successes}
	}
	return rates, nil
}

func (s *Store) Performance() (*Performance, error) {
	return s.dao.SelectPerformance()
}

func (s *Store) RecentViable(limit int) ([]*OpportunityRecord, error) {
	return s.dao.SelectRecentViable(limit)
}

func (s *Store) Opportunity(id uint64) (*OpportunityRecord, error) {
	return s.dao.SelectOpportunity(id)
}

func (s *Store) SaveModelPerformance(record *ModelPerformanceRecord) error {
	return s.dao.SaveModelPerformance(record)
}

func (s *Store) Cleanup(retentionDays int) {
	deleted, err := s.dao.DeleteStale(retentionDays)
	if err != nil {
		s.log.Printf("cleanup err: %v", err)
		return
	}
	if deleted > 0 {
		s.log.Printf("cleaned up %d stale records", deleted)
	}
}

package store

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Dao struct {
	db *gorm.DB
}

func NewDao(url, scheme, user, passwd string) *Dao {
	dao := &Dao{}
	Logger := logger.Default
	Logger = Logger.LogMode(logger.Warn)
	db, err := gorm.Open(mysql.Open(user+":"+passwd+"@tcp("+url+")/"+
		scheme+"?charset=utf8&parseTime=true"), &gorm.Config{Logger: Logger})
	if err != nil {
		panic(err)
	}
	err = db.AutoMigrate(&OpportunityRecord{}, &ResearchRecord{}, &ExecutionRecord{}, &ModelPerformanceRecord{})
	if err != nil {
		panic(err)
	}
	dao.db = db
	return dao
}

func (dao *Dao) SaveOpportunity(record *OpportunityRecord) error {
	return dao.db.Create(record).Error
}

func (dao *Dao) SaveResearch(record *ResearchRecord) error {
	return dao.db.Create(record).Error
}

func (dao *Dao) SaveExecution(record *ExecutionRecord) error {
	if err := dao.db.Create(record).Error; err != nil {
		return err
	}
	return dao.db.Model(&OpportunityRecord{}).
		Where("id = ?", record.OpportunityId).
		Updates(map[string]interface{}{
			"executed":          true,
			"execution_success": record.Success,
			"actual_profit":     record.ActualProfit,
		}).Error
}

func (dao *Dao) SaveModelPerformance(record *ModelPerformanceRecord) error {
	return dao.db.Create(record).Error
}

func (dao *Dao) SelectOpportunity(id uint64) (*OpportunityRecord, error) {
	record := &OpportunityRecord{}
	res := dao.db.Where("id = ?", id).First(record)
	return record, res.Error
}

func (dao *Dao) SelectRecentViable(limit int) ([]*OpportunityRecord, error) {
	records := make([]*OpportunityRecord, 0)
	res := dao.db.Where("viable = ?", true).Order("id desc").Limit(limit).Find(&records)
	return records, res.Error
}

// SelectTrainingWindow returns the profitable opportunities of the last
// windowDays with their research and execution rows joined in.
func (dao *Dao) SelectTrainingWindow(windowDays int) ([]*OpportunityRecord, map[uint64]*ResearchRecord, map[uint64]*ExecutionRecord, error) {
	since := time.Now().AddDate(0, 0, -windowDays)
	opps := make([]*OpportunityRecord, 0)
	if res := dao.db.Where("timestamp > ? and net_profit > 0", since).Find(&opps); res.Error != nil {
		return nil, nil, nil, res.Error
	}
	ids := make([]uint64, 0, len(opps))
	for _, opp := range opps {
		ids = append(ids, opp.Id)
	}
	research := make(map[uint64]*ResearchRecord, len(ids))
	executions := make(map[uint64]*ExecutionRecord, len(ids))
	if len(ids) == 0 {
		return opps, research, executions, nil
	}
	researchRows := make([]*ResearchRecord, 0)
	if res := dao.db.Where("opportunity_id in ?", ids).Find(&researchRows); res.Error != nil {
		return nil, nil, nil, res.Error
	}
	for _, row := range researchRows {
		research[row.OpportunityId] = row
	}
	executionRows := make([]*ExecutionRecord, 0)
	if res := dao.db.Where("opportunity_id in ?", ids).Find(&executionRows); res.Error != nil {
		return nil, nil, nil, res.Error
	}
	for _, row := range executionRows {
		executions[row.OpportunityId] = row
	}
	return opps, research, executions, nil
}

type RouteCount struct {
	Pair      string
	BuyDex    string
	SellDex   string
	Attempts  int
	Successes int
}

func (dao *Dao) SelectSuccessRates() ([]*RouteCount, error) {
	counts := make([]*RouteCount, 0)
	res := dao.db.Raw(`
		select o.pair as pair, o.buy_dex as buy_dex, o.sell_dex as sell_dex,
			count(*) as attempts, sum(case when e.success then 1 else 0 end) as successes
		from execution_records e
		join opportunity_records o on o.id = e.opportunity_id
		group by o.pair, o.buy_dex, o.sell_dex`).Scan(&counts)
	return counts, res.Error
}

type Performance struct {
	Total       int64   `json:"total"`
	Viable      int64   `json:"viable"`
	Honeypots   int64   `json:"honeypots"`
	AvgProfit   float64 `json:"avg_profit"`
	Accuracy    float64 `json:"accuracy"`
	SuccessRate float64 `json:"success_rate"`
}

func (dao *Dao) SelectPerformance() (*Performance, error) {
	perf := &Performance{}
	if res := dao.db.Model(&OpportunityRecord{}).Count(&perf.Total); res.Error != nil {
		return nil, res.Error
	}
	if res := dao.db.Model(&OpportunityRecord{}).Where("viability_score > ?", 0.6).Count(&perf.Viable); res.Error != nil {
		return nil, res.Error
	}
	if res := dao.db.Model(&OpportunityRecord{}).Where("honeypot_risk > ?", 0.7).Count(&perf.Honeypots); res.Error != nil {
		return nil, res.Error
	}
	var avgProfit *float64
	if res := dao.db.Model(&OpportunityRecord{}).Where("net_profit > 0").
		Select("avg(net_profit)").Scan(&avgProfit); res.Error != nil {
		return nil, res.Error
	}
	if avgProfit != nil {
		perf.AvgProfit = *avgProfit
	}
	var accuracy *float64
	if res := dao.db.Model(&ModelPerformanceRecord{}).
		Where("timestamp > ?", time.Now().AddDate(0, 0, -1)).
		Select("avg(accuracy)").Scan(&accuracy); res.Error != nil {
		return nil, res.Error
	}
	if accuracy != nil {
		perf.Accuracy = *accuracy
	}
	var successRate *float64
	if res := dao.db.Model(&ExecutionRecord{}).
		Where("timestamp > ?", time.Now().AddDate(0, 0, -7)).
		Select("avg(case when success then 1.0 else 0.0 end)").Scan(&successRate); res.Error != nil {
		return nil, res.Error
	}
	if successRate != nil {
		perf.SuccessRate = *successRate
	}
	return perf, nil
}

// DeleteStale drops old records that were never executed and scored too
// low to matter, to keep the table size bounded.
func (dao *Dao) DeleteStale(retentionDays int) (int64, error) {
	res := dao.db.Where("timestamp < ? and viability_score < ? and executed = ?",
		time.Now().AddDate(0, 0, -retentionDays), 0.3, false).
		Delete(&OpportunityRecord{})
	return res.RowsAffected, res.Error
}

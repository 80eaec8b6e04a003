package app

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mevml/arbscan/config"
	"github.com/mevml/arbscan/honeypot"
	"github.com/mevml/arbscan/monitor"
	"github.com/mevml/arbscan/networkdetect"
	"github.com/mevml/arbscan/notify"
	"github.com/mevml/arbscan/pipeline"
	"github.com/mevml/arbscan/predictor"
	"github.com/mevml/arbscan/researcher"
	"github.com/mevml/arbscan/scraper"
	"github.com/mevml/arbscan/store"
	"github.com/mevml/arbscan/trainer"
	"github.com/mevml/arbscan/utils"

	"log"
)

var (
	Init    = int32(0)
	Started = int32(1)
	Stopped = int32(3)
)

// MLSystem wires the scanner subprocess, the parsing/scoring pipeline
// and the background training and reporting tasks together.
type MLSystem struct {
	ctx        context.Context
	log        *log.Logger
	config     *config.Config
	status     int32
	startTime  int64
	store      *store.Store
	researcher *researcher.Researcher
	detector   *honeypot.Detector
	predictor  *predictor.Predictor
	parser     *scraper.Parser
	pipeline   *pipeline.Pipeline
	metrics    *monitor.Metrics
	monitor    *monitor.Monitor
	trainer    *trainer.Trainer
	notifier   *notify.Notifier
	nd         *networkdetect.NetworkDetector
	scannerCmd *exec.Cmd
	httpServer *http.Server
}

// AnomalyModel and ViabilityModel are optional learned collaborators;
// pass nil to run the deterministic scorers alone.
func NewMLSystem(ctx context.Context, cfg *config.Config,
	anomalyModel honeypot.AnomalyModel, anomalyTrainer honeypot.AnomalyTrainer,
	viabilityModel predictor.ViabilityModel) *MLSystem {
	cfg.Fill()
	sys := &MLSystem{
		ctx:    ctx,
		config: cfg,
		log:    utils.NewLog(config.LogPath, config.SystemLog),
	}

	sys.store = store.NewStore(cfg.DBUrl, cfg.DBScheme, cfg.DBUser, cfg.DBPasswd,
		utils.NewLog(config.LogPath, config.MonitorLog))
	sys.researcher = researcher.NewResearcher(cfg.EtherscanKey,
		utils.NewLog(config.LogPath, config.ResearcherLog))
	sys.detector = honeypot.NewDetector(anomalyModel, anomalyTrainer,
		utils.NewLog(config.LogPath, config.DetectorLog))

	history := predictor.NewHistory()
	if rates, err := sys.store.SuccessRates(); err != nil {
		sys.log.Printf("load success rates err: %v", err)
	} else {
		history.Seed(rates)
	}
	sys.predictor = predictor.NewPredictor(history, viabilityModel,
		utils.NewLog(config.LogPath, config.PredictorLog))

	sys.notifier = notify.NewNotifier(ctx, cfg.DingUrl, sys.log)
	sys.parser = scraper.NewParser(utils.NewLog(config.LogPath, config.ScraperLog))
	sys.metrics = monitor.NewMetrics()
	sys.pipeline = pipeline.NewPipeline(ctx, sys.parser, sys.researcher, sys.detector,
		sys.predictor, sys.store, sys.notifier, sys.metrics,
		utils.NewLog(config.LogPath, config.PipelineLog))
	sys.monitor = monitor.NewMonitor(ctx, sys.store,
		time.Duration(cfg.ReportInterval)*time.Second,
		utils.NewLog(config.LogPath, config.MonitorLog))
	sys.trainer = trainer.NewTrainer(ctx, sys.store, sys.detector, history,
		time.Duration(cfg.TrainInterval)*time.Second,
		cfg.TrainWindowDays, cfg.MinTrainSamples, cfg.RetentionDays,
		utils.NewLog(config.LogPath, config.TrainerLog))
	if cfg.NetStatus {
		sys.nd = networkdetect.NewNetworkDetector(ctx, cfg.ResearchHosts, sys.notifier,
			utils.NewLog(config.LogPath, config.NetworkLog))
	}
	sys.status = Init
	return sys
}

func (sys *MLSystem) Service() {
	sys.Start()
	sys.StartRPC()
	<-sys.ctx.Done()
	sys.StopRPC()
	sys.Stop()
}

func (sys *MLSystem) Start() {
	sys.store.Start()
	sys.notifier.Start()
	if sys.nd != nil {
		sys.nd.Start()
	}
	sys.monitor.Start()
	sys.trainer.Start()
	sys.pipeline.Start()
	// warm the learned state from whatever history already exists
	go sys.trainer.Train()
	sys.startScanner()
	atomic.StoreInt32(&sys.status, Started)
	sys.startTime = time.Now().Unix()
	sys.log.Printf("ml arbitrage system has started......")
}

// startScanner attaches the producer to the scanner subprocess stdout,
// or to stdin when no command is configured.
func (sys *MLSystem) startScanner() {
	if len(sys.config.ScannerCmd) == 0 {
		sys.log.Printf("no scanner command configured, reading stdin")
		go sys.pipeline.Feed(os.Stdin)
		return
	}
	cmd := exec.CommandContext(sys.ctx, sys.config.ScannerCmd[0], sys.config.ScannerCmd[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		panic(err)
	}
	if err := cmd.Start(); err != nil {
		panic(err)
	}
	sys.scannerCmd = cmd
	sys.log.Printf("scanner subprocess started: %v", sys.config.ScannerCmd)
	go func() {
		sys.pipeline.Feed(stdout)
		if err := cmd.Wait(); err != nil {
			sys.log.Printf("scanner subprocess exit: %v", err)
		}
	}()
}

func (sys *MLSystem) Stop() {
	sys.pipeline.Stop()
	sys.store.Stop()
	sys.monitor.Stop()
	sys.trainer.Stop()
	if sys.nd != nil {
		sys.nd.Stop()
	}
	sys.notifier.Stop()
	atomic.StoreInt32(&sys.status, Stopped)
	sys.log.Printf("ml arbitrage system has stopped......")
}

func (sys *MLSystem) StartRPC() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	g := router.Group("/api")
	g.GET("/status", sys.getStatus)
	g.GET("/opportunities", sys.getOpportunities)
	g.GET("/metrics", gin.WrapH(sys.metrics.Handler()))
	g.POST("/execution", sys.postExecution)
	sys.httpServer = &http.Server{
		Addr:    sys.config.Listen,
		Handler: router,
	}
	sys.log.Printf("start rpc server......")
	go func() {
		if err := sys.httpServer.ListenAndServe(); err != nil {
			sys.log.Printf("ListenAndServe: %s", err.Error())
		}
	}()
}

func (sys *MLSystem) StopRPC() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sys.httpServer.Shutdown(ctx); err != nil {
		sys.log.Printf("rpc server shutdown err: %v", err)
	}
	sys.log.Printf("rpc server has stopped......")
}

func (sys *MLSystem) getStatus(c *gin.Context) {
	perf, err := sys.store.Performance()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      atomic.LoadInt32(&sys.status),
		"uptime":      time.Now().Unix() - sys.startTime,
		"performance": perf,
	})
}

func (sys *MLSystem) getOpportunities(c *gin.Context) {
	records, err := sys.store.RecentViable(20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

type executionReport struct {
	OpportunityId uint64  `json:"opportunity_id" binding:"required"`
	Success       bool    `json:"success"`
	ActualProfit  float64 `json:"actual_profit"`
	GasUsed       float64 `json:"gas_used"`
	ErrorMessage  string  `json:"error_message"`
	TxHash        string  `json:"tx_hash"`
}

// postExecution reports a realized outcome; it feeds both the store and
// the predictor's success memo.
func (sys *MLSystem) postExecution(c *gin.Context) {
	var report executionReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	record, err := sys.store.Opportunity(report.OpportunityId)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	sys.store.RecordExecution(report.OpportunityId, report.Success,
		report.ActualProfit, report.GasUsed, report.ErrorMessage, report.TxHash)
	sys.predictor.History().Update(record.Pair, record.BuyDex, record.SellDex,
		report.Success, report.ActualProfit)
	c.JSON(http.StatusOK, gin.H{"recorded": report.OpportunityId})
}

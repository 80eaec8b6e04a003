package config

var (
	ConfigPath = "./config/"
	ConfigFile = ConfigPath + "config.json"
	LogPath    = "./logs/"

	ScraperLog    = "scraper"
	PipelineLog   = "pipeline"
	ResearcherLog = "researcher"
	DetectorLog   = "detector"
	PredictorLog  = "predictor"
	TrainerLog    = "trainer"
	MonitorLog    = "monitor"
	NetworkLog    = "network"
	SystemLog     = "system"
)

type Config struct {
	ScannerCmd      []string `json:"scanner_cmd"`
	WorkSpace       string   `json:"workspace"`
	Listen          string   `json:"listen"`
	DingUrl         string   `json:"ding-url"`
	DBUrl           string   `json:"db_url"`
	DBScheme        string   `json:"db_scheme"`
	DBUser          string   `json:"db_user"`
	DBPasswd        string   `json:"db_passwd"`
	EtherscanKey    string   `json:"etherscan_key"`
	ResearchHosts   []string `json:"research_hosts"`
	NetStatus       bool     `json:"net_status"`
	TrainWindowDays int      `json:"train_window_days"`
	TrainInterval   int64    `json:"train_interval"`
	ReportInterval  int64    `json:"report_interval"`
	RetentionDays   int      `json:"retention_days"`
	MinTrainSamples int      `json:"min_train_samples"`
}

func (cfg *Config) Fill() {
	if cfg.TrainWindowDays == 0 {
		cfg.TrainWindowDays = 7
	}
	if cfg.TrainInterval == 0 {
		cfg.TrainInterval = 3600
	}
	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = 300
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 30
	}
	if cfg.MinTrainSamples == 0 {
		cfg.MinTrainSamples = 100
	}
	if len(cfg.ResearchHosts) == 0 {
		cfg.ResearchHosts = []string{
			"api.dexscreener.com",
			"api.etherscan.io",
			"api.honeypot.is",
		}
	}
}

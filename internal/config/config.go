package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/blackwell-systems/ppcwatch/internal/analyzer"
	"github.com/blackwell-systems/ppcwatch/internal/decision"
	"github.com/blackwell-systems/ppcwatch/internal/golden"
	"github.com/blackwell-systems/ppcwatch/internal/ppc"
	"github.com/blackwell-systems/ppcwatch/internal/report"
	"github.com/blackwell-systems/ppcwatch/internal/scoring"
)

// Config is the top-level ppcwatch configuration.
type Config struct {
	DataSufficiency DataSufficiency          `mapstructure:"data_sufficiency"`
	Benchmarks      analyzer.BenchmarkConfig `mapstructure:"benchmarks"`
	Bid             analyzer.BidConfig       `mapstructure:"bid"`
	Stock           analyzer.StockConfig     `mapstructure:"stock"`
	Golden          golden.Config            `mapstructure:"golden"`
	Decision        decision.Config          `mapstructure:"decision"`
	Scoring         scoring.Config           `mapstructure:"scoring"`
	Output          Output                   `mapstructure:"output"`
	Batch           Batch                    `mapstructure:"batch"`
	DBPath          string                   `mapstructure:"db_path"`
}

// DataSufficiency holds the shared volume threshold.
type DataSufficiency struct {
	MinClicks float64 `mapstructure:"min_clicks"`
}

// Output defines output preferences.
type Output struct {
	Color bool `mapstructure:"color"`
	Width int  `mapstructure:"width"`
}

// Batch defines batch evaluation settings.
type Batch struct {
	Workers int `mapstructure:"workers"`
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	e := report.DefaultConfig()
	return &Config{
		DataSufficiency: DataSufficiency{MinClicks: DefaultMinClicks},
		Benchmarks:      e.Benchmarks,
		Bid:             e.Bid,
		Stock:           e.Stock,
		Golden:          e.Golden,
		Decision:        e.Decision,
		Scoring:         e.Scoring,
		Output:          DefaultOutput,
		Batch:           DefaultBatch,
		DBPath:          DBPath(),
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("data_sufficiency.min_clicks", d.DataSufficiency.MinClicks)

	v.SetDefault("bid.max_change_limit", d.Bid.MaxChangeLimit)
	v.SetDefault("bid.tolerance_band", d.Bid.ToleranceBand)
	v.SetDefault("bid.confidence_floor", d.Bid.ConfidenceFloor)
	v.SetDefault("bid.pacing_target", d.Bid.PacingTarget)

	v.SetDefault("stock.safety_stock_days", d.Stock.SafetyStockDays)
	v.SetDefault("stock.low_band_days", d.Stock.LowBandDays)
	v.SetDefault("stock.adequate_band_days", d.Stock.AdequateBandDays)
	v.SetDefault("stock.critical_budget_cut", d.Stock.CriticalBudgetCut)
	v.SetDefault("stock.low_budget_cut", d.Stock.LowBudgetCut)
	v.SetDefault("stock.pause_runway_days", d.Stock.PauseRunwayDays)

	v.SetDefault("golden.buffer_weeks", d.Golden.BufferWeeks)
	v.SetDefault("golden.critical_runway_days", d.Golden.CriticalRunwayDays)
	v.SetDefault("golden.overspend_high_points", d.Golden.OverspendHighPoints)
	v.SetDefault("golden.healthy_organic_ratio", d.Golden.HealthyOrganicRatio)
	v.SetDefault("golden.max_organic_ratio", d.Golden.MaxOrganicRatio)

	v.SetDefault("decision.acos.healthy_cvr", d.Decision.ACoS.HealthyCVR)
	v.SetDefault("decision.acos.max_bid_reduction", d.Decision.ACoS.MaxBidReduction)
	v.SetDefault("decision.ctr.min_impressions", d.Decision.CTR.MinImpressions)
	v.SetDefault("decision.ctr.target_ctr", d.Decision.CTR.TargetCTR)
	v.SetDefault("decision.bsr.min_observation_days", d.Decision.BSR.MinObservationDays)
	v.SetDefault("decision.bsr.max_rank_drop_pct", d.Decision.BSR.MaxRankDropPct)

	v.SetDefault("scoring.price_barrier_usd", d.Scoring.PriceBarrierUSD)
	v.SetDefault("scoring.price_barrier_eur", d.Scoring.PriceBarrierEUR)
	v.SetDefault("scoring.concentrated_share", d.Scoring.ConcentratedShare)
	v.SetDefault("scoring.dominance_share", d.Scoring.DominanceShare)
	v.SetDefault("scoring.monopoly_share", d.Scoring.MonopolyShare)
	v.SetDefault("scoring.min_keyword_volume", d.Scoring.MinKeywordVolume)
	v.SetDefault("scoring.title_density_ideal", d.Scoring.TitleDensityIdeal)
	v.SetDefault("scoring.title_density_high", d.Scoring.TitleDensityHigh)
	v.SetDefault("scoring.variance_threshold", d.Scoring.VarianceThreshold)
	v.SetDefault("scoring.green_threshold", d.Scoring.GreenThreshold)
	v.SetDefault("scoring.yellow_threshold", d.Scoring.YellowThreshold)
	v.SetDefault("scoring.weights.price_barrier", d.Scoring.Weights.PriceBarrier)
	v.SetDefault("scoring.weights.brand_dominance", d.Scoring.Weights.BrandDominance)
	v.SetDefault("scoring.weights.keyword_volume", d.Scoring.Weights.KeywordVolume)
	v.SetDefault("scoring.weights.title_density", d.Scoring.Weights.TitleDensity)
	v.SetDefault("scoring.weights.triangulation", d.Scoring.Weights.Triangulation)

	v.SetDefault("output.color", d.Output.Color)
	v.SetDefault("output.width", d.Output.Width)
	v.SetDefault("batch.workers", d.Batch.Workers)
	v.SetDefault("db_path", DefaultDBPathSetting)
}

// DefaultDBPathSetting is the unexpanded default for db_path.
const DefaultDBPathSetting = DefaultConfigDir + "/" + DefaultDBName

// minClicksKeys receive data_sufficiency.min_clicks unless set explicitly.
var minClicksKeys = []string{"bid.min_clicks", "golden.min_clicks", "decision.acos.min_clicks"}

// Load reads configuration from the given path (or the default location),
// applies PPCWATCH_* environment overrides, fills in defaults and validates
// the result. A configuration that fails validation is never returned.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		configDir := expandPath(DefaultConfigDir)
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	// The shared threshold becomes the default of every per-component one.
	shared := v.GetFloat64("data_sufficiency.min_clicks")
	for _, key := range minClicksKeys {
		v.SetDefault(key, shared)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	backfill(&cfg)
	cfg.DBPath = expandPath(cfg.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// backfill applies list and table defaults the file left empty.
func backfill(cfg *Config) {
	d := Default()

	if cfg.Benchmarks.Tables == nil {
		cfg.Benchmarks.Tables = map[string]analyzer.Table{}
	}
	for name, t := range d.Benchmarks.Tables {
		if _, ok := cfg.Benchmarks.Tables[name]; !ok {
			cfg.Benchmarks.Tables[name] = t
		}
	}
	if len(cfg.Benchmarks.Weights) == 0 {
		cfg.Benchmarks.Weights = d.Benchmarks.Weights
	}
	if len(cfg.Benchmarks.TACoSStrategies) == 0 {
		cfg.Benchmarks.TACoSStrategies = d.Benchmarks.TACoSStrategies
	}
	if cfg.Benchmarks.HealthyTACoS == [2]float64{} {
		cfg.Benchmarks.HealthyTACoS = d.Benchmarks.HealthyTACoS
	}
	if len(cfg.Benchmarks.OrganicRatioHealth) == 0 {
		cfg.Benchmarks.OrganicRatioHealth = d.Benchmarks.OrganicRatioHealth
	}
	if len(cfg.Golden.PacingCurve) == 0 {
		cfg.Golden.PacingCurve = d.Golden.PacingCurve
	}
}

// Validate reports every inconsistency in the configuration at once.
func (c *Config) Validate() error {
	chk := ppc.NewConfigChecker("")
	if !(c.DataSufficiency.MinClicks > 0) {
		chk.Addf("data_sufficiency.min_clicks must be positive (got %g)", c.DataSufficiency.MinClicks)
	}
	chk.Merge(c.Benchmarks.Validate())
	chk.Merge(c.Bid.Validate())
	chk.Merge(c.Stock.Validate())
	chk.Merge(c.Golden.Validate())
	chk.Merge(c.Decision.Validate())
	chk.Merge(c.Scoring.Validate())
	if c.Output.Width < 20 {
		chk.Addf("output.width must be at least 20 (got %d)", c.Output.Width)
	}
	if c.Batch.Workers < 1 {
		chk.Addf("batch.workers must be at least 1 (got %d)", c.Batch.Workers)
	}
	return chk.Err()
}

// Engine returns the component configuration for report.New.
func (c *Config) Engine() report.Config {
	return report.Config{
		Metrics:    analyzer.CalculatorConfig{MinClicks: c.DataSufficiency.MinClicks},
		Benchmarks: c.Benchmarks,
		Bid:        c.Bid,
		Stock:      c.Stock,
		Golden:     c.Golden,
		Decision:   c.Decision,
		Scoring:    c.Scoring,
	}
}

// DBPath returns the default full path to the SQLite database.
func DBPath() string {
	return filepath.Join(expandPath(DefaultConfigDir), DefaultDBName)
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}

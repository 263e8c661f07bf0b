// Package config loads and validates the synthesizer configuration and
// installs the global logger.
package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Run     RunConfig     `yaml:"run" mapstructure:"run"`
	Zones   ZonesConfig   `yaml:"zones" mapstructure:"zones"`
	Freight FreightConfig `yaml:"freight" mapstructure:"freight"`
	Survey  SurveyConfig  `yaml:"survey" mapstructure:"survey"`
	Commute CommuteConfig `yaml:"commute" mapstructure:"commute"`
	Trace   TraceConfig   `yaml:"trace" mapstructure:"trace"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// RunConfig holds run-wide sampling controls.
type RunConfig struct {
	Seed    int64    `yaml:"seed" mapstructure:"seed"`
	Sample  float64  `yaml:"sample" mapstructure:"sample"` // percent, 0.01..100
	Limit   int      `yaml:"limit" mapstructure:"limit"`   // per-source agent cap, 0 = none
	Sources []string `yaml:"sources" mapstructure:"sources"`
}

// ZonesConfig locates the zone system and the study-area filter.
type ZonesConfig struct {
	Shapefile string  `yaml:"shapefile" mapstructure:"shapefile"`
	IDField   string  `yaml:"id_field" mapstructure:"id_field"`
	AreaFile  string  `yaml:"area_file" mapstructure:"area_file"`
	FallbackX float64 `yaml:"fallback_x" mapstructure:"fallback_x"`
	FallbackY float64 `yaml:"fallback_y" mapstructure:"fallback_y"`
}

// FreightVehicleConfig holds the period matrices for one vehicle class.
type FreightVehicleConfig struct {
	AMPath string `yaml:"am_path" mapstructure:"am_path"`
	IPPath string `yaml:"ip_path" mapstructure:"ip_path"`
	PMPath string `yaml:"pm_path" mapstructure:"pm_path"`
}

// FreightConfig configures the freight tour source.
type FreightConfig struct {
	LGV     FreightVehicleConfig `yaml:"lgv" mapstructure:"lgv"`
	HGV     FreightVehicleConfig `yaml:"hgv" mapstructure:"hgv"`
	Weights []float64            `yaml:"weights" mapstructure:"weights"` // am, inter, pm, night
	Norm    float64              `yaml:"norm" mapstructure:"norm"`       // 0 = no normalization
}

// SurveyConfig configures the travel-diary source.
type SurveyConfig struct {
	TripsPath      string            `yaml:"trips_path" mapstructure:"trips_path"`
	AttributesPath string            `yaml:"attributes_path" mapstructure:"attributes_path"`
	KeyColumn      string            `yaml:"key_column" mapstructure:"key_column"`
	Prefix         string            `yaml:"prefix" mapstructure:"prefix"`
	Dummies        bool              `yaml:"dummies" mapstructure:"dummies"`
	NoFreq         bool              `yaml:"nofreq" mapstructure:"nofreq"`
	AllCars        bool              `yaml:"allcars" mapstructure:"allcars"`
	ForceHome      bool              `yaml:"forcehome" mapstructure:"forcehome"`
	ModeMap        map[string]string `yaml:"mode_map" mapstructure:"mode_map"`
	ActivityMap    map[string]string `yaml:"activity_map" mapstructure:"activity_map"`
}

// CommuteConfig configures the commuter tour source.
type CommuteConfig struct {
	SegmentsPath string            `yaml:"segments_path" mapstructure:"segments_path"`
	FactorsPath  string            `yaml:"factors_path" mapstructure:"factors_path"`
	MatrixDir    string            `yaml:"matrix_dir" mapstructure:"matrix_dir"`
	RegionField  string            `yaml:"region_field" mapstructure:"region_field"`
	Prefix       string            `yaml:"prefix" mapstructure:"prefix"`
	TourMap      map[string]string `yaml:"tour_map" mapstructure:"tour_map"`
	IncomeMap    map[string]string `yaml:"income_map" mapstructure:"income_map"`
}

// TraceConfig configures the smartphone trace source.
type TraceConfig struct {
	TripsPath string  `yaml:"trips_path" mapstructure:"trips_path"`
	CellLevel int     `yaml:"cell_level" mapstructure:"cell_level"`
	OriginLon float64 `yaml:"origin_lon" mapstructure:"origin_lon"`
	OriginLat float64 `yaml:"origin_lat" mapstructure:"origin_lat"`
}

// OutputConfig configures where and what the build writes.
type OutputConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Tables bool   `yaml:"tables" mapstructure:"tables"`
	SQLite bool   `yaml:"sqlite" mapstructure:"sqlite"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("POPSYNTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("run.seed", 1234)
	v.SetDefault("run.sample", 100.0)
	v.SetDefault("run.limit", 0)
	v.SetDefault("run.sources", []string{})
	v.SetDefault("zones.id_field", "ZoneID")
	v.SetDefault("zones.fallback_x", 530000.0)
	v.SetDefault("zones.fallback_y", 180000.0)
	v.SetDefault("freight.weights", []float64{0.35, 0.4, 0.2, 0.05})
	v.SetDefault("freight.norm", 0.0)
	v.SetDefault("survey.key_column", "recID")
	v.SetDefault("survey.prefix", "hh_")
	v.SetDefault("survey.dummies", true)
	v.SetDefault("survey.forcehome", true)
	v.SetDefault("commute.prefix", "commuter")
	v.SetDefault("commute.region_field", "Region")
	v.SetDefault("commute.tour_map", map[string]string{
		"BlueCommute":  "work",
		"WhiteCommute": "work",
		"Business":     "work",
		"Shopping":     "shop",
		"Other":        "other",
	})
	v.SetDefault("trace.cell_level", 14)
	v.SetDefault("trace.origin_lon", -0.1278)
	v.SetDefault("trace.origin_lat", 51.5074)
	v.SetDefault("output.dir", "out")
	v.SetDefault("output.tables", true)
	v.SetDefault("output.sqlite", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		// An explicit path must exist; the implicit ./config.yaml is
		// optional.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks run-wide invariants and prepares the output directory.
// Source-specific paths are checked by each source constructor so that
// an unused source never blocks a run.
func (c *Config) Validate() error {
	if c.Run.Sample < 0.01 || c.Run.Sample > 100 {
		return eris.Errorf("config: run.sample %.4f outside [0.01, 100]", c.Run.Sample)
	}
	if c.Run.Limit < 0 {
		return eris.Errorf("config: run.limit %d is negative", c.Run.Limit)
	}
	for _, s := range c.Run.Sources {
		switch s {
		case "freight-lgv", "freight-hgv", "survey", "commute", "trace":
		default:
			return eris.Errorf("config: unknown source %q", s)
		}
	}
	if c.Zones.Shapefile == "" && len(c.Run.Sources) > 0 {
		return eris.New("config: zones.shapefile is required")
	}
	if c.Output.Dir == "" {
		return eris.New("config: output.dir is required")
	}
	if err := os.MkdirAll(c.Output.Dir, 0o755); err != nil {
		return eris.Wrapf(err, "config: create output dir %s", c.Output.Dir)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

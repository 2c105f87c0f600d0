package config

import (
	"errors"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/lintang-b-s/hgpart/pkg"
	"github.com/lintang-b-s/hgpart/pkg/util"
	"github.com/spf13/viper"
)

type Config struct {
	Hypergraph        string  `mapstructure:"hypergraph"`
	NumParts          int     `mapstructure:"parts" validate:"gte=2"`
	NumProcs          int     `mapstructure:"procs" validate:"gte=1"`
	BalanceConstraint float64 `mapstructure:"balance" validate:"gt=0,lt=1"`
	NumParaRuns       int     `mapstructure:"para_runs" validate:"gte=1"`
	Seed              uint64  `mapstructure:"seed"`
	Debug             bool    `mapstructure:"debug"`

	Log         LogConfig        `mapstructure:"log"`
	Coarsening  CoarseningConfig `mapstructure:"coarsening"`
	Refinement  RefinementConfig `mapstructure:"refinement"`
	Initial     InitialConfig    `mapstructure:"initial"`
	VCycle      VCycleConfig     `mapstructure:"vcycle"`
	Transport   TransportConfig  `mapstructure:"transport"`
	Output      OutputConfig     `mapstructure:"output"`
	MetricsAddr string           `mapstructure:"metrics_addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	// zap sink URLs or file paths
	OutputPaths []string `mapstructure:"output_paths"`
}

type CoarseningConfig struct {
	Strategy                string  `mapstructure:"strategy" validate:"oneof=first-choice model-2d"`
	ReductionRatio          float64 `mapstructure:"reduction_ratio" validate:"gt=1"`
	MinNodes                int     `mapstructure:"min_nodes" validate:"gte=1"`
	VertexVisitOrder        string  `mapstructure:"vertex_visit_order" validate:"oneof=increasing decreasing random increasing-weight decreasing-weight"`
	MatchRequestOrder       string  `mapstructure:"match_request_order" validate:"oneof=arrival random"`
	ConnectivityMetric      int     `mapstructure:"connectivity_metric" validate:"gte=0,lte=3"`
	HedgeThreshold          int     `mapstructure:"hedge_threshold" validate:"gte=0"`
	MinReductionRatio       float64 `mapstructure:"min_reduction_ratio" validate:"gte=1"`
	MaxVertexWeightFraction float64 `mapstructure:"max_vertex_weight_fraction" validate:"gt=0,lte=1"`
	StartPercentile         int     `mapstructure:"start_percentile" validate:"gte=1,lte=100"`
	PercentileIncrement     int     `mapstructure:"percentile_increment" validate:"gte=0,lte=100"`
}

type RefinementConfig struct {
	MaxPasses    int  `mapstructure:"max_passes" validate:"gte=1"`
	ApproxRefine bool `mapstructure:"approx_refine"`
}

type InitialConfig struct {
	NumSeqRuns     int     `mapstructure:"seq_runs" validate:"gte=1"`
	AcceptProp     float64 `mapstructure:"accept_prop" validate:"gte=1"`
	SourceSinkRate float64 `mapstructure:"source_sink_rate" validate:"gt=0,lt=0.5"`
	FlowSeeds      int     `mapstructure:"flow_seeds" validate:"gte=1"`
	MaxPasses      int     `mapstructure:"max_passes" validate:"gte=0"`
	Workers        int     `mapstructure:"workers" validate:"gte=1"`
}

type VCycleConfig struct {
	Enabled                  bool    `mapstructure:"enabled"`
	LimitOnCycles            int     `mapstructure:"limit_on_cycles" validate:"gte=0"`
	LimAsPercentOfCut        float64 `mapstructure:"lim_as_percent_of_cut" validate:"gte=0,lte=1"`
	KeepPartitionsWithin     float64 `mapstructure:"keep_partitions_within" validate:"gte=1"`
	ReductionInKeepThreshold float64 `mapstructure:"reduction_in_keep_threshold" validate:"gt=0,lte=1"`
	ShuffleByPartition       bool    `mapstructure:"shuffle_by_partition"`
	ShuffleVertices          bool    `mapstructure:"shuffle_vertices"`
}

type TransportConfig struct {
	Kind  string   `mapstructure:"kind" validate:"oneof=local ws"`
	Rank  int      `mapstructure:"rank" validate:"gte=0"`
	Peers []string `mapstructure:"peers"`
}

type OutputConfig struct {
	PartitionFile string `mapstructure:"partition_file"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("parts", 2)
	v.SetDefault("procs", 1)
	v.SetDefault("balance", 0.05)
	v.SetDefault("para_runs", 1)
	v.SetDefault("seed", 1)
	v.SetDefault("debug", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_paths", []string{"stderr"})

	v.SetDefault("coarsening.strategy", "first-choice")
	v.SetDefault("coarsening.reduction_ratio", 1.75)
	v.SetDefault("coarsening.min_nodes", 200)
	v.SetDefault("coarsening.vertex_visit_order", "random")
	v.SetDefault("coarsening.match_request_order", "random")
	v.SetDefault("coarsening.connectivity_metric", 2)
	v.SetDefault("coarsening.hedge_threshold", pkg.DEFAULT_HEDGE_THRESHOLD)
	v.SetDefault("coarsening.min_reduction_ratio", pkg.DEFAULT_MIN_REDUCTION_RATIO)
	v.SetDefault("coarsening.max_vertex_weight_fraction", pkg.DEFAULT_MAX_VERTEX_WT_FACTOR)
	v.SetDefault("coarsening.start_percentile", 100)
	v.SetDefault("coarsening.percentile_increment", 0)

	v.SetDefault("refinement.max_passes", 4)
	v.SetDefault("refinement.approx_refine", false)

	v.SetDefault("initial.seq_runs", 4)
	v.SetDefault("initial.accept_prop", 1.1)
	v.SetDefault("initial.source_sink_rate", 0.25)
	v.SetDefault("initial.flow_seeds", 4)
	v.SetDefault("initial.max_passes", 4)
	v.SetDefault("initial.workers", 4)

	v.SetDefault("vcycle.enabled", true)
	v.SetDefault("vcycle.limit_on_cycles", 4)
	v.SetDefault("vcycle.lim_as_percent_of_cut", 0.0)
	v.SetDefault("vcycle.keep_partitions_within", 1.1)
	v.SetDefault("vcycle.reduction_in_keep_threshold", 0.7)
	v.SetDefault("vcycle.shuffle_by_partition", true)
	v.SetDefault("vcycle.shuffle_vertices", false)

	v.SetDefault("transport.kind", "local")
	v.SetDefault("transport.rank", 0)
	v.SetDefault("transport.peers", []string{})

	v.SetDefault("output.partition_file", "")
	v.SetDefault("metrics_addr", "")
}

// New returns a viper instance carrying every default plus HGPART_* environment overrides.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("HGPART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path, or ./data/config.* if present, on top of the defaults.
func Load(path string) (*Config, error) {
	v := New()
	if err := util.ReadConfig(v, path); err != nil {
		return nil, util.WrapErrorf(err, util.ErrBadParamInput, "read config %s", path)
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, util.WrapErrorf(err, util.ErrBadParamInput, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		english := en.New()
		uni := ut.New(english, english)
		trans, _ := uni.GetTranslator("en")
		_ = enTranslations.RegisterDefaultTranslations(validate, trans)
		return util.WrapErrorf(err, util.ErrBadParamInput, "invalid config: %s",
			strings.Join(translateError(err, trans), "; "))
	}
	if c.Transport.Kind == "ws" {
		if len(c.Transport.Peers) != c.NumProcs {
			return util.WrapErrorf(nil, util.ErrBadParamInput,
				"ws transport needs one peer address per process: got %d peers for %d procs",
				len(c.Transport.Peers), c.NumProcs)
		}
		if c.Transport.Rank >= c.NumProcs {
			return util.WrapErrorf(nil, util.ErrBadParamInput, "rank %d out of range [0,%d)",
				c.Transport.Rank, c.NumProcs)
		}
	}
	return nil
}

func translateError(err error, trans ut.Translator) []string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		msgs = append(msgs, e.Translate(trans))
	}
	return msgs
}

package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ashgrove-labs/prolink-core/internal/validation"
	"github.com/ashgrove-labs/prolink-core/loader"
	"github.com/ashgrove-labs/prolink-core/model"
	"github.com/ashgrove-labs/prolink-core/telemetry"
)

// ClientFactory is re-exported so callers configuring an Engine don't
// need to import the loader package directly.
type ClientFactory = loader.ClientFactory

// Config holds the engine's tunable settings. Validation runs through
// the module's shared go-playground/validator instance, so tags here
// follow the same convention as every other validated struct in the
// codebase.
type Config struct {
	MenuOpTimeoutS         int              `validate:"min=1,max=300"`
	AnalysisWaitTotalS     int              `validate:"min=0,max=600"`
	AnalysisRetryIntervalS int              `validate:"min=1,max=120"`
	DefaultSlackMs         int64            `validate:"min=0,max=1000"`
	UsePrecisePackets      bool             `validate:""`
	PreferredWaveformStyle model.WaveformStyle `validate:"oneof=0 1 2"`
	FindWaveformDetail     bool             `validate:""`
}

// DefaultConfig returns the documented production defaults.
func DefaultConfig() Config {
	return Config{
		MenuOpTimeoutS:         20,
		AnalysisWaitTotalS:     90,
		AnalysisRetryIntervalS: 10,
		DefaultSlackMs:         50,
		UsePrecisePackets:      true,
		PreferredWaveformStyle: model.WaveformRGB,
		FindWaveformDetail:     true,
	}
}

// Validate checks Config against its tags, returning the translated
// validation errors if any field is out of range.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c); err != nil {
		return err
	}
	return nil
}

func (c Config) menuOpTimeout() time.Duration {
	return time.Duration(c.MenuOpTimeoutS) * time.Second
}

func (c Config) analysisWaitTotal() time.Duration {
	return time.Duration(c.AnalysisWaitTotalS) * time.Second
}

func (c Config) analysisRetryInterval() time.Duration {
	return time.Duration(c.AnalysisRetryIntervalS) * time.Second
}

// Option configures an Engine at construction time.
type Option func(*buildOptions)

type buildOptions struct {
	config        Config
	log           zerolog.Logger
	metrics       *telemetry.Metrics
	clientFactory ClientFactory
	silenceWindow time.Duration
	sweepInterval time.Duration
}

// WithConfig overrides the default Config.
func WithConfig(c Config) Option {
	return func(o *buildOptions) { o.config = c }
}

// WithLogger sets the zerolog.Logger every subsystem logs through.
func WithLogger(log zerolog.Logger) Option {
	return func(o *buildOptions) { o.log = log }
}

// WithMetrics attaches a Prometheus-backed telemetry.Metrics. Omit
// this option (or pass nil explicitly) to run with metrics disabled.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *buildOptions) { o.metrics = m }
}

// WithClientFactory supplies the constructor the loader uses to open
// a dbserver connection to a player the first time a remote query is
// needed for it.
func WithClientFactory(f ClientFactory) Option {
	return func(o *buildOptions) { o.clientFactory = f }
}

// WithSilenceWindow overrides how long a player may go without an
// announcement before the registry declares it Lost. Defaults to 10s.
func WithSilenceWindow(d time.Duration) Option {
	return func(o *buildOptions) { o.silenceWindow = d }
}

// WithSweepInterval overrides how often the presence-sweep service
// checks for silent players. Defaults to 1s.
func WithSweepInterval(d time.Duration) Option {
	return func(o *buildOptions) { o.sweepInterval = d }
}

func defaultBuildOptions() buildOptions {
	return buildOptions{
		config:        DefaultConfig(),
		log:           zerolog.Nop(),
		silenceWindow: 10 * time.Second,
		sweepInterval: time.Second,
	}
}

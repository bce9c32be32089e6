package config

import (
	"context"
	"fmt"

	"github.com/kbukum/taskchain/executor"
	"github.com/kbukum/taskchain/logger"
	"github.com/kbukum/taskchain/observability"
	"github.com/kbukum/taskchain/storage"
	"github.com/kbukum/taskchain/validation"
)

// Default values applied by Config.ApplyDefaults.
const (
	DefaultServiceName = "taskchain"
	DefaultMetaDir     = "/tmp/taskchain"
	DefaultStrategy    = "per_job"
)

// RunConfig holds the options of a pipeline run.
type RunConfig struct {
	Strategy        string   `yaml:"strategy" mapstructure:"strategy" validate:"oneof=per_task per_job"`
	SavingTasks     []string `yaml:"saving_tasks" mapstructure:"saving_tasks" validate:"dive,taskname"`
	ForceRerunTasks []string `yaml:"force_rerun_tasks" mapstructure:"force_rerun_tasks" validate:"dive,taskname"`
	NeedOutput      bool     `yaml:"need_output" mapstructure:"need_output"`
	SplitSave       bool     `yaml:"split_save" mapstructure:"split_save"`
}

// Config is the configuration of a taskchain pipeline and its tooling.
type Config struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	// MetaDir is the root of the per-task metadata directories.
	MetaDir string `yaml:"meta_dir" mapstructure:"meta_dir" validate:"required"`
	// Tasks lists the pipeline's task names in order.
	Tasks []string `yaml:"tasks" mapstructure:"tasks" validate:"required,min=1,unique,dive,taskname"`

	Run      RunConfig       `yaml:"run" mapstructure:"run"`
	Executor executor.Config `yaml:"executor" mapstructure:"executor"`
	// Storage holds job outputs. With no provider set every task keeps its
	// outputs under <meta_dir>/<task>/jobs.
	Storage storage.Config             `yaml:"storage" mapstructure:"storage" validate:"-"`
	Tracing observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics observability.MeterConfig  `yaml:"metrics" mapstructure:"metrics"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = DefaultServiceName
	}
	c.ServiceConfig.ApplyDefaults()

	if c.MetaDir == "" {
		c.MetaDir = DefaultMetaDir
	}
	if c.Run.Strategy == "" {
		c.Run.Strategy = DefaultStrategy
	}
	if c.Storage.Provider != "" {
		c.Storage.ApplyDefaults()
	}

	tracing := observability.DefaultTracerConfig(c.Name)
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = tracing.ServiceName
	}
	if c.Tracing.ServiceVersion == "" {
		c.Tracing.ServiceVersion = c.Version
	}
	if c.Tracing.ServiceVersion == "" {
		c.Tracing.ServiceVersion = tracing.ServiceVersion
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = c.Environment
	}
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = tracing.Endpoint
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = tracing.SampleRate
	}

	metrics := observability.DefaultMeterConfig(c.Name)
	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = metrics.ServiceName
	}
	if c.Metrics.ServiceVersion == "" {
		c.Metrics.ServiceVersion = c.Tracing.ServiceVersion
	}
	if c.Metrics.Environment == "" {
		c.Metrics.Environment = c.Environment
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = metrics.Endpoint
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = metrics.Interval
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	if c.Storage.Provider != "" {
		if err := c.Storage.Validate(); err != nil {
			return fmt.Errorf("config.storage: %w", err)
		}
	}

	v := validation.New()
	for _, name := range append(append([]string(nil), c.Run.SavingTasks...), c.Run.ForceRerunTasks...) {
		v.Custom(contains(c.Tasks, name), "run", fmt.Sprintf("task %q is not listed in tasks", name))
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// NewStorage opens the configured job output storage, or returns nil when no
// provider is set.
func (c *Config) NewStorage(ctx context.Context, log *logger.Logger) (storage.Storage, error) {
	if c.Storage.Provider == "" {
		return nil, nil
	}
	return storage.New(ctx, c.Storage, log)
}

// NewExecutor builds the configured executor wrapped with logging, tracing
// and, when m is not nil, metrics.
func (c *Config) NewExecutor(log *logger.Logger, m *observability.SchedulerMetrics) executor.Executor {
	mws := []executor.Middleware{executor.WithLogging(log), executor.WithTracing()}
	if m != nil {
		mws = append(mws, executor.WithMetrics(m))
	}
	return executor.Chain(executor.New(c.Executor), mws...)
}

// Load reads the taskchain configuration from files and the environment,
// applies defaults and validates the result.
func Load(opts ...LoaderOption) (*Config, error) {
	cfg := &Config{}
	if err := LoadConfig(DefaultServiceName, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chaos-io/cutout/cutout"
	"github.com/chaos-io/cutout/pipeline"
	"github.com/chaos-io/cutout/rembg"
)

const envPrefix = "CUTOUT"

type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	Redis    RedisConfig           `mapstructure:"redis"`
	Upload   UploadConfig          `mapstructure:"upload"`
	Model    ModelConfig           `mapstructure:"model"`
	Saliency rembg.ThresholdParams `mapstructure:"saliency"`
	Refine   cutout.RefineParams   `mapstructure:"refine"`
	Pipeline PipelineConfig        `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
	MaxBatch     int      `mapstructure:"max_batch"`
}

// ModelConfig points at the remote models. An empty URL means the model is
// not deployed.
type ModelConfig struct {
	SaliencyURL string        `mapstructure:"saliency_url"`
	UpscalerURL string        `mapstructure:"upscaler_url"`
	InputSize   int           `mapstructure:"input_size"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// HealthSpec is the cron schedule of the model health probe.
	HealthSpec string `mapstructure:"health_spec"`
}

type PipelineConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	Workers      int           `mapstructure:"workers"`
	MaxDimension int           `mapstructure:"max_dimension"`
	Padding      int           `mapstructure:"padding"`
}

// Load reads the YAML config at path. CUTOUT_* environment variables
// override file values.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// New loads the config from the default path.
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return Default()
	}
	return cfg
}

func (c *Config) Validate() error {
	if err := c.Saliency.Validate(); err != nil {
		return fmt.Errorf("saliency: %w", err)
	}
	if err := c.Refine.Validate(); err != nil {
		return fmt.Errorf("refine: %w", err)
	}
	if c.Model.InputSize < 1 {
		return fmt.Errorf("model.input_size must be positive, got %d", c.Model.InputSize)
	}
	if c.Upload.MaxBatch < 1 {
		return fmt.Errorf("upload.max_batch must be positive, got %d", c.Upload.MaxBatch)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("upload.max_size", d.Upload.MaxSize)
	v.SetDefault("upload.allowed_types", d.Upload.AllowedTypes)
	v.SetDefault("upload.max_batch", d.Upload.MaxBatch)

	v.SetDefault("model.saliency_url", d.Model.SaliencyURL)
	v.SetDefault("model.upscaler_url", d.Model.UpscalerURL)
	v.SetDefault("model.input_size", d.Model.InputSize)
	v.SetDefault("model.timeout", d.Model.Timeout)
	v.SetDefault("model.health_spec", d.Model.HealthSpec)

	v.SetDefault("saliency.floor", d.Saliency.Floor)
	v.SetDefault("saliency.percentile", d.Saliency.Percentile)
	v.SetDefault("saliency.min", d.Saliency.Min)
	v.SetDefault("saliency.max", d.Saliency.Max)

	v.SetDefault("refine.strength", d.Refine.Strength)

	v.SetDefault("pipeline.timeout", d.Pipeline.Timeout)
	v.SetDefault("pipeline.workers", d.Pipeline.Workers)
	v.SetDefault("pipeline.max_dimension", d.Pipeline.MaxDimension)
	v.SetDefault("pipeline.padding", d.Pipeline.Padding)
}

// Default is the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 2 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      20 * 1024 * 1024,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg", "image/gif", "image/webp"},
			MaxBatch:     pipeline.DefaultMaxBatch,
		},
		Model: ModelConfig{
			InputSize:  rembg.DefaultInputSize,
			Timeout:    30 * time.Second,
			HealthSpec: "@every 1m",
		},
		Saliency: rembg.DefaultThresholdParams(),
		Refine:   cutout.DefaultRefineParams(),
		Pipeline: PipelineConfig{
			Timeout:      pipeline.DefaultTimeout,
			Workers:      pipeline.DefaultWorkers,
			MaxDimension: pipeline.DefaultMaxDimension,
			Padding:      pipeline.DefaultPadding,
		},
	}
}

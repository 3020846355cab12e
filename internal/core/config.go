package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/jo-hoe/bgremover/internal/common"
	"github.com/jo-hoe/bgremover/internal/segmentation"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Database struct {
	Type             string `yaml:"type" toml:"type" validate:"required,oneof=sqlite"`
	ConnectionString string `yaml:"connectionString" toml:"connectionString" validate:"required"`
}

// Model describes the external background removal model
type Model struct {
	Type          string            `yaml:"type" toml:"type" validate:"required,oneof=http command"`
	URL           string            `yaml:"url" toml:"url" validate:"omitempty,url"`
	FieldName     string            `yaml:"fieldName" toml:"fieldName"`
	FormFields    map[string]string `yaml:"formFields" toml:"formFields"`
	Command       string            `yaml:"command" toml:"command"`
	Args          []string          `yaml:"args" toml:"args"`
	Timeout       string            `yaml:"timeout" toml:"timeout"`
	MaxConcurrent int               `yaml:"maxConcurrent" toml:"maxConcurrent" validate:"min=0"`
	// MaxDimension downscales uploads before the model call, 0 disables it
	MaxDimension int `yaml:"maxDimension" toml:"maxDimension" validate:"min=0"`
	// ResampleFilter is the interpolation used when downscaling
	ResampleFilter string `yaml:"resampleFilter" toml:"resampleFilter" validate:"omitempty,oneof=nearest bilinear bicubic mitchell lanczos2 lanczos3"`
}

type Flash struct {
	Type          string `yaml:"type" toml:"type" validate:"required,oneof=memory redis"`
	RedisAddress  string `yaml:"redisAddress" toml:"redisAddress"`
	RedisPassword string `yaml:"redisPassword" toml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB" toml:"redisDB" validate:"min=0"`
	TTL           string `yaml:"ttl" toml:"ttl"`
}

// Retention controls how long results are kept. An empty or zero MaxAge keeps them forever.
type Retention struct {
	MaxAge   string `yaml:"maxAge" toml:"maxAge"`
	Schedule string `yaml:"schedule" toml:"schedule"`
}

type ServiceConfig struct {
	Port              int       `yaml:"port" toml:"port" validate:"min=1,max=65535"`
	LogLevel          string    `yaml:"logLevel" toml:"logLevel" validate:"oneof=debug info warn error"`
	LogFormat         string    `yaml:"logFormat" toml:"logFormat" validate:"oneof=text json"`
	UploadDir         string    `yaml:"uploadDir" toml:"uploadDir" validate:"required"`
	ResultDir         string    `yaml:"resultDir" toml:"resultDir" validate:"required"`
	MaxUploadSize     string    `yaml:"maxUploadSize" toml:"maxUploadSize" validate:"required"`
	AllowedExtensions []string  `yaml:"allowedExtensions" toml:"allowedExtensions" validate:"min=1,dive,extension"`
	Database          Database  `yaml:"database" toml:"database"`
	Model             Model     `yaml:"model" toml:"model"`
	Flash             Flash     `yaml:"flash" toml:"flash"`
	Retention         Retention `yaml:"retention" toml:"retention"`
}

// DefaultConfig returns the configuration used for every key the config file leaves out
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:              8080,
		LogLevel:          "info",
		LogFormat:         "text",
		UploadDir:         "uploads",
		ResultDir:         "results",
		MaxUploadSize:     "25MiB",
		AllowedExtensions: []string{"png", "jpg", "jpeg", "webp", "bmp", "tiff"},
		Database: Database{
			Type:             "sqlite",
			ConnectionString: "bgremover.db",
		},
		Model: Model{
			Type:           "http",
			URL:            "http://localhost:7000/api/remove",
			FieldName:      "file",
			Timeout:        "2m",
			ResampleFilter: "lanczos3",
		},
		Flash: Flash{
			Type: "memory",
			TTL:  "10m",
		},
		Retention: Retention{
			Schedule: "@hourly",
		},
	}
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by extension
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".toml":
		err = toml.Unmarshal(data, config)
	default:
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	config.AllowedExtensions = normalizeExtensions(config.AllowedExtensions)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}
	return config, nil
}

// Validate checks struct constraints and the values that are parsed lazily
func (c *ServiceConfig) Validate() error {
	if err := common.ValidateStruct(c); err != nil {
		return err
	}

	if n, err := humanize.ParseBytes(c.MaxUploadSize); err != nil {
		return fmt.Errorf("maxUploadSize: %w", err)
	} else if n == 0 {
		return errors.New("maxUploadSize must be greater than zero")
	}

	for key, value := range map[string]string{
		"model.timeout":    c.Model.Timeout,
		"flash.ttl":        c.Flash.TTL,
		"retention.maxAge": c.Retention.MaxAge,
	} {
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	if c.Model.Type == "http" && c.Model.URL == "" {
		return errors.New("model.url is required for model type http")
	}
	if c.Flash.Type == "redis" && c.Flash.RedisAddress == "" {
		return errors.New("flash.redisAddress is required for flash type redis")
	}
	if c.Retention.MaxAgeDuration() > 0 {
		if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
			return fmt.Errorf("retention.schedule: %w", err)
		}
	}
	return nil
}

// MaxUploadBytes returns the parsed request body limit
func (c *ServiceConfig) MaxUploadBytes() int64 {
	n, _ := humanize.ParseBytes(c.MaxUploadSize)
	return int64(n)
}

// IsAllowedExtension reports whether ext (without dot, any case) may be uploaded
func (c *ServiceConfig) IsAllowedExtension(ext string) bool {
	return slices.Contains(c.AllowedExtensions, strings.ToLower(ext))
}

func (m Model) TimeoutDuration() time.Duration {
	d, _ := parseDuration(m.Timeout)
	return d
}

// SegmentationConfig converts the model section for segmentation.New
func (m Model) SegmentationConfig() segmentation.Config {
	return segmentation.Config{
		Type:          m.Type,
		URL:           m.URL,
		FieldName:     m.FieldName,
		FormFields:    m.FormFields,
		Command:       m.Command,
		Args:          m.Args,
		Timeout:       m.TimeoutDuration(),
		MaxConcurrent: m.MaxConcurrent,
	}
}

func (f Flash) TTLDuration() time.Duration {
	d, _ := parseDuration(f.TTL)
	return d
}

func (r Retention) MaxAgeDuration() time.Duration {
	d, _ := parseDuration(r.MaxAge)
	return d
}

// parseDuration treats an empty value as zero
func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", value)
	}
	return d, nil
}

func normalizeExtensions(extensions []string) []string {
	result := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" && !slices.Contains(result, ext) {
			result = append(result, ext)
		}
	}
	return result
}

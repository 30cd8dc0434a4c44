package logger

import (
	"errors"
	"fmt"
	"strings"
)

// Config 日志配置，字段与 conf.LogConfig 一一对应
type Config struct {
	Level            string     `mapstructure:"level"`
	Format           string     `mapstructure:"format"` // json | console
	Output           string     `mapstructure:"output"` // console | file | both
	File             FileConfig `mapstructure:"file"`
	EnableCaller     bool       `mapstructure:"enablecaller"`
	EnableStacktrace bool       `mapstructure:"enablestacktrace"`
}

// FileConfig lumberjack 轮转参数
type FileConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxsize"` // MB
	MaxAge     int    `mapstructure:"maxage"`  // 天
	MaxBackups int    `mapstructure:"maxbackups"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig 控制台 JSON 输出
func DefaultConfig() *Config {
	return &Config{
		Level:        "info",
		Format:       "json",
		Output:       "console",
		EnableCaller: true,
		File: FileConfig{
			Filename:   "logs/serp-gateway.log",
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 10,
			Compress:   true,
		},
	}
}

var (
	validLevels  = []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"}
	validFormats = []string{"json", "console"}
	validOutputs = []string{"console", "file", "both"}
)

func (c *Config) writesFile() bool {
	return c.Output == "file" || c.Output == "both"
}

// Validate 返回所有配置问题
func (c *Config) Validate() error {
	var errs []error

	if !oneOf(strings.ToLower(c.Level), validLevels) {
		errs = append(errs, fmt.Errorf("invalid log level %q, must be one of %v", c.Level, validLevels))
	}
	if !oneOf(c.Format, validFormats) {
		errs = append(errs, fmt.Errorf("invalid log format %q, must be one of %v", c.Format, validFormats))
	}
	if !oneOf(c.Output, validOutputs) {
		errs = append(errs, fmt.Errorf("invalid log output %q, must be one of %v", c.Output, validOutputs))
	}

	if c.writesFile() {
		if c.File.Filename == "" {
			errs = append(errs, errors.New("log file filename is required when writing to a file"))
		}
		if c.File.MaxSize <= 0 {
			errs = append(errs, errors.New("log file maxsize must be greater than 0"))
		}
		if c.File.MaxAge <= 0 {
			errs = append(errs, errors.New("log file maxage must be greater than 0"))
		}
		if c.File.MaxBackups < 0 {
			errs = append(errs, errors.New("log file maxbackups must not be negative"))
		}
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

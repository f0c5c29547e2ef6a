/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared utilities for the Akaylee ArchRec commands. Provides common
configuration loading, logging setup, and engine construction used across all
command implementations.
*/

package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/kleascm/akaylee-archrec/pkg/cache"
	"github.com/kleascm/akaylee-archrec/pkg/engine"
	"github.com/kleascm/akaylee-archrec/pkg/interfaces"
	"github.com/kleascm/akaylee-archrec/pkg/logging"
)

// sessionLogger is the logging system for the running command. Set up once
// per invocation by SetupLogging and closed by CloseLogging.
var sessionLogger *logging.Logger

// LoadConfig loads configuration from files and environment
func LoadConfig() error {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.SetEnvPrefix("ARCHREC")
	viper.AutomaticEnv()

	return nil
}

// SetupLogging configures the logging system for this command invocation
func SetupLogging() error {
	cfg := &logging.LoggerConfig{
		Level:     logging.LogLevel(viper.GetString("log_level")),
		Format:    logging.LogFormatCustom,
		OutputDir: viper.GetString("log_dir"),
		MaxFiles:  viper.GetInt("log_max_files"),
		MaxSize:   viper.GetInt64("log_max_size"),
		Timestamp: true,
		Colors:    true,
	}
	if viper.GetBool("json_logs") {
		cfg.Format = logging.LogFormatJSON
		cfg.Colors = false
	}
	if cfg.Level == "" {
		cfg.Level = logging.LogLevelInfo
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 10
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 100 * 1024 * 1024
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	logger, err := logging.NewLogger(cfg)
	if err != nil {
		return err
	}
	sessionLogger = logger
	return nil
}

// SessionLogger returns the logging system of the running command
func SessionLogger() *logging.Logger {
	return sessionLogger
}

// CloseLogging rotates and cleans up the session's log files
func CloseLogging() {
	if sessionLogger == nil {
		return
	}
	if err := sessionLogger.Close(); err != nil {
		logrus.WithError(err).Warn("Log cleanup failed")
	}
	sessionLogger = nil
}

// activeLogger returns the logrus instance components should log through
func activeLogger() *logrus.Logger {
	if sessionLogger != nil {
		return sessionLogger.GetLogger()
	}
	return logrus.StandardLogger()
}

// EngineConfigFromViper assembles the engine configuration from bound flags
func EngineConfigFromViper() *interfaces.EngineConfig {
	cfg := interfaces.DefaultEngineConfig()
	cfg.CorpusDir = viper.GetString("corpus_dir")

	if v := viper.GetInt("window_size"); v > 0 {
		cfg.WindowSize = v
	}
	if v := viper.GetInt("window_step"); v > 0 {
		cfg.WindowStep = v
	}
	if v := viper.GetInt("min_window"); v > 0 {
		cfg.MinWindow = v
	}
	if v := viper.GetInt("noise_threshold"); v > 0 {
		cfg.NoiseThreshold = v
	}
	if v := viper.GetFloat64("smoothing"); v > 0 {
		cfg.Smoothing = v
	}
	if viper.GetBool("use_cache") {
		cfg.CacheFile = filepath.Join(cfg.CorpusDir, "..", cache.DefaultName)
	}
	return cfg
}

// NewEngine builds the recognition engine from the loaded configuration
func NewEngine() (*engine.Engine, error) {
	cfg := EngineConfigFromViper()
	if cfg.CorpusDir == "" {
		return nil, fmt.Errorf("corpus directory is required (--corpus)")
	}

	start := time.Now()
	eng, err := engine.New(cfg, activeLogger())
	if err != nil {
		return nil, err
	}
	if sessionLogger != nil {
		sessionLogger.LogCorpusLoaded(cfg.CorpusDir, eng.Index().Len(), eng.Index().ArchCount(), time.Since(start))
	}
	return eng, nil
}

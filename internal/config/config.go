// Package config provides configuration for the shotlist ingest tool.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultDataDir   = ".shotlist"

	// Environment variable names
	EnvLogLevel  = "SHOTLIST_LOG_LEVEL"
	EnvLogFormat = "SHOTLIST_LOG_FORMAT"
	EnvDataDir   = "SHOTLIST_DATA_DIR"
	EnvBucket    = "SHOTLIST_BUCKET"

	// External tool overrides
	EnvYtdlpPath       = "SHOTLIST_YTDLP_PATH"
	EnvScenedetectPath = "SHOTLIST_SCENEDETECT_PATH"

	// Tuning
	EnvUploadConcurrency = "SHOTLIST_UPLOAD_CONCURRENCY"
	EnvRunTimeout        = "SHOTLIST_RUN_TIMEOUT_SECS"

	// Ledger database filename
	DBFilename = "shotlist.db"

	// Defaults
	DefaultUploadConcurrency = 4
	DefaultRunTimeoutSecs    = 1200 // 20 minutes end-to-end
	DefaultRetrieveTimeout   = 600  // 10 minutes
	DefaultSegmentTimeout    = 300  // 5 minutes
)

// Config defines the application configuration interface
type Config interface {
	LogLevel() string
	LogFormat() string
	DataDir() string
	DBPath() string
	Bucket() string
	YtdlpPath() string
	ScenedetectPath() string
	UploadConcurrency() int
	RunTimeout() time.Duration
	RetrieveTimeout() time.Duration
	SegmentTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	logLevel          string
	logFormat         string
	dataDir           string
	bucket            string
	ytdlpPath         string
	scenedetectPath   string
	uploadConcurrency int
	runTimeoutSecs    int
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		logLevel:          DefaultLogLevel,
		logFormat:         DefaultLogFormat,
		dataDir:           defaultDataDir(),
		uploadConcurrency: DefaultUploadConcurrency,
		runTimeoutSecs:    DefaultRunTimeoutSecs,
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if lf := os.Getenv(EnvLogFormat); lf != "" {
		if lf != "json" && lf != "text" {
			return nil, fmt.Errorf("invalid %s: want json or text, got %q", EnvLogFormat, lf)
		}
		cfg.logFormat = lf
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.bucket = os.Getenv(EnvBucket)
	cfg.ytdlpPath = os.Getenv(EnvYtdlpPath)
	cfg.scenedetectPath = os.Getenv(EnvScenedetectPath)

	if uc := os.Getenv(EnvUploadConcurrency); uc != "" {
		n, err := strconv.Atoi(uc)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s: want a positive integer, got %q", EnvUploadConcurrency, uc)
		}
		cfg.uploadConcurrency = n
	}

	if rt := os.Getenv(EnvRunTimeout); rt != "" {
		n, err := strconv.Atoi(rt)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s: want a non-negative integer, got %q", EnvRunTimeout, rt)
		}
		cfg.runTimeoutSecs = n
	}

	return cfg, nil
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// LogFormat returns the log output format (json or text)
func (c *EnvConfig) LogFormat() string {
	return c.logFormat
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite run-ledger file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// Bucket returns the destination object-storage bucket name
func (c *EnvConfig) Bucket() string {
	return c.bucket
}

func (c *EnvConfig) YtdlpPath() string {
	return c.ytdlpPath
}

func (c *EnvConfig) ScenedetectPath() string {
	return c.scenedetectPath
}

// UploadConcurrency returns the parallel frame-upload limit
func (c *EnvConfig) UploadConcurrency() int {
	return c.uploadConcurrency
}

// RunTimeout returns the overall wall-clock budget for one run (0 = unlimited)
func (c *EnvConfig) RunTimeout() time.Duration {
	return time.Duration(c.runTimeoutSecs) * time.Second
}

func (c *EnvConfig) RetrieveTimeout() time.Duration {
	return time.Duration(DefaultRetrieveTimeout) * time.Second
}

func (c *EnvConfig) SegmentTimeout() time.Duration {
	return time.Duration(DefaultSegmentTimeout) * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

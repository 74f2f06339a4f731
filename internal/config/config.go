// Package config provides configuration management for the clipper service.
// Values come from defaults, then an optional YAML file named by
// CLIPPER_CONFIG, then environment variables.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort          = 8080
	DefaultHost          = "0.0.0.0"
	DefaultLogLevel      = "info"
	DefaultDataDir       = ".clipper"
	DefaultWorkers       = 5
	DefaultQueueCapacity = 100
	DefaultShutdownGrace = 30 * time.Second

	// Environment variable names
	EnvConfigFile       = "CLIPPER_CONFIG"
	EnvPort             = "CLIPPER_PORT"
	EnvHost             = "CLIPPER_HOST"
	EnvLogLevel         = "CLIPPER_LOG_LEVEL"
	EnvDataDir          = "CLIPPER_DATA_DIR"
	EnvStorageDir       = "CLIPS_STORAGE_DIR"
	EnvWorkers          = "CLIPPER_WORKERS"
	EnvQueueCapacity    = "CLIPPER_QUEUE_CAPACITY"
	EnvJobTimeout       = "CLIPPER_JOB_TIMEOUT"
	EnvShutdownGrace    = "CLIPPER_SHUTDOWN_GRACE"
	EnvYTDLPPath        = "CLIPPER_YTDLP_PATH"
	EnvFFmpegPath       = "CLIPPER_FFMPEG_PATH"
	EnvFFprobePath      = "CLIPPER_FFPROBE_PATH"
	EnvEntitlementURL   = "CLIPPER_ENTITLEMENT_URL"
	EnvEntitlementToken = "CLIPPER_ENTITLEMENT_TOKEN"
	EnvAPIToken         = "CLIPPER_API_TOKEN"
	EnvPublicBaseURL    = "CLIPPER_PUBLIC_BASE_URL"
	EnvCORSOrigins      = "CLIPPER_CORS_ORIGINS"

	// Database filename
	DBFilename = "clipper.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	Host() string
	Addr() string
	LogLevel() string
	DataDir() string
	DBPath() string
	StorageDir() string
	WorkDir() string
	Workers() int
	QueueCapacity() int
	JobTimeout() time.Duration
	ShutdownGrace() time.Duration
	YTDLPPath() string
	FFmpegPath() string
	FFprobePath() string
	EntitlementURL() string
	EntitlementToken() string
	APIToken() string
	PublicBaseURL() string
	CORSOrigins() []string
}

// fileConfig is the YAML layout. Empty fields keep the defaults.
type fileConfig struct {
	Server struct {
		Host          string   `yaml:"host"`
		Port          int      `yaml:"port"`
		LogLevel      string   `yaml:"logLevel"`
		APIToken      string   `yaml:"apiToken"`
		PublicBaseURL string   `yaml:"publicBaseUrl"`
		ShutdownGrace string   `yaml:"shutdownGrace"`
		CORSOrigins   []string `yaml:"corsOrigins"`
	} `yaml:"server"`
	Storage struct {
		DataDir  string `yaml:"dataDir"`
		ClipsDir string `yaml:"clipsDir"`
	} `yaml:"storage"`
	Jobs struct {
		Workers       int    `yaml:"workers"`
		QueueCapacity int    `yaml:"queueCapacity"`
		Timeout       string `yaml:"timeout"`
	} `yaml:"jobs"`
	Tools struct {
		YTDLP   string `yaml:"ytdlp"`
		FFmpeg  string `yaml:"ffmpeg"`
		FFprobe string `yaml:"ffprobe"`
	} `yaml:"tools"`
	Entitlement struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
	} `yaml:"entitlement"`
}

// EnvConfig holds the resolved configuration.
type EnvConfig struct {
	port          int
	host          string
	logLevel      string
	dataDir       string
	storageDir    string
	workers       int
	queueCapacity int
	jobTimeout    time.Duration
	shutdownGrace time.Duration

	ytdlpPath   string
	ffmpegPath  string
	ffprobePath string

	entitlementURL   string
	entitlementToken string
	apiToken         string
	publicBaseURL    string
	corsOrigins      []string
}

// New creates a new EnvConfig from defaults, the optional config file and
// environment variable overrides.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:          DefaultPort,
		host:          DefaultHost,
		logLevel:      DefaultLogLevel,
		dataDir:       defaultDataDir(),
		workers:       DefaultWorkers,
		queueCapacity: DefaultQueueCapacity,
		shutdownGrace: DefaultShutdownGrace,
		corsOrigins:   []string{"*"},
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EnvConfig) applyFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&c.host, fc.Server.Host)
	if fc.Server.Port != 0 {
		c.port = fc.Server.Port
	}
	setString(&c.logLevel, fc.Server.LogLevel)
	setString(&c.apiToken, fc.Server.APIToken)
	setString(&c.publicBaseURL, fc.Server.PublicBaseURL)
	if len(fc.Server.CORSOrigins) > 0 {
		c.corsOrigins = fc.Server.CORSOrigins
	}
	if fc.Server.ShutdownGrace != "" {
		d, err := parseDuration("server.shutdownGrace", fc.Server.ShutdownGrace)
		if err != nil {
			return err
		}
		c.shutdownGrace = d
	}

	setString(&c.dataDir, fc.Storage.DataDir)
	setString(&c.storageDir, fc.Storage.ClipsDir)

	if fc.Jobs.Workers != 0 {
		c.workers = fc.Jobs.Workers
	}
	if fc.Jobs.QueueCapacity != 0 {
		c.queueCapacity = fc.Jobs.QueueCapacity
	}
	if fc.Jobs.Timeout != "" {
		d, err := parseDuration("jobs.timeout", fc.Jobs.Timeout)
		if err != nil {
			return err
		}
		c.jobTimeout = d
	}

	setString(&c.ytdlpPath, fc.Tools.YTDLP)
	setString(&c.ffmpegPath, fc.Tools.FFmpeg)
	setString(&c.ffprobePath, fc.Tools.FFprobe)
	setString(&c.entitlementURL, fc.Entitlement.URL)
	setString(&c.entitlementToken, fc.Entitlement.Token)
	return nil
}

func (c *EnvConfig) applyEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}

	for name, dst := range map[string]*int{EnvWorkers: &c.workers, EnvQueueCapacity: &c.queueCapacity} {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", name, err)
			}
			*dst = n
		}
	}

	for name, dst := range map[string]*time.Duration{EnvJobTimeout: &c.jobTimeout, EnvShutdownGrace: &c.shutdownGrace} {
		if v := os.Getenv(name); v != "" {
			d, err := parseDuration(name, v)
			if err != nil {
				return err
			}
			*dst = d
		}
	}

	for name, dst := range map[string]*string{
		EnvHost:             &c.host,
		EnvLogLevel:         &c.logLevel,
		EnvDataDir:          &c.dataDir,
		EnvStorageDir:       &c.storageDir,
		EnvYTDLPPath:        &c.ytdlpPath,
		EnvFFmpegPath:       &c.ffmpegPath,
		EnvFFprobePath:      &c.ffprobePath,
		EnvEntitlementURL:   &c.entitlementURL,
		EnvEntitlementToken: &c.entitlementToken,
		EnvAPIToken:         &c.apiToken,
		EnvPublicBaseURL:    &c.publicBaseURL,
	} {
		setString(dst, os.Getenv(name))
	}

	if v := os.Getenv(EnvCORSOrigins); v != "" {
		c.corsOrigins = splitList(v)
	}
	return nil
}

func (c *EnvConfig) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port %d: port must be between 1 and 65535", c.port)
	}
	if c.workers < 0 {
		return fmt.Errorf("invalid workers %d: must not be negative", c.workers)
	}
	if c.queueCapacity < 0 {
		return fmt.Errorf("invalid queue capacity %d: must not be negative", c.queueCapacity)
	}
	if c.jobTimeout < 0 || c.shutdownGrace < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// parseDuration accepts Go durations ("90s", "5m") or bare seconds.
func parseDuration(name, v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

func (c *EnvConfig) Host() string {
	return c.host
}

// Addr is the listen address, host:port.
func (c *EnvConfig) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// StorageDir is where finished clips are kept, one directory per job.
func (c *EnvConfig) StorageDir() string {
	if c.storageDir != "" {
		return c.storageDir
	}
	return filepath.Join(c.dataDir, "clips")
}

// WorkDir holds per-job temporary directories.
func (c *EnvConfig) WorkDir() string {
	return filepath.Join(c.dataDir, "work")
}

func (c *EnvConfig) Workers() int {
	if c.workers == 0 {
		return DefaultWorkers
	}
	return c.workers
}

func (c *EnvConfig) QueueCapacity() int {
	if c.queueCapacity == 0 {
		return DefaultQueueCapacity
	}
	return c.queueCapacity
}

// JobTimeout is the per-job deadline; zero means none.
func (c *EnvConfig) JobTimeout() time.Duration {
	return c.jobTimeout
}

func (c *EnvConfig) ShutdownGrace() time.Duration {
	return c.shutdownGrace
}

func (c *EnvConfig) YTDLPPath() string {
	return c.ytdlpPath
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

// EntitlementURL is the accounts service base URL; empty disables checks.
func (c *EnvConfig) EntitlementURL() string {
	return c.entitlementURL
}

func (c *EnvConfig) EntitlementToken() string {
	return c.entitlementToken
}

// APIToken, when set, is required as a bearer token on /api routes other than health.
func (c *EnvConfig) APIToken() string {
	return c.apiToken
}

func (c *EnvConfig) PublicBaseURL() string {
	return strings.TrimRight(c.publicBaseURL, "/")
}

// CORSOrigins lists the browser origins allowed to call the API. "*" allows any.
func (c *EnvConfig) CORSOrigins() []string {
	return c.corsOrigins
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

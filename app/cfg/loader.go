package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Source and policy configuration
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	PolicyFile string `long:"policy-file" env:"POLICY_FILE" default:"./policy.yml" description:"Ranking policy file (lexicon, tiers, weights)"`

	// Archive
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/digests.db" description:"SQLite archive path (empty disables archiving in --once mode)"`

	// Scheduling
	Schedule    string `long:"schedule" env:"SCHEDULE" default:"0 7 * * *" description:"Cron expression for digest runs"`
	Once        bool   `long:"once" env:"ONCE" description:"Run the pipeline once, print the digest as JSON and exit"`
	RunOnStart  bool   `long:"run-on-start" env:"RUN_ON_START" description:"Trigger a digest run right after startup"`
	WorkerCount int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers for run and publish tasks"`

	// Fetching
	UserAgent       string        `long:"user-agent" env:"USER_AGENT" default:"AI News Digest/1.0" description:"User agent string for HTTP requests"`
	FetchRetries    int           `long:"fetch-retries" env:"FETCH_RETRIES" default:"2" description:"Attempts per source within its timeout"`
	FetchRetryDelay time.Duration `long:"fetch-retry-delay" env:"FETCH_RETRY_DELAY" default:"1s" description:"Base delay between source fetch attempts"`

	// HTTP API
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Redis publishing
	RedisAddr     string        `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for publishing digests (optional)"`
	RedisPassword string        `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB       int           `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	RedisPrefix   string        `long:"redis-prefix" env:"REDIS_PREFIX" default:"ai-news" description:"Key and channel prefix for published digests"`
	RedisTTL      time.Duration `long:"redis-ttl" env:"REDIS_TTL" default:"168h" description:"Expiry of published digest keys"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for the schedule and timestamps (e.g., UTC, Europe/Berlin)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return load(nil)
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", raw.WorkerCount)
	}
	if raw.FetchRetries < 1 {
		return nil, fmt.Errorf("fetch retries must be at least 1, got %d", raw.FetchRetries)
	}

	cfg := &Cfg{
		SourcesDir:      raw.SourcesDir,
		PolicyFile:      raw.PolicyFile,
		DBPath:          raw.DBPath,
		Schedule:        raw.Schedule,
		Once:            raw.Once,
		RunOnStart:      raw.RunOnStart,
		WorkerCount:     raw.WorkerCount,
		UserAgent:       raw.UserAgent,
		FetchRetries:    raw.FetchRetries,
		FetchRetryDelay: raw.FetchRetryDelay,
		Port:            raw.Port,
		APIAccessKey:    raw.APIAccessKey,
		RedisAddr:       raw.RedisAddr,
		RedisPassword:   raw.RedisPassword,
		RedisDB:         raw.RedisDB,
		RedisPrefix:     raw.RedisPrefix,
		RedisTTL:        raw.RedisTTL,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}

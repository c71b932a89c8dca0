package cfg

import "time"

type Cfg struct {
	// Source and policy configuration
	SourcesDir string
	PolicyFile string

	// Archive
	DBPath string

	// Scheduling
	Schedule    string
	Once        bool
	RunOnStart  bool
	WorkerCount int

	// Fetching
	UserAgent       string
	FetchRetries    int
	FetchRetryDelay time.Duration

	// HTTP API
	Port         string
	APIAccessKey string

	// Redis publishing
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	RedisTTL      time.Duration

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

// Location returns the configured timezone, falling back to time.Local.
func (c *Cfg) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

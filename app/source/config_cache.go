package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rishabhpatre/ai-news-agent/app/item"
)

type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return NewConfigError(cc.sourcesDir, "", "sources directory does not exist")
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		sourceName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(sourceName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded", "source", sourceName, "kind", config.Kind, "category", config.Category, "enabled", config.Settings.Enabled)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(sourceName string) (*Config, error) {
	configFile := cc.getConfigFilePath(sourceName)
	sourceConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	sourceConfig.Name = sourceName

	if err := cc.validateConfig(configFile, sourceConfig); err != nil {
		return nil, err
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[sourceConfig.Name] = sourceConfig

	return sourceConfig, nil
}

func (cc *ConfigCache) GetConfig(sourceName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	sourceConfig, ok := cc.cache[sourceName]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", sourceName)
	}
	return sourceConfig, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

// GetEnabledConfigs returns enabled sources sorted by name.
func (cc *ConfigCache) GetEnabledConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabled := make([]*Config, 0, len(cc.cache))
	for _, v := range cc.cache {
		if v.Settings.Enabled {
			enabled = append(enabled, v)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].Name < enabled[j].Name })
	return enabled
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var sourceConfig Config
	if err := yaml.Unmarshal(data, &sourceConfig); err != nil {
		return nil, NewConfigError(configFile, "", "failed to parse YAML: %v", err)
	}

	if sourceConfig.Settings.Timeout == 0 {
		sourceConfig.Settings.Timeout = 30
	}
	if sourceConfig.Settings.MaxItems == 0 {
		sourceConfig.Settings.MaxItems = 50
	}

	return &sourceConfig, nil
}

// Kinds whose adapter has a well-known default endpoint.
var defaultEndpointKinds = map[item.Kind]bool{
	item.KindArxiv:      true,
	item.KindNewsAPI:    true,
	item.KindHackerNews: true,
}

var validKinds = map[item.Kind]bool{
	item.KindRSS:        true,
	item.KindArxiv:      true,
	item.KindNewsAPI:    true,
	item.KindHackerNews: true,
	item.KindScrape:     true,
}

func (cc *ConfigCache) validateConfig(configFile string, sourceConfig *Config) error {
	if sourceConfig == nil {
		return NewConfigError(configFile, "", "sourceConfig is nil")
	}

	requiredFields := map[string]string{
		"kind":     string(sourceConfig.Kind),
		"category": string(sourceConfig.Category),
		"tier":     sourceConfig.Tier,
	}
	if !defaultEndpointKinds[sourceConfig.Kind] {
		requiredFields["url"] = sourceConfig.URL
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return NewConfigError(configFile, fieldName, "is required")
		}
	}

	if !validKinds[sourceConfig.Kind] {
		return NewConfigError(configFile, "kind", "unknown source kind %q", sourceConfig.Kind)
	}

	if _, err := item.ParseCategory(string(sourceConfig.Category)); err != nil {
		return NewConfigError(configFile, "category", "%v", err)
	}

	nonNegativeFields := map[string]int{
		"timeout":   sourceConfig.Settings.Timeout,
		"max items": sourceConfig.Settings.MaxItems,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return NewConfigError(configFile, fieldName, "must be non-negative")
		}
	}

	if sourceConfig.Kind == item.KindScrape {
		for _, key := range []string{"item", "title"} {
			if sourceConfig.Param(key, "") == "" {
				return NewConfigError(configFile, "params."+key, "is required for scrape sources")
			}
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(sourceName string) string {
	return filepath.Join(cc.sourcesDir, sourceName+".yml")
}

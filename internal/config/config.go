// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Data      DataConfig
	Pipeline  PipelineConfig
	Mapping   MappingConfig
	Shard     ShardConfig
	Server    ServerConfig
	Watch     WatchConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds operational data storage configuration.
type DataConfig struct {
	// BasePath is the root everything else defaults under (default: ~/Shelfwise/data)
	BasePath string
	// DatabasePath is the run-history database location (default: {data}/db)
	DatabasePath string
}

// PipelineConfig holds ingestion pipeline configuration.
type PipelineConfig struct {
	// InputDir is the root of per-shop input directories (default: {data}/input)
	InputDir string
	// OutputDir is the root of per-shop shard output (default: {data}/output)
	OutputDir string
	// BatchSize is the number of records normalized per batch (default: 500)
	BatchSize int
}

// MappingConfig holds category matching configuration.
type MappingConfig struct {
	// TaxonomyPath overrides the built-in taxonomy with a YAML file (default: built-in)
	TaxonomyPath string
	// SynonymsPath overrides the built-in synonym table with a YAML file (default: built-in)
	SynonymsPath string
	// RulesDir is the per-shop rule document directory (default: {data}/rules)
	RulesDir string
	// MinConfidence is the global floor applied on top of every tier threshold (default: 0.5)
	MinConfidence float64
	// FuzzyThreshold is the minimum similarity for the fuzzy tier (default: 0.65)
	FuzzyThreshold float64
	// RegexThreshold is the minimum confidence for the regex tier (default: 0.9)
	RegexThreshold float64
	// SynonymThreshold is the minimum confidence for the synonym tier (default: 0.8)
	SynonymThreshold float64
	// FuzzyMemoSize bounds the similarity memo cache (default: 4096)
	FuzzyMemoSize int
}

// ShardConfig holds shard writer configuration.
type ShardConfig struct {
	// SizeMB is the per-file rotation ceiling in megabytes (default: 64)
	SizeMB int
	// MemoryLimitMB is the advisory process heap ceiling in megabytes (default: 512)
	MemoryLimitMB int
	// MemoryPressure is the fraction of the limit that triggers a collection hint (default: 0.85)
	MemoryPressure float64
	// QueueDepth is the per-slug channel buffer (default: 256)
	QueueDepth int
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Name         string
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// WatchConfig holds input watch mode configuration.
type WatchConfig struct {
	// Enabled turns on filesystem watching of the input root (default: false)
	Enabled bool
	// Debounce is how long a shop's input must stay quiet before a run starts (default: 2s)
	Debounce time.Duration
}

// RateLimitConfig holds the per-client limit applied to mutating API calls.
type RateLimitConfig struct {
	RPS   float64 // Requests per second (default: 5)
	Burst int     // Burst allowance (default: 10)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for operational data")
	inputDir := flag.String("input-dir", "", "Root of per-shop input directories")
	outputDir := flag.String("output-dir", "", "Root of per-shop shard output")
	batchSize := flag.String("batch-size", "", "Records normalized per batch (default: 500)")

	// Mapping flags
	taxonomyPath := flag.String("taxonomy-path", "", "Taxonomy YAML file (default: built-in)")
	synonymsPath := flag.String("synonyms-path", "", "Synonym table YAML file (default: built-in)")
	rulesDir := flag.String("rules-dir", "", "Per-shop rule document directory")
	minConfidence := flag.String("min-confidence", "", "Global mapping confidence floor (default: 0.5)")
	fuzzyThreshold := flag.String("fuzzy-threshold", "", "Minimum fuzzy tier similarity (default: 0.65)")

	// Shard flags
	shardSizeMB := flag.String("shard-size-mb", "", "Shard rotation ceiling in MB (default: 64)")
	memoryLimitMB := flag.String("memory-limit-mb", "", "Advisory heap ceiling in MB (default: 512)")

	// Server flags
	serverName := flag.String("server-name", "", "Name for the server")
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	// Watch flags
	watchEnabled := flag.String("watch", "", "Watch the input root and run settled shops (default: false)")
	watchDebounce := flag.String("watch-debounce", "", "Input settle time before a watched run (default: 2s)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	// Parse flags but don't exit on error - we want to handle it gracefully.
	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath:     getConfigValue(*dataPath, "DATA_PATH", ""),
			DatabasePath: getConfigValue("", "DATABASE_PATH", ""),
		},
		Pipeline: PipelineConfig{
			InputDir:  getConfigValue(*inputDir, "INPUT_DIR", ""),
			OutputDir: getConfigValue(*outputDir, "OUTPUT_DIR", ""),
			BatchSize: getIntConfigValue(*batchSize, "BATCH_SIZE", 500),
		},
		Mapping: MappingConfig{
			TaxonomyPath:     getConfigValue(*taxonomyPath, "TAXONOMY_PATH", ""),
			SynonymsPath:     getConfigValue(*synonymsPath, "SYNONYMS_PATH", ""),
			RulesDir:         getConfigValue(*rulesDir, "RULES_DIR", ""),
			MinConfidence:    getFloatConfigValue(*minConfidence, "MIN_CONFIDENCE", 0.5),
			FuzzyThreshold:   getFloatConfigValue(*fuzzyThreshold, "FUZZY_THRESHOLD", 0.65),
			RegexThreshold:   getFloatConfigValue("", "REGEX_THRESHOLD", 0.9),
			SynonymThreshold: getFloatConfigValue("", "SYNONYM_THRESHOLD", 0.8),
			FuzzyMemoSize:    getIntConfigValue("", "FUZZY_MEMO_SIZE", 4096),
		},
		Shard: ShardConfig{
			SizeMB:         getIntConfigValue(*shardSizeMB, "SHARD_SIZE_MB", 64),
			MemoryLimitMB:  getIntConfigValue(*memoryLimitMB, "MEMORY_LIMIT_MB", 512),
			MemoryPressure: getFloatConfigValue("", "SHARD_MEMORY_PRESSURE", 0.85),
			QueueDepth:     getIntConfigValue("", "SHARD_QUEUE_DEPTH", 256),
		},
		Server: ServerConfig{
			Name: getConfigValue(*serverName, "SERVER_NAME", "Shelfwise Server"),
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Watch: WatchConfig{
			Enabled: getBoolConfigValue(*watchEnabled, "WATCH", false),
		},
		RateLimit: RateLimitConfig{
			RPS:   getFloatConfigValue("", "RATE_LIMIT_RPS", 5),
			Burst: getIntConfigValue("", "RATE_LIMIT_BURST", 10),
		},
	}

	// Parse server timeouts.
	readTimeoutStr := getConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s")
	readTimeoutDuration, err := time.ParseDuration(readTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout %q: %w", readTimeoutStr, err)
	}
	cfg.Server.ReadTimeout = readTimeoutDuration

	writeTimeoutStr := getConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s")
	writeTimeoutDuration, err := time.ParseDuration(writeTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout %q: %w", writeTimeoutStr, err)
	}
	cfg.Server.WriteTimeout = writeTimeoutDuration

	idleTimeoutStr := getConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s")
	idleTimeoutDuration, err := time.ParseDuration(idleTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout %q: %w", idleTimeoutStr, err)
	}
	cfg.Server.IdleTimeout = idleTimeoutDuration

	// Parse watch debounce.
	debounceStr := getConfigValue(*watchDebounce, "WATCH_DEBOUNCE", "2s")
	debounceDuration, err := time.ParseDuration(debounceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid watch debounce %q: %w", debounceStr, err)
	}
	cfg.Watch.Debounce = debounceDuration

	// Expand the data path; most other paths default under it.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.expandDerivedPaths(); err != nil {
		return nil, err
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("invalid batch size: %d (must be positive)", c.Pipeline.BatchSize)
	}

	thresholds := []struct {
		name  string
		value float64
	}{
		{"min confidence", c.Mapping.MinConfidence},
		{"fuzzy threshold", c.Mapping.FuzzyThreshold},
		{"regex threshold", c.Mapping.RegexThreshold},
		{"synonym threshold", c.Mapping.SynonymThreshold},
	}
	for _, threshold := range thresholds {
		if threshold.value <= 0 || threshold.value > 1 {
			return fmt.Errorf("invalid %s: %g (must be in (0, 1])", threshold.name, threshold.value)
		}
	}
	if c.Mapping.FuzzyMemoSize <= 0 {
		return fmt.Errorf("invalid fuzzy memo size: %d (must be positive)", c.Mapping.FuzzyMemoSize)
	}

	if c.Shard.SizeMB <= 0 {
		return fmt.Errorf("invalid shard size: %d MB (must be positive)", c.Shard.SizeMB)
	}
	if c.Shard.MemoryLimitMB <= 0 {
		return fmt.Errorf("invalid memory limit: %d MB (must be positive)", c.Shard.MemoryLimitMB)
	}
	if c.Shard.MemoryPressure <= 0 || c.Shard.MemoryPressure >= 1 {
		return fmt.Errorf("invalid memory pressure: %g (must be in (0, 1))", c.Shard.MemoryPressure)
	}
	if c.Shard.QueueDepth <= 0 {
		return fmt.Errorf("invalid queue depth: %d (must be positive)", c.Shard.QueueDepth)
	}

	if c.Watch.Enabled && c.Watch.Debounce <= 0 {
		return fmt.Errorf("invalid watch debounce: %s (must be positive)", c.Watch.Debounce)
	}

	if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("invalid rate limit: %g rps (must be positive)", c.RateLimit.RPS)
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("invalid rate limit burst: %d (must be positive)", c.RateLimit.Burst)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Shelfwise", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// expandDerivedPaths expands every path that defaults under the data base.
// Taxonomy and synonyms have no default path; empty means built-in tables.
func (c *Config) expandDerivedPaths() error {
	targets := []struct {
		name        string
		path        *string
		defaultPath string
	}{
		{"database path", &c.Data.DatabasePath, filepath.Join(c.Data.BasePath, "db")},
		{"input dir", &c.Pipeline.InputDir, filepath.Join(c.Data.BasePath, "input")},
		{"output dir", &c.Pipeline.OutputDir, filepath.Join(c.Data.BasePath, "output")},
		{"rules dir", &c.Mapping.RulesDir, filepath.Join(c.Data.BasePath, "rules")},
		{"taxonomy path", &c.Mapping.TaxonomyPath, ""},
		{"synonyms path", &c.Mapping.SynonymsPath, ""},
	}

	for _, target := range targets {
		expanded, err := expandPath(*target.path, target.defaultPath)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", target.name, err)
		}
		*target.path = expanded
	}

	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete engine configuration.
type Config struct {
	Profile       string              `mapstructure:"profile"`
	Memory        MemoryConfig        `mapstructure:"memory"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Dedup         DedupConfig         `mapstructure:"dedup"`
	Consolidation ConsolidationConfig `mapstructure:"consolidation"`
	Oracle        OracleConfig        `mapstructure:"oracle"`
	Server        ServerConfig        `mapstructure:"server"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// MemoryConfig holds record-store configuration (component A).
type MemoryConfig struct {
	Root              string  `mapstructure:"root"`
	DefaultImportance float64 `mapstructure:"default_importance"`
	DecayRate         float64 `mapstructure:"decay_rate"`
	ArchiveThreshold  float64 `mapstructure:"archive_threshold"`
}

// DatabaseConfig holds metadata-store configuration (component B).
// Three logical databases as described in spec §6; by default they are
// separate files under the same directory.
type DatabaseConfig struct {
	SchedulerPath string        `mapstructure:"scheduler_path"`
	ClusterPath   string        `mapstructure:"cluster_path"`
	DedupPath     string        `mapstructure:"dedup_path"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
}

// SchedulerConfig holds FSRS constants (component H).
type SchedulerConfig struct {
	InitialStability       float64 `mapstructure:"initial_stability"`
	InitialDifficulty      float64 `mapstructure:"initial_difficulty"`
	MinStability           float64 `mapstructure:"min_stability"`
	MaxStability           float64 `mapstructure:"max_stability"`
	CrossProjectStability  float64 `mapstructure:"cross_project_stability"`
	CrossProjectReviews    int     `mapstructure:"cross_project_reviews"`
	CrossProjectProjects   int     `mapstructure:"cross_project_projects"`
	DeepStability          float64 `mapstructure:"deep_stability"`
	DeepReviews            int     `mapstructure:"deep_reviews"`
	ReinforcementThreshold float64 `mapstructure:"reinforcement_threshold"`
}

// DedupConfig holds dedup engine tunables (component D).
type DedupConfig struct {
	SemanticBuckets      int     `mapstructure:"semantic_buckets"`
	DuplicateThreshold   float64 `mapstructure:"duplicate_threshold"`
	GrayZoneFloor        float64 `mapstructure:"gray_zone_floor"`
	GrayZoneFallback     float64 `mapstructure:"gray_zone_fallback"`
	CrossProjectUniverse bool    `mapstructure:"cross_project_universe"`
}

// ConsolidationConfig holds consolidator tunables (component F).
type ConsolidationConfig struct {
	MinSegmentLength       int     `mapstructure:"min_segment_length"`
	JSONNoiseRatio         float64 `mapstructure:"json_noise_ratio"`
	MergeSimilarity        float64 `mapstructure:"merge_similarity"`
	ContradictionThreshold float64 `mapstructure:"contradiction_threshold"`
	ContradictionTopN      int     `mapstructure:"contradiction_top_n"`
}

// OracleConfig holds external-oracle configuration (contradiction verdicts,
// dedup gray-zone verdicts, session extraction).
type OracleConfig struct {
	Provider   string        `mapstructure:"provider"` // "anthropic" or "null"
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// ServerConfig holds the facade's HTTP surface configuration.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	CORS    bool   `mapstructure:"cors"`
	APIKey  string `mapstructure:"api_key"`
}

// RateLimitConfig mirrors internal/ratelimit.Config so it can be loaded
// from YAML without importing that package here.
type RateLimitConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Global  RateLimitRule    `mapstructure:"global"`
	Tools   []NamedRateLimit `mapstructure:"tools"`
}

// RateLimitRule is a single requests-per-second/burst pair.
type RateLimitRule struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// NamedRateLimit attaches a RateLimitRule to a named route category.
type NamedRateLimit struct {
	Name              string  `mapstructure:"name"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns configuration seeded with every constant named in
// the component design.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".memoryctl")

	return &Config{
		Profile: "default",
		Memory: MemoryConfig{
			Root:              filepath.Join(configDir, "memories"),
			DefaultImportance: 0.5,
			DecayRate:         0.99,
			ArchiveThreshold:  0.2,
		},
		Database: DatabaseConfig{
			SchedulerPath: filepath.Join(configDir, "scheduler.db"),
			ClusterPath:   filepath.Join(configDir, "clusters.db"),
			DedupPath:     filepath.Join(configDir, "dedup.db"),
			WriteTimeout:  30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			InitialStability:      1.0,
			InitialDifficulty:     0.5,
			MinStability:          0.1,
			MaxStability:          10.0,
			CrossProjectStability: 2.0,
			CrossProjectReviews:   2,
			CrossProjectProjects:  2,
			DeepStability:         4.0,
			DeepReviews:           5,
			ReinforcementThreshold: 0.35,
		},
		Dedup: DedupConfig{
			SemanticBuckets:      64,
			DuplicateThreshold:   0.9,
			GrayZoneFloor:        0.5,
			GrayZoneFallback:     0.75,
			CrossProjectUniverse: true,
		},
		Consolidation: ConsolidationConfig{
			MinSegmentLength:      30,
			JSONNoiseRatio:         0.2,
			MergeSimilarity:        0.7,
			ContradictionThreshold: 0.3,
			ContradictionTopN:      5,
		},
		Oracle: OracleConfig{
			Provider:   "null",
			Model:      "claude-3-5-haiku-20241022",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Server: ServerConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    3077,
			CORS:    true,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Global:  RateLimitRule{RequestsPerSecond: 100, BurstSize: 200},
			Tools: []NamedRateLimit{
				{Name: "search", RequestsPerSecond: 20, BurstSize: 40},
				{Name: "store_memory", RequestsPerSecond: 30, BurstSize: 60},
				{Name: "maintenance", RequestsPerSecond: 0.2, BurstSize: 2},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from YAML file with fallback to defaults.
// Searches in multiple locations:
// 1. ./config.yaml (current directory)
// 2. ~/.memoryctl/config.yaml (user home)
// 3. /etc/memoryctl/config.yaml (system-wide)
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	homeDir, _ := os.UserHomeDir()
	v.AddConfigPath(filepath.Join(homeDir, ".memoryctl"))
	v.AddConfigPath("/etc/memoryctl")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("profile", d.Profile)

	v.SetDefault("memory.root", d.Memory.Root)
	v.SetDefault("memory.default_importance", d.Memory.DefaultImportance)
	v.SetDefault("memory.decay_rate", d.Memory.DecayRate)
	v.SetDefault("memory.archive_threshold", d.Memory.ArchiveThreshold)

	v.SetDefault("database.scheduler_path", d.Database.SchedulerPath)
	v.SetDefault("database.cluster_path", d.Database.ClusterPath)
	v.SetDefault("database.dedup_path", d.Database.DedupPath)
	v.SetDefault("database.write_timeout", d.Database.WriteTimeout)

	v.SetDefault("scheduler.initial_stability", d.Scheduler.InitialStability)
	v.SetDefault("scheduler.initial_difficulty", d.Scheduler.InitialDifficulty)
	v.SetDefault("scheduler.min_stability", d.Scheduler.MinStability)
	v.SetDefault("scheduler.max_stability", d.Scheduler.MaxStability)
	v.SetDefault("scheduler.cross_project_stability", d.Scheduler.CrossProjectStability)
	v.SetDefault("scheduler.cross_project_reviews", d.Scheduler.CrossProjectReviews)
	v.SetDefault("scheduler.cross_project_projects", d.Scheduler.CrossProjectProjects)
	v.SetDefault("scheduler.deep_stability", d.Scheduler.DeepStability)
	v.SetDefault("scheduler.deep_reviews", d.Scheduler.DeepReviews)
	v.SetDefault("scheduler.reinforcement_threshold", d.Scheduler.ReinforcementThreshold)

	v.SetDefault("dedup.semantic_buckets", d.Dedup.SemanticBuckets)
	v.SetDefault("dedup.duplicate_threshold", d.Dedup.DuplicateThreshold)
	v.SetDefault("dedup.gray_zone_floor", d.Dedup.GrayZoneFloor)
	v.SetDefault("dedup.gray_zone_fallback", d.Dedup.GrayZoneFallback)
	v.SetDefault("dedup.cross_project_universe", d.Dedup.CrossProjectUniverse)

	v.SetDefault("consolidation.min_segment_length", d.Consolidation.MinSegmentLength)
	v.SetDefault("consolidation.json_noise_ratio", d.Consolidation.JSONNoiseRatio)
	v.SetDefault("consolidation.merge_similarity", d.Consolidation.MergeSimilarity)
	v.SetDefault("consolidation.contradiction_threshold", d.Consolidation.ContradictionThreshold)
	v.SetDefault("consolidation.contradiction_top_n", d.Consolidation.ContradictionTopN)

	v.SetDefault("oracle.provider", d.Oracle.Provider)
	v.SetDefault("oracle.model", d.Oracle.Model)
	v.SetDefault("oracle.timeout", d.Oracle.Timeout)
	v.SetDefault("oracle.max_retries", d.Oracle.MaxRetries)

	v.SetDefault("server.enabled", d.Server.Enabled)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cors", d.Server.CORS)
	v.SetDefault("server.api_key", d.Server.APIKey)

	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.global.requests_per_second", d.RateLimit.Global.RequestsPerSecond)
	v.SetDefault("rate_limit.global.burst_size", d.RateLimit.Global.BurstSize)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Memory.Root == "" {
		return fmt.Errorf("memory.root is required")
	}
	if c.Memory.DefaultImportance < 0 || c.Memory.DefaultImportance > 1 {
		return fmt.Errorf("memory.default_importance must be in [0,1]")
	}
	if c.Memory.ArchiveThreshold < 0 || c.Memory.ArchiveThreshold > 1 {
		return fmt.Errorf("memory.archive_threshold must be in [0,1]")
	}

	if c.Database.WriteTimeout <= 0 {
		return fmt.Errorf("database.write_timeout must be positive")
	}

	if c.Scheduler.MinStability <= 0 || c.Scheduler.MaxStability <= c.Scheduler.MinStability {
		return fmt.Errorf("scheduler stability bounds are invalid")
	}

	if c.Dedup.SemanticBuckets <= 0 {
		return fmt.Errorf("dedup.semantic_buckets must be positive")
	}

	if c.Server.Enabled {
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return fmt.Errorf("server.port must be between 1 and 65535")
		}
		if c.Server.Host == "" {
			return fmt.Errorf("server.host is required when the server is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}

	if c.Oracle.Provider != "null" && c.Oracle.Provider != "anthropic" {
		return fmt.Errorf("oracle.provider must be 'null' or 'anthropic'")
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("oracle.timeout must be positive")
	}

	return nil
}

// EnsureConfigDir creates the memory root and database directories if they
// do not exist.
func (c *Config) EnsureConfigDir() error {
	if err := os.MkdirAll(c.Memory.Root, 0755); err != nil {
		return fmt.Errorf("failed to create memory root: %w", err)
	}
	for _, p := range []string{c.Database.SchedulerPath, c.Database.ClusterPath, c.Database.DedupPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return nil
}

// ConfigPath returns the path to the configuration directory.
func ConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".memoryctl")
}

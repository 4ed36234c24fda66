package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"strategy-game-server/engine"
	"strategy-game-server/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config is the full service configuration, read from the environment.
type Config struct {
	Port             string   `env:"PORT" envDefault:"5200"`
	DBDriver         string   `env:"DB_DRIVER" envDefault:"postgres"`
	DatabaseURL      string   `env:"DATABASE_URL"`
	GameServiceToken string   `env:"GAME_SERVICE_TOKEN"`
	AllowedOrigins   []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	VisionRadius      int                `env:"VISION_RADIUS" envDefault:"3"`
	StartingResources int                `env:"STARTING_RESOURCES" envDefault:"100"`
	BaseIncome        int                `env:"BASE_INCOME" envDefault:"5"`
	FarmIncome        int                `env:"FARM_INCOME" envDefault:"3"`
	MineIncome        int                `env:"MINE_INCOME" envDefault:"5"`
	MaxDamageBonus    int                `env:"MAX_DAMAGE_BONUS" envDefault:"3"`
	TerrainWeights    map[string]float64 `env:"TERRAIN_WEIGHTS" envDefault:"plains:0.6,forest:0.2,mountain:0.1,water:0.1" envKeyValSeparator:":"`
	FogOfWar          bool               `env:"FOG_OF_WAR" envDefault:"false"`

	// 0 disables the turn timeout job
	TurnTimeLimit   time.Duration `env:"TURN_TIME_LIMIT" envDefault:"0s"`
	ArchiveInterval time.Duration `env:"ARCHIVE_INTERVAL" envDefault:"5m"`

	R2 R2Config
}

type R2Config struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL      string `env:"CDN_BASE_URL"`
}

// Enabled reports whether every credential needed for archiving is present.
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

// Load parses and validates the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %q", c.DBDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.GameServiceToken == "" {
		return fmt.Errorf("GAME_SERVICE_TOKEN is required")
	}
	if c.VisionRadius < 0 || c.StartingResources < 0 || c.BaseIncome < 0 || c.MaxDamageBonus < 0 {
		return fmt.Errorf("game constants must not be negative")
	}
	if c.TurnTimeLimit < 0 {
		return fmt.Errorf("TURN_TIME_LIMIT must not be negative")
	}
	if c.ArchiveInterval <= 0 {
		return fmt.Errorf("ARCHIVE_INTERVAL must be positive")
	}
	for k, w := range c.TerrainWeights {
		if _, ok := models.TerrainCatalog[models.Terrain(strings.TrimSpace(k))]; !ok {
			return fmt.Errorf("TERRAIN_WEIGHTS: unknown terrain %q", k)
		}
		if w < 0 {
			return fmt.Errorf("TERRAIN_WEIGHTS: negative weight for %s", k)
		}
	}
	return nil
}

// Rules converts the game constants into engine rules.
func (c Config) Rules() engine.Rules {
	rules := engine.DefaultRules()
	rules.VisionRadius = c.VisionRadius
	rules.StartingResources = c.StartingResources
	rules.BaseIncome = c.BaseIncome
	rules.MaxDamageBonus = c.MaxDamageBonus
	rules.IncomePerBuilding = map[string]int{
		models.BuildingFarm: c.FarmIncome,
		models.BuildingMine: c.MineIncome,
	}
	if len(c.TerrainWeights) > 0 {
		weights := make(map[models.Terrain]float64, len(c.TerrainWeights))
		for k, w := range c.TerrainWeights {
			weights[models.Terrain(strings.TrimSpace(k))] = w
		}
		rules.TerrainWeights = weights
	}
	return rules
}

package app

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/kladdkaka/internal/rules"
)

type HeaderConfig struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

type GSheetConfig struct {
	Schedule        string `toml:"schedule"`
	CredentialsPath string `toml:"credentials_path"`
	SheetID         string `toml:"sheet_id"`
	SheetName       string `toml:"sheet_name"`
	UsersRange      string `toml:"users_range"`
	TotalsColumn    string `toml:"totals_column"`
	TimestampRange  string `toml:"timestamp_range"`
}

type Config struct {
	Server struct {
		Port       string `toml:"port"`
		EnableAuth bool   `toml:"enable_auth"`
	} `toml:"server"`

	Auth struct {
		RedisURL         string `toml:"redis_url"`
		TokenHeader      string `toml:"token_header"`
		TokenKeyTemplate string `toml:"token_key_template"`
	} `toml:"auth"`

	API struct {
		UserIDHeader    string         `toml:"user_id_header"`
		RequiredHeaders []HeaderConfig `toml:"required_headers"`
	} `toml:"api"`

	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Credits rules.Amounts `toml:"credits"`

	Promotion struct {
		Secret string `toml:"secret"`
	} `toml:"promotion"`

	Retry struct {
		MaxAttempts int `toml:"max_attempts"`
		BaseDelayMs int `toml:"base_delay_ms"`
	} `toml:"retry"`

	Leaderboard struct {
		Limit int `toml:"limit"`
	} `toml:"leaderboard"`

	EmojiVariants []string                `toml:"emoji_variants"`
	GSheet        map[string]GSheetConfig `toml:"gsheet"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :9999")
	}

	config.setDefaults()

	logger.Debug.Printf("Loaded credit amounts: %+v", config.Credits)

	return &config, nil
}

// setDefaults fills unset amounts field by field, so a config that
// overrides only one credit value keeps the rest instead of zeroing them.
func (c *Config) setDefaults() {
	defaults := rules.DefaultAmounts()
	if c.Credits.Post == 0 {
		c.Credits.Post = defaults.Post
	}
	if c.Credits.Comment == 0 {
		c.Credits.Comment = defaults.Comment
	}
	if c.Credits.Material == 0 {
		c.Credits.Material = defaults.Material
	}
	if c.Credits.Attendance == 0 {
		c.Credits.Attendance = defaults.Attendance
	}
	if c.Credits.MaxGrade == 0 {
		c.Credits.MaxGrade = defaults.MaxGrade
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelayMs == 0 {
		c.Retry.BaseDelayMs = 200
	}
	if c.Leaderboard.Limit == 0 {
		c.Leaderboard.Limit = 50
	}
}

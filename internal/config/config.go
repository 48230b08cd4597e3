// Package config 提供服務配置：預設值、YAML 檔案與環境變數覆蓋。
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration 讓 YAML 接受 "30s"、"2m" 這類人類可讀的時長
//
// yaml.v3 不認得 time.Duration，需要自訂解碼。
type Duration time.Duration

// UnmarshalYAML 實現 yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std 轉回標準庫型別
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config 整個應用的配置
type Config struct {
	Server struct {
		Port         int      `yaml:"port"`
		ReadTimeout  Duration `yaml:"read_timeout"`
		WriteTimeout Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	Postgres struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"postgres"`

	Game struct {
		MovePeriod   Duration `yaml:"move_period"`   // 每手的行動期限
		MaxGames     int      `yaml:"max_games"`     // 同時進行的對局上限
		ScanInterval Duration `yaml:"scan_interval"` // 有對局時的超時掃描間隔
		IdleInterval Duration `yaml:"idle_interval"` // 空閒/出錯時的掃描間隔
	} `yaml:"game"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default 預設配置（本地開發可直接使用）
func Default() *Config {
	cfg := &Config{}

	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = Duration(15 * time.Second)
	cfg.Server.WriteTimeout = Duration(15 * time.Second)

	cfg.Postgres.Host = "localhost"
	cfg.Postgres.Port = 5432
	cfg.Postgres.User = "postgres"
	cfg.Postgres.Password = "postgres"
	cfg.Postgres.DBName = "xo"
	cfg.Postgres.MaxConns = 10

	cfg.Game.MovePeriod = Duration(30 * time.Second)
	cfg.Game.MaxGames = 1000
	cfg.Game.ScanInterval = Duration(2 * time.Second)
	cfg.Game.IdleInterval = Duration(5 * time.Second)

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	return cfg
}

// Load 讀取 YAML 配置檔，疊加在預設值之上
//
// path 為空時直接回傳預設配置。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Game.MovePeriod <= 0 {
		return nil, fmt.Errorf("config %s: move_period must be positive", path)
	}
	if cfg.Game.MaxGames <= 0 {
		return nil, fmt.Errorf("config %s: max_games must be positive", path)
	}
	return cfg, nil
}

// PostgresURL 生成 PostgreSQL 連線 URL（pgx 與 migrate 共用）
func (c *Config) PostgresURL() string {
	// 支援環境變數覆蓋（生產環境常用）
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
	)
}

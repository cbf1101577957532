package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Linh3694/frappe-erp-sub001/internal/db"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// ImportConfig holds the import pipeline knobs.
type ImportConfig struct {
	BatchSize  int
	JobTimeout time.Duration
	FileDir    string
}

// Config is the full service configuration.
type Config struct {
	Database db.Config
	Server   ServerConfig
	Import   ImportConfig
}

// Load reads config.yaml from the given path, layered under environment
// variables. A missing config file is fine; defaults plus env cover it.
func Load(configPath string) (Config, error) {
	// .env is optional and only feeds the environment.
	_ = godotenv.Load()

	cfg := Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Import: ImportConfig{
			BatchSize:  100,
			JobTimeout: 30 * time.Minute,
		},
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("SIS")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("import.batch_size")
	v.BindEnv("import.file_dir")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("import.batch_size") {
		cfg.Import.BatchSize = v.GetInt("import.batch_size")
	}
	if v.IsSet("import.job_timeout") {
		cfg.Import.JobTimeout = v.GetDuration("import.job_timeout")
	}
	if v.IsSet("import.file_dir") {
		cfg.Import.FileDir = v.GetString("import.file_dir")
	}

	return cfg, nil
}

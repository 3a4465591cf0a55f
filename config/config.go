package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"quizgame/models"
)

type Config struct {
	Port        string `mapstructure:"port"`
	BindAddress string `mapstructure:"bind_address"`
	GinMode     string `mapstructure:"gin_mode"`

	DBDriver   string `mapstructure:"db_driver"`
	DBHost     string `mapstructure:"db_host"`
	DBPort     string `mapstructure:"db_port"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`
	DBName     string `mapstructure:"db_name"`
	DBPath     string `mapstructure:"db_path"`

	RedisEnabled bool   `mapstructure:"redis_enabled"`
	RedisHost    string `mapstructure:"redis_host"`
	RedisPort    string `mapstructure:"redis_port"`

	Log  LogConfig  `mapstructure:"log"`
	Game GameConfig `mapstructure:"game"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type GameConfig struct {
	// PointsPerCorrectAnswer is awarded once per correct answer.
	PointsPerCorrectAnswer int `mapstructure:"points_per_correct_answer"`
	// ObserverQueueSize bounds the queue of every asynchronous observer.
	ObserverQueueSize int `mapstructure:"observer_queue_size"`
	// EventHistoryTTL is how long redis keeps a session's event history.
	EventHistoryTTL time.Duration `mapstructure:"event_history_ttl"`
}

// envKeys maps config keys to the environment variables that override them.
var envKeys = map[string]string{
	"port":                           "PORT",
	"bind_address":                   "BIND_ADDRESS",
	"gin_mode":                       "GIN_MODE",
	"db_driver":                      "DB_DRIVER",
	"db_host":                        "DB_HOST",
	"db_port":                        "DB_PORT",
	"db_user":                        "DB_USER",
	"db_password":                    "DB_PASSWORD",
	"db_name":                        "DB_NAME",
	"db_path":                        "DB_PATH",
	"redis_enabled":                  "REDIS_ENABLED",
	"redis_host":                     "REDIS_HOST",
	"redis_port":                     "REDIS_PORT",
	"log.level":                      "LOG_LEVEL",
	"log.format":                     "LOG_FORMAT",
	"log.output":                     "LOG_OUTPUT",
	"log.dir":                        "LOG_DIR",
	"game.points_per_correct_answer": "GAME_POINTS_PER_CORRECT_ANSWER",
	"game.observer_queue_size":       "GAME_OBSERVER_QUEUE_SIZE",
	"game.event_history_ttl":         "GAME_EVENT_HISTORY_TTL",
}

// Load reads the optional YAML file at path (empty means ./config.yaml if it
// exists) and applies environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Game.PointsPerCorrectAnswer <= 0 {
		return nil, fmt.Errorf("game.points_per_correct_answer must be positive, got %d", cfg.Game.PointsPerCorrectAnswer)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("bind_address", "localhost")
	v.SetDefault("gin_mode", "release")

	v.SetDefault("db_driver", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "quizgame")
	v.SetDefault("db_password", "quizgame123")
	v.SetDefault("db_name", "quizgame")
	v.SetDefault("db_path", "./data/quizgame.db")

	v.SetDefault("redis_enabled", true)
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", "6379")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.dir", "./logs")
	v.SetDefault("log.filename", "quizgame.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.max_backups", 7)

	v.SetDefault("game.points_per_correct_answer", 10)
	v.SetDefault("game.observer_queue_size", 256)
	v.SetDefault("game.event_history_ttl", "2h")
}

func (c *Config) Addr() string {
	return c.BindAddress + ":" + c.Port
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	}

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(cfg.DBPath + "?_foreign_keys=on&_busy_timeout=5000")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

// Migrate creates or updates the schema of every model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// InitRedis returns nil when redis is disabled.
func InitRedis(cfg *Config) *redis.Client {
	if !cfg.RedisEnabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	return client
}

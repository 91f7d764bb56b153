// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
	"github.com/mahabubulhasibshawon/parcel-express/internal/logger"
	"github.com/mahabubulhasibshawon/parcel-express/internal/pricing"
	"github.com/mahabubulhasibshawon/parcel-express/internal/region"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Actor    ActorConfig
	GRPC     GRPCConfig
	Queue    QueueConfig
	Sync     SyncConfig
	Log      logger.Config
	Pricing  PricingConfig
}

type AppConfig struct {
	Name string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	TTL      time.Duration
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// ActorConfig identifies the person using a device when no token is configured.
type ActorConfig struct {
	ID   string
	Role string
}

type GRPCConfig struct {
	ListenAddr string
	Target     string
	Token      string
	Timeout    time.Duration
}

// QueueConfig locates the device-local SQLite file.
type QueueConfig struct {
	Path string
}

type SyncConfig struct {
	Interval       time.Duration
	AttemptTimeout time.Duration
}

// RateConfig is the file/env shape of a rate table; amounts are whole currency units.
type RateConfig struct {
	BaseFee               float64 `mapstructure:"base_fee"`
	PerKmFee              float64 `mapstructure:"per_km_fee"`
	FreeKmThreshold       int64   `mapstructure:"free_km_threshold"`
	WeightSurcharge       float64 `mapstructure:"weight_surcharge"`
	OversizeSurcharge     float64 `mapstructure:"oversize_surcharge"`
	FragileSurcharge      float64 `mapstructure:"fragile_surcharge"`
	FoodBeverageSurcharge float64 `mapstructure:"food_beverage_surcharge"`
	UrgentSurcharge       float64 `mapstructure:"urgent_surcharge"`
	ScheduledSurcharge    float64 `mapstructure:"scheduled_surcharge"`
}

func (r RateConfig) Table(code string) domain.RateTable {
	return domain.RateTable{
		Region:                code,
		BaseFee:               decimal.NewFromFloat(r.BaseFee),
		PerKmFee:              decimal.NewFromFloat(r.PerKmFee),
		FreeKmThreshold:       r.FreeKmThreshold,
		WeightSurcharge:       decimal.NewFromFloat(r.WeightSurcharge),
		OversizeSurcharge:     decimal.NewFromFloat(r.OversizeSurcharge),
		FragileSurcharge:      decimal.NewFromFloat(r.FragileSurcharge),
		FoodBeverageSurcharge: decimal.NewFromFloat(r.FoodBeverageSurcharge),
		UrgentSurcharge:       decimal.NewFromFloat(r.UrgentSurcharge),
		ScheduledSurcharge:    decimal.NewFromFloat(r.ScheduledSurcharge),
	}
}

// RegionConfig is one entry of the ordered region list. Order in the file is match order.
type RegionConfig struct {
	Code  string      `mapstructure:"code"`
	Names []string    `mapstructure:"names"`
	Rates *RateConfig `mapstructure:"rates"`
}

type PricingConfig struct {
	DefaultRegion string
	Default       RateConfig
	Regions       []RegionConfig
}

// RegionTable builds the ordered matcher table. With no regions configured the built-in table is used.
func (p PricingConfig) RegionTable() *region.Table {
	if len(p.Regions) == 0 {
		return region.NewTable(p.DefaultRegion, region.DefaultMatchers()...)
	}
	matchers := make([]region.Matcher, 0, len(p.Regions))
	for _, r := range p.Regions {
		matchers = append(matchers, region.Matcher{Code: r.Code, Names: r.Names})
	}
	return region.NewTable(p.DefaultRegion, matchers...)
}

func (p PricingConfig) RateBook() *pricing.RateBook {
	var tables []domain.RateTable
	for _, r := range p.Regions {
		if r.Rates != nil {
			tables = append(tables, r.Rates.Table(r.Code))
		}
	}
	return pricing.NewRateBook(p.RegionTable(), p.Default.Table(""), tables...)
}

// Load reads .env (if present), then config.yaml (if present), then PARCEL_* environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if path := os.Getenv("PARCEL_CONFIG"); path != "" {
		v.SetConfigFile(path)
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("PARCEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return build(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "parcel-express")
	v.SetDefault("app.env", "development")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "orderdb")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 5*time.Minute)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 24*time.Hour)

	v.SetDefault("actor.role", "customer")

	v.SetDefault("grpc.listen_addr", ":50051")
	v.SetDefault("grpc.target", "localhost:50051")
	v.SetDefault("grpc.timeout", 10*time.Second)

	v.SetDefault("queue.path", "parcel-queue.db")

	v.SetDefault("sync.interval", 30*time.Second)
	v.SetDefault("sync.attempt_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	def := domain.DefaultRateTable()
	v.SetDefault("pricing.default_region", region.Default)
	v.SetDefault("pricing.default.base_fee", def.BaseFee.InexactFloat64())
	v.SetDefault("pricing.default.per_km_fee", def.PerKmFee.InexactFloat64())
	v.SetDefault("pricing.default.free_km_threshold", def.FreeKmThreshold)
	v.SetDefault("pricing.default.weight_surcharge", def.WeightSurcharge.InexactFloat64())
	v.SetDefault("pricing.default.oversize_surcharge", def.OversizeSurcharge.InexactFloat64())
	v.SetDefault("pricing.default.fragile_surcharge", def.FragileSurcharge.InexactFloat64())
	v.SetDefault("pricing.default.food_beverage_surcharge", def.FoodBeverageSurcharge.InexactFloat64())
	v.SetDefault("pricing.default.urgent_surcharge", def.UrgentSurcharge.InexactFloat64())
	v.SetDefault("pricing.default.scheduled_surcharge", def.ScheduledSurcharge.InexactFloat64())
}

func build(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Username: v.GetString("redis.username"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			TTL:      v.GetDuration("redis.ttl"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			TTL:    v.GetDuration("jwt.ttl"),
		},
		Actor: ActorConfig{
			ID:   v.GetString("actor.id"),
			Role: v.GetString("actor.role"),
		},
		GRPC: GRPCConfig{
			ListenAddr: v.GetString("grpc.listen_addr"),
			Target:     v.GetString("grpc.target"),
			Token:      v.GetString("grpc.token"),
			Timeout:    v.GetDuration("grpc.timeout"),
		},
		Queue: QueueConfig{Path: v.GetString("queue.path")},
		Sync: SyncConfig{
			Interval:       v.GetDuration("sync.interval"),
			AttemptTimeout: v.GetDuration("sync.attempt_timeout"),
		},
		Log: logger.Config{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Pricing: PricingConfig{DefaultRegion: v.GetString("pricing.default_region")},
	}

	if err := v.UnmarshalKey("pricing.default", &cfg.Pricing.Default); err != nil {
		return nil, fmt.Errorf("invalid pricing.default: %w", err)
	}
	if err := v.UnmarshalKey("pricing.regions", &cfg.Pricing.Regions); err != nil {
		return nil, fmt.Errorf("invalid pricing.regions: %w", err)
	}
	for i, r := range cfg.Pricing.Regions {
		if r.Code == "" || len(r.Names) == 0 {
			return nil, fmt.Errorf("pricing.regions[%d]: code and names are required", i)
		}
	}
	return cfg, nil
}

// ValidateServer checks the settings the order service cannot run without.
func (c *Config) ValidateServer() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret (PARCEL_JWT_SECRET) must be set")
	}
	if c.GRPC.ListenAddr == "" {
		return errors.New("grpc.listen_addr must be set")
	}
	return nil
}

func (c *Config) ValidateClient() error {
	if c.Queue.Path == "" {
		return errors.New("queue.path must be set")
	}
	if c.GRPC.Target == "" {
		return errors.New("grpc.target must be set")
	}
	if c.GRPC.Token == "" && (c.JWT.Secret == "" || c.Actor.ID == "") {
		return errors.New("grpc.token, or jwt.secret with actor.id, must be set")
	}
	return nil
}

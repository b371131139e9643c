package configuration

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

type Config struct {
	App         App         `json:"app"`
	Database    Database    `json:"database"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	RedisClient RedisClient `json:"redisClient"`
	Logger      Logger      `json:"logger"`
	YouTube     YouTube     `json:"youtube"`
	Scraper     Scraper     `json:"scraper"`
	YtDlp       YtDlp       `json:"ytdlp"`
	Refresh     Refresh     `json:"refresh"`
	Store       Store       `json:"store"`
	History     History     `json:"history"`
}

type App struct {
	Port        int    `json:"port" validate:"min=1,max=65535"`
	SecretKey   string `json:"secretKey"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile" validate:"required_if=TLSEnabled true"`
	TLSKeyFile  string `json:"tlsKeyFile" validate:"required_if=TLSEnabled true"`
	// AllowOrigins feeds the CORS middleware. Empty means any origin.
	AllowOrigins []string `json:"allowOrigins"`
}

type Database struct {
	Psql  Db `json:"psql"`
	Mongo Db `json:"mongo"`
	Mssql Db `json:"mssql"`
}

type Db struct {
	Name     string `json:"string"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
	TopicID   string `json:"topicID"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
	Queue     string `json:"queue"`
}

type RedisClient struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Password     string `json:"password"`
	DatabaseName string `json:"databaseName"`
	Username     string `json:"username"`
	Key          string `json:"key"`
}

type Logger struct {
	Format string `json:"format" validate:"omitempty,oneof=json text"`
	Level  string `json:"level"`
}

type YouTube struct {
	APIKey       string   `json:"apiKey"`
	ClientID     string   `json:"clientId"`
	ClientSecret string   `json:"clientSecret"`
	RedirectURI  string   `json:"redirectURI"`
	Scopes       []string `json:"scopes"`
	// RegionCodes and CategoryIDs drive the mostPopular chart fan-out.
	RegionCodes []string `json:"regionCodes" validate:"dive,len=2"`
	CategoryIDs []string `json:"categoryIds"`
	// SearchKeywords run as search.list queries ahead of the charts. Each costs 100 quota units.
	SearchKeywords    []string `json:"searchKeywords"`
	RequestsPerSecond float64  `json:"requestsPerSecond" validate:"gt=0"`
	MaxRetries        int      `json:"maxRetries" validate:"min=0"`
	Concurrency       int      `json:"concurrency" validate:"min=1"`
}

type Scraper struct {
	URL            string        `json:"url" validate:"required,url"`
	UserAgent      string        `json:"userAgent"`
	AcceptLanguage string        `json:"acceptLanguage"`
	Timeout        time.Duration `json:"timeout"`
}

type YtDlp struct {
	Binary          string   `json:"binary"`
	KoreanKeywords  []string `json:"koreanKeywords"`
	EnglishKeywords []string `json:"englishKeywords"`
	// KoreanShare is the fraction of the target taken from Korean keywords.
	KoreanShare float64 `json:"koreanShare" validate:"gte=0,lte=1"`
}

type Refresh struct {
	CheckInterval      time.Duration `json:"checkInterval" validate:"gt=0"`
	StalenessThreshold time.Duration `json:"stalenessThreshold" validate:"gt=0"`
	AdapterTimeout     time.Duration `json:"adapterTimeout" validate:"gt=0"`
	TargetCount        int           `json:"targetCount" validate:"min=1"`
	Mode               string        `json:"mode" validate:"oneof=failover merge"`
	Adapters           []string      `json:"adapters" validate:"dive,oneof=api scraper ytdlp"`
	FailoverThreshold  int           `json:"failoverThreshold" validate:"min=1"`
	FailoverCooldown   time.Duration `json:"failoverCooldown" validate:"gt=0"`
	OnStartup          bool          `json:"onStartup"`
}

type Store struct {
	// Backend is the primary snapshot store. Mirrors receive a copy of every write.
	Backend  string   `json:"backend" validate:"oneof=file postgres mssql redis"`
	Mirrors  []string `json:"mirrors" validate:"dive,oneof=file postgres mssql redis"`
	FilePath string   `json:"filePath" validate:"required"`
}

type History struct {
	Backend    string `json:"backend" validate:"oneof=memory mongo"`
	Collection string `json:"collection"`
	Capacity   int    `json:"capacity" validate:"min=1"`
}

var C Config

func init() {
	LoadEnvFromFile("config.env", ".env")
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
}

func setDefaults() {
	viper.SetDefault("app.port", 10001)
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("logger.level", "debug")

	viper.SetDefault("youtube.regionCodes", []string{"KR", "US", "JP"})
	viper.SetDefault("youtube.categoryIds", []string{"10", "20", "28", "27", "24", "26", "25", "17", "23", "22"})
	viper.SetDefault("youtube.searchKeywords", []string{"부업", "재테크", "자기계발"})
	viper.SetDefault("youtube.requestsPerSecond", 5.0)
	viper.SetDefault("youtube.maxRetries", 3)
	viper.SetDefault("youtube.concurrency", 4)

	viper.SetDefault("scraper.url", "https://www.youtube.com/feed/trending")
	viper.SetDefault("scraper.userAgent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	viper.SetDefault("scraper.acceptLanguage", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	viper.SetDefault("scraper.timeout", 30*time.Second)

	viper.SetDefault("ytdlp.binary", "yt-dlp")
	viper.SetDefault("ytdlp.koreanKeywords", []string{"부업", "재테크", "주식", "ChatGPT", "마케팅", "자기계발", "요리", "게임", "운동", "공부"})
	viper.SetDefault("ytdlp.englishKeywords", []string{"side hustle", "make money online", "AI tools", "productivity", "entrepreneur", "business", "investing", "crypto", "fitness", "cooking"})
	viper.SetDefault("ytdlp.koreanShare", 0.6)

	viper.SetDefault("refresh.checkInterval", 10*time.Minute)
	viper.SetDefault("refresh.stalenessThreshold", 2*time.Hour)
	viper.SetDefault("refresh.adapterTimeout", 3*time.Minute)
	viper.SetDefault("refresh.targetCount", 200)
	viper.SetDefault("refresh.mode", "failover")
	viper.SetDefault("refresh.adapters", []string{"api", "ytdlp", "scraper"})
	viper.SetDefault("refresh.failoverThreshold", 3)
	viper.SetDefault("refresh.failoverCooldown", 6*time.Hour)
	viper.SetDefault("refresh.onStartup", true)

	viper.SetDefault("store.backend", "file")
	viper.SetDefault("store.filePath", "data/trending_cache.json")

	viper.SetDefault("history.backend", "memory")
	viper.SetDefault("history.collection", "refresh_runs")
	viper.SetDefault("history.capacity", 50)

	viper.SetDefault("redisClient.key", "shorts-planner:trend-snapshot")
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found, using defaults")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
	logger.Configure(C.Logger.Format, C.Logger.Level)
}

// BindFlags lets command line flags override file and environment values.
// Flag names use dots for nesting, e.g. --refresh.mode=merge.
func BindFlags(fs *pflag.FlagSet) error {
	if err := viper.BindPFlags(fs); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	if err := viper.Unmarshal(&C); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	initDatabase(&C)
	initApp(&C)
	return nil
}

// Validate checks the loaded configuration before anything is wired.
func Validate(c *Config) error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = getEnv("DB_PORT", "5432")
	}
	if C.Database.Psql.SSLMode == "" {
		C.Database.Psql.SSLMode = getEnv("DB_SSLMODE", "disable")
	}

	// Azure SQL in production
	if C.Database.Mssql.Name == "" {
		C.Database.Mssql.Name = os.Getenv("MSSQL_DB_NAME")
	}
	if C.Database.Mssql.Host == "" {
		C.Database.Mssql.Host = getEnv("MSSQL_HOST", "localhost")
	}
	if C.Database.Mssql.Port == "" {
		C.Database.Mssql.Port = getEnv("MSSQL_PORT", "1433")
	}
	if C.Database.Mssql.User == "" {
		C.Database.Mssql.User = getEnv("MSSQL_USER", "sa")
	}
	if C.Database.Mssql.Password == "" {
		C.Database.Mssql.Password = os.Getenv("MSSQL_PASSWORD")
	}

	if C.Database.Mongo.Host == "" {
		C.Database.Mongo.Host = getEnv("MONGO_HOST", "localhost")
	}
	if C.Database.Mongo.Port == "" {
		C.Database.Mongo.Port = getEnv("MONGO_PORT", "27017")
	}
	if C.Database.Mongo.Name == "" {
		C.Database.Mongo.Name = getEnv("MONGO_DB_NAME", "shorts_planner")
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"psqlHost":  C.Database.Psql.Host,
		"mssqlHost": C.Database.Mssql.Host,
		"mongoHost": C.Database.Mongo.Host,
	}).Info("Database configuration")
}

func initApp(C *Config) {
	// SECRET_KEY signs admin tokens; env overrides the config file
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// APP_PORT -> PORT -> config -> default 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10001
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			C.App.TLSEnabled = true
		case "0", "false", "FALSE", "False":
			C.App.TLSEnabled = false
		}
	}
	if C.App.TLSCertFile == "" {
		C.App.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	}
	if C.App.TLSKeyFile == "" {
		C.App.TLSKeyFile = os.Getenv("TLS_KEY_FILE")
	}
	if C.App.TLSEnabled {
		logger.GetLogger().WithFields(map[string]interface{}{"cert": C.App.TLSCertFile, "key": C.App.TLSKeyFile}).Info("TLS enabled via configuration")
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; admin refresh endpoint will reject every request. Provide SECRET_KEY via environment.")
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

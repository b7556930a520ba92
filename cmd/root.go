package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "smartstudy"
)

type Config struct {
	Server   *ServerConfig   `mapstructure:"server"`
	Store    *StoreConfig    `mapstructure:"store"`
	Redis    *RedisConfig    `mapstructure:"redis"`
	AI       *AIConfig       `mapstructure:"ai"`
	Matching *MatchingConfig `mapstructure:"matching"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read-timeout"`
	WriteTimeout    time.Duration `mapstructure:"write-timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
	MaxBodyBytes    int64         `mapstructure:"max-body-bytes"`
}

type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver      string        `mapstructure:"driver"`
	Path        string        `mapstructure:"path"`
	DatabaseURL string        `mapstructure:"database-url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

type AIConfig struct {
	Provider     string        `mapstructure:"provider"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SingleFlight bool          `mapstructure:"single-flight"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
}

type MatchingConfig struct {
	// Similarity is "embedding" or "lexical".
	Similarity           string   `mapstructure:"similarity"`
	OmittedCriteria      string   `mapstructure:"omitted-criteria"`
	DefaultTopK          int      `mapstructure:"default-top-k"`
	ExcludedUniversities []string `mapstructure:"excluded-universities"`
}

var defaults = map[string]any{
	"server.addr":                    ":5000",
	"server.read-timeout":            "15s",
	"server.write-timeout":           "120s",
	"server.shutdown-timeout":        "10s",
	"server.max-body-bytes":          1 << 20,
	"store.driver":                   "sqlite",
	"store.path":                     "smartstudy.db",
	"store.database-url":             "",
	"store.timeout":                  "5s",
	"redis.url":                      "",
	"redis.ttl":                      "168h",
	"ai.provider":                    "gemini",
	"ai.timeout":                     "60s",
	"ai.single-flight":               true,
	"ai.gemini.api-key":              "",
	"ai.gemini.api-key-file":         "",
	"ai.gemini.model":                "",
	"ai.gemini.embedding-model":      "",
	"ai.gemini.max-retries":          3,
	"ai.gemini.max-log-length":       200,
	"matching.similarity":            "embedding",
	"matching.omitted-criteria":      "neutral",
	"matching.default-top-k":         5,
	"matching.excluded-universities": []string{},
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "smartstudy is the SmartStudy Abroad backend: program search, find-me matching and chat",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}

	viper.SetEnvPrefix("SMARTSTUDY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("store.database-url", "SMARTSTUDY_STORE_DATABASE_URL", "DATABASE_URL"); err != nil {
		log.Fatalf("binding DATABASE_URL environment variable: %v", err)
	}
	if err := viper.BindEnv("redis.url", "SMARTSTUDY_REDIS_URL", "REDIS_URL"); err != nil {
		log.Fatalf("binding REDIS_URL environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "SMARTSTUDY_AI_GEMINI_API_KEY_FILE", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is smartstudy.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Defaults and environment are enough without a config file, but an
		// explicitly given one must parse.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

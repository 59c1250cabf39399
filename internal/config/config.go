package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/david/grant-advisor/internal/matching"
	"github.com/spf13/viper"
)

const (
	// App names the default config file (grant-advisor.yaml) and is shown in
	// version output.
	App       = "grant-advisor"
	EnvPrefix = "ADVISOR"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Matching MatchingConfig `mapstructure:"matching"`
	AI       AIConfig       `mapstructure:"ai"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port        string `mapstructure:"port"`
	CORSOrigins string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type MatchingConfig struct {
	Weights    matching.Weights    `mapstructure:"weights"`
	Thresholds matching.Thresholds `mapstructure:"thresholds"`
	TopN       int                 `mapstructure:"top_n"`
}

// Engine returns the scoring configuration.
func (m MatchingConfig) Engine() matching.Config {
	return matching.Config{Weights: m.Weights, Thresholds: m.Thresholds}
}

type AIConfig struct {
	Provider string       `mapstructure:"provider"` // "ollama", "gemini" or "" for none
	Ollama   OllamaConfig `mapstructure:"ollama"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
	// Embeddings enables vector generation during ingestion.
	Embeddings bool `mapstructure:"embeddings"`
}

type OllamaConfig struct {
	Host       string `mapstructure:"host"`
	Model      string `mapstructure:"model"`
	EmbedModel string `mapstructure:"embed_model"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max_retries"`
}

type IngestConfig struct {
	Registry string `mapstructure:"registry"` // empty selects the embedded sources.yaml
}

type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	AdminSecret string `mapstructure:"admin_secret"`
}

type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// legacyEnv maps keys to the plain environment variables deployments already
// set, in addition to the ADVISOR_ prefixed form.
var legacyEnv = map[string]string{
	"server.port":         "PORT",
	"server.cors_origins": "CORS_ORIGINS",
	"database.url":        "DATABASE_URL",
	"ai.ollama.host":      "OLLAMA_HOST",
	"ai.gemini.api_key":   "GEMINI_API_KEY",
	"auth.jwt_secret":     "JWT_SECRET",
	"auth.admin_secret":   "ADMIN_SECRET",
}

func setDefaults(v *viper.Viper) {
	w := matching.DefaultWeights()
	th := matching.DefaultThresholds()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", "http://localhost:3000")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("matching.weights.keyword", w.Keyword)
	v.SetDefault("matching.weights.stage", w.Stage)
	v.SetDefault("matching.weights.region", w.Region)
	v.SetDefault("matching.weights.budget", w.Budget)
	v.SetDefault("matching.weights.use", w.Use)
	v.SetDefault("matching.thresholds.feasible", th.Feasible)
	v.SetDefault("matching.thresholds.caution", th.Caution)
	v.SetDefault("matching.top_n", 10)
	v.SetDefault("ai.provider", "")
	v.SetDefault("ai.embeddings", false)
	v.SetDefault("ai.ollama.host", "http://localhost:11434")
	v.SetDefault("ai.ollama.model", "llama3.2:latest")
	v.SetDefault("ai.ollama.embed_model", "nomic-embed-text")
	v.SetDefault("ai.gemini.api_key", "")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.max_retries", 3)
	v.SetDefault("ingest.registry", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.admin_secret", "")
	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
}

// New returns a viper instance with defaults and environment bindings but no
// file read yet. Commands bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		// The prefixed variable wins over the legacy one.
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
	return v
}

// Load reads cfgFile, or grant-advisor.yaml from the working directory when
// cfgFile is empty. A missing default file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(App)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Matching.Engine().Validate(); err != nil {
		return nil, fmt.Errorf("matching: %w", err)
	}
	if cfg.Matching.TopN <= 0 {
		cfg.Matching.TopN = 10
	}
	return &cfg, nil
}

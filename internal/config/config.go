package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	LLM        LLMConfig
	Embedding  EmbeddingConfig
	Chunking   ChunkingConfig
	Generation GenerationConfig
	Grading    GradingConfig
	Queue      QueueConfig
	Logger     LoggerConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Path string // sqlite file path
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type LLMConfig struct {
	OpenAIAPIKey string
	ChatModel    string
	Timeout      time.Duration
}

type EmbeddingConfig struct {
	Source    string // "openai" | "ollama"
	Model     string
	BatchSize int
	OllamaURL string
	CacheTTL  time.Duration
}

type ChunkingConfig struct {
	MaxChars int
}

type GenerationConfig struct {
	CandidateCap int // max chunks offered to the model
	ChunkTextCap int // per-chunk character cap in the prompt
}

type GradingConfig struct {
	EvidenceTextCap int // per-chunk character cap for grading evidence
}

type QueueConfig struct {
	Concurrency  int
	MaxAttempts  int
	BackoffBase  time.Duration
	PollInterval time.Duration
}

type LoggerConfig struct {
	Env   string // "production" | "development"
	Level string // "debug" | "info"
}

// Load reads config.yaml (from the working directory or ./config) and
// applies environment overrides for the values that differ per deployment.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine: defaults plus env cover local runs.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetInt("server.port"),
			ReadTimeout:  viper.GetDuration("server.read_timeout") * time.Second,
			WriteTimeout: viper.GetDuration("server.write_timeout") * time.Second,
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		LLM: LLMConfig{
			OpenAIAPIKey: viper.GetString("llm.openai_api_key"),
			ChatModel:    viper.GetString("llm.chat_model"),
			Timeout:      viper.GetDuration("llm.timeout") * time.Second,
		},
		Embedding: EmbeddingConfig{
			Source:    viper.GetString("embedding.source"),
			Model:     viper.GetString("embedding.model"),
			BatchSize: viper.GetInt("embedding.batch_size"),
			OllamaURL: viper.GetString("embedding.ollama_url"),
			CacheTTL:  viper.GetDuration("embedding.cache_ttl") * time.Hour,
		},
		Chunking: ChunkingConfig{
			MaxChars: viper.GetInt("chunking.max_chars"),
		},
		Generation: GenerationConfig{
			CandidateCap: viper.GetInt("generation.candidate_cap"),
			ChunkTextCap: viper.GetInt("generation.chunk_text_cap"),
		},
		Grading: GradingConfig{
			EvidenceTextCap: viper.GetInt("grading.evidence_text_cap"),
		},
		Queue: QueueConfig{
			Concurrency:  viper.GetInt("queue.concurrency"),
			MaxAttempts:  viper.GetInt("queue.max_attempts"),
			BackoffBase:  viper.GetDuration("queue.backoff_base") * time.Second,
			PollInterval: viper.GetDuration("queue.poll_interval") * time.Second,
		},
		Logger: LoggerConfig{
			Env:   viper.GetString("logger.env"),
			Level: viper.GetString("logger.level"),
		},
	}

	// Secrets and endpoints come from the environment when set.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIAPIKey = key
	}
	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		cfg.Redis.Address = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if path := os.Getenv("DATABASE_PATH"); path != "" {
		cfg.Database.Path = path
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Logger.Env = env
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8090)
	viper.SetDefault("server.read_timeout", 20)
	viper.SetDefault("server.write_timeout", 20)
	viper.SetDefault("database.path", "examcraft.db")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("llm.chat_model", "gpt-4o-mini")
	viper.SetDefault("llm.timeout", 60)
	viper.SetDefault("embedding.source", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.batch_size", 64)
	viper.SetDefault("embedding.ollama_url", "http://localhost:11434")
	viper.SetDefault("embedding.cache_ttl", 168)
	viper.SetDefault("chunking.max_chars", 1800)
	viper.SetDefault("generation.candidate_cap", 24)
	viper.SetDefault("generation.chunk_text_cap", 1200)
	viper.SetDefault("grading.evidence_text_cap", 1200)
	viper.SetDefault("queue.concurrency", 4)
	viper.SetDefault("queue.max_attempts", 3)
	viper.SetDefault("queue.backoff_base", 1)
	viper.SetDefault("queue.poll_interval", 1)
	viper.SetDefault("logger.env", "development")
	viper.SetDefault("logger.level", "info")
}

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Milvus    MilvusConfig
	Vector    VectorConfig
	Embedding EmbeddingConfig
	Ingestion IngestionConfig
	Query     QueryConfig
	Feedback  FeedbackConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type MilvusConfig struct {
	Endpoint string
	APIKey   string
}

type VectorConfig struct {
	Backend        string
	CollectionName string
	Dim            int
}

type EmbeddingConfig struct {
	Provider   string
	APIKey     string
	Model      string
	FastModel  string
	Quality    string
	Dim        int
	TimeoutSec int
}

type IngestionConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	MaxDocumentBytes int
}

type QueryConfig struct {
	TopK                int
	ConfidenceThreshold float64
	CacheBackend        string
	CacheCapacity       int
	CacheTTLHours       int
}

type FeedbackConfig struct {
	Dir             string
	CommonIssuesTopN int
	RecentWindow    int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/doc-ingestion")

	viper.SetEnvPrefix("DOCQA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/docqa.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("milvus.endpoint", "localhost:19530")

	viper.SetDefault("vector.backend", "memory")
	viper.SetDefault("vector.collectionName", "documents")
	viper.SetDefault("vector.dim", 384)

	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.fastModel", "text-embedding-3-small")
	viper.SetDefault("embedding.quality", "fast")
	viper.SetDefault("embedding.dim", 384)
	viper.SetDefault("embedding.timeoutSec", 15)

	viper.SetDefault("ingestion.chunkSize", 500)
	viper.SetDefault("ingestion.chunkOverlap", 50)
	viper.SetDefault("ingestion.maxDocumentBytes", 104857600)

	viper.SetDefault("query.topK", 5)
	viper.SetDefault("query.confidenceThreshold", 0.5)
	viper.SetDefault("query.cacheBackend", "memory")
	viper.SetDefault("query.cacheCapacity", 1000)
	viper.SetDefault("query.cacheTTLHours", 24)

	viper.SetDefault("feedback.dir", "./feedback_data")
	viper.SetDefault("feedback.commonIssuesTopN", 5)
	viper.SetDefault("feedback.recentWindow", 100)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}

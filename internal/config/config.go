/**
 * Configuration for the ID verification service
 *
 * Loads configuration from environment variables (optionally seeded from a
 * .env file by the caller via godotenv).
 */

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds service configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	OCR       OCRConfig
	NER       NERConfig
	RAG       RAGConfig
	Qdrant    QdrantConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Telemetry TelemetryConfig

	// PostgreSQL audit log; empty disables it
	DatabaseURL string
}

type ServerConfig struct {
	Host           string
	Port           string
	MaxUploadSize  int64
	AllowedFormats []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// StorageConfig selects where raw and processed images live
type StorageConfig struct {
	Backend      string // "local" or "s3"
	RawDir       string
	ProcessedDir string

	S3Endpoint        string
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

type OCRConfig struct {
	Language            string
	TessdataPrefix      string
	ConfidenceThreshold float64
	RequestsPerSecond   float64 // 0 disables limiting
	Burst               int
}

type NERConfig struct {
	Provider  string // "spacy" (default) or "prose"
	SpacyURL  string
	ModelPath string // optional prose model directory
}

type RAGConfig struct {
	PDFFileName       string
	BaseURL           string
	Token             string
	EmbeddingModel    string
	EmbeddingDims     int
	GenerationModel   string
	MaxTokens         int
	TopK              int
	SentencesPerChunk int
}

type QdrantConfig struct {
	Address    string
	Collection string
	Recreate   bool
}

type RedisConfig struct {
	URL      string // empty disables the answer cache
	CacheTTL time.Duration
}

type QueueConfig struct {
	RedisURL    string // empty disables async indexing
	Name        string
	Concurrency int
}

type TelemetryConfig struct {
	Enabled     bool
	ServiceName string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetString("SERVER_PORT"),
			MaxUploadSize:  v.GetInt64("MAX_UPLOAD_SIZE"),
			AllowedFormats: normalizeFormats(v.GetStringSlice("ALLOWED_FORMATS")),
			ReadTimeout:    v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetDuration("SERVER_WRITE_TIMEOUT"),
		},
		Storage: StorageConfig{
			Backend:           strings.ToLower(v.GetString("STORAGE_BACKEND")),
			RawDir:            v.GetString("RAW_DATA_FOLDER"),
			ProcessedDir:      v.GetString("PROCESSED_DATA_FOLDER"),
			S3Endpoint:        v.GetString("S3_ENDPOINT"),
			S3Bucket:          v.GetString("S3_BUCKET_NAME"),
			S3Region:          v.GetString("S3_REGION"),
			S3AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			S3SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
		},
		OCR: OCRConfig{
			Language:            v.GetString("OCR_LANGUAGE"),
			TessdataPrefix:      v.GetString("TESSDATA_PREFIX"),
			ConfidenceThreshold: v.GetFloat64("OCR_CONFIDENCE_THRESHOLD"),
			RequestsPerSecond:   v.GetFloat64("OCR_REQUESTS_PER_SECOND"),
			Burst:               v.GetInt("OCR_BURST"),
		},
		NER: NERConfig{
			Provider:  strings.ToLower(v.GetString("NER_PROVIDER")),
			SpacyURL:  v.GetString("NER_SPACY_URL"),
			ModelPath: v.GetString("NER_MODEL_PATH"),
		},
		RAG: RAGConfig{
			PDFFileName:       v.GetString("PDF_FILE_NAME"),
			BaseURL:           v.GetString("LLM_BASE_URL"),
			Token:             v.GetString("HUGGINGFACE_TOKEN"),
			EmbeddingModel:    v.GetString("EMBEDDING_MODEL"),
			EmbeddingDims:     v.GetInt("EMBEDDING_DIMENSIONS"),
			GenerationModel:   v.GetString("GENERATION_MODEL"),
			MaxTokens:         v.GetInt("GENERATION_MAX_TOKENS"),
			TopK:              v.GetInt("RETRIEVER_TOP_K"),
			SentencesPerChunk: v.GetInt("SPLITTER_SENTENCES"),
		},
		Qdrant: QdrantConfig{
			Address:    v.GetString("QDRANT_URL"),
			Collection: v.GetString("QDRANT_COLLECTION"),
			Recreate:   v.GetBool("QDRANT_RECREATE"),
		},
		Redis: RedisConfig{
			URL:      v.GetString("REDIS_URL"),
			CacheTTL: v.GetDuration("ANSWER_CACHE_TTL"),
		},
		Queue: QueueConfig{
			RedisURL:    v.GetString("QUEUE_REDIS_URL"),
			Name:        v.GetString("QUEUE_NAME"),
			Concurrency: v.GetInt("WORKER_CONCURRENCY"),
		},
		Telemetry: TelemetryConfig{
			Enabled:     v.GetBool("TELEMETRY"),
			ServiceName: v.GetString("SERVICE_NAME"),
		},
		DatabaseURL: v.GetString("DATABASE_URL"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	if cfg.Storage.Backend == "local" {
		if err := createDirs(cfg); err != nil {
			return nil, fmt.Errorf("failed to create directories: %w", err)
		}
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "5000")
	v.SetDefault("MAX_UPLOAD_SIZE", 5*1024*1024) // 5MB
	v.SetDefault("ALLOWED_FORMATS", []string{".jpeg", ".jpg", ".png"})
	v.SetDefault("SERVER_READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute) // OCR + NER can take a while

	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("RAW_DATA_FOLDER", "./data/raw")
	v.SetDefault("PROCESSED_DATA_FOLDER", "./data/processed")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_BUCKET_NAME", "idverify")

	v.SetDefault("OCR_LANGUAGE", "eng")
	v.SetDefault("OCR_CONFIDENCE_THRESHOLD", 0.25)
	v.SetDefault("OCR_REQUESTS_PER_SECOND", 0)
	v.SetDefault("OCR_BURST", 1)

	v.SetDefault("NER_PROVIDER", "spacy")
	v.SetDefault("NER_SPACY_URL", "http://localhost:8080")

	v.SetDefault("LLM_BASE_URL", "https://router.huggingface.co/v1/")
	v.SetDefault("EMBEDDING_MODEL", "BAAI/bge-small-en-v1.5")
	v.SetDefault("EMBEDDING_DIMENSIONS", 384)
	v.SetDefault("GENERATION_MODEL", "HuggingFaceH4/zephyr-7b-beta")
	v.SetDefault("GENERATION_MAX_TOKENS", 512)
	v.SetDefault("RETRIEVER_TOP_K", 3)
	v.SetDefault("SPLITTER_SENTENCES", 2)

	v.SetDefault("QDRANT_URL", "localhost:6334")
	v.SetDefault("QDRANT_COLLECTION", "reference_documents")
	v.SetDefault("QDRANT_RECREATE", true)

	v.SetDefault("ANSWER_CACHE_TTL", time.Hour)

	v.SetDefault("QUEUE_NAME", "idverify:index")
	v.SetDefault("WORKER_CONCURRENCY", 2)

	v.SetDefault("SERVICE_NAME", "idverify")
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Server.MaxUploadSize < 1024 || c.Server.MaxUploadSize > 100*1024*1024 { // 1KB to 100MB
		return fmt.Errorf("MAX_UPLOAD_SIZE must be between 1KB and 100MB, got %d", c.Server.MaxUploadSize)
	}

	if len(c.Server.AllowedFormats) == 0 {
		return fmt.Errorf("ALLOWED_FORMATS must list at least one extension")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.RawDir == "" || c.Storage.ProcessedDir == "" {
			return fmt.Errorf("RAW_DATA_FOLDER and PROCESSED_DATA_FOLDER are required")
		}
		if c.Storage.RawDir == c.Storage.ProcessedDir {
			return fmt.Errorf("RAW_DATA_FOLDER and PROCESSED_DATA_FOLDER must differ")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET_NAME is required for the s3 backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be local or s3, got %q", c.Storage.Backend)
	}

	if c.OCR.ConfidenceThreshold < 0 || c.OCR.ConfidenceThreshold >= 1 {
		return fmt.Errorf("OCR_CONFIDENCE_THRESHOLD must be in [0, 1), got %v", c.OCR.ConfidenceThreshold)
	}

	switch c.NER.Provider {
	case "prose":
	case "spacy":
		if c.NER.SpacyURL == "" {
			return fmt.Errorf("NER_SPACY_URL is required for the spacy provider")
		}
	default:
		return fmt.Errorf("NER_PROVIDER must be prose or spacy, got %q", c.NER.Provider)
	}

	if c.RAG.EmbeddingDims < 1 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.RAG.EmbeddingDims)
	}

	if c.RAG.TopK < 1 || c.RAG.TopK > 100 {
		return fmt.Errorf("RETRIEVER_TOP_K must be between 1 and 100, got %d", c.RAG.TopK)
	}

	if c.RAG.SentencesPerChunk < 1 {
		return fmt.Errorf("SPLITTER_SENTENCES must be positive, got %d", c.RAG.SentencesPerChunk)
	}

	if c.Queue.Concurrency < 1 || c.Queue.Concurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.Queue.Concurrency)
	}

	return nil
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// normalizeFormats accepts comma or whitespace separated extensions; viper
// only splits env values on whitespace
func normalizeFormats(formats []string) []string {
	out := make([]string, 0, len(formats))
	for _, entry := range formats {
		for _, f := range strings.Split(entry, ",") {
			f = strings.ToLower(strings.TrimSpace(f))
			if f == "" {
				continue
			}
			if !strings.HasPrefix(f, ".") {
				f = "." + f
			}
			out = append(out, f)
		}
	}
	return out
}

func createDirs(cfg *Config) error {
	dirs := []string{
		cfg.Storage.RawDir,
		cfg.Storage.ProcessedDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

type Config struct {
	Static      StaticConfig
	Database    DatabaseConfig
	FaceAPI     FaceAPIConfig
	Recognition RecognitionConfig
}

type StaticConfig struct {
	Dir string // Directory for uploaded and cropped face images
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
	HNSWEnabled  bool   // Build an in-memory HNSW index over stored faces
}

type FaceAPIConfig struct {
	URL string // Base URL of the face analysis service (default http://localhost:8000)
}

type RecognitionConfig struct {
	DetectorBackend string  // Face detector backend name (default retinaface)
	EmbeddingModel  string  // Embedding model name (default Facenet512)
	Dim             int     // Embedding dimensionality, derived from the model
	MatchThreshold  float64 // Minimum cosine similarity for a match (default 0.5)
}

type modelsConfig struct {
	Models map[string]int `yaml:"models"`
}

const (
	defaultDetectorBackend = "retinaface"
	defaultEmbeddingModel  = "Facenet512"
	defaultMatchThreshold  = 0.5
)

// envStr reads an environment variable, falling back to a default when unset.
func envStr(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean flag.
func envBool(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}

// databaseURL returns DATABASE_URL when set, otherwise composes a connection
// URL from the individual POSTGRES_* variables.
func databaseURL() string {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u
	}
	user := envStr("POSTGRES_USER", "postgres")
	password := envStr("POSTGRES_PASSWORD", "password")
	host := envStr("POSTGRES_HOST", "db")
	port := envStr("POSTGRES_PORT", "5432")
	dbname := envStr("POSTGRES_DB", "db_face_recog")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		url.QueryEscape(user), url.QueryEscape(password), host, port, dbname)
}

// ModelDim returns the embedding dimensionality for a model name from the
// embedded model table.
func ModelDim(model string) (int, bool) {
	var mc modelsConfig
	if err := yaml.Unmarshal(modelsYAML, &mc); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}
	dim, ok := mc.Models[model]
	return dim, ok
}

func Load() (*Config, error) {
	model := envStr("EMBEDDING_MODEL", defaultEmbeddingModel)

	dim, known := ModelDim(model)
	if override := envInt("EMBEDDING_DIM", 0); override > 0 {
		dim = override
	} else if !known {
		return nil, fmt.Errorf("unknown embedding model %q and EMBEDDING_DIM not set", model)
	}

	return &Config{
		Static: StaticConfig{
			Dir: envStr("STATIC_DIR", "static"),
		},
		Database: DatabaseConfig{
			URL:          databaseURL(),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWEnabled:  envBool("HNSW_INDEX"),
		},
		FaceAPI: FaceAPIConfig{
			URL: envStr("FACE_API_URL", "http://localhost:8000"),
		},
		Recognition: RecognitionConfig{
			DetectorBackend: envStr("DETECTOR_BACKEND", defaultDetectorBackend),
			EmbeddingModel:  model,
			Dim:             dim,
			MatchThreshold:  envFloat("MATCH_THRESHOLD", defaultMatchThreshold),
		},
	}, nil
}

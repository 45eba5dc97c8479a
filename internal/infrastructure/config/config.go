package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Mongo    MongoConfig
	Redis    RedisConfig
	Matching MatchingConfig
	Geo      GeoConfig
	Notify   NotifyConfig
	Ledger   LedgerConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=delivery_engine"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

// MatchingConfig tunes candidate search and scoring. The two weights are
// normalized at use, so they only need to be non-negative.
type MatchingConfig struct {
	MaxDistanceKm   float64       `env:"MATCH_MAX_DISTANCE_KM, default=50"`
	ProximityWeight float64       `env:"MATCH_PROXIMITY_WEIGHT, default=0.7"`
	PriceWeight     float64       `env:"MATCH_PRICE_WEIGHT,     default=0.3"`
	CandidateLimit  int           `env:"MATCH_CANDIDATE_LIMIT,  default=200"`
	ProposalLimit   int           `env:"MATCH_PROPOSAL_LIMIT,   default=10"`
	ProposalTTL     time.Duration `env:"MATCH_PROPOSAL_TTL,     default=24h"`
	// AutoAcceptScore above which a proposal is accepted without carrier
	// action. Zero disables auto-accept.
	AutoAcceptScore float64 `env:"MATCH_AUTO_ACCEPT_SCORE, default=0"`
}

type GeoConfig struct {
	CacheSize int `env:"GEO_CACHE_SIZE, default=4096"`
}

type NotifyConfig struct {
	Workers int `env:"NOTIFY_WORKERS, default=8"`
}

type LedgerConfig struct {
	// URL of the wallet service payment-release endpoint. Empty means the
	// trigger logs entries instead of posting them.
	URL string `env:"LEDGER_URL"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

package config

import (
	"time"

	"github.com/screenwire/bars/internal/confload"
)

// Default configuration values.
const (
	defaultServiceName       = "bars"
	defaultServiceVersion    = "1.0.0"
	defaultServicePort       = 8085
	defaultConcurrency       = 8
	defaultBatchSize         = 100
	defaultPollIntervalSec   = 30
	defaultExtractionsPerSec = 20.0

	defaultDBHost         = "localhost"
	defaultDBPort         = 5432
	defaultDBUser         = "postgres"
	defaultDBName         = "bars"
	defaultDBSSLMode      = "disable"
	defaultDBMaxConns     = 25
	defaultDBMaxIdleConns = 5

	defaultESURL          = "http://localhost:9200"
	defaultESTimeoutSec   = 30
	defaultESArticleIndex = "articles"

	defaultNERServiceURL = "http://ner:8086"
	defaultNERTimeoutSec = 10

	defaultWindowChars         = 300
	defaultAliasFuzzyThreshold = 0.82
	defaultMinMentionConf      = 0.25
	defaultNERWeight           = 0.5
	defaultKeywordWeight       = 0.3
	defaultProximityWeight     = 0.2
	defaultLexiconOnlyProb     = 0.6

	defaultDateToleranceDays   = 3
	defaultDateFallbackPenalty = 0.15
	defaultAuditMargin         = 0.1
	defaultMaxFuzzyCandidates  = 256

	defaultDecayKind       = "exponential"
	defaultDecayHalfLife   = 60 * 24 * time.Hour
	defaultDecayHorizon    = 180 * 24 * time.Hour
	defaultGradeWindowDays = 365
	defaultMinTypeWeight   = 0.4

	defaultLogLevel = "info"
)

// Config holds all configuration for the BARS services.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Database      DatabaseConfig      `yaml:"database"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	NER           NERConfig           `yaml:"ner"`
	Extraction    ExtractionConfig    `yaml:"extraction"`
	Resolution    ResolutionConfig    `yaml:"resolution"`
	Grading       GradingConfig       `yaml:"grading"`
	Lexicon       LexiconConfig       `yaml:"lexicon"`
	Logging       LoggingConfig       `yaml:"logging"`
	Auth          AuthConfig          `yaml:"auth"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name         string        `yaml:"name"`
	Version      string        `yaml:"version"`
	Port         int           `env:"BARS_PORT"        yaml:"port"`
	Debug        bool          `env:"APP_DEBUG"        yaml:"debug"`
	Concurrency  int           `env:"BARS_CONCURRENCY" yaml:"concurrency"`
	BatchSize    int           `yaml:"batch_size"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// ExtractionsPerSecond throttles extraction workers; 0 falls back to
	// the default, negative disables throttling.
	ExtractionsPerSecond float64 `yaml:"extractions_per_second"`
}

// DatabaseConfig holds Postgres configuration.
type DatabaseConfig struct {
	Host            string        `env:"POSTGRES_HOST"     yaml:"host"`
	Port            int           `env:"POSTGRES_PORT"     yaml:"port"`
	User            string        `env:"POSTGRES_USER"     yaml:"user"`
	Password        string        `env:"POSTGRES_PASSWORD" yaml:"password"`
	Database        string        `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode         string        `env:"POSTGRES_SSLMODE"  yaml:"sslmode"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxIdleConns    int           `yaml:"max_idle_connections"`
	ConnMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// ElasticsearchConfig holds the article-store configuration.
type ElasticsearchConfig struct {
	URL          string        `env:"ELASTICSEARCH_URL" yaml:"url"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Timeout      time.Duration `yaml:"timeout"`
	ArticleIndex string        `yaml:"article_index"`
}

// NERConfig holds the named-entity recognizer service configuration.
// The recognizer is pluggable; when disabled the extractor degrades to
// lexicon-only tagging.
type NERConfig struct {
	Enabled    bool          `env:"NER_ENABLED"     yaml:"enabled"`
	ServiceURL string        `env:"NER_SERVICE_URL" yaml:"service_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ExtractionConfig tunes the entity extractor.
type ExtractionConfig struct {
	// WindowChars is how far around an organization span the extractor
	// scans for deal/genre/region keywords.
	WindowChars int `yaml:"window_chars"`
	// AliasFuzzyThreshold is the minimum similarity for the approximate
	// alias match fallback (0..1).
	AliasFuzzyThreshold float64 `yaml:"alias_fuzzy_threshold"`
	// MinMentionConfidence discards weaker mentions (metric, not error).
	MinMentionConfidence float64 `yaml:"min_mention_confidence"`
	// Confidence combination weights.
	NERWeight       float64 `yaml:"ner_weight"`
	KeywordWeight   float64 `yaml:"keyword_weight"`
	ProximityWeight float64 `yaml:"proximity_weight"`
	// LexiconOnlyProbability stands in for the NER tag probability when
	// an organization was found by lexicon match alone.
	LexiconOnlyProbability float64 `yaml:"lexicon_only_probability"`
}

// ResolutionConfig tunes the mention resolver.
type ResolutionConfig struct {
	// DateToleranceDays merges mentions whose deal dates differ by at
	// most this many days.
	DateToleranceDays int `yaml:"date_tolerance_days"`
	// DateFallbackPenalty is subtracted from a mention's confidence when
	// its deal date had to fall back to the article's published_at.
	DateFallbackPenalty float64 `yaml:"date_fallback_penalty"`
	// AuditMargin: when a losing attribute value sits within this margin
	// of the winner's confidence, the merged record is flagged for audit.
	AuditMargin float64 `yaml:"audit_margin"`
	// AliasFuzzyThreshold is the registry's approximate-match cutoff.
	AliasFuzzyThreshold float64 `yaml:"alias_fuzzy_threshold"`
	// MaxFuzzyCandidates caps how many aliases the fallback compares.
	MaxFuzzyCandidates int `yaml:"max_fuzzy_candidates"`
}

// GradingConfig tunes the grading engine.
type GradingConfig struct {
	// TypeWeights maps deal types to positive weights. Unknown types get
	// MinTypeWeight.
	TypeWeights   map[string]float64 `yaml:"type_weights"`
	MinTypeWeight float64            `yaml:"min_type_weight"`
	// DecayKind selects the recency curve: "exponential" or "linear".
	DecayKind     string        `yaml:"decay_kind"`
	DecayHalfLife time.Duration `yaml:"decay_half_life"`
	DecayHorizon  time.Duration `yaml:"decay_horizon"`
	// Bands maps grades to ascending inclusive lower-bound thresholds.
	// Scores below every threshold grade F.
	Bands      map[string]float64 `yaml:"bands"`
	WindowDays int                `yaml:"window_days"`
}

// LexiconConfig optionally overrides the built-in keyword lists. Empty
// sections keep the defaults.
type LexiconConfig struct {
	Broadcasters      []string            `yaml:"broadcasters"`
	NonBroadcasterOrg []string            `yaml:"non_broadcaster_orgs"`
	DealKeywords      map[string][]string `yaml:"deal_keywords"`
	GenreKeywords     map[string][]string `yaml:"genre_keywords"`
	RegionKeywords    map[string][]string `yaml:"region_keywords"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level       string `env:"LOG_LEVEL" yaml:"level"`
	Development bool   `yaml:"development"`
}

// AuthConfig holds API authentication configuration.
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
}

// Load loads configuration from the specified path with defaults applied.
func Load(path string) (*Config, error) {
	return confload.LoadWithDefaults[Config](path, setDefaults)
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setElasticsearchDefaults(&cfg.Elasticsearch)
	setNERDefaults(&cfg.NER)
	setExtractionDefaults(&cfg.Extraction)
	setResolutionDefaults(&cfg.Resolution)
	setGradingDefaults(&cfg.Grading)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogLevel
	}
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}
	if s.Concurrency == 0 {
		s.Concurrency = defaultConcurrency
	}
	if s.BatchSize == 0 {
		s.BatchSize = defaultBatchSize
	}
	if s.PollInterval == 0 {
		s.PollInterval = defaultPollIntervalSec * time.Second
	}
	if s.ExtractionsPerSecond == 0 {
		s.ExtractionsPerSecond = defaultExtractionsPerSec
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = time.Hour
	}
}

func setElasticsearchDefaults(e *ElasticsearchConfig) {
	if e.URL == "" {
		e.URL = defaultESURL
	}
	if e.Timeout == 0 {
		e.Timeout = defaultESTimeoutSec * time.Second
	}
	if e.ArticleIndex == "" {
		e.ArticleIndex = defaultESArticleIndex
	}
}

func setNERDefaults(n *NERConfig) {
	if n.ServiceURL == "" {
		n.ServiceURL = defaultNERServiceURL
	}
	if n.Timeout == 0 {
		n.Timeout = defaultNERTimeoutSec * time.Second
	}
}

func setExtractionDefaults(e *ExtractionConfig) {
	if e.WindowChars == 0 {
		e.WindowChars = defaultWindowChars
	}
	if e.AliasFuzzyThreshold == 0 {
		e.AliasFuzzyThreshold = defaultAliasFuzzyThreshold
	}
	if e.MinMentionConfidence == 0 {
		e.MinMentionConfidence = defaultMinMentionConf
	}
	if e.NERWeight == 0 {
		e.NERWeight = defaultNERWeight
	}
	if e.KeywordWeight == 0 {
		e.KeywordWeight = defaultKeywordWeight
	}
	if e.ProximityWeight == 0 {
		e.ProximityWeight = defaultProximityWeight
	}
	if e.LexiconOnlyProbability == 0 {
		e.LexiconOnlyProbability = defaultLexiconOnlyProb
	}
}

func setResolutionDefaults(r *ResolutionConfig) {
	if r.DateToleranceDays == 0 {
		r.DateToleranceDays = defaultDateToleranceDays
	}
	if r.DateFallbackPenalty == 0 {
		r.DateFallbackPenalty = defaultDateFallbackPenalty
	}
	if r.AuditMargin == 0 {
		r.AuditMargin = defaultAuditMargin
	}
	if r.AliasFuzzyThreshold == 0 {
		r.AliasFuzzyThreshold = defaultAliasFuzzyThreshold
	}
	if r.MaxFuzzyCandidates == 0 {
		r.MaxFuzzyCandidates = defaultMaxFuzzyCandidates
	}
}

func setGradingDefaults(g *GradingConfig) {
	if len(g.TypeWeights) == 0 {
		g.TypeWeights = map[string]float64{
			"acquisition":   1.0,
			"co-production": 1.1,
			"licensing":     0.9,
			"output-deal":   0.95,
			"renewal":       0.8,
			"other":         0.5,
		}
	}
	if g.MinTypeWeight == 0 {
		g.MinTypeWeight = defaultMinTypeWeight
	}
	if g.DecayKind == "" {
		g.DecayKind = defaultDecayKind
	}
	if g.DecayHalfLife == 0 {
		g.DecayHalfLife = defaultDecayHalfLife
	}
	if g.DecayHorizon == 0 {
		g.DecayHorizon = defaultDecayHorizon
	}
	if len(g.Bands) == 0 {
		g.Bands = map[string]float64{
			"A": 20,
			"B": 10,
			"C": 5,
			"D": 1,
		}
	}
	if g.WindowDays == 0 {
		g.WindowDays = defaultGradeWindowDays
	}
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/relief-dispatch/pkg/enums"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Dispatch     DispatchConfig
	Matching     MatchingConfig
	Duplicates   DuplicatesConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Dispatch.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Duplicates.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RELIEF_APP_ENV" required:"true"`
	Port         string `envconfig:"RELIEF_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"RELIEF_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RELIEF_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"RELIEF_LOG_FORMAT" default:"json"`
	LogNoColor   bool   `envconfig:"RELIEF_LOG_NO_COLOR" default:"false"`

	CORSOrigins []string `envconfig:"RELIEF_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RELIEF_SERVICE_KIND" default:"dispatch-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"RELIEF_DB_DSN"`
	Driver string `envconfig:"RELIEF_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RELIEF_DB_HOST"`
	LegacyPort     int    `envconfig:"RELIEF_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RELIEF_DB_USER"`
	LegacyPassword string `envconfig:"RELIEF_DB_PASSWORD"`
	LegacyName     string `envconfig:"RELIEF_DB_NAME"`
	LegacySSLMode  string `envconfig:"RELIEF_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RELIEF_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RELIEF_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RELIEF_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RELIEF_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RELIEF_REDIS_URL"`
	Address      string        `envconfig:"RELIEF_REDIS_ADDR"`
	Password     string        `envconfig:"RELIEF_REDIS_PASSWORD"`
	DB           int           `envconfig:"RELIEF_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RELIEF_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RELIEF_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RELIEF_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RELIEF_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RELIEF_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RELIEF_AUTO_MIGRATE" default:"false"`
	Broadcast   bool `envconfig:"RELIEF_BROADCAST_ENABLED" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"RELIEF_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	BroadcastTopic string `envconfig:"RELIEF_PUBSUB_BROADCAST_TOPIC" default:"relief-dispatch-events"`
}

// DispatchConfig tunes the priority scheduler.
type DispatchConfig struct {
	OrderSOS      int `envconfig:"RELIEF_DISPATCH_ORDER_SOS" default:"100"`
	OrderCritical int `envconfig:"RELIEF_DISPATCH_ORDER_CRITICAL" default:"80"`
	OrderHigh     int `envconfig:"RELIEF_DISPATCH_ORDER_HIGH" default:"50"`
	OrderMedium   int `envconfig:"RELIEF_DISPATCH_ORDER_MEDIUM" default:"20"`
	OrderLow      int `envconfig:"RELIEF_DISPATCH_ORDER_LOW" default:"10"`
	OrderDefault  int `envconfig:"RELIEF_DISPATCH_ORDER_DEFAULT" default:"15"`

	MaxAttempts       int           `envconfig:"RELIEF_DISPATCH_MAX_ATTEMPTS" default:"3"`
	RetryOrderPenalty int           `envconfig:"RELIEF_DISPATCH_RETRY_ORDER_PENALTY" default:"5"`
	RetryBaseDelay    time.Duration `envconfig:"RELIEF_DISPATCH_RETRY_BASE_DELAY" default:"2s"`
	RetryMaxDelay     time.Duration `envconfig:"RELIEF_DISPATCH_RETRY_MAX_DELAY" default:"1m"`
	BackfillInterval  time.Duration `envconfig:"RELIEF_DISPATCH_BACKFILL_INTERVAL" default:"5m"`
	BackfillLimit     int           `envconfig:"RELIEF_DISPATCH_BACKFILL_LIMIT" default:"200"`
	BackfillStatuses  []string      `envconfig:"RELIEF_DISPATCH_BACKFILL_STATUSES" default:"new"`
}

// OrderValues returns the priority to order-value table.
func (d DispatchConfig) OrderValues() map[enums.Priority]int {
	return map[enums.Priority]int{
		enums.PrioritySOS:      d.OrderSOS,
		enums.PriorityCritical: d.OrderCritical,
		enums.PriorityHigh:     d.OrderHigh,
		enums.PriorityMedium:   d.OrderMedium,
		enums.PriorityLow:      d.OrderLow,
	}
}

// Statuses parses the backfill status list.
func (d DispatchConfig) Statuses() ([]enums.RequestStatus, error) {
	out := make([]enums.RequestStatus, 0, len(d.BackfillStatuses))
	for _, raw := range d.BackfillStatuses {
		status, err := enums.ParseRequestStatus(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

func (d DispatchConfig) validate() error {
	if d.MaxAttempts < 1 {
		return fmt.Errorf("%s must be at least 1", EnvDispatchMaxAttempts)
	}
	if _, err := d.Statuses(); err != nil {
		return fmt.Errorf("%s: %w", EnvDispatchBackfillStatuses, err)
	}
	return nil
}

// MatchingConfig is the candidate-scoring weight table.
type MatchingConfig struct {
	SearchRadiusKm float64 `envconfig:"RELIEF_MATCH_SEARCH_RADIUS_KM" default:"100"`

	OfferDistanceMax    float64 `envconfig:"RELIEF_MATCH_OFFER_DISTANCE_MAX" default:"40"`
	OfferDistancePerKm  float64 `envconfig:"RELIEF_MATCH_OFFER_DISTANCE_PER_KM" default:"0.4"`
	OfferAvailability   float64 `envconfig:"RELIEF_MATCH_OFFER_AVAILABILITY" default:"20"`
	OfferRating         float64 `envconfig:"RELIEF_MATCH_OFFER_RATING" default:"20"`
	OfferPriorityFactor float64 `envconfig:"RELIEF_MATCH_OFFER_PRIORITY_FACTOR" default:"0.4"`
	OfferVerifiedBonus  float64 `envconfig:"RELIEF_MATCH_OFFER_VERIFIED_BONUS" default:"5"`

	CapabilityWeight float64 `envconfig:"RELIEF_MATCH_CAPABILITY_WEIGHT" default:"40"`
	CapacityWeight   float64 `envconfig:"RELIEF_MATCH_CAPACITY_WEIGHT" default:"20"`
	LoadWeight       float64 `envconfig:"RELIEF_MATCH_LOAD_WEIGHT" default:"20"`
	RatingWeight     float64 `envconfig:"RELIEF_MATCH_RATING_WEIGHT" default:"10"`
	ResponseWeight   float64 `envconfig:"RELIEF_MATCH_RESPONSE_WEIGHT" default:"10"`

	BoostSOS      float64 `envconfig:"RELIEF_MATCH_BOOST_SOS" default:"20"`
	BoostCritical float64 `envconfig:"RELIEF_MATCH_BOOST_CRITICAL" default:"15"`
	BoostHigh     float64 `envconfig:"RELIEF_MATCH_BOOST_HIGH" default:"10"`
	BoostMedium   float64 `envconfig:"RELIEF_MATCH_BOOST_MEDIUM" default:"5"`
	BoostLow      float64 `envconfig:"RELIEF_MATCH_BOOST_LOW" default:"0"`

	RescueBonus       float64 `envconfig:"RELIEF_MATCH_RESCUE_BONUS" default:"10"`
	OnlineBonus       float64 `envconfig:"RELIEF_MATCH_ONLINE_BONUS" default:"5"`
	Always24x7Bonus   float64 `envconfig:"RELIEF_MATCH_24X7_BONUS" default:"5"`
	RouteBlockPenalty float64 `envconfig:"RELIEF_MATCH_ROUTE_BLOCK_PENALTY" default:"15"`
}

// PriorityBoost looks up the boost for a priority; unknown values get zero.
func (m MatchingConfig) PriorityBoost(p enums.Priority) float64 {
	switch p {
	case enums.PrioritySOS:
		return m.BoostSOS
	case enums.PriorityCritical:
		return m.BoostCritical
	case enums.PriorityHigh:
		return m.BoostHigh
	case enums.PriorityMedium:
		return m.BoostMedium
	case enums.PriorityLow:
		return m.BoostLow
	}
	return 0
}

// DefaultMatching mirrors the envconfig defaults for tests and tools.
func DefaultMatching() MatchingConfig {
	return MatchingConfig{
		SearchRadiusKm:      100,
		OfferDistanceMax:    40,
		OfferDistancePerKm:  0.4,
		OfferAvailability:   20,
		OfferRating:         20,
		OfferPriorityFactor: 0.4,
		OfferVerifiedBonus:  5,
		CapabilityWeight:    40,
		CapacityWeight:      20,
		LoadWeight:          20,
		RatingWeight:        10,
		ResponseWeight:      10,
		BoostSOS:            20,
		BoostCritical:       15,
		BoostHigh:           10,
		BoostMedium:         5,
		BoostLow:            0,
		RescueBonus:         10,
		OnlineBonus:         5,
		Always24x7Bonus:     5,
		RouteBlockPenalty:   15,
	}
}

// DefaultDispatch mirrors the envconfig defaults for tests and tools.
func DefaultDispatch() DispatchConfig {
	return DispatchConfig{
		OrderSOS:          100,
		OrderCritical:     80,
		OrderHigh:         50,
		OrderMedium:       20,
		OrderLow:          10,
		OrderDefault:      15,
		MaxAttempts:       3,
		RetryOrderPenalty: 5,
		RetryBaseDelay:    2 * time.Second,
		RetryMaxDelay:     time.Minute,
		BackfillInterval:  5 * time.Minute,
		BackfillLimit:     200,
		BackfillStatuses:  []string{string(enums.RequestStatusNew)},
	}
}

// DuplicatesConfig tunes the duplicate detector.
type DuplicatesConfig struct {
	RadiusMeters  float64       `envconfig:"RELIEF_DUP_RADIUS_METERS" default:"500"`
	Threshold     float64       `envconfig:"RELIEF_DUP_THRESHOLD" default:"0.7"`
	Lookback      time.Duration `envconfig:"RELIEF_DUP_LOOKBACK" default:"72h"`
	MaxCandidates int           `envconfig:"RELIEF_DUP_MAX_CANDIDATES" default:"200"`
	MaxResults    int           `envconfig:"RELIEF_DUP_MAX_RESULTS" default:"50"`
}

func (d DuplicatesConfig) validate() error {
	if d.RadiusMeters <= 0 {
		return fmt.Errorf("%s must be positive", EnvDupRadiusMeters)
	}
	if d.Threshold < 0 || d.Threshold > 1 {
		return fmt.Errorf("%s must be within [0,1]", EnvDupThreshold)
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"RELIEF_CRON_INTERVAL" default:"15m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

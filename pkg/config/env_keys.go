package config

const (
	EnvPrefix = "RELIEF"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "RELIEF_APP_ENV"
	EnvPort   = "RELIEF_APP_PORT"

	EnvDBDSN  = "RELIEF_DB_DSN"
	EnvDBHost = "RELIEF_DB_HOST"
	EnvDBUser = "RELIEF_DB_USER"
	EnvDBName = "RELIEF_DB_NAME"

	EnvRedisURL     = "RELIEF_REDIS_URL"
	EnvGCPProjectID = "RELIEF_GCP_PROJECT_ID"

	EnvDispatchMaxAttempts      = "RELIEF_DISPATCH_MAX_ATTEMPTS"
	EnvDispatchOrderSOS         = "RELIEF_DISPATCH_ORDER_SOS"
	EnvDispatchBackfillStatuses = "RELIEF_DISPATCH_BACKFILL_STATUSES"
	EnvMatchCapabilityWeight    = "RELIEF_MATCH_CAPABILITY_WEIGHT"
	EnvDupRadiusMeters          = "RELIEF_DUP_RADIUS_METERS"
	EnvDupThreshold             = "RELIEF_DUP_THRESHOLD"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"
	defaultLogLevel   = "info"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "replyflow"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultConfirmationTimeout = 24 * time.Hour
	defaultSweepInterval       = 10 * time.Minute
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultSnapshotInterval    = 24 * time.Hour
	defaultSnapshotRegion      = "us-east-1"
	defaultSnapshotPrefix      = "snapshots"
)

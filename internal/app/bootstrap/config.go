// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const devSessionKey = "dev-only-change-me-please-0123456789ABCDEF"

// appConfigKeys defines the configuration keys for EventGate.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_domain, etc.
//   - Environment variables: EVENTGATE_MONGO_URI, EVENTGATE_SESSION_DOMAIN, etc.
//   - Command-line flags: --mongo_uri, --session_domain, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "eventgate", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: devSessionKey, Desc: "Session signing key (must be strong in production)"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_workflow", Default: "all", Desc: "Workflow event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Login rate limiting
	{Name: "login_rate_limit", Default: 10, Desc: "Login attempts allowed per client IP per window"},
	{Name: "login_rate_window", Default: "1m", Desc: "Login rate limit window (e.g., 1m, 30s)"},

	// Deferred publish retry worker
	{Name: "publish_retry_interval", Default: "30s", Desc: "Sweep interval for deferred event publishes (0 disables the worker)"},
	{Name: "publish_retry_batch", Default: 50, Desc: "Max deferred publishes settled per sweep"},

	// System admin bootstrap
	{Name: "sysadmin_email", Default: "", Desc: "Email of the system admin user (promotes/creates on startup)"},
	{Name: "sysadmin_name", Default: "System Admin", Desc: "Display name used when creating the system admin"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, EVENTGATE_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "EVENTGATE", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionDomain:    appValues.String("session_domain"),

		AuditLogAuth:     appValues.String("audit_log_auth"),
		AuditLogWorkflow: appValues.String("audit_log_workflow"),
		AuditLogAdmin:    appValues.String("audit_log_admin"),

		LoginRateLimit:  appValues.Int("login_rate_limit"),
		LoginRateWindow: appValues.Duration("login_rate_window", time.Minute),

		PublishRetryInterval: appValues.Duration("publish_retry_interval", 30*time.Second),
		PublishRetryBatch:    appValues.Int("publish_retry_batch"),

		SysAdminEmail: appValues.String("sysadmin_email"),
		SysAdminName:  appValues.String("sysadmin_name"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// This is the right place to enforce required fields or invariants that
// involve both the core and app configs.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	// The dev key must never reach production.
	if coreCfg.Env == "prod" && appCfg.SessionKey == devSessionKey {
		return fmt.Errorf("session_key must be set to a strong value in production")
	}

	if appCfg.LoginRateLimit < 1 {
		return fmt.Errorf("login_rate_limit must be at least 1 (got %d)", appCfg.LoginRateLimit)
	}
	if appCfg.PublishRetryBatch < 1 {
		return fmt.Errorf("publish_retry_batch must be at least 1 (got %d)", appCfg.PublishRetryBatch)
	}

	return nil
}

// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP/HTTPS
// ports, TLS, logging level, CORS, and request body limits. AppConfig is
// where everything specific to this application lives: database
// connection strings, workflow knobs, and bootstrap identities.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionDomain string // Cookie domain (blank means current host)

	// Audit logging settings: "all" (db+log), "db", "log", or "off"
	AuditLogAuth     string
	AuditLogWorkflow string
	AuditLogAdmin    string

	// Login rate limiting (per client IP)
	LoginRateLimit  int           // Attempts allowed per window
	LoginRateWindow time.Duration // Sliding window size

	// Deferred publish retry worker
	PublishRetryInterval time.Duration // How often to sweep publish_pending requests
	PublishRetryBatch    int           // Max requests settled per sweep

	// System admin bootstrap: promotes/creates this account on startup.
	SysAdminEmail string
	SysAdminName  string
}

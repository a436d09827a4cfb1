// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	assignmentstore "github.com/civicworks/eventgate/internal/app/store/assignments"
	"github.com/civicworks/eventgate/internal/app/store/audit"
	eventstore "github.com/civicworks/eventgate/internal/app/store/events"
	locationstore "github.com/civicworks/eventgate/internal/app/store/locations"
	requeststore "github.com/civicworks/eventgate/internal/app/store/requests"
	rolestore "github.com/civicworks/eventgate/internal/app/store/roles"
	userstore "github.com/civicworks/eventgate/internal/app/store/users"

	"github.com/civicworks/eventgate/internal/app/policy/requestpolicy"
	"github.com/civicworks/eventgate/internal/app/requestflow"
	"github.com/civicworks/eventgate/internal/app/system/auditlog"
	"github.com/civicworks/eventgate/internal/app/system/indexes"
	"github.com/civicworks/eventgate/internal/app/system/locations"
	"github.com/civicworks/eventgate/internal/app/system/metrics"
	"github.com/civicworks/eventgate/internal/app/system/notify"
	"github.com/civicworks/eventgate/internal/app/system/permissions"
	"github.com/civicworks/eventgate/internal/app/system/ratelimit"
	"github.com/civicworks/eventgate/internal/app/system/reviewers"
	"github.com/civicworks/eventgate/internal/app/system/timeouts"
	"github.com/civicworks/eventgate/internal/app/system/workers"
)

// ConnectDB connects to MongoDB and builds the full service graph the
// rest of the app consumes. WAFFLE calls this after config validation
// and before EnsureSchema.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(appCfg.MongoDatabase)
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase))

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: db,

		Users:       userstore.New(db),
		Requests:    requeststore.New(db),
		Events:      eventstore.New(db),
		Roles:       rolestore.New(db),
		Assignments: assignmentstore.New(db),
		Locations:   locationstore.New(db),

		Metrics:      metrics.New(),
		LoginLimiter: ratelimit.New(appCfg.LoginRateLimit, appCfg.LoginRateWindow),
	}

	deps.Audit = auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:     appCfg.AuditLogAuth,
		Workflow: appCfg.AuditLogWorkflow,
		Admin:    appCfg.AuditLogAdmin,
	})

	deps.Hierarchy = locations.NewTree(deps.Locations, logger)
	deps.Perms = permissions.NewAggregator(deps.Assignments, deps.Roles, deps.Hierarchy, logger)
	deps.Discovery = reviewers.New(deps.Users, deps.Perms, deps.Hierarchy, logger)

	deps.Flow = requestflow.New(requestflow.Config{
		Requests:  deps.Requests,
		Users:     deps.Users,
		Publisher: deps.Events,
		Discovery: deps.Discovery,
		Policy: requestpolicy.Deps{
			Perms: deps.Perms,
			Hier:  deps.Hierarchy,
		},
		Notifier: notify.NewLogNotifier(logger),
		Audit:    deps.Audit,
		Metrics:  deps.Metrics,
		Logger:   logger,
	})

	if appCfg.PublishRetryInterval > 0 {
		deps.PublishRetry = workers.NewPublishRetry(
			deps.Flow, logger, appCfg.PublishRetryInterval, int64(appCfg.PublishRetryBatch))
	}

	return deps, nil
}

// EnsureSchema creates the indexes the stores rely on. Index creation is
// idempotent, so this runs unconditionally on every startup.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	logger.Info("database indexes ensured")
	return nil
}

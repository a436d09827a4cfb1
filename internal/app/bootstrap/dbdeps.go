// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"go.mongodb.org/mongo-driver/mongo"

	assignmentstore "github.com/civicworks/eventgate/internal/app/store/assignments"
	eventstore "github.com/civicworks/eventgate/internal/app/store/events"
	locationstore "github.com/civicworks/eventgate/internal/app/store/locations"
	requeststore "github.com/civicworks/eventgate/internal/app/store/requests"
	rolestore "github.com/civicworks/eventgate/internal/app/store/roles"
	userstore "github.com/civicworks/eventgate/internal/app/store/users"

	"github.com/civicworks/eventgate/internal/app/requestflow"
	"github.com/civicworks/eventgate/internal/app/system/auditlog"
	"github.com/civicworks/eventgate/internal/app/system/locations"
	"github.com/civicworks/eventgate/internal/app/system/metrics"
	"github.com/civicworks/eventgate/internal/app/system/permissions"
	"github.com/civicworks/eventgate/internal/app/system/ratelimit"
	"github.com/civicworks/eventgate/internal/app/system/reviewers"
	"github.com/civicworks/eventgate/internal/app/system/workers"
)

// DBDeps holds database clients and the service graph built on them.
// ConnectDB constructs everything here; the Startup and BuildHandler
// hooks only consume it.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Stores
	Users       *userstore.Store
	Requests    *requeststore.Store
	Events      *eventstore.Store
	Roles       *rolestore.Store
	Assignments *assignmentstore.Store
	Locations   *locationstore.Store

	// Services
	Hierarchy *locations.Tree
	Perms     *permissions.Aggregator
	Discovery *reviewers.Discovery
	Flow      *requestflow.Service
	Audit     *auditlog.Logger
	Metrics   *metrics.Metrics

	LoginLimiter *ratelimit.Limiter
	PublishRetry *workers.PublishRetry
}

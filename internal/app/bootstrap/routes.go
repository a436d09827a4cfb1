// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	healthfeature "github.com/civicworks/eventgate/internal/app/features/health"
	loginfeature "github.com/civicworks/eventgate/internal/app/features/login"
	logoutfeature "github.com/civicworks/eventgate/internal/app/features/logout"
	requestsfeature "github.com/civicworks/eventgate/internal/app/features/requests"
	userinfofeature "github.com/civicworks/eventgate/internal/app/features/userinfo"
	"github.com/civicworks/eventgate/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: the service graph built in ConnectDB
//   - logger: the fully configured zap.Logger for this app
//
// EventGate is a JSON API: the router mounts the health and metrics
// endpoints, session-based authentication, and the request workflow
// surface under /api/requests.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Cookie sessions are signed with the configured key. Secure cookies
	// are enabled in production mode.
	secure := coreCfg.Env == "prod"
	if err := auth.InitSessionStore(appCfg.SessionKey, appCfg.SessionDomain, secure, logger); err != nil {
		logger.Error("session store init failed", zap.Error(err))
		return nil, err
	}

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	// This makes the current user available to all handlers via auth.CurrentUser(r).
	r.Use(auth.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Prometheus metrics
	r.Handle("/metrics", deps.Metrics.Handler())

	// Authentication
	loginHandler := loginfeature.NewHandler(deps.Users, deps.Audit, deps.LoginLimiter, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(deps.Audit, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	// Session identity probe
	userinfofeature.MountRoutes(r, userinfofeature.NewHandler())

	// Request workflow API
	requestsHandler := requestsfeature.NewHandler(deps.Flow, logger)
	r.Mount("/api/requests", requestsfeature.Routes(requestsHandler))

	return r, nil
}

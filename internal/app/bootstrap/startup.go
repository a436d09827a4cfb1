// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"

	"github.com/civicworks/eventgate/internal/app/system/authority"
	"github.com/civicworks/eventgate/internal/app/system/timeouts"
	"github.com/civicworks/eventgate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It is
// the place to warm caches, seed bootstrap identities, and start
// background workers.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts configured from environment", zap.Int("count", n))
	}

	if appCfg.SysAdminEmail != "" {
		if err := ensureSysAdmin(ctx, deps, appCfg.SysAdminEmail, appCfg.SysAdminName, logger); err != nil {
			return fmt.Errorf("ensure system admin: %w", err)
		}
	}

	if deps.PublishRetry != nil {
		deps.PublishRetry.Start()
	}

	return nil
}

// ensureSysAdmin guarantees a system admin account exists for the given
// email. An existing user is promoted in place; a missing one is created.
// Runs on every startup and is a no-op when the account already holds
// system admin authority.
func ensureSysAdmin(ctx context.Context, deps DBDeps, email, name string, logger *zap.Logger) error {
	existing, err := deps.Users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if existing != nil {
		if existing.Authority >= authority.SystemAdmin {
			return nil
		}
		if err := deps.Users.SetAuthority(ctx, existing.ID, authority.SystemAdmin, time.Now()); err != nil {
			return err
		}
		logger.Info("promoted existing user to system admin",
			zap.String("email", email),
			zap.Int("previous_authority", existing.Authority))
		return nil
	}

	// System-admin tier waives the reviewer authority floor, not
	// jurisdiction: review and visibility checks still need a coverage
	// match. Seed a nationwide area spanning the province roots so the
	// bootstrap admin can act anywhere.
	roots, err := provinceRoots(ctx, deps)
	if err != nil {
		return err
	}

	if name == "" {
		name = "System Admin"
	}
	u := models.User{
		FullName:  name,
		Email:     email,
		Authority: authority.SystemAdmin,
		Organizations: []models.UserOrganization{{
			OrganizationID: primitive.NewObjectID(),
			Name:           "EventGate Operations",
			IsPrimary:      true,
		}},
		CoverageAreas: []models.CoverageArea{{
			Name:        "Nationwide",
			LocationIDs: roots,
			IsPrimary:   true,
		}},
	}
	created, err := deps.Users.Create(ctx, u)
	if err != nil {
		return err
	}
	logger.Info("created system admin",
		zap.String("email", email),
		zap.String("user_id", created.ID.Hex()))
	return nil
}

// provinceRoots lists the codes of top-level locations.
func provinceRoots(ctx context.Context, deps DBDeps) ([]string, error) {
	all, err := deps.Locations.AllLocations(ctx)
	if err != nil {
		return nil, err
	}
	var roots []string
	for _, loc := range all {
		if loc.ParentCode == "" {
			roots = append(roots, loc.Code)
		}
	}
	return roots, nil
}

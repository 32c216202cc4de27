package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	billdomain "github.com/smallbiznis/sekarnet/internal/bill/domain"
	catalogdomain "github.com/smallbiznis/sekarnet/internal/catalog/domain"
	installationdomain "github.com/smallbiznis/sekarnet/internal/installation/domain"
	subscriptiondomain "github.com/smallbiznis/sekarnet/internal/subscription/domain"
	ticketdomain "github.com/smallbiznis/sekarnet/internal/ticket/domain"
	"github.com/smallbiznis/sekarnet/pkg/db"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table owned by the portal, in dependency order.
func Models() []any {
	return []any{
		&authdomain.User{},
		&catalogdomain.Package{},
		&subscriptiondomain.Subscription{},
		&billdomain.Bill{},
		&installationdomain.InstallationRequest{},
		&ticketdomain.Ticket{},
		&ticketdomain.Reply{},
		&auditdomain.AuditLog{},
	}
}

// Run brings the schema up to date. Postgres uses the versioned SQL files;
// the other dialects are migrated from the gorm models.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != db.DialectPostgres {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(sqlDB *sql.DB) error {
	if sqlDB == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}

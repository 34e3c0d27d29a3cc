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
	accessdomain "github.com/smallbiznis/campus/internal/access/domain"
	auditdomain "github.com/smallbiznis/campus/internal/audit/domain"
	coursedomain "github.com/smallbiznis/campus/internal/course/domain"
	enrollmentdomain "github.com/smallbiznis/campus/internal/enrollment/domain"
	"github.com/smallbiznis/campus/internal/events"
	"github.com/smallbiznis/campus/internal/identity"
	micrositedomain "github.com/smallbiznis/campus/internal/microsite/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table the service owns. Non-postgres databases are
// created from these with AutoMigrate.
func Models() []any {
	return []any{
		&coursedomain.Course{},
		&identity.Account{},
		&enrollmentdomain.Enrollment{},
		&enrollmentdomain.EnrollmentAttribute{},
		&accessdomain.CourseEnrollmentAllowed{},
		&auditdomain.ManualEnrollmentAudit{},
		&events.TrackingEvent{},
		&micrositedomain.Microsite{},
		&micrositedomain.History{},
	}
}

// Run brings the schema up to date for the connected dialect.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
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

// RunMigrations applies the embedded SQL migrations to a postgres database.
func RunMigrations(db *sql.DB) error {
	if db == nil {
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

	driver, err := postgres.WithInstance(db, &postgres.Config{})
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
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

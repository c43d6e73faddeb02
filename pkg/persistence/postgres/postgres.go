// Package postgres provides the PostgreSQL persistence implementation
// for workflow instances, timers, activity attempts and the CRM
// records.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the postgres database/sql driver.
	_ "github.com/lib/pq"

	"github.com/outfield-crm/outfield/pkg/persistence"
	"github.com/outfield-crm/outfield/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	instances   *InstanceRepository
	timers      *TimerRepository
	attempts    *AttemptRepository
	meetings    *MeetingRepository
	enrollments *EnrollmentRepository
	campaigns   *CampaignRepository
	policies    *PolicyRepository
	calendars   *CalendarRepository
	tenants     *TenantRepository
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:          database,
		logger:      logger,
		instances:   &InstanceRepository{db: database, logger: logger},
		timers:      &TimerRepository{db: database, logger: logger},
		attempts:    &AttemptRepository{db: database, logger: logger},
		meetings:    &MeetingRepository{db: database, logger: logger},
		enrollments: &EnrollmentRepository{db: database, logger: logger},
		campaigns:   &CampaignRepository{db: database, logger: logger},
		policies:    &PolicyRepository{db: database, logger: logger},
		calendars:   &CalendarRepository{db: database, logger: logger},
		tenants:     &TenantRepository{db: database, logger: logger},
	}, nil
}

func (p *Persistence) InstanceRepository() persistence.InstanceRepository {
	return p.instances
}

func (p *Persistence) TimerRepository() persistence.TimerRepository {
	return p.timers
}

func (p *Persistence) AttemptRepository() persistence.AttemptRepository {
	return p.attempts
}

func (p *Persistence) MeetingRepository() persistence.MeetingRepository {
	return p.meetings
}

func (p *Persistence) EnrollmentRepository() persistence.EnrollmentRepository {
	return p.enrollments
}

func (p *Persistence) CampaignRepository() persistence.CampaignRepository {
	return p.campaigns
}

func (p *Persistence) PolicyRepository() persistence.PolicyRepository {
	return p.policies
}

func (p *Persistence) CalendarRepository() persistence.CalendarRepository {
	return p.calendars
}

func (p *Persistence) TenantRepository() persistence.TenantRepository {
	return p.tenants
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/visaflow/visaflow-backend/internal/logger"
	"github.com/visaflow/visaflow-backend/internal/types"
	"github.com/visaflow/visaflow-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	log.Info("Loading environment variables...")
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "visaflow", log)
	log.Debug("Environment variables loaded")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		log.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("Failed to enable uuid-ossp extension: %w", err)
	}
	log.Info("uuid-ossp extension enabled")

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.VisaApplication{},
		&types.SubTraveler{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	s.log.Info("Configuring constraints for postgres tables...")
	// embedded columns cannot carry a uniqueIndex tag without also applying
	// it to sub_traveler, so the application-level unique email lives here
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS "uq_visa_application_email"
		ON "visa_application" ("email")
	`).Error; err != nil {
		return fmt.Errorf("Failed to add uq_visa_application_email: %w", err)
	}
	if err := s.db.Exec(`
		ALTER TABLE "sub_traveler"
		DROP CONSTRAINT IF EXISTS "fk_sub_traveler_visa_application_id";
	`).Error; err != nil {
		return fmt.Errorf("Failed to reset fk_sub_traveler_visa_application_id: %w", err)
	}
	if err := s.db.Exec(`
		ALTER TABLE "sub_traveler"
		ADD CONSTRAINT "fk_sub_traveler_visa_application_id"
		FOREIGN KEY ("visa_application_id")
		REFERENCES "visa_application"("id")
		ON DELETE CASCADE
	`).Error; err != nil {
		return fmt.Errorf("Failed to add fk_sub_traveler_visa_application_id: %w", err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}

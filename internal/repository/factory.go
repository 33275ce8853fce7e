package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/prime-sieve/pkg/config"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/telemetry"
)

// DBType represents the database type.
type DBType string

const (
	DBTypeSQLite   DBType = "sqlite"
	DBTypePostgres DBType = "postgres"
	DBTypeMySQL    DBType = "mysql"
)

// Dialector builds the GORM dialector for cfg.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch DBType(cfg.Type) {
	case DBTypeSQLite, DBType("sqlite3"):
		return sqlite.Open(cfg.Path), nil
	case DBTypePostgres, DBType("postgresql"):
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database,
		)
		return postgres.Open(dsn), nil
	case DBTypeMySQL:
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		)
		return mysql.Open(dsn), nil
	default:
		return nil, apperrors.New(apperrors.CodeConfigError, "unsupported database type: "+cfg.Type)
	}
}

// NewGormDB opens the history database, configures the pool and migrates the
// schema.
func NewGormDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := Open(dialector, cfg.MaxConns)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		closeDB(db)
		return nil, err
	}
	return db, nil
}

// Open connects through dialector and verifies the connection.
func Open(dialector gorm.Dialector, maxConns int) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to open database", err)
	}

	// Enable OpenTelemetry tracing if OTEL_ENABLED=true
	if telemetry.Enabled() {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to enable telemetry", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get underlying sql.DB", err)
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(max(maxConns/2, 1))
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to ping database", err)
	}

	return db, nil
}

// Migrate creates or updates the history schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&RunHistory{}); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to migrate schema", err)
	}
	return nil
}

// Repositories holds all repository instances.
type Repositories struct {
	Runs   RunRepository
	gormDB *gorm.DB
}

// NewRepositories creates all repositories using GORM.
func NewRepositories(gormDB *gorm.DB) *Repositories {
	return &Repositories{
		Runs:   NewGormRunRepository(gormDB),
		gormDB: gormDB,
	}
}

// Connect opens the database described by cfg and builds the repositories.
func Connect(cfg config.DatabaseConfig) (*Repositories, error) {
	db, err := NewGormDB(cfg)
	if err != nil {
		return nil, err
	}
	return NewRepositories(db), nil
}

// Close closes the database connection.
func (r *Repositories) Close() error {
	if r.gormDB == nil {
		return nil
	}
	sqlDB, err := r.gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck verifies the database connection is still alive.
func (r *Repositories) HealthCheck(ctx context.Context) error {
	sqlDB, err := r.gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GormDB returns the underlying GORM DB instance.
func (r *Repositories) GormDB() *gorm.DB {
	return r.gormDB
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

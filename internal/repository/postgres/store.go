package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/queueme/scheduling-core/internal/config"
	"github.com/queueme/scheduling-core/internal/repository"
)

// Store is the gorm-backed Repository adapter.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Connect opens the database connection, grounded on the teacher's
// internal/database/database.go Connect helper.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}

// Migrate auto-migrates every row type this adapter owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&shopRow{}, &shopHoursRow{},
		&serviceRow{}, &serviceAvailabilityRow{}, &serviceExceptionRow{},
		&specialistRow{}, &specialistWorkingHoursRow{}, &specialistServiceRow{},
		&resourceRow{}, &resourceAvailabilityRow{}, &serviceResourceRequirementRow{},
		&appointmentRow{}, &appointmentResourceRow{},
		&serviceDependencyRow{}, &packageRow{}, &packageServiceRow{},
	)
}

// gormTx is the concrete type behind repository.Tx for this adapter.
type gormTx struct {
	tx *gorm.DB
}

func (s *Store) BeginTx(ctx context.Context, level repository.IsolationLevel) (repository.Tx, error) {
	var opts *sql.TxOptions
	if level == repository.IsolationSerializable {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	tx := s.db.WithContext(ctx).Begin(opts)
	if tx.Error != nil {
		return nil, fmt.Errorf("begin tx: %w", tx.Error)
	}
	return gormTx{tx: tx}, nil
}

func (s *Store) Commit(ctx context.Context, tx repository.Tx) error {
	gtx, ok := tx.(gormTx)
	if !ok {
		return fmt.Errorf("commit: not a postgres transaction handle")
	}
	if err := gtx.tx.Commit().Error; err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Rollback(ctx context.Context, tx repository.Tx) error {
	gtx, ok := tx.(gormTx)
	if !ok {
		return fmt.Errorf("rollback: not a postgres transaction handle")
	}
	if err := gtx.tx.Rollback().Error; err != nil {
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}

func txOrDB(db *gorm.DB, tx repository.Tx) *gorm.DB {
	if gtx, ok := tx.(gormTx); ok {
		return gtx.tx
	}
	return db
}

func gormExprAdd(column string, delta int) interface{} {
	return gorm.Expr(column+" + ?", delta)
}

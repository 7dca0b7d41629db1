// Package gormstore implements [github.com/stagepage/stagepage/pkg/store.Store]
// with GORM, on PostgreSQL or SQLite.
//
// Partial updates load the row, decode the changed fields onto it through
// the model's JSON tags, validate the result and write back only the selected
// columns, so a field set to its zero value is still written. Block deletion
// and reorders run inside a transaction.
//
//	s, err := gormstore.Open("sqlite", "stagepage.db", log)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//	if err := s.Migrate(ctx); err != nil {
//		return err
//	}
package gormstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stagepage/stagepage/pkg/models"
	"github.com/stagepage/stagepage/pkg/store"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store implements store.Store over a GORM connection.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to the database named by driver and dsn. SQL statements are
// logged through log at debug level.
func Open(driver, dsn string, log zerolog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newLogger(log)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver != DriverPostgres && strings.Contains(dsn, ":memory:") {
		// Every connection to :memory: opens a fresh database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return &Store{db: db}, nil
}

// New wraps an existing GORM connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates missing tables, columns and indexes with AutoMigrate.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&models.Profile{},
		&models.Settings{},
		&models.Block{},
		&models.Link{},
		&models.TourDate{},
		&models.PageView{},
		&models.LinkClick{},
	)
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type validatable[T any] interface {
	*T
	Validate() error
}

// first returns the row matching id, or nil when there is none.
func first[T any](ctx context.Context, db *gorm.DB, id int64) (*T, error) {
	var row T
	err := db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// updateFields applies a partial update to the row with the given id.
func updateFields[T any, P validatable[T]](ctx context.Context, db *gorm.DB, id int64, allow map[string]string, fields store.Fields) error {
	cols, err := store.Columns(allow, fields)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := first[T](ctx, tx, id)
		if err != nil {
			return err
		}
		if row == nil {
			return fmt.Errorf("%w: id %d", store.ErrNotFound, id)
		}
		if err := store.DecodeOnto(row, fields); err != nil {
			return err
		}
		if err := P(row).Validate(); err != nil {
			return err
		}
		return tx.Model(row).Select(cols).Updates(row).Error
	})
}

// reorder sets the position of each listed row of model.
func reorder(ctx context.Context, db *gorm.DB, model any, positions []store.Position) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range positions {
			if err := tx.Model(model).Where("id = ?", p.ID).Update("position", p.Position).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// nextPosition returns one past the highest position stored in model's
// table, as new rows are appended at the end.
func nextPosition(ctx context.Context, db *gorm.DB, model any) (int, error) {
	var highest sql.NullInt64
	if err := db.WithContext(ctx).Model(model).Select("MAX(position)").Row().Scan(&highest); err != nil {
		return 0, err
	}
	if !highest.Valid {
		return 0, nil
	}
	return int(highest.Int64) + 1, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quantfx/pipstride/core"
)

// SQLStorage implements core.TradeStorage on a SQL database via GORM
type SQLStorage struct {
	db *gorm.DB
}

// Config holds the connection pool settings for SQL backends
type Config struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns the connection pool defaults
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// NewFromSQLite creates a SQLite-backed storage
func NewFromSQLite(dbPath string, config Config, opts ...gorm.Option) (*SQLStorage, error) {
	return newFromSQL(sqlite.Open(dbPath), config, opts...)
}

func newFromSQL(dialect gorm.Dialector, config Config, opts ...gorm.Option) (*SQLStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := db.AutoMigrate(&core.TradeRecord{}, &core.EquityPoint{}); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

// CreateTrade inserts a new trade record
func (s *SQLStorage) CreateTrade(ctx context.Context, record *core.TradeRecord) error {
	if result := s.db.WithContext(ctx).Create(record); result.Error != nil {
		return fmt.Errorf("create trade: %w", result.Error)
	}
	return nil
}

// UpdateTrade saves an existing trade record
func (s *SQLStorage) UpdateTrade(ctx context.Context, record *core.TradeRecord) error {
	tx := s.db.WithContext(ctx)

	var existing core.TradeRecord
	if result := tx.First(&existing, record.ID); result.Error != nil {
		return fmt.Errorf("trade %d not found: %w", record.ID, result.Error)
	}

	if result := tx.Save(record); result.Error != nil {
		return fmt.Errorf("update trade: %w", result.Error)
	}
	return nil
}

// Trades returns the stored trade records matching every filter
func (s *SQLStorage) Trades(ctx context.Context, filters ...core.TradeFilter) ([]*core.TradeRecord, error) {
	var records []*core.TradeRecord
	result := s.db.WithContext(ctx).Order("updated_at").Find(&records)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("fetch trades: %w", result.Error)
	}

	if len(filters) > 0 {
		records = lo.Filter(records, func(record *core.TradeRecord, _ int) bool {
			for _, filter := range filters {
				if !filter(*record) {
					return false
				}
			}
			return true
		})
	}

	return records, nil
}

// CreateEquityPoint inserts one equity sample
func (s *SQLStorage) CreateEquityPoint(ctx context.Context, point *core.EquityPoint) error {
	if result := s.db.WithContext(ctx).Create(point); result.Error != nil {
		return fmt.Errorf("create equity point: %w", result.Error)
	}
	return nil
}

// Close closes the underlying connection pool
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database instance: %w", err)
	}
	return sqlDB.Close()
}

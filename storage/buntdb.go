// Package storage provides trade record persistence backends
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/tidwall/buntdb"

	"github.com/quantfx/pipstride/core"
)

const tradeIndexName = "trade_update_index"

// BuntStorage implements core.TradeStorage on BuntDB, either in memory or
// backed by a single file
type BuntStorage struct {
	lastTradeID  int64
	lastEquityID int64
	db           *buntdb.DB
}

// NewFromMemory creates an in-memory storage
func NewFromMemory() (*BuntStorage, error) {
	return NewBuntStorage(":memory:")
}

// NewFromFile creates a file-backed storage
func NewFromFile(file string) (*BuntStorage, error) {
	return NewBuntStorage(file)
}

// NewBuntStorage opens the database and creates the trade update index
func NewBuntStorage(sourceFile string) (*BuntStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{SyncPolicy: buntdb.Never}); err != nil {
		return nil, fmt.Errorf("configure buntdb: %w", err)
	}

	if err := db.CreateIndex(tradeIndexName, "trade:*", buntdb.IndexJSON("updated_at")); err != nil {
		return nil, fmt.Errorf("create trade index: %w", err)
	}

	return &BuntStorage{db: db}, nil
}

func tradeKey(id int64) string {
	return "trade:" + strconv.FormatInt(id, 10)
}

// CreateTrade stores a new trade record
func (b *BuntStorage) CreateTrade(_ context.Context, record *core.TradeRecord) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		if record.ID == 0 {
			record.ID = atomic.AddInt64(&b.lastTradeID, 1)
		}

		content, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal trade: %w", err)
		}

		if _, _, err := tx.Set(tradeKey(record.ID), string(content), nil); err != nil {
			return fmt.Errorf("store trade: %w", err)
		}
		return nil
	})
}

// UpdateTrade overwrites an existing trade record
func (b *BuntStorage) UpdateTrade(_ context.Context, record *core.TradeRecord) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		key := tradeKey(record.ID)
		if _, err := tx.Get(key); err != nil {
			return fmt.Errorf("trade %d not found: %w", record.ID, err)
		}

		content, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal trade: %w", err)
		}

		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("update trade: %w", err)
		}
		return nil
	})
}

// Trades returns the stored trade records matching every filter, ordered
// by update time
func (b *BuntStorage) Trades(_ context.Context, filters ...core.TradeFilter) ([]*core.TradeRecord, error) {
	records := make([]*core.TradeRecord, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(tradeIndexName, func(key, value string) bool {
			var record core.TradeRecord
			if err := json.Unmarshal([]byte(value), &record); err != nil {
				return true
			}

			for _, filter := range filters {
				if !filter(record) {
					return true
				}
			}

			records = append(records, &record)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}

	return records, nil
}

// CreateEquityPoint stores one equity sample
func (b *BuntStorage) CreateEquityPoint(_ context.Context, point *core.EquityPoint) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		if point.ID == 0 {
			point.ID = atomic.AddInt64(&b.lastEquityID, 1)
		}

		content, err := json.Marshal(point)
		if err != nil {
			return fmt.Errorf("marshal equity point: %w", err)
		}

		key := "equity:" + strconv.FormatInt(point.ID, 10)
		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("store equity point: %w", err)
		}
		return nil
	})
}

// Close closes the database
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// Package journal durably records emitted trades and terminal order
// transitions in SQLite. It is the persistence collaborator of the matching
// core: the core never retries a failed write, so every method returns the
// error for the caller to log.
package journal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/snowy615/alphaBook/internal/domain"
)

// TradeRecord is one persisted match. Prices and quantities are stored as
// strings to keep exact decimal values.
type TradeRecord struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Symbol       string `gorm:"index"`
	Price        string
	Qty          string
	BuyerID      string
	SellerID     string
	MakerOrderID string
	TakerOrderID string
	Ts           int64
}

// OrderRecord is one terminal order transition (FILLED or CANCELED).
type OrderRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	OrderID   string `gorm:"index"`
	Symbol    string
	Side      string
	Price     string
	Qty       string
	FilledQty string
	Status    string
	Ts        int64
}

// Journal wraps the SQLite database.
type Journal struct {
	db *gorm.DB
}

// Open creates or opens the journal database at path, creating parent
// directories as needed.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if err := db.AutoMigrate(&TradeRecord{}, &OrderRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal database: %w", err)
	}

	return &Journal{db: db}, nil
}

// RecordTrades appends every trade of one match step in a single batch.
func (j *Journal) RecordTrades(trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	records := make([]TradeRecord, len(trades))
	for i, t := range trades {
		records[i] = TradeRecord{
			Symbol:       t.Symbol,
			Price:        t.Price.String(),
			Qty:          t.Qty.String(),
			BuyerID:      t.BuyerID,
			SellerID:     t.SellerID,
			MakerOrderID: t.MakerOrderID,
			TakerOrderID: t.TakerOrderID,
			Ts:           t.Ts,
		}
	}
	return j.db.Create(&records).Error
}

// RecordOrder appends one terminal order transition.
func (j *Journal) RecordOrder(view domain.OrderView, status string) error {
	return j.db.Create(&OrderRecord{
		OrderID:   view.ID,
		Symbol:    view.Symbol,
		Side:      string(view.Side),
		Price:     view.Price.String(),
		Qty:       view.Qty.String(),
		FilledQty: view.FilledQty.String(),
		Status:    status,
		Ts:        view.Ts,
	}).Error
}

// TradesBySymbol returns the persisted trades for one symbol, oldest first.
func (j *Journal) TradesBySymbol(symbol string) ([]TradeRecord, error) {
	var records []TradeRecord
	err := j.db.Where("symbol = ?", symbol).Order("id asc").Find(&records).Error
	return records, err
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

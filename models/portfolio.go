package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction types recorded in the ledger.
const (
	TxBuy  = "BUY"
	TxSell = "SELL"
)

// Holding is a user's aggregate position in one symbol: one row per
// (user, symbol) pair, updated in place by trades. Rows never carry zero
// shares; a sell that empties a position deletes the row. Holdings are a
// materialized view over the transaction log and can always be rebuilt
// from it, which is why soft deletion is deliberately absent here.
type Holding struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_holdings_user_symbol;not null" json:"-"`
	Symbol    string    `gorm:"uniqueIndex:idx_holdings_user_symbol;not null" json:"symbol"`
	Shares    int64     `gorm:"not null" json:"shares"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Transaction is one executed buy or sell: append-only, immutable once
// written, never merged. Price is the quoted price at execution time.
type Transaction struct {
	gorm.Model
	UserID    uint            `gorm:"index;not null" json:"-"`
	Type      string          `gorm:"not null" json:"type"`
	Symbol    string          `gorm:"not null" json:"symbol"`
	Shares    int64           `gorm:"not null" json:"shares"`
	Price     decimal.Decimal `gorm:"type:numeric;not null" json:"price"`
	Timestamp time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"timestamp"`
}

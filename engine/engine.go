// Package engine implements the portfolio ledger: the rules that keep
// holdings, cash, and the append-only transaction log mutually consistent
// across buy and sell operations, and the derived valuation report.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"papertrade/models"
	"papertrade/quotes"
)

// StartingCash is the play-money balance granted at registration.
var StartingCash = decimal.NewFromInt(10000)

// Engine executes ledger operations against the database. Every mutating
// operation runs as a single database transaction, and balance checks are
// folded into the UPDATE statements themselves so that concurrent requests
// cannot both pass a check against stale state.
type Engine struct {
	db     *gorm.DB
	quotes quotes.Provider
}

func New(db *gorm.DB, provider quotes.Provider) *Engine {
	return &Engine{db: db, quotes: provider}
}

// Register creates a user with the standard starting cash balance.
func (e *Engine) Register(ctx context.Context, username, passwordHash string) (models.User, error) {
	db := e.db.WithContext(ctx)

	var existing models.User
	err := db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return models.User{}, ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, err
	}

	user := models.User{
		Username:     username,
		PasswordHash: passwordHash,
		Cash:         StartingCash,
	}
	if err := db.Create(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

// UserByUsername fetches a user for credential verification at login.
func (e *Engine) UserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := e.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	return user, err
}

// Buy purchases shares of symbol at the current quoted price. It fails with
// ErrInvalidShareCount, ErrUnknownSymbol, ErrQuoteUnavailable, or
// ErrInsufficientFunds, never mutating any state on failure.
func (e *Engine) Buy(ctx context.Context, userID uint, symbol string, shares int64) error {
	if shares <= 0 {
		return ErrInvalidShareCount
	}
	quote, err := e.lookup(ctx, symbol)
	if err != nil {
		return err
	}
	cost := quote.Price.Mul(decimal.NewFromInt(shares))

	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The sufficiency check lives in the WHERE clause: a concurrent buy
		// that spent the cash first leaves this UPDATE matching zero rows.
		res := tx.Model(&models.User{}).
			Where("id = ? AND cash >= ?", userID, cost).
			Update("cash", gorm.Expr("cash - ?", cost))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return gorm.ErrRecordNotFound
			}
			return ErrInsufficientFunds
		}

		holding := models.Holding{UserID: userID, Symbol: quote.Symbol, Shares: shares}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "symbol"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"shares":     gorm.Expr("holdings.shares + excluded.shares"),
				"updated_at": time.Now(),
			}),
		}).Create(&holding).Error; err != nil {
			return err
		}

		return tx.Create(&models.Transaction{
			UserID:    userID,
			Type:      models.TxBuy,
			Symbol:    quote.Symbol,
			Shares:    shares,
			Price:     quote.Price,
			Timestamp: time.Now(),
		}).Error
	})
}

// Sell disposes of shares of symbol at the current quoted price, crediting
// the proceeds to the user's cash. A holding emptied by the sale is removed
// entirely. Fails with ErrInvalidShareCount, ErrUnknownSymbol,
// ErrQuoteUnavailable, or ErrInsufficientShares, never mutating on failure.
func (e *Engine) Sell(ctx context.Context, userID uint, symbol string, shares int64) error {
	if shares <= 0 {
		return ErrInvalidShareCount
	}
	quote, err := e.lookup(ctx, symbol)
	if err != nil {
		return err
	}
	proceeds := quote.Price.Mul(decimal.NewFromInt(shares))

	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Holding{}).
			Where("user_id = ? AND symbol = ? AND shares >= ?", userID, quote.Symbol, shares).
			Update("shares", gorm.Expr("shares - ?", shares))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Covers both "no such holding" and "not enough shares".
			return ErrInsufficientShares
		}
		if err := tx.Where("user_id = ? AND symbol = ? AND shares = 0", userID, quote.Symbol).
			Delete(&models.Holding{}).Error; err != nil {
			return err
		}

		res = tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("cash", gorm.Expr("cash + ?", proceeds))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Create(&models.Transaction{
			UserID:    userID,
			Type:      models.TxSell,
			Symbol:    quote.Symbol,
			Shares:    shares,
			Price:     quote.Price,
			Timestamp: time.Now(),
		}).Error
	})
}

// Position is one line of a valuation report. When the live price could not
// be fetched, Unavailable is set and Price/Value are zero; the line is
// excluded from the report total.
type Position struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name,omitempty"`
	Shares      int64           `json:"shares"`
	Price       decimal.Decimal `json:"price"`
	Value       decimal.Decimal `json:"value"`
	Unavailable bool            `json:"unavailable,omitempty"`
}

// Portfolio is the valuation report for one user.
type Portfolio struct {
	Positions []Position      `json:"positions"`
	Cash      decimal.Decimal `json:"cash"`
	Total     decimal.Decimal `json:"total"`
}

// Valuate computes the current value of a user's holdings at live prices.
// A symbol whose quote cannot be fetched degrades to an Unavailable line
// instead of failing the whole report.
func (e *Engine) Valuate(ctx context.Context, userID uint) (Portfolio, error) {
	db := e.db.WithContext(ctx)

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return Portfolio{}, err
	}
	var holdings []models.Holding
	if err := db.Where("user_id = ?", userID).Order("symbol").Find(&holdings).Error; err != nil {
		return Portfolio{}, err
	}

	report := Portfolio{
		Positions: make([]Position, 0, len(holdings)),
		Cash:      user.Cash,
		Total:     user.Cash,
	}
	for _, h := range holdings {
		pos := Position{Symbol: h.Symbol, Shares: h.Shares}
		quote, err := e.lookup(ctx, h.Symbol)
		if err != nil {
			pos.Unavailable = true
		} else {
			pos.Name = quote.Name
			pos.Price = quote.Price
			pos.Value = quote.Price.Mul(decimal.NewFromInt(h.Shares))
			report.Total = report.Total.Add(pos.Value)
		}
		report.Positions = append(report.Positions, pos)
	}
	return report, nil
}

// History returns the user's transaction log, newest first.
func (e *Engine) History(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := e.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC").
		Find(&txs).Error
	return txs, err
}

// RebuildHoldings recomputes a user's holdings from the transaction log,
// which is the authoritative record. Holdings are only a materialized view;
// this repairs the view if it ever drifts.
func (e *Engine) RebuildHoldings(ctx context.Context, userID uint) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txs []models.Transaction
		if err := tx.Where("user_id = ?", userID).Order("id").Find(&txs).Error; err != nil {
			return err
		}

		shares := make(map[string]int64)
		for _, t := range txs {
			switch t.Type {
			case models.TxBuy:
				shares[t.Symbol] += t.Shares
			case models.TxSell:
				shares[t.Symbol] -= t.Shares
			default:
				return fmt.Errorf("ledger corrupt: transaction %d has type %q", t.ID, t.Type)
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.Holding{}).Error; err != nil {
			return err
		}

		symbols := make([]string, 0, len(shares))
		for sym, n := range shares {
			if n < 0 {
				return fmt.Errorf("ledger corrupt: negative balance %d for %s", n, sym)
			}
			if n > 0 {
				symbols = append(symbols, sym)
			}
		}
		sort.Strings(symbols)

		for _, sym := range symbols {
			h := models.Holding{UserID: userID, Symbol: sym, Shares: shares[sym]}
			if err := tx.Create(&h).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// lookup translates provider errors into the engine's taxonomy.
func (e *Engine) lookup(ctx context.Context, symbol string) (quotes.Quote, error) {
	quote, err := e.quotes.Lookup(ctx, symbol)
	if err != nil {
		if errors.Is(err, quotes.ErrUnknownSymbol) {
			return quotes.Quote{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
		}
		return quotes.Quote{}, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	return quote, nil
}

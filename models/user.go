package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User is a registered account. Cash is the play-money balance; it is set
// once at registration and afterwards mutated only by buy/sell operations.
type User struct {
	gorm.Model
	Username     string          `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string          `gorm:"not null" json:"-"`
	Cash         decimal.Decimal `gorm:"type:numeric;not null" json:"cash"`
}

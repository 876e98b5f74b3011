package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Account is a seller account. DefaultVATRate is expressed in basis
// points (1900 = 19%) and backfills claims that carry no explicit rate.
type Account struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	Name           string       `gorm:"type:text;not null"`
	DefaultVATRate int32        `gorm:"not null;default:0"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Account) TableName() string { return "accounts" }

var ErrNotFound = errors.New("account_not_found")

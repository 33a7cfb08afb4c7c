package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the spendable balance of an identity. Payable transactions debit it,
// refunds and withdrawals credit it.
type Account struct {
	ObjectType string          `json:"objectType"`
	Owner      string          `json:"owner"`
	Balance    decimal.Decimal `json:"balance"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Treasury escrows antes, premiums and oracle fees; payouts are disbursed from it.
type Treasury struct {
	ObjectType string          `json:"objectType"`
	Balance    decimal.Decimal `json:"balance"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Credit is the amount owed to a passenger and claimable through Pay.
type Credit struct {
	ObjectType string          `json:"objectType"`
	Passenger  string          `json:"passenger"`
	Balance    decimal.Decimal `json:"balance"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

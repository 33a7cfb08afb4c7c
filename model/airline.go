package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContractState holds the process-wide settings written once by InitLedger.
type ContractState struct {
	ObjectType    string    `json:"objectType"`
	Owner         string    `json:"owner"`         // Full ID of the deploying identity
	IsOperational bool      `json:"isOperational"` // Halt flag gating every mutating transaction
	InitializedAt time.Time `json:"initializedAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// AirlineCounters tracks registry size. Total counts every registry entry, including
// candidates still collecting votes; Registered counts admitted members only.
type AirlineCounters struct {
	ObjectType string `json:"objectType"`
	Total      int    `json:"total"`
	Registered int    `json:"registered"`
}

// Airline is a consortium member or a candidate awaiting admission.
type Airline struct {
	ObjectType   string          `json:"objectType"`
	Address      string          `json:"address"`
	CompanyName  string          `json:"companyName"`
	Index        int             `json:"index"` // Registry insertion order
	IsRegistered bool            `json:"isRegistered"`
	IsFunded     bool            `json:"isFunded"`
	Voters       []string        `json:"voters"` // Sorted, unique
	FundedAmount decimal.Decimal `json:"fundedAmount"`
	CreatedAt    time.Time       `json:"createdAt"`
	RegisteredAt time.Time       `json:"registeredAt"`
	FundedAt     time.Time       `json:"fundedAt"`
}

// Votes is the number of distinct members that voted for this airline.
func (a *Airline) Votes() int {
	return len(a.Voters)
}

// HasVoted reports whether voter already cast a vote for this airline.
func (a *Airline) HasVoted(voter string) bool {
	for _, v := range a.Voters {
		if v == voter {
			return true
		}
	}
	return false
}

// AirlineStatus is the result of GetAirlineStatus.
type AirlineStatus struct {
	IsRegistered bool `json:"isRegistered"`
	Votes        int  `json:"votes"`
}

// AirlineInfo is the public view of a registry entry returned by GetAirlineByIdx.
type AirlineInfo struct {
	Address      string `json:"address"`
	CompanyName  string `json:"companyName"`
	IsRegistered bool   `json:"isRegistered"`
	IsFunded     bool   `json:"isFunded"`
	Votes        int    `json:"votes"`
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Oracle is a fee-paying account allowed to answer requests for its indexes.
type Oracle struct {
	ObjectType   string          `json:"objectType"`
	Address      string          `json:"address"`
	Indexes      []int           `json:"indexes"`
	Fee          decimal.Decimal `json:"fee"`
	RegisteredAt time.Time       `json:"registeredAt"`
}

// HasIndex reports whether the oracle was assigned idx.
func (o *Oracle) HasIndex(idx int) bool {
	for _, i := range o.Indexes {
		if i == idx {
			return true
		}
	}
	return false
}

// OracleRequest collects responses for one flight status query.
type OracleRequest struct {
	ObjectType  string                  `json:"objectType"`
	RequestID   string                  `json:"requestId"`
	Index       int                     `json:"index"`
	Airline     string                  `json:"airline"`
	CallSign    string                  `json:"callSign"`
	Timestamp   uint64                  `json:"timestamp"`
	Requester   string                  `json:"requester"`
	IsOpen      bool                    `json:"isOpen"`
	Responses   map[StatusCode][]string `json:"responses"` // Each oracle list is sorted
	OpenedAt    time.Time               `json:"openedAt"`
	ClosedAt    time.Time               `json:"closedAt"`
	FinalStatus StatusCode              `json:"finalStatus"`
}

// HasResponded reports whether oracle already reported any code on this request.
func (r *OracleRequest) HasResponded(oracle string) bool {
	for _, oracles := range r.Responses {
		for _, o := range oracles {
			if o == oracle {
				return true
			}
		}
	}
	return false
}

// OracleRequestInfo is the query view of an OracleRequest.
type OracleRequestInfo struct {
	RequestID      string         `json:"requestId"`
	Index          int            `json:"index"`
	IsOpen         bool           `json:"isOpen"`
	FinalStatus    StatusCode     `json:"finalStatus"`
	ResponseCounts map[string]int `json:"responseCounts"` // Keyed by status code name
}

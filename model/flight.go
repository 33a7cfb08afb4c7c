package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Flight is a scheduled flight published by a funded airline.
// (Airline, CallSign, Timestamp) is its immutable key.
type Flight struct {
	ObjectType   string     `json:"objectType"`
	Airline      string     `json:"airline"`
	CallSign     string     `json:"callSign"`
	Timestamp    uint64     `json:"timestamp"`
	Status       StatusCode `json:"status"`
	IsRegistered bool       `json:"isRegistered"`
	RegisteredAt time.Time  `json:"registeredAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Policy is a passenger's delay insurance on one flight.
type Policy struct {
	ObjectType  string          `json:"objectType"`
	Passenger   string          `json:"passenger"`
	Airline     string          `json:"airline"`
	CallSign    string          `json:"callSign"`
	Timestamp   uint64          `json:"timestamp"`
	AmountPaid  decimal.Decimal `json:"amountPaid"`
	IsCredited  bool            `json:"isCredited"`
	PurchasedAt time.Time       `json:"purchasedAt"`
	CreditedAt  time.Time       `json:"creditedAt"`
}

// PolicyInfo is the query view of a Policy with amounts rendered as decimal strings.
type PolicyInfo struct {
	Passenger  string `json:"passenger"`
	Airline    string `json:"airline"`
	CallSign   string `json:"callSign"`
	Timestamp  uint64 `json:"timestamp"`
	AmountPaid string `json:"amountPaid"`
	IsCredited bool   `json:"isCredited"`
}

// FlightInfo is the query view of a Flight, the payload of the flights listing.
type FlightInfo struct {
	Airline    string     `json:"airline"`
	CallSign   string     `json:"callSign"`
	Timestamp  uint64     `json:"timestamp"`
	Status     StatusCode `json:"status"`
	StatusName string     `json:"statusName"`
}

// Info returns the query view of f.
func (f *Flight) Info() FlightInfo {
	return FlightInfo{
		Airline:    f.Airline,
		CallSign:   f.CallSign,
		Timestamp:  f.Timestamp,
		Status:     f.Status,
		StatusName: f.Status.String(),
	}
}

// Info returns the query view of p.
func (p *Policy) Info() PolicyInfo {
	return PolicyInfo{
		Passenger:  p.Passenger,
		Airline:    p.Airline,
		CallSign:   p.CallSign,
		Timestamp:  p.Timestamp,
		AmountPaid: p.AmountPaid.String(),
		IsCredited: p.IsCredited,
	}
}

package contract

import (
	"testing"

	"flightsurety/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOperatingStatusOwnerOnly(t *testing.T) {
	l := newInitializedLedger(t)

	err := l.cc.SetOperatingStatus(l.as(founderID), false)
	requireCode(t, err, ErrNotOwner)

	require.NoError(t, l.cc.SetOperatingStatus(l.as(ownerID), false))
	var ev model.OperatingStatusEvent
	assert.Equal(t, model.EventOperatingStatusChanged, l.lastEvent(&ev))
	assert.False(t, ev.IsOperational)
	assert.Equal(t, ownerID, ev.ChangedBy)

	operational, err := l.cc.IsOperational(l.as(passenger1))
	require.NoError(t, err)
	assert.False(t, operational)
}

func TestHaltBlocksMutationsOnly(t *testing.T) {
	l := newInitializedLedger(t)
	l.registerFundedAirlines(2)
	l.registerFlight(founderID, "BA101", 1700000000)
	l.deposit(passenger1, "5")
	require.NoError(t, l.cc.SetOperatingStatus(l.as(ownerID), false))

	requireCode(t, l.cc.RegisterAirline(l.as(founderID), airlineID(5), "Halted Air"), ErrNotOperational)
	requireCode(t, l.cc.Fund(l.as(airlineID(1)), "10"), ErrNotOperational)
	requireCode(t, l.cc.RegisterFlight(l.as(founderID), "BA102", 1700000000), ErrNotOperational)
	requireCode(t, l.cc.Buy(l.as(passenger1), founderID, "BA101", 1700000000, "1"), ErrNotOperational)
	_, err := l.cc.RegisterOracle(l.as(passenger1), "1")
	requireCode(t, err, ErrNotOperational)
	_, err = l.cc.FetchFlightStatus(l.as(passenger1), founderID, "BA101", 1700000000)
	requireCode(t, err, ErrNotOperational)
	requireCode(t, l.cc.SubmitOracleResponse(l.as(passenger1), 0, founderID, "BA101", 1700000000, 10), ErrNotOperational)
	requireCode(t, l.cc.Pay(l.as(passenger1)), ErrNotOperational)
	requireCode(t, l.cc.Deposit(l.as(ownerID), passenger1, "1"), ErrNotOperational)

	flights, err := l.cc.GetFlights(l.as(passenger1))
	require.NoError(t, err)
	assert.Len(t, flights, 1)
	assert.Equal(t, "5", l.balance(passenger1))

	require.NoError(t, l.cc.SetOperatingStatus(l.as(ownerID), true))
	require.NoError(t, l.cc.Buy(l.as(passenger1), founderID, "BA101", 1700000000, "1"))
}

func TestHaltCheckedBeforeOtherGuards(t *testing.T) {
	l := newInitializedLedger(t)
	require.NoError(t, l.cc.SetOperatingStatus(l.as(ownerID), false))

	// an unregistered caller still sees the halt first
	requireCode(t, l.cc.Fund(l.as(passenger1), "1"), ErrNotOperational)
}

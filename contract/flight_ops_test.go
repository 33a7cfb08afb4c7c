package contract

import (
	"testing"

	"flightsurety/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFlight(t *testing.T) {
	l := newInitializedLedger(t)

	requireCode(t, l.cc.RegisterFlight(l.as(founderID), "BA101", 1700000000), ErrCallerNotFunded)
	requireCode(t, l.cc.RegisterFlight(l.as(passenger1), "BA101", 1700000000), ErrCallerNotFunded)

	l.fund(founderID)
	requireCode(t, l.cc.RegisterFlight(l.as(founderID), "", 1700000000), ErrInvalidInput)
	requireCode(t, l.cc.RegisterFlight(l.as(founderID), "BA101", 0), ErrInvalidInput)

	l.registerFlight(founderID, "BA101", 1700000000)
	var ev model.FlightRegisteredEvent
	assert.Equal(t, model.EventFlightRegistered, l.lastEvent(&ev))
	assert.Equal(t, "BA101", ev.Flight)

	requireCode(t, l.cc.RegisterFlight(l.as(founderID), "BA101", 1700000000), ErrDuplicateFlight)

	// same call sign, different departure
	l.registerFlight(founderID, "BA101", 1700086400)

	flight, err := l.cc.GetFlight(l.as(passenger1), founderID, "BA101", 1700000000)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnknown, flight.Status)
	assert.Equal(t, "UNKNOWN", flight.StatusName)
}

func TestGetFlights(t *testing.T) {
	l := newInitializedLedger(t)
	l.registerFundedAirlines(2)

	flights, err := l.cc.GetFlights(l.as(passenger1))
	require.NoError(t, err)
	assert.Empty(t, flights)

	l.registerFlight(founderID, "BA101", 1700000000)
	l.registerFlight(airlineID(1), "LH400", 1700003600)

	flights, err = l.cc.GetFlights(l.as(passenger1))
	require.NoError(t, err)
	require.Len(t, flights, 2)
	callSigns := []string{flights[0].CallSign, flights[1].CallSign}
	assert.ElementsMatch(t, []string{"BA101", "LH400"}, callSigns)

	_, err = l.cc.GetFlight(l.as(passenger1), founderID, "LH400", 1700003600)
	requireCode(t, err, ErrFlightNotFound)
}

package contract

import (
	"fmt"
	"testing"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lateFlightLedger insures passenger1 and passenger2 on BA101 and has the oracles report
// it late through the airline's fault.
func lateFlightLedger(t *testing.T) *ledger {
	t.Helper()
	l := newInsuranceLedger(t)
	l.deposit(passenger2, "5")
	require.NoError(t, l.cc.Buy(l.as(passenger1), founderID, flightBA101, departure, "3"))
	require.NoError(t, l.cc.Buy(l.as(passenger2), founderID, flightBA101, departure, "0.5"))

	holders := l.registerOracles()
	index, err := l.cc.FetchFlightStatus(l.as(passenger1), founderID, flightBA101, departure)
	require.NoError(t, err)
	reportLate(t, l, holders[index], index)
	return l
}

// reportLate has a quorum of oracles report BA101 late through the airline's fault on index.
func reportLate(t *testing.T, l *ledger, oracles []string, index int) {
	t.Helper()
	require.GreaterOrEqual(t, len(oracles), MinOracleResponses)
	for _, oracle := range oracles[:MinOracleResponses] {
		require.NoError(t, l.cc.SubmitOracleResponse(l.as(oracle), index, founderID, flightBA101, departure, int(model.StatusLateAirline)))
	}
}

func TestLateAirlineCreditsPassengers(t *testing.T) {
	l := lateFlightLedger(t)

	var final model.FlightStatusInfoEvent
	assert.Equal(t, model.EventFlightStatusInfo, l.lastEvent(&final))
	assert.Equal(t, model.StatusLateAirline, final.Status)
	assert.Equal(t, 2, final.CreditedPolicies)

	assert.Equal(t, "1.5", l.credit(passenger1))
	assert.Equal(t, "0.75", l.credit(passenger2))

	policy, err := l.cc.GetPolicy(l.as(passenger1), founderID, flightBA101, departure, passenger1)
	require.NoError(t, err)
	assert.True(t, policy.IsCredited)
}

func TestSecondLateFinalizationDoesNotDoubleCredit(t *testing.T) {
	l := newInsuranceLedger(t)
	require.NoError(t, l.cc.Buy(l.as(passenger1), founderID, flightBA101, departure, "1"))
	holders := l.registerOracles()

	first, err := l.cc.FetchFlightStatus(l.asTx(passenger1, "fetch-first"), founderID, flightBA101, departure)
	require.NoError(t, err)
	reportLate(t, l, holders[first], first)
	assert.Equal(t, "1.5", l.credit(passenger1))

	// Fetch again until the request lands on another index; the closed one is refused.
	second := first
	for i := 0; i < 100 && second == first; i++ {
		index, err := l.cc.FetchFlightStatus(l.asTx(passenger1, fmt.Sprintf("fetch-again-%03d", i)), founderID, flightBA101, departure)
		if err != nil {
			requireCode(t, err, ErrRequestClosed)
			continue
		}
		second = index
	}
	require.NotEqual(t, first, second)

	reportLate(t, l, holders[second], second)
	var final model.FlightStatusInfoEvent
	assert.Equal(t, model.EventFlightStatusInfo, l.lastEvent(&final))
	assert.Equal(t, model.StatusLateAirline, final.Status)
	assert.Equal(t, 0, final.CreditedPolicies)
	assert.Equal(t, "1.5", l.credit(passenger1))
}

func TestPayWithdrawsCredit(t *testing.T) {
	l := lateFlightLedger(t)
	before, err := l.cc.GetTreasuryBalance(l.as(ownerID))
	require.NoError(t, err)

	require.NoError(t, l.cc.Pay(l.as(passenger1)))
	var ev model.TransferEvent
	assert.Equal(t, model.EventCreditWithdrawn, l.lastEvent(&ev))
	assert.Equal(t, "1.5", ev.Amount)
	assert.Equal(t, passenger1, ev.To)

	assert.Equal(t, "5.5", l.balance(passenger1))
	assert.Equal(t, "0", l.credit(passenger1))
	after, err := l.cc.GetTreasuryBalance(l.as(ownerID))
	require.NoError(t, err)
	assert.Equal(t, decimal.RequireFromString(before).Sub(decimal.RequireFromString("1.5")).String(), after)

	requireCode(t, l.cc.Pay(l.as(passenger1)), ErrNoCredit)
}

func TestPayWithoutCredit(t *testing.T) {
	l := newInitializedLedger(t)
	requireCode(t, l.cc.Pay(l.as(passenger1)), ErrNoCredit)
}

func TestPayInsufficientTreasury(t *testing.T) {
	l := newInitializedLedger(t)
	ctx := l.as(passenger1)
	require.NoError(t, putCredit(ctx, &model.Credit{
		ObjectType: creditObjectType,
		Passenger:  passenger1,
		Balance:    decimal.NewFromInt(100),
	}))

	requireCode(t, l.cc.Pay(l.as(passenger1)), ErrInsufficientTreasury)
	assert.Equal(t, "100", l.credit(passenger1))
}

// reentrantDisburser calls Pay again from inside the disbursement.
type reentrantDisburser struct {
	cc    *FlightSuretyContract
	inner Disburser
	err   error
	calls int
}

func (d *reentrantDisburser) Disburse(ctx contractapi.TransactionContextInterface, to string, amount decimal.Decimal) error {
	d.calls++
	if d.calls == 1 {
		d.err = d.cc.Pay(ctx)
	}
	return d.inner.Disburse(ctx, to, amount)
}

// Checks ordering only: MockStub reads a transaction's own writes, a Fabric peer does not.
func TestReentrantPayObservesZeroCredit(t *testing.T) {
	l := lateFlightLedger(t)
	disburser := &reentrantDisburser{cc: l.cc, inner: ledgerDisburser{}}
	l.cc.disburser = disburser

	require.NoError(t, l.cc.Pay(l.as(passenger1)))
	requireCode(t, disburser.err, ErrNoCredit)
	assert.Equal(t, 1, disburser.calls)
	assert.Equal(t, "5.5", l.balance(passenger1))
}

func TestDeposit(t *testing.T) {
	l := newInitializedLedger(t)

	requireCode(t, l.cc.Deposit(l.as(founderID), passenger1, "5"), ErrNotOwner)
	requireCode(t, l.cc.Deposit(l.as(ownerID), passenger1, "-5"), ErrInvalidInput)
	requireCode(t, l.cc.Deposit(l.as(ownerID), "", "5"), ErrInvalidInput)

	l.deposit(passenger1, "2.5")
	l.deposit(passenger1, "2.5")
	var ev model.TransferEvent
	assert.Equal(t, model.EventDeposit, l.lastEvent(&ev))
	assert.Equal(t, ownerID, ev.From)
	assert.Equal(t, "5", l.balance(passenger1))
	assert.Equal(t, "0", l.balance(passenger2))
}

func TestZeroValueContractSettlesOnLedger(t *testing.T) {
	var cc FlightSuretyContract
	assert.Equal(t, ledgerDisburser{}, cc.getDisburser())
}

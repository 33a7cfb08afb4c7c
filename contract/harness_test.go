package contract

import (
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	ownerID    = "x509::CN=owner::CN=ca"
	founderID  = "x509::CN=airline0::CN=ca"
	passenger1 = "x509::CN=passenger1::CN=ca"
	passenger2 = "x509::CN=passenger2::CN=ca"

	testOracleCount = 30
)

func airlineID(n int) string {
	return fmt.Sprintf("x509::CN=airline%d::CN=ca", n)
}

func oracleID(n int) string {
	return fmt.Sprintf("x509::CN=oracle%02d::CN=ca", n)
}

// fakeIdentity satisfies cid.ClientIdentity with a fixed ID.
type fakeIdentity struct {
	id    string
	mspID string
}

func (f *fakeIdentity) GetID() (string, error)    { return f.id, nil }
func (f *fakeIdentity) GetMSPID() (string, error) { return f.mspID, nil }
func (f *fakeIdentity) GetAttributeValue(string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeIdentity) AssertAttributeValue(name, _ string) error {
	return fmt.Errorf("attribute %s not found", name)
}
func (f *fakeIdentity) GetX509Certificate() (*x509.Certificate, error) { return nil, nil }

type recordedEvent struct {
	Name    string
	Payload []byte
}

// ledger drives a FlightSuretyContract against an in-memory MockStub. Each call to as
// starts a new transaction at the ledger's clock.
type ledger struct {
	t      *testing.T
	stub   *shimtest.MockStub
	cc     *FlightSuretyContract
	now    time.Time
	seq    int
	events []recordedEvent
}

func newLedger(t *testing.T) *ledger {
	t.Helper()
	return &ledger{
		t:    t,
		stub: shimtest.NewMockStub("flightsurety", nil),
		cc:   NewFlightSuretyContract(),
		now:  time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC),
	}
}

// newInitializedLedger returns a ledger owned by ownerID with founderID as the
// founding airline.
func newInitializedLedger(t *testing.T) *ledger {
	t.Helper()
	l := newLedger(t)
	require.NoError(t, l.cc.InitLedger(l.as(ownerID), founderID, "Founder Air"))
	return l
}

func (l *ledger) as(id string) contractapi.TransactionContextInterface {
	l.seq++
	return l.asTx(id, fmt.Sprintf("tx-%05d", l.seq))
}

func (l *ledger) asTx(id, txID string) contractapi.TransactionContextInterface {
	l.drain()
	l.stub.MockTransactionStart(txID)
	l.stub.TxTimestamp = timestamppb.New(l.now)
	ctx := new(contractapi.TransactionContext)
	ctx.SetStub(l.stub)
	ctx.SetClientIdentity(&fakeIdentity{id: id, mspID: "Org1MSP"})
	return ctx
}

func (l *ledger) advance(d time.Duration) {
	l.now = l.now.Add(d)
}

func (l *ledger) drain() {
	for {
		select {
		case ev := <-l.stub.ChaincodeEventsChannel:
			l.events = append(l.events, recordedEvent{Name: ev.EventName, Payload: ev.Payload})
		default:
			return
		}
	}
}

// lastEvent decodes the most recent event into payload and returns its name.
func (l *ledger) lastEvent(payload interface{}) string {
	l.t.Helper()
	l.drain()
	require.NotEmpty(l.t, l.events, "no events emitted")
	ev := l.events[len(l.events)-1]
	if payload != nil {
		require.NoError(l.t, json.Unmarshal(ev.Payload, payload))
	}
	return ev.Name
}

func (l *ledger) eventCount() int {
	l.drain()
	return len(l.events)
}

// --- fixtures ---

func (l *ledger) deposit(to, amount string) {
	l.t.Helper()
	require.NoError(l.t, l.cc.Deposit(l.as(ownerID), to, amount))
}

func (l *ledger) fund(airline string) {
	l.t.Helper()
	l.deposit(airline, "10")
	require.NoError(l.t, l.cc.Fund(l.as(airline), "10"))
}

// registerFundedAirlines funds the founder and registers and funds airlines 1..n-1
// during bootstrap.
func (l *ledger) registerFundedAirlines(n int) {
	l.t.Helper()
	l.fund(founderID)
	for i := 1; i < n; i++ {
		require.NoError(l.t, l.cc.RegisterAirline(l.as(founderID), airlineID(i), fmt.Sprintf("Airline %d", i)))
		l.fund(airlineID(i))
	}
}

func (l *ledger) registerFlight(airline, callSign string, ts uint64) {
	l.t.Helper()
	require.NoError(l.t, l.cc.RegisterFlight(l.as(airline), callSign, ts))
}

// registerOracles registers testOracleCount oracles with fixed transaction ids so their
// index assignment is stable, and returns the oracles holding each index.
func (l *ledger) registerOracles() map[int][]string {
	l.t.Helper()
	holders := map[int][]string{}
	for i := 0; i < testOracleCount; i++ {
		l.deposit(oracleID(i), "1")
		indexes, err := l.cc.RegisterOracle(l.asTx(oracleID(i), fmt.Sprintf("oracle-reg-%02d", i)), "1")
		require.NoError(l.t, err)
		for _, idx := range indexes {
			holders[idx] = append(holders[idx], oracleID(i))
		}
	}
	return holders
}

func (l *ledger) balance(address string) string {
	l.t.Helper()
	b, err := l.cc.GetBalance(l.as(address), address)
	require.NoError(l.t, err)
	return b
}

func (l *ledger) credit(address string) string {
	l.t.Helper()
	c, err := l.cc.GetCredit(l.as(address), address)
	require.NoError(l.t, err)
	return c
}

func requireCode(t *testing.T, err error, sentinel *ContractError) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, sentinel), "expected %s, got %v", sentinel.Code, err)
}

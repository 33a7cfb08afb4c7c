package oracle

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"flightsurety/contract"
	"flightsurety/model"

	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type staticIdentity string

func (s staticIdentity) GetID() (string, error)                         { return string(s), nil }
func (s staticIdentity) GetMSPID() (string, error)                      { return "Org1MSP", nil }
func (s staticIdentity) GetAttributeValue(string) (string, bool, error) { return "", false, nil }
func (s staticIdentity) AssertAttributeValue(string, string) error {
	return fmt.Errorf("no attributes")
}
func (s staticIdentity) GetX509Certificate() (*x509.Certificate, error) { return nil, nil }

// chaincodeLedger runs every call as its own transaction on a MockStub. The mutex
// stands in for the ordering service: transactions apply one at a time.
type chaincodeLedger struct {
	mu     sync.Mutex
	stub   *shimtest.MockStub
	cc     *contract.FlightSuretyContract
	seq    int
	now    time.Time
	events []model.OracleRequestEvent
}

func newChaincodeLedger() *chaincodeLedger {
	return &chaincodeLedger{
		stub: shimtest.NewMockStub("flightsurety", nil),
		cc:   contract.NewFlightSuretyContract(),
		now:  time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (c *chaincodeLedger) invoke(id string, fn func(contractapi.TransactionContextInterface) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.now = c.now.Add(time.Second)
	c.stub.MockTransactionStart(fmt.Sprintf("e2e-%05d", c.seq))
	c.stub.TxTimestamp = timestamppb.New(c.now)
	ctx := new(contractapi.TransactionContext)
	ctx.SetStub(c.stub)
	ctx.SetClientIdentity(staticIdentity(id))
	err := fn(ctx)
	c.stub.MockTransactionEnd(fmt.Sprintf("e2e-%05d", c.seq))
	c.collect()
	return err
}

func (c *chaincodeLedger) collect() {
	for {
		select {
		case ev := <-c.stub.ChaincodeEventsChannel:
			if ev.EventName != model.EventOracleRequest {
				continue
			}
			var req model.OracleRequestEvent
			if err := json.Unmarshal(ev.Payload, &req); err == nil {
				c.events = append(c.events, req)
			}
		default:
			return
		}
	}
}

func (c *chaincodeLedger) lastRequest() model.OracleRequestEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

func (c *chaincodeLedger) RegisterOracle(_ context.Context, oracle string, fee string) ([]int, error) {
	var indexes []int
	err := c.invoke(oracle, func(ctx contractapi.TransactionContextInterface) error {
		var err error
		indexes, err = c.cc.RegisterOracle(ctx, fee)
		return err
	})
	return indexes, err
}

func (c *chaincodeLedger) MyIndexes(_ context.Context, oracle string) ([]int, error) {
	var indexes []int
	err := c.invoke(oracle, func(ctx contractapi.TransactionContextInterface) error {
		var err error
		indexes, err = c.cc.GetMyIndexes(ctx)
		return err
	})
	return indexes, err
}

func (c *chaincodeLedger) SubmitOracleResponse(_ context.Context, oracle string, req model.OracleRequestEvent, status model.StatusCode) error {
	return c.invoke(oracle, func(ctx contractapi.TransactionContextInterface) error {
		return c.cc.SubmitOracleResponse(ctx, req.Index, req.Airline, req.Flight, req.Timestamp, int(status))
	})
}

const (
	e2eOwner     = "x509::CN=owner"
	e2eAirline   = "x509::CN=airline"
	e2ePassenger = "x509::CN=passenger"
)

func TestSimulatorSettlesLateFlightOnChaincode(t *testing.T) {
	ledger := newChaincodeLedger()
	cc := ledger.cc
	must := func(id string, fn func(contractapi.TransactionContextInterface) error) {
		t.Helper()
		require.NoError(t, ledger.invoke(id, fn))
	}

	must(e2eOwner, func(ctx contractapi.TransactionContextInterface) error {
		return cc.InitLedger(ctx, e2eAirline, "Sim Air")
	})
	must(e2eOwner, func(ctx contractapi.TransactionContextInterface) error { return cc.Deposit(ctx, e2eAirline, "10") })
	must(e2eAirline, func(ctx contractapi.TransactionContextInterface) error { return cc.Fund(ctx, "10") })
	must(e2eAirline, func(ctx contractapi.TransactionContextInterface) error {
		return cc.RegisterFlight(ctx, "SA1", 1700000000)
	})
	must(e2eOwner, func(ctx contractapi.TransactionContextInterface) error { return cc.Deposit(ctx, e2ePassenger, "5") })
	must(e2ePassenger, func(ctx contractapi.TransactionContextInterface) error {
		return cc.Buy(ctx, e2eAirline, "SA1", 1700000000, "2")
	})

	metrics := NewMetrics(prometheus.NewRegistry())
	sim := New(ledger, Options{
		Count:        20,
		MaxAttempts:  2,
		RetryBackoff: time.Millisecond,
		Chooser:      FixedStatus(model.StatusLateAirline),
		Metrics:      metrics,
	})
	for i := 0; i < 20; i++ {
		name := sim.OracleName(i)
		must(e2eOwner, func(ctx contractapi.TransactionContextInterface) error { return cc.Deposit(ctx, name, "1") })
	}
	require.NoError(t, sim.Register(context.Background()))
	assert.Equal(t, float64(20), testutil.ToFloat64(metrics.Registered))

	// Ask until the request lands on an index enough simulated oracles hold.
	var req model.OracleRequestEvent
	for i := 0; i < 50; i++ {
		must(e2ePassenger, func(ctx contractapi.TransactionContextInterface) error {
			_, err := cc.FetchFlightStatus(ctx, e2eAirline, "SA1", 1700000000)
			return err
		})
		req = ledger.lastRequest()
		if len(sim.Holders(req.Index)) >= contract.MinOracleResponses {
			break
		}
	}
	require.GreaterOrEqual(t, len(sim.Holders(req.Index)), contract.MinOracleResponses)

	events := make(chan model.OracleRequestEvent, 2)
	events <- req
	events <- req
	close(events)
	require.NoError(t, sim.Run(context.Background(), events))

	holders := len(sim.Holders(req.Index))
	assert.Equal(t, float64(contract.MinOracleResponses), testutil.ToFloat64(metrics.Responses.WithLabelValues("accepted", "LATE_AIRLINE")))
	assert.Equal(t, float64(holders-contract.MinOracleResponses), testutil.ToFloat64(metrics.Rejections.WithLabelValues("REQUEST_CLOSED")))

	var flight *model.FlightInfo
	must(e2ePassenger, func(ctx contractapi.TransactionContextInterface) error {
		var err error
		flight, err = cc.GetFlight(ctx, e2eAirline, "SA1", 1700000000)
		return err
	})
	assert.Equal(t, model.StatusLateAirline, flight.Status)

	var credit, balance string
	must(e2ePassenger, func(ctx contractapi.TransactionContextInterface) error {
		var err error
		credit, err = cc.GetCredit(ctx, e2ePassenger)
		return err
	})
	assert.Equal(t, "1.5", credit)

	must(e2ePassenger, func(ctx contractapi.TransactionContextInterface) error { return cc.Pay(ctx) })
	must(e2ePassenger, func(ctx contractapi.TransactionContextInterface) error {
		var err error
		balance, err = cc.GetBalance(ctx, e2ePassenger)
		return err
	})
	assert.Equal(t, "5.5", balance)
}

package contract

import (
	"fmt"
	"time"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
	"github.com/shopspring/decimal"
)

var logger = flogging.MustGetLogger("flightsurety.contract")

// Object types, used as composite key prefixes and as the objectType field of stored
// documents.
const (
	contractStateObjectType   = "ContractState"
	airlineCountersObjectType = "AirlineCounters"
	airlineObjectType         = "Airline"
	airlineIndexObjectType    = "AirlineIndex"
	flightObjectType          = "Flight"
	policyObjectType          = "Policy"
	creditObjectType          = "Credit"
	accountObjectType         = "Account"
	treasuryObjectType        = "Treasury"
	oracleObjectType          = "Oracle"
	oracleRequestObjectType   = "OracleRequest"
)

// Consortium and oracle parameters.
const (
	// BootstrapAirlineCount is the number of registered members below which a funded
	// member admits new airlines without a vote.
	BootstrapAirlineCount = 4
	// MinOracleResponses is the quorum of matching responses that finalizes a status.
	MinOracleResponses = 3
	// OracleIndexCount is how many distinct indexes each oracle is assigned.
	OracleIndexCount = 3
	// OracleIndexRange bounds indexes to [0, OracleIndexRange).
	OracleIndexRange = 10
	// OracleRequestTTL is how long a request accepts responses after it is opened.
	OracleRequestTTL = 24 * time.Hour
)

const (
	maxStringInputLength = 256
)

// Currency parameters, in whole units.
var (
	MinimumFunding   = decimal.NewFromInt(10)
	InsuranceCap     = decimal.NewFromInt(1)
	RegistrationFee  = decimal.NewFromInt(1)
	PayoutMultiplier = decimal.RequireFromString("1.5")
)

// FlightSuretyContract implements the airline consortium, insurance and oracle engine.
// @contract:FlightSuretyContract
type FlightSuretyContract struct {
	contractapi.Contract
	disburser Disburser
}

// NewFlightSuretyContract returns a contract that settles withdrawals on the ledger's
// own accounts.
func NewFlightSuretyContract() *FlightSuretyContract {
	return &FlightSuretyContract{disburser: ledgerDisburser{}}
}

func (s *FlightSuretyContract) getDisburser() Disburser {
	if s.disburser == nil {
		return ledgerDisburser{}
	}
	return s.disburser
}

// InitLedger records the caller as owner, turns the contract operational and registers
// the founding airline. It can only run once.
func (s *FlightSuretyContract) InitLedger(ctx contractapi.TransactionContextInterface, firstAirline string, firstAirlineName string) error {
	logger.Infof("Chaincode Call: InitLedger with founding airline '%s' (%s)", firstAirline, firstAirlineName)

	if err := validateRequiredString(firstAirline, "firstAirline", maxStringInputLength); err != nil {
		return err
	}
	if err := validateRequiredString(firstAirlineName, "firstAirlineName", maxStringInputLength); err != nil {
		return err
	}

	existing, err := getContractState(ctx)
	if err != nil && !isNotInitialized(err) {
		return fmt.Errorf("InitLedger: %w", err)
	}
	if existing != nil {
		return reject(ErrAlreadyInitialized, "ledger was initialized at %s", existing.InitializedAt.Format(time.RFC3339))
	}

	owner, err := callerID(ctx)
	if err != nil {
		return fmt.Errorf("InitLedger: %w", err)
	}
	now, err := getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("InitLedger: %w", err)
	}

	state := &model.ContractState{
		ObjectType:    contractStateObjectType,
		Owner:         owner,
		IsOperational: true,
		InitializedAt: now,
		UpdatedAt:     now,
	}
	if err := putContractState(ctx, state); err != nil {
		return fmt.Errorf("InitLedger: %w", err)
	}

	founder := &model.Airline{
		ObjectType:   airlineObjectType,
		Address:      firstAirline,
		CompanyName:  firstAirlineName,
		Index:        0,
		IsRegistered: true,
		IsFunded:     false,
		Voters:       []string{},
		FundedAmount: decimal.Zero,
		CreatedAt:    now,
		RegisteredAt: now,
	}
	if err := putAirline(ctx, founder); err != nil {
		return fmt.Errorf("InitLedger: %w", err)
	}
	if err := putAirlineIndex(ctx, 0, firstAirline); err != nil {
		return fmt.Errorf("InitLedger: %w", err)
	}
	counters := &model.AirlineCounters{ObjectType: airlineCountersObjectType, Total: 1, Registered: 1}
	if err := putAirlineCounters(ctx, counters); err != nil {
		return fmt.Errorf("InitLedger: %w", err)
	}

	emitEvent(ctx, model.EventAirlineRegistered, &model.AirlineEvent{
		Airline:      firstAirline,
		CompanyName:  firstAirlineName,
		Actor:        owner,
		IsRegistered: true,
	})
	logger.Infof("InitLedger: owner '%s', founding airline '%s' registered", owner, firstAirline)
	return nil
}

package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/shopspring/decimal"
)

// --- Core Helper Methods (used across multiple operations) ---

// getCurrentTxTimestamp retrieves the current transaction timestamp from the stub.
func getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime().UTC(), nil
}

// getJSON reads key and unmarshals it into out. found is false when the key is absent.
func getJSON(ctx contractapi.TransactionContextInterface, key string, out interface{}) (bool, error) {
	raw, err := ctx.GetStub().GetState(key)
	if err != nil {
		return false, fmt.Errorf("failed to read state: %w", err)
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return true, nil
}

func putJSON(ctx contractapi.TransactionContextInterface, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := ctx.GetStub().PutState(key, raw); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

func formatTimestamp(ts uint64) string {
	return strconv.FormatUint(ts, 10)
}

// --- Key Creation Helpers (using Composite Keys) ---

func contractStateKey(ctx contractapi.TransactionContextInterface) (string, error) {
	return ctx.GetStub().CreateCompositeKey(contractStateObjectType, []string{})
}

func airlineCountersKey(ctx contractapi.TransactionContextInterface) (string, error) {
	return ctx.GetStub().CreateCompositeKey(airlineCountersObjectType, []string{})
}

func airlineKey(ctx contractapi.TransactionContextInterface, address string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(airlineObjectType, []string{address})
}

// Zero padded so that range scans return the registry in insertion order.
func airlineIndexKey(ctx contractapi.TransactionContextInterface, idx int) (string, error) {
	return ctx.GetStub().CreateCompositeKey(airlineIndexObjectType, []string{fmt.Sprintf("%08d", idx)})
}

func flightKey(ctx contractapi.TransactionContextInterface, airline, callSign string, ts uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(flightObjectType, []string{airline, callSign, formatTimestamp(ts)})
}

func policyKey(ctx contractapi.TransactionContextInterface, airline, callSign string, ts uint64, passenger string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(policyObjectType, []string{airline, callSign, formatTimestamp(ts), passenger})
}

func creditKey(ctx contractapi.TransactionContextInterface, passenger string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(creditObjectType, []string{passenger})
}

func accountKey(ctx contractapi.TransactionContextInterface, owner string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(accountObjectType, []string{owner})
}

func treasuryKey(ctx contractapi.TransactionContextInterface) (string, error) {
	return ctx.GetStub().CreateCompositeKey(treasuryObjectType, []string{})
}

func oracleKey(ctx contractapi.TransactionContextInterface, address string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(oracleObjectType, []string{address})
}

func oracleRequestKey(ctx contractapi.TransactionContextInterface, index int, airline, callSign string, ts uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(oracleRequestObjectType, []string{strconv.Itoa(index), airline, callSign, formatTimestamp(ts)})
}

// --- Typed state accessors ---

func isNotInitialized(err error) bool {
	return errors.Is(err, ErrNotInitialized)
}

func getContractState(ctx contractapi.TransactionContextInterface) (*model.ContractState, error) {
	key, err := contractStateKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create contract state key: %w", err)
	}
	var state model.ContractState
	found, err := getJSON(ctx, key, &state)
	if err != nil {
		return nil, fmt.Errorf("contract state: %w", err)
	}
	if !found {
		return nil, reject(ErrNotInitialized, "InitLedger has not been called")
	}
	return &state, nil
}

func putContractState(ctx contractapi.TransactionContextInterface, state *model.ContractState) error {
	key, err := contractStateKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to create contract state key: %w", err)
	}
	return putJSON(ctx, key, state)
}

func getAirlineCounters(ctx contractapi.TransactionContextInterface) (*model.AirlineCounters, error) {
	key, err := airlineCountersKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create airline counters key: %w", err)
	}
	counters := model.AirlineCounters{ObjectType: airlineCountersObjectType}
	if _, err := getJSON(ctx, key, &counters); err != nil {
		return nil, fmt.Errorf("airline counters: %w", err)
	}
	return &counters, nil
}

func putAirlineCounters(ctx contractapi.TransactionContextInterface, counters *model.AirlineCounters) error {
	key, err := airlineCountersKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to create airline counters key: %w", err)
	}
	return putJSON(ctx, key, counters)
}

// getAirline returns nil, nil when address has no registry entry.
func getAirline(ctx contractapi.TransactionContextInterface, address string) (*model.Airline, error) {
	key, err := airlineKey(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to create airline key for '%s': %w", address, err)
	}
	var airline model.Airline
	found, err := getJSON(ctx, key, &airline)
	if err != nil {
		return nil, fmt.Errorf("airline '%s': %w", address, err)
	}
	if !found {
		return nil, nil
	}
	if airline.Voters == nil {
		airline.Voters = []string{}
	}
	return &airline, nil
}

func putAirline(ctx contractapi.TransactionContextInterface, airline *model.Airline) error {
	key, err := airlineKey(ctx, airline.Address)
	if err != nil {
		return fmt.Errorf("failed to create airline key for '%s': %w", airline.Address, err)
	}
	return putJSON(ctx, key, airline)
}

func putAirlineIndex(ctx contractapi.TransactionContextInterface, idx int, address string) error {
	key, err := airlineIndexKey(ctx, idx)
	if err != nil {
		return fmt.Errorf("failed to create airline index key %d: %w", idx, err)
	}
	if err := ctx.GetStub().PutState(key, []byte(address)); err != nil {
		return fmt.Errorf("failed to write airline index %d: %w", idx, err)
	}
	return nil
}

// getFlight returns nil, nil when the flight is not registered.
func getFlight(ctx contractapi.TransactionContextInterface, airline, callSign string, ts uint64) (*model.Flight, error) {
	key, err := flightKey(ctx, airline, callSign, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to create flight key: %w", err)
	}
	var flight model.Flight
	found, err := getJSON(ctx, key, &flight)
	if err != nil {
		return nil, fmt.Errorf("flight '%s' at %d: %w", callSign, ts, err)
	}
	if !found {
		return nil, nil
	}
	return &flight, nil
}

func putFlight(ctx contractapi.TransactionContextInterface, flight *model.Flight) error {
	key, err := flightKey(ctx, flight.Airline, flight.CallSign, flight.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create flight key: %w", err)
	}
	return putJSON(ctx, key, flight)
}

func requireFlight(ctx contractapi.TransactionContextInterface, airline, callSign string, ts uint64) (*model.Flight, error) {
	flight, err := getFlight(ctx, airline, callSign, ts)
	if err != nil {
		return nil, err
	}
	if flight == nil || !flight.IsRegistered {
		return nil, reject(ErrFlightNotFound, "flight '%s' of airline '%s' at %d is not registered", callSign, airline, ts)
	}
	return flight, nil
}

func putPolicy(ctx contractapi.TransactionContextInterface, policy *model.Policy) error {
	key, err := policyKey(ctx, policy.Airline, policy.CallSign, policy.Timestamp, policy.Passenger)
	if err != nil {
		return fmt.Errorf("failed to create policy key: %w", err)
	}
	return putJSON(ctx, key, policy)
}

// --- Validation Helper Functions ---

func validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return reject(ErrInvalidInput, "%s cannot be empty", field)
	}
	if len(input) > max {
		return reject(ErrInvalidInput, "%s exceeds max length %d", field, max)
	}
	return nil
}

// parseAmount parses a positive currency amount such as "10" or "0.25".
func parseAmount(input, field string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, reject(ErrInvalidInput, "%s cannot be empty", field)
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, reject(ErrInvalidInput, "%s '%s' is not a decimal amount", field, input)
	}
	if !amount.IsPositive() {
		return decimal.Zero, reject(ErrInvalidInput, "%s must be positive, got %s", field, amount.String())
	}
	return amount, nil
}

// parseDecimal parses an amount without a sign check, for callers that compare it
// against their own minimum.
func parseDecimal(input, field string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return decimal.Zero, reject(ErrInvalidInput, "%s '%s' is not a decimal amount", field, input)
	}
	return amount, nil
}

func validateFlightArgs(airline, callSign string, ts uint64) error {
	if err := validateRequiredString(airline, "airline", maxStringInputLength); err != nil {
		return err
	}
	if err := validateRequiredString(callSign, "callSign", maxStringInputLength); err != nil {
		return err
	}
	if ts == 0 {
		return reject(ErrInvalidInput, "timestamp must be set")
	}
	return nil
}

// emitEvent sends a chaincode event. Failures are logged, not returned. Fabric keeps only
// the last event set in a transaction.
func emitEvent(ctx contractapi.TransactionContextInterface, eventName string, payload interface{}) {
	eventBytes, err := json.Marshal(payload)
	if err != nil {
		logger.Warningf("emitEvent: Failed to marshal payload for event '%s': %v", eventName, err)
		return
	}
	if errSet := ctx.GetStub().SetEvent(eventName, eventBytes); errSet != nil {
		logger.Warningf("emitEvent: Failed to set event '%s': %v", eventName, errSet)
	}
}

package contract

import (
	"encoding/json"
	"fmt"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// RegisterFlight publishes a flight of the calling airline with unknown status.
func (s *FlightSuretyContract) RegisterFlight(ctx contractapi.TransactionContextInterface, callSign string, timestamp uint64) error {
	logger.Infof("Chaincode Call: RegisterFlight '%s' at %d by %s", callSign, timestamp, MustGetCallerFullID(ctx))

	if err := requireOperational(ctx); err != nil {
		return err
	}
	airline, err := NewIdentityManager(ctx).RequireFundedAirline()
	if err != nil {
		return err
	}
	if err := validateFlightArgs(airline.Address, callSign, timestamp); err != nil {
		return err
	}
	existing, err := getFlight(ctx, airline.Address, callSign, timestamp)
	if err != nil {
		return fmt.Errorf("RegisterFlight: %w", err)
	}
	if existing != nil {
		return reject(ErrDuplicateFlight, "flight '%s' at %d is already registered", callSign, timestamp)
	}
	now, err := getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("RegisterFlight: %w", err)
	}

	flight := &model.Flight{
		ObjectType:   flightObjectType,
		Airline:      airline.Address,
		CallSign:     callSign,
		Timestamp:    timestamp,
		Status:       model.StatusUnknown,
		IsRegistered: true,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if err := putFlight(ctx, flight); err != nil {
		return fmt.Errorf("RegisterFlight: %w", err)
	}

	emitEvent(ctx, model.EventFlightRegistered, &model.FlightRegisteredEvent{Airline: airline.Address, Flight: callSign, Timestamp: timestamp})
	logger.Infof("RegisterFlight: '%s' at %d registered for airline '%s'", callSign, timestamp, airline.Address)
	return nil
}

// GetFlight returns a registered flight and its current status.
func (s *FlightSuretyContract) GetFlight(ctx contractapi.TransactionContextInterface, airline string, callSign string, timestamp uint64) (*model.FlightInfo, error) {
	logger.Debugf("Chaincode Call: GetFlight '%s' at %d of '%s'", callSign, timestamp, airline)
	if _, err := NewIdentityManager(ctx).RequireInitialized(); err != nil {
		return nil, err
	}
	flight, err := requireFlight(ctx, airline, callSign, timestamp)
	if err != nil {
		return nil, err
	}
	info := flight.Info()
	return &info, nil
}

// GetFlights lists every registered flight in world state key order.
func (s *FlightSuretyContract) GetFlights(ctx contractapi.TransactionContextInterface) ([]model.FlightInfo, error) {
	logger.Debugf("Chaincode Call: GetFlights")
	if _, err := NewIdentityManager(ctx).RequireInitialized(); err != nil {
		return nil, err
	}
	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(flightObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("GetFlights: failed to query flights: %w", err)
	}
	defer resultsIterator.Close()

	flights := []model.FlightInfo{}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("GetFlights: Error getting next item from iterator: %v. Skipping.", iterErr)
			continue
		}
		var flight model.Flight
		if err := json.Unmarshal(queryResponse.Value, &flight); err != nil {
			logger.Warningf("GetFlights: Error unmarshalling flight (key: %s): %v. Skipping.", queryResponse.Key, err)
			continue
		}
		if !flight.IsRegistered {
			continue
		}
		flights = append(flights, flight.Info())
	}
	return flights, nil
}

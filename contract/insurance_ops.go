package contract

import (
	"encoding/json"
	"fmt"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/shopspring/decimal"
)

// Buy insures the caller on a registered flight. At most InsuranceCap of the payment is
// taken; the rest stays in the caller's account and is reported as refunded.
func (s *FlightSuretyContract) Buy(ctx contractapi.TransactionContextInterface, airline string, callSign string, timestamp uint64, paymentStr string) error {
	logger.Infof("Chaincode Call: Buy on '%s' at %d of '%s' paying %s", callSign, timestamp, airline, paymentStr)

	if err := requireOperational(ctx); err != nil {
		return err
	}
	if err := validateFlightArgs(airline, callSign, timestamp); err != nil {
		return err
	}
	passenger, err := callerID(ctx)
	if err != nil {
		return fmt.Errorf("Buy: %w", err)
	}
	if _, err := requireFlight(ctx, airline, callSign, timestamp); err != nil {
		return err
	}
	existing, err := getPolicy(ctx, airline, callSign, timestamp, passenger)
	if err != nil {
		return fmt.Errorf("Buy: %w", err)
	}
	if existing != nil {
		return reject(ErrDuplicatePolicy, "'%s' already insured flight '%s' at %d", passenger, callSign, timestamp)
	}
	payment, err := parseAmount(paymentStr, "payment")
	if err != nil {
		return err
	}
	accepted := decimal.Min(payment, InsuranceCap)
	refunded := payment.Sub(accepted)
	premium, err := prepareEscrow(ctx, passenger, accepted)
	if err != nil {
		return err
	}
	now, err := getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("Buy: %w", err)
	}

	if err := premium.commit(ctx, now); err != nil {
		return fmt.Errorf("Buy: %w", err)
	}
	policy := &model.Policy{
		ObjectType:  policyObjectType,
		Passenger:   passenger,
		Airline:     airline,
		CallSign:    callSign,
		Timestamp:   timestamp,
		AmountPaid:  accepted,
		PurchasedAt: now,
	}
	if err := putPolicy(ctx, policy); err != nil {
		return fmt.Errorf("Buy: %w", err)
	}

	emitEvent(ctx, model.EventInsurancePurchased, &model.InsurancePurchasedEvent{
		Passenger: passenger,
		Airline:   airline,
		Flight:    callSign,
		Timestamp: timestamp,
		Accepted:  accepted.String(),
		Refunded:  refunded.String(),
	})
	logger.Infof("Buy: '%s' insured '%s' at %d for %s (refunded %s)", passenger, callSign, timestamp, accepted.String(), refunded.String())
	return nil
}

// GetPolicy returns the policy passenger holds on a flight.
func (s *FlightSuretyContract) GetPolicy(ctx contractapi.TransactionContextInterface, airline string, callSign string, timestamp uint64, passenger string) (*model.PolicyInfo, error) {
	logger.Debugf("Chaincode Call: GetPolicy of '%s' on '%s' at %d", passenger, callSign, timestamp)
	if _, err := NewIdentityManager(ctx).RequireInitialized(); err != nil {
		return nil, err
	}
	if _, err := requireFlight(ctx, airline, callSign, timestamp); err != nil {
		return nil, err
	}
	policy, err := getPolicy(ctx, airline, callSign, timestamp, passenger)
	if err != nil {
		return nil, fmt.Errorf("GetPolicy: %w", err)
	}
	if policy == nil {
		return nil, reject(ErrPolicyNotFound, "'%s' holds no policy on flight '%s' at %d", passenger, callSign, timestamp)
	}
	info := policy.Info()
	return &info, nil
}

// getPolicy returns nil, nil when passenger holds no policy on the flight.
func getPolicy(ctx contractapi.TransactionContextInterface, airline, callSign string, ts uint64, passenger string) (*model.Policy, error) {
	key, err := policyKey(ctx, airline, callSign, ts, passenger)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy key: %w", err)
	}
	var policy model.Policy
	found, err := getJSON(ctx, key, &policy)
	if err != nil {
		return nil, fmt.Errorf("policy of '%s': %w", passenger, err)
	}
	if !found {
		return nil, nil
	}
	return &policy, nil
}

// getFlightPolicies returns every policy on a flight in passenger key order.
func getFlightPolicies(ctx contractapi.TransactionContextInterface, airline, callSign string, ts uint64) ([]*model.Policy, error) {
	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(policyObjectType, []string{airline, callSign, formatTimestamp(ts)})
	if err != nil {
		return nil, fmt.Errorf("failed to query policies of flight '%s' at %d: %w", callSign, ts, err)
	}
	defer resultsIterator.Close()

	policies := []*model.Policy{}
	for resultsIterator.HasNext() {
		queryResponse, err := resultsIterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate policies of flight '%s': %w", callSign, err)
		}
		var policy model.Policy
		if err := json.Unmarshal(queryResponse.Value, &policy); err != nil {
			return nil, fmt.Errorf("failed to unmarshal policy (key: %s): %w", queryResponse.Key, err)
		}
		policies = append(policies, &policy)
	}
	return policies, nil
}

package contract

import (
	"fmt"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// SetOperatingStatus halts or resumes every mutating transaction. Only the owner may
// call it, and it is available while halted.
func (s *FlightSuretyContract) SetOperatingStatus(ctx contractapi.TransactionContextInterface, value bool) error {
	logger.Infof("Chaincode Call: SetOperatingStatus to %t by %s", value, MustGetCallerFullID(ctx))

	owner, state, err := NewIdentityManager(ctx).RequireOwner()
	if err != nil {
		return err
	}
	now, err := getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("SetOperatingStatus: %w", err)
	}

	state.IsOperational = value
	state.UpdatedAt = now
	if err := putContractState(ctx, state); err != nil {
		return fmt.Errorf("SetOperatingStatus: %w", err)
	}

	emitEvent(ctx, model.EventOperatingStatusChanged, &model.OperatingStatusEvent{IsOperational: value, ChangedBy: owner})
	logger.Infof("SetOperatingStatus: contract operational=%t", value)
	return nil
}

// IsOperational reports the current value of the halt flag.
func (s *FlightSuretyContract) IsOperational(ctx contractapi.TransactionContextInterface) (bool, error) {
	state, err := NewIdentityManager(ctx).RequireInitialized()
	if err != nil {
		return false, err
	}
	return state.IsOperational, nil
}

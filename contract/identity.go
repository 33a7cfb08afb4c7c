package contract

import (
	"errors"
	"fmt"
	"strings"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var idLogger = flogging.MustGetLogger("flightsurety.identity")

// IdentityManager resolves the caller of a transaction and answers the role questions
// every guarded operation asks: owner, member airline, funded member.
type IdentityManager struct {
	Ctx contractapi.TransactionContextInterface
}

// NewIdentityManager creates a new instance of IdentityManager.
func NewIdentityManager(ctx contractapi.TransactionContextInterface) *IdentityManager {
	return &IdentityManager{Ctx: ctx}
}

func isValidX509ID(id string) bool {
	return strings.HasPrefix(id, "x509::") || strings.HasPrefix(id, "eDUwOTo6") // "eDUwOTo6" is "x509::" base64 encoded
}

// GetCurrentIdentityFullID retrieves the full ID of the current transactor. It is the
// account address used everywhere on the ledger.
func (im *IdentityManager) GetCurrentIdentityFullID() (string, error) {
	clientIdentity := im.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", errors.New("client identity is nil from context")
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" {
		return "", errors.New("client identity ID from context is empty")
	}
	if !isValidX509ID(id) {
		idLogger.Debugf("Current client ID '%s' does not appear to be a standard X.509 format.", id)
	}
	return id, nil
}

// MustGetCallerFullID returns the caller's ID or a placeholder, for log lines only.
func MustGetCallerFullID(ctx contractapi.TransactionContextInterface) string {
	id, err := NewIdentityManager(ctx).GetCurrentIdentityFullID()
	if err != nil {
		idLogger.Errorf("MustGetCallerFullID: %v. Returning placeholder.", err)
		return "ERROR_GETTING_CALLER_ID"
	}
	return id
}

// RequireInitialized loads the contract state, failing with NOT_INITIALIZED before
// InitLedger has run.
func (im *IdentityManager) RequireInitialized() (*model.ContractState, error) {
	return getContractState(im.Ctx)
}

// RequireOperational fails with NOT_OPERATIONAL while the contract is paused.
func (im *IdentityManager) RequireOperational() (*model.ContractState, error) {
	state, err := im.RequireInitialized()
	if err != nil {
		return nil, err
	}
	if !state.IsOperational {
		return nil, reject(ErrNotOperational, "contract is currently not operational")
	}
	return state, nil
}

// RequireOwner returns the caller's ID when the caller is the contract owner.
func (im *IdentityManager) RequireOwner() (string, *model.ContractState, error) {
	state, err := im.RequireInitialized()
	if err != nil {
		return "", nil, err
	}
	caller, err := im.GetCurrentIdentityFullID()
	if err != nil {
		return "", nil, err
	}
	if caller != state.Owner {
		return "", nil, reject(ErrNotOwner, "caller '%s' is not the contract owner", caller)
	}
	return caller, state, nil
}

// RequireFundedAirline returns the caller's airline record when the caller is a
// registered and funded member.
func (im *IdentityManager) RequireFundedAirline() (*model.Airline, error) {
	caller, err := im.GetCurrentIdentityFullID()
	if err != nil {
		return nil, err
	}
	airline, err := getAirline(im.Ctx, caller)
	if err != nil {
		return nil, err
	}
	if airline == nil || !airline.IsRegistered || !airline.IsFunded {
		return nil, reject(ErrCallerNotFunded, "caller '%s' is not a funded airline", caller)
	}
	return airline, nil
}

func callerID(ctx contractapi.TransactionContextInterface) (string, error) {
	return NewIdentityManager(ctx).GetCurrentIdentityFullID()
}

// requireOperational is the gate every mutating transaction passes first.
func requireOperational(ctx contractapi.TransactionContextInterface) error {
	_, err := NewIdentityManager(ctx).RequireOperational()
	return err
}

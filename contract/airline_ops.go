package contract

import (
	"fmt"
	"sort"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/shopspring/decimal"
)

// RegisterAirline admits candidate to the consortium. While fewer than
// BootstrapAirlineCount members are registered any funded member admits directly;
// afterwards the call casts the caller's vote and the candidate is admitted once half of
// the registered members voted for it.
func (s *FlightSuretyContract) RegisterAirline(ctx contractapi.TransactionContextInterface, candidate string, name string) error {
	logger.Infof("Chaincode Call: RegisterAirline for '%s' (%s)", candidate, name)

	if err := requireOperational(ctx); err != nil {
		return err
	}
	sponsor, err := NewIdentityManager(ctx).RequireFundedAirline()
	if err != nil {
		return err
	}
	if err := validateRequiredString(candidate, "candidate", maxStringInputLength); err != nil {
		return err
	}
	if err := validateRequiredString(name, "name", maxStringInputLength); err != nil {
		return err
	}

	counters, err := getAirlineCounters(ctx)
	if err != nil {
		return fmt.Errorf("RegisterAirline: %w", err)
	}
	airline, err := getAirline(ctx, candidate)
	if err != nil {
		return fmt.Errorf("RegisterAirline: %w", err)
	}
	if airline != nil && airline.IsRegistered {
		logger.Infof("RegisterAirline: '%s' is already registered, nothing to do", candidate)
		return nil
	}

	bootstrap := counters.Registered < BootstrapAirlineCount
	if !bootstrap && airline != nil && airline.HasVoted(sponsor.Address) {
		return reject(ErrDuplicateVote, "'%s' already voted for '%s'", sponsor.Address, candidate)
	}

	now, err := getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("RegisterAirline: %w", err)
	}

	isNew := airline == nil
	if isNew {
		airline = &model.Airline{
			ObjectType:   airlineObjectType,
			Address:      candidate,
			CompanyName:  name,
			Index:        counters.Total,
			Voters:       []string{},
			FundedAmount: decimal.Zero,
			CreatedAt:    now,
		}
		counters.Total++
	}

	if bootstrap {
		airline.IsRegistered = true
	} else {
		airline.Voters = append(airline.Voters, sponsor.Address)
		sort.Strings(airline.Voters)
		if airline.Votes()*2 >= counters.Registered {
			airline.IsRegistered = true
		}
	}
	if airline.IsRegistered {
		airline.RegisteredAt = now
		counters.Registered++
	}

	if err := putAirline(ctx, airline); err != nil {
		return fmt.Errorf("RegisterAirline: %w", err)
	}
	if isNew {
		if err := putAirlineIndex(ctx, airline.Index, candidate); err != nil {
			return fmt.Errorf("RegisterAirline: %w", err)
		}
	}
	if err := putAirlineCounters(ctx, counters); err != nil {
		return fmt.Errorf("RegisterAirline: %w", err)
	}

	event := &model.AirlineEvent{
		Airline:      candidate,
		CompanyName:  airline.CompanyName,
		Actor:        sponsor.Address,
		IsRegistered: airline.IsRegistered,
		Votes:        airline.Votes(),
	}
	if airline.IsRegistered {
		emitEvent(ctx, model.EventAirlineRegistered, event)
		logger.Infof("RegisterAirline: '%s' registered (%d members, %d votes)", candidate, counters.Registered, airline.Votes())
	} else {
		emitEvent(ctx, model.EventAirlineVoted, event)
		logger.Infof("RegisterAirline: '%s' has %d of %d member votes", candidate, airline.Votes(), counters.Registered)
	}
	return nil
}

// Fund pays the caller's one-time ante into the treasury and makes it a participating
// member.
func (s *FlightSuretyContract) Fund(ctx contractapi.TransactionContextInterface, amountStr string) error {
	logger.Infof("Chaincode Call: Fund with %s by %s", amountStr, MustGetCallerFullID(ctx))

	if err := requireOperational(ctx); err != nil {
		return err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return fmt.Errorf("Fund: %w", err)
	}
	airline, err := getAirline(ctx, caller)
	if err != nil {
		return fmt.Errorf("Fund: %w", err)
	}
	if airline == nil || !airline.IsRegistered {
		return reject(ErrNotAirline, "caller '%s' is not a registered airline", caller)
	}
	amount, err := parseDecimal(amountStr, "amount")
	if err != nil {
		return err
	}
	if amount.LessThan(MinimumFunding) {
		return reject(ErrInsufficientFunds, "funding of %s is below the minimum of %s", amount.String(), MinimumFunding.String())
	}
	if airline.IsFunded {
		return reject(ErrAlreadyFunded, "airline '%s' is already funded", caller)
	}
	payment, err := prepareEscrow(ctx, caller, amount)
	if err != nil {
		return err
	}
	now, err := getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("Fund: %w", err)
	}

	if err := payment.commit(ctx, now); err != nil {
		return fmt.Errorf("Fund: %w", err)
	}
	airline.IsFunded = true
	airline.FundedAmount = amount
	airline.FundedAt = now
	if err := putAirline(ctx, airline); err != nil {
		return fmt.Errorf("Fund: %w", err)
	}

	emitEvent(ctx, model.EventAirlineFunded, &model.AirlineEvent{
		Airline:      caller,
		CompanyName:  airline.CompanyName,
		Actor:        caller,
		IsRegistered: true,
		IsFunded:     true,
		Votes:        airline.Votes(),
		Amount:       amount.String(),
	})
	logger.Infof("Fund: airline '%s' funded with %s", caller, amount.String())
	return nil
}

// --- Queries ---

// GetAirlineStatus returns registration state and vote count. Unknown addresses report
// as unregistered with no votes.
func (s *FlightSuretyContract) GetAirlineStatus(ctx contractapi.TransactionContextInterface, address string) (*model.AirlineStatus, error) {
	logger.Debugf("Chaincode Call: GetAirlineStatus for '%s'", address)
	if _, err := NewIdentityManager(ctx).RequireInitialized(); err != nil {
		return nil, err
	}
	airline, err := getAirline(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("GetAirlineStatus: %w", err)
	}
	if airline == nil {
		return &model.AirlineStatus{}, nil
	}
	return &model.AirlineStatus{IsRegistered: airline.IsRegistered, Votes: airline.Votes()}, nil
}

// GetAirlineCount returns the number of registry entries, candidates included.
func (s *FlightSuretyContract) GetAirlineCount(ctx contractapi.TransactionContextInterface) (int, error) {
	if _, err := NewIdentityManager(ctx).RequireInitialized(); err != nil {
		return 0, err
	}
	counters, err := getAirlineCounters(ctx)
	if err != nil {
		return 0, fmt.Errorf("GetAirlineCount: %w", err)
	}
	return counters.Total, nil
}

func (s *FlightSuretyContract) RegisteredAirlinesCount(ctx contractapi.TransactionContextInterface) (int, error) {
	if _, err := NewIdentityManager(ctx).RequireInitialized(); err != nil {
		return 0, err
	}
	counters, err := getAirlineCounters(ctx)
	if err != nil {
		return 0, fmt.Errorf("RegisteredAirlinesCount: %w", err)
	}
	return counters.Registered, nil
}

// GetAirlineByIdx returns the registry entry at position idx in insertion order.
func (s *FlightSuretyContract) GetAirlineByIdx(ctx contractapi.TransactionContextInterface, idx int) (*model.AirlineInfo, error) {
	logger.Debugf("Chaincode Call: GetAirlineByIdx %d", idx)
	if _, err := NewIdentityManager(ctx).RequireInitialized(); err != nil {
		return nil, err
	}
	counters, err := getAirlineCounters(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetAirlineByIdx: %w", err)
	}
	if idx < 0 || idx >= counters.Total {
		return nil, reject(ErrInvalidInput, "index %d out of range [0, %d)", idx, counters.Total)
	}
	key, err := airlineIndexKey(ctx, idx)
	if err != nil {
		return nil, fmt.Errorf("GetAirlineByIdx: failed to create index key: %w", err)
	}
	address, err := ctx.GetStub().GetState(key)
	if err != nil {
		return nil, fmt.Errorf("GetAirlineByIdx: failed to read index %d: %w", idx, err)
	}
	if address == nil {
		return nil, fmt.Errorf("GetAirlineByIdx: index %d has no entry", idx)
	}
	airline, err := getAirline(ctx, string(address))
	if err != nil {
		return nil, fmt.Errorf("GetAirlineByIdx: %w", err)
	}
	if airline == nil {
		return nil, fmt.Errorf("GetAirlineByIdx: index %d points to missing airline '%s'", idx, string(address))
	}
	return &model.AirlineInfo{
		Address:      airline.Address,
		CompanyName:  airline.CompanyName,
		IsRegistered: airline.IsRegistered,
		IsFunded:     airline.IsFunded,
		Votes:        airline.Votes(),
	}, nil
}

// IsAirline reports whether address is a registered member.
func (s *FlightSuretyContract) IsAirline(ctx contractapi.TransactionContextInterface, address string) (bool, error) {
	if _, err := NewIdentityManager(ctx).RequireInitialized(); err != nil {
		return false, err
	}
	airline, err := getAirline(ctx, address)
	if err != nil {
		return false, fmt.Errorf("IsAirline: %w", err)
	}
	return airline != nil && airline.IsRegistered, nil
}

// IsFundedAirline reports whether address is a registered and funded member.
func (s *FlightSuretyContract) IsFundedAirline(ctx contractapi.TransactionContextInterface, address string) (bool, error) {
	if _, err := NewIdentityManager(ctx).RequireInitialized(); err != nil {
		return false, err
	}
	airline, err := getAirline(ctx, address)
	if err != nil {
		return false, fmt.Errorf("IsFundedAirline: %w", err)
	}
	return airline != nil && airline.IsRegistered && airline.IsFunded, nil
}

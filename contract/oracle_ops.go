package contract

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"

	"flightsurety/model"

	"github.com/google/uuid"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// requestIDNamespace scopes the name-based UUIDs derived for oracle requests.
var requestIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:flightsurety:oracle-request"))

// pseudoRandomIndex derives an index in [0, OracleIndexRange) from the transaction id.
// Every endorser computes the same value. A client controls its transaction id, so it
// can grind for an index it likes; the indexes are not a security boundary.
func pseudoRandomIndex(ctx contractapi.TransactionContextInterface, salt string, nonce int) int {
	seed := ctx.GetStub().GetTxID() + "|" + salt + "|" + strconv.Itoa(nonce)
	sum := sha256.Sum256([]byte(seed))
	return int(binary.BigEndian.Uint64(sum[:8]) % OracleIndexRange)
}

// generateIndexes returns OracleIndexCount distinct indexes in ascending order.
func generateIndexes(ctx contractapi.TransactionContextInterface, oracle string) []int {
	seen := make(map[int]bool, OracleIndexCount)
	indexes := make([]int, 0, OracleIndexCount)
	for nonce := 0; len(indexes) < OracleIndexCount; nonce++ {
		idx := pseudoRandomIndex(ctx, oracle, nonce)
		if seen[idx] {
			continue
		}
		seen[idx] = true
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	return indexes
}

// getOracle returns nil, nil for identities that never registered as oracles.
func getOracle(ctx contractapi.TransactionContextInterface, address string) (*model.Oracle, error) {
	key, err := oracleKey(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle key for '%s': %w", address, err)
	}
	var oracle model.Oracle
	found, err := getJSON(ctx, key, &oracle)
	if err != nil {
		return nil, fmt.Errorf("oracle '%s': %w", address, err)
	}
	if !found {
		return nil, nil
	}
	return &oracle, nil
}

// getOracleRequest returns nil, nil when no request was ever opened for the key.
func getOracleRequest(ctx contractapi.TransactionContextInterface, index int, airline, callSign string, ts uint64) (*model.OracleRequest, error) {
	key, err := oracleRequestKey(ctx, index, airline, callSign, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle request key: %w", err)
	}
	var request model.OracleRequest
	found, err := getJSON(ctx, key, &request)
	if err != nil {
		return nil, fmt.Errorf("oracle request %d for '%s': %w", index, callSign, err)
	}
	if !found {
		return nil, nil
	}
	if request.Responses == nil {
		request.Responses = map[model.StatusCode][]string{}
	}
	return &request, nil
}

func putOracleRequest(ctx contractapi.TransactionContextInterface, request *model.OracleRequest) error {
	key, err := oracleRequestKey(ctx, request.Index, request.Airline, request.CallSign, request.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create oracle request key: %w", err)
	}
	return putJSON(ctx, key, request)
}

func requestEvent(request *model.OracleRequest) *model.OracleRequestEvent {
	return &model.OracleRequestEvent{
		RequestID: request.RequestID,
		Index:     request.Index,
		Airline:   request.Airline,
		Flight:    request.CallSign,
		Timestamp: request.Timestamp,
	}
}

// --- Transactions ---

// RegisterOracle pays the registration fee into the treasury and assigns the caller its
// indexes.
func (s *FlightSuretyContract) RegisterOracle(ctx contractapi.TransactionContextInterface, feeStr string) ([]int, error) {
	logger.Infof("Chaincode Call: RegisterOracle with fee %s by %s", feeStr, MustGetCallerFullID(ctx))

	if err := requireOperational(ctx); err != nil {
		return nil, err
	}
	fee, err := parseDecimal(feeStr, "fee")
	if err != nil {
		return nil, err
	}
	if fee.LessThan(RegistrationFee) {
		return nil, reject(ErrInsufficientFee, "fee %s is below the registration fee of %s", fee.String(), RegistrationFee.String())
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, fmt.Errorf("RegisterOracle: %w", err)
	}
	existing, err := getOracle(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("RegisterOracle: %w", err)
	}
	if existing != nil {
		return nil, reject(ErrAlreadyRegistered, "oracle '%s' is already registered with indexes %v", caller, existing.Indexes)
	}
	payment, err := prepareEscrow(ctx, caller, fee)
	if err != nil {
		return nil, err
	}
	now, err := getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("RegisterOracle: %w", err)
	}

	if err := payment.commit(ctx, now); err != nil {
		return nil, fmt.Errorf("RegisterOracle: %w", err)
	}
	oracle := &model.Oracle{
		ObjectType:   oracleObjectType,
		Address:      caller,
		Indexes:      generateIndexes(ctx, caller),
		Fee:          fee,
		RegisteredAt: now,
	}
	key, err := oracleKey(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("RegisterOracle: failed to create oracle key: %w", err)
	}
	if err := putJSON(ctx, key, oracle); err != nil {
		return nil, fmt.Errorf("RegisterOracle: %w", err)
	}

	emitEvent(ctx, model.EventOracleRegistered, &model.OracleRegisteredEvent{Oracle: caller, Indexes: oracle.Indexes, Fee: fee.String()})
	logger.Infof("RegisterOracle: '%s' registered with indexes %v", caller, oracle.Indexes)
	return oracle.Indexes, nil
}

// GetMyIndexes returns the indexes assigned to the calling oracle.
func (s *FlightSuretyContract) GetMyIndexes(ctx contractapi.TransactionContextInterface) ([]int, error) {
	if _, err := NewIdentityManager(ctx).RequireInitialized(); err != nil {
		return nil, err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetMyIndexes: %w", err)
	}
	oracle, err := getOracle(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("GetMyIndexes: %w", err)
	}
	if oracle == nil {
		return nil, reject(ErrOracleNotRegistered, "'%s' is not a registered oracle", caller)
	}
	return oracle.Indexes, nil
}

func (s *FlightSuretyContract) GetRegistrationFee(ctx contractapi.TransactionContextInterface) (string, error) {
	return RegistrationFee.String(), nil
}

// FetchFlightStatus asks the oracles holding a derived index to report the status of a
// flight and returns that index.
func (s *FlightSuretyContract) FetchFlightStatus(ctx contractapi.TransactionContextInterface, airline string, callSign string, timestamp uint64) (int, error) {
	logger.Infof("Chaincode Call: FetchFlightStatus for '%s' at %d of '%s'", callSign, timestamp, airline)

	if err := requireOperational(ctx); err != nil {
		return 0, err
	}
	if err := validateFlightArgs(airline, callSign, timestamp); err != nil {
		return 0, err
	}
	if _, err := requireFlight(ctx, airline, callSign, timestamp); err != nil {
		return 0, err
	}
	requester, err := callerID(ctx)
	if err != nil {
		return 0, fmt.Errorf("FetchFlightStatus: %w", err)
	}
	now, err := getCurrentTxTimestamp(ctx)
	if err != nil {
		return 0, fmt.Errorf("FetchFlightStatus: %w", err)
	}

	index := pseudoRandomIndex(ctx, "request|"+requester, 0)
	request, err := getOracleRequest(ctx, index, airline, callSign, timestamp)
	if err != nil {
		return 0, fmt.Errorf("FetchFlightStatus: %w", err)
	}
	switch {
	case request != nil && !request.IsOpen:
		return 0, reject(ErrRequestClosed, "request %d for flight '%s' at %d closed with status %s", index, callSign, timestamp, request.FinalStatus)
	case request != nil && now.Before(request.OpenedAt.Add(OracleRequestTTL)):
		emitEvent(ctx, model.EventOracleRequest, requestEvent(request))
		logger.Infof("FetchFlightStatus: request %s still open, announced again", request.RequestID)
		return index, nil
	case request != nil:
		logger.Infof("FetchFlightStatus: request %s expired without quorum, resetting", request.RequestID)
	}

	request = &model.OracleRequest{
		ObjectType: oracleRequestObjectType,
		RequestID:  uuid.NewSHA1(requestIDNamespace, []byte(ctx.GetStub().GetTxID())).String(),
		Index:      index,
		Airline:    airline,
		CallSign:   callSign,
		Timestamp:  timestamp,
		Requester:  requester,
		IsOpen:     true,
		Responses:  map[model.StatusCode][]string{},
		OpenedAt:   now,
	}
	if err := putOracleRequest(ctx, request); err != nil {
		return 0, fmt.Errorf("FetchFlightStatus: %w", err)
	}

	emitEvent(ctx, model.EventOracleRequest, requestEvent(request))
	logger.Infof("FetchFlightStatus: opened request %s at index %d", request.RequestID, index)
	return index, nil
}

// SubmitOracleResponse records the caller's report for an open request. The first status
// code reported by MinOracleResponses oracles closes the request and becomes the flight's
// status; a late airline status credits every insured passenger.
func (s *FlightSuretyContract) SubmitOracleResponse(ctx contractapi.TransactionContextInterface, index int, airline string, callSign string, timestamp uint64, statusCode int) error {
	logger.Infof("Chaincode Call: SubmitOracleResponse %d for '%s' at %d, index %d, by %s", statusCode, callSign, timestamp, index, MustGetCallerFullID(ctx))

	if err := requireOperational(ctx); err != nil {
		return err
	}
	if statusCode < 0 || statusCode > 255 || !model.StatusCode(statusCode).IsValid() {
		return reject(ErrInvalidInput, "status code %d is not reportable", statusCode)
	}
	status := model.StatusCode(statusCode)
	request, err := getOracleRequest(ctx, index, airline, callSign, timestamp)
	if err != nil {
		return fmt.Errorf("SubmitOracleResponse: %w", err)
	}
	if request == nil {
		return reject(ErrRequestNotFound, "no request at index %d for flight '%s' at %d", index, callSign, timestamp)
	}
	caller, err := callerID(ctx)
	if err != nil {
		return fmt.Errorf("SubmitOracleResponse: %w", err)
	}
	oracle, err := getOracle(ctx, caller)
	if err != nil {
		return fmt.Errorf("SubmitOracleResponse: %w", err)
	}
	if oracle == nil || !oracle.HasIndex(index) {
		return reject(ErrOracleNotRegistered, "'%s' does not hold index %d", caller, index)
	}
	if !request.IsOpen {
		return reject(ErrRequestClosed, "request %s closed with status %s", request.RequestID, request.FinalStatus)
	}
	now, err := getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("SubmitOracleResponse: %w", err)
	}
	if !now.Before(request.OpenedAt.Add(OracleRequestTTL)) {
		return reject(ErrRequestExpired, "request %s expired at %s", request.RequestID, request.OpenedAt.Add(OracleRequestTTL))
	}
	if request.HasResponded(caller) {
		return reject(ErrDuplicateResponse, "'%s' already reported on request %s", caller, request.RequestID)
	}

	voters := append(request.Responses[status], caller)
	sort.Strings(voters)
	request.Responses[status] = voters

	if len(voters) < MinOracleResponses {
		if err := putOracleRequest(ctx, request); err != nil {
			return fmt.Errorf("SubmitOracleResponse: %w", err)
		}
		emitEvent(ctx, model.EventOracleReport, &model.OracleReportEvent{
			RequestID: request.RequestID,
			Index:     index,
			Airline:   airline,
			Flight:    callSign,
			Timestamp: timestamp,
			Oracle:    caller,
			Status:    status,
			Responses: len(voters),
		})
		logger.Infof("SubmitOracleResponse: %d of %d reports of %s on request %s", len(voters), MinOracleResponses, status, request.RequestID)
		return nil
	}

	flight, err := requireFlight(ctx, airline, callSign, timestamp)
	if err != nil {
		return err
	}
	var policies []*model.Policy
	if status == model.StatusLateAirline {
		policies, err = getFlightPolicies(ctx, airline, callSign, timestamp)
		if err != nil {
			return fmt.Errorf("SubmitOracleResponse: %w", err)
		}
	}

	request.IsOpen = false
	request.FinalStatus = status
	request.ClosedAt = now
	if err := putOracleRequest(ctx, request); err != nil {
		return fmt.Errorf("SubmitOracleResponse: %w", err)
	}
	flight.Status = status
	flight.UpdatedAt = now
	if err := putFlight(ctx, flight); err != nil {
		return fmt.Errorf("SubmitOracleResponse: %w", err)
	}
	credited := 0
	for _, policy := range policies {
		ok, err := creditPassenger(ctx, policy, now)
		if err != nil {
			return fmt.Errorf("SubmitOracleResponse: crediting '%s': %w", policy.Passenger, err)
		}
		if ok {
			credited++
		}
	}

	emitEvent(ctx, model.EventFlightStatusInfo, &model.FlightStatusInfoEvent{
		RequestID:        request.RequestID,
		Airline:          airline,
		Flight:           callSign,
		Timestamp:        timestamp,
		Status:           status,
		CreditedPolicies: credited,
	})
	logger.Infof("SubmitOracleResponse: flight '%s' at %d finalized as %s, %d policies credited", callSign, timestamp, status, credited)
	return nil
}

// GetOracleRequest returns the state of the request at index for a flight.
func (s *FlightSuretyContract) GetOracleRequest(ctx contractapi.TransactionContextInterface, index int, airline string, callSign string, timestamp uint64) (*model.OracleRequestInfo, error) {
	logger.Debugf("Chaincode Call: GetOracleRequest %d for '%s' at %d", index, callSign, timestamp)
	if _, err := NewIdentityManager(ctx).RequireInitialized(); err != nil {
		return nil, err
	}
	request, err := getOracleRequest(ctx, index, airline, callSign, timestamp)
	if err != nil {
		return nil, fmt.Errorf("GetOracleRequest: %w", err)
	}
	if request == nil {
		return nil, reject(ErrRequestNotFound, "no request at index %d for flight '%s' at %d", index, callSign, timestamp)
	}
	counts := make(map[string]int, len(request.Responses))
	for code, oracles := range request.Responses {
		counts[code.String()] = len(oracles)
	}
	return &model.OracleRequestInfo{
		RequestID:      request.RequestID,
		Index:          request.Index,
		IsOpen:         request.IsOpen,
		FinalStatus:    request.FinalStatus,
		ResponseCounts: counts,
	}, nil
}

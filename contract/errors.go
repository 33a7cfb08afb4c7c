package contract

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode identifies the kind of a rejected transaction. It prefixes the message
// returned to the client so callers can tell rejections apart.
type ErrorCode string

const (
	CodeNotInitialized       ErrorCode = "NOT_INITIALIZED"
	CodeAlreadyInitialized   ErrorCode = "ALREADY_INITIALIZED"
	CodeInvalidInput         ErrorCode = "INVALID_INPUT"
	CodeNotOperational       ErrorCode = "NOT_OPERATIONAL"
	CodeNotOwner             ErrorCode = "NOT_OWNER"
	CodeCallerNotFunded      ErrorCode = "CALLER_NOT_FUNDED"
	CodeNotAirline           ErrorCode = "NOT_AIRLINE"
	CodeInsufficientFunds    ErrorCode = "INSUFFICIENT_FUNDS"
	CodeAlreadyFunded        ErrorCode = "ALREADY_FUNDED"
	CodeDuplicateVote        ErrorCode = "DUPLICATE_VOTE"
	CodeDuplicateFlight      ErrorCode = "DUPLICATE_FLIGHT"
	CodeDuplicatePolicy      ErrorCode = "DUPLICATE_POLICY"
	CodePolicyNotFound       ErrorCode = "POLICY_NOT_FOUND"
	CodeFlightNotFound       ErrorCode = "FLIGHT_NOT_FOUND"
	CodeInsufficientFee      ErrorCode = "INSUFFICIENT_FEE"
	CodeAlreadyRegistered    ErrorCode = "ALREADY_REGISTERED"
	CodeOracleNotRegistered  ErrorCode = "ORACLE_NOT_REGISTERED"
	CodeRequestNotFound      ErrorCode = "REQUEST_NOT_FOUND"
	CodeRequestClosed        ErrorCode = "REQUEST_CLOSED"
	CodeRequestExpired       ErrorCode = "REQUEST_EXPIRED"
	CodeDuplicateResponse    ErrorCode = "DUPLICATE_RESPONSE"
	CodeNoCredit             ErrorCode = "NO_CREDIT"
	CodeInsufficientBalance  ErrorCode = "INSUFFICIENT_BALANCE"
	CodeInsufficientTreasury ErrorCode = "INSUFFICIENT_TREASURY"
)

// ContractError is a guard rejection. Two ContractErrors match under errors.Is when
// their codes are equal, so the sentinels below can be compared against errors that
// carry call-specific detail.
type ContractError struct {
	Code    ErrorCode
	Message string
}

func (e *ContractError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ContractError) Is(target error) bool {
	var t *ContractError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels, one per code.
var (
	ErrNotInitialized       = &ContractError{Code: CodeNotInitialized}
	ErrAlreadyInitialized   = &ContractError{Code: CodeAlreadyInitialized}
	ErrInvalidInput         = &ContractError{Code: CodeInvalidInput}
	ErrNotOperational       = &ContractError{Code: CodeNotOperational}
	ErrNotOwner             = &ContractError{Code: CodeNotOwner}
	ErrCallerNotFunded      = &ContractError{Code: CodeCallerNotFunded}
	ErrNotAirline           = &ContractError{Code: CodeNotAirline}
	ErrInsufficientFunds    = &ContractError{Code: CodeInsufficientFunds}
	ErrAlreadyFunded        = &ContractError{Code: CodeAlreadyFunded}
	ErrDuplicateVote        = &ContractError{Code: CodeDuplicateVote}
	ErrDuplicateFlight      = &ContractError{Code: CodeDuplicateFlight}
	ErrDuplicatePolicy      = &ContractError{Code: CodeDuplicatePolicy}
	ErrPolicyNotFound       = &ContractError{Code: CodePolicyNotFound}
	ErrFlightNotFound       = &ContractError{Code: CodeFlightNotFound}
	ErrInsufficientFee      = &ContractError{Code: CodeInsufficientFee}
	ErrAlreadyRegistered    = &ContractError{Code: CodeAlreadyRegistered}
	ErrOracleNotRegistered  = &ContractError{Code: CodeOracleNotRegistered}
	ErrRequestNotFound      = &ContractError{Code: CodeRequestNotFound}
	ErrRequestClosed        = &ContractError{Code: CodeRequestClosed}
	ErrRequestExpired       = &ContractError{Code: CodeRequestExpired}
	ErrDuplicateResponse    = &ContractError{Code: CodeDuplicateResponse}
	ErrNoCredit             = &ContractError{Code: CodeNoCredit}
	ErrInsufficientBalance  = &ContractError{Code: CodeInsufficientBalance}
	ErrInsufficientTreasury = &ContractError{Code: CodeInsufficientTreasury}
)

// reject builds a ContractError with the code of sentinel and a formatted detail.
func reject(sentinel *ContractError, format string, args ...interface{}) error {
	return &ContractError{Code: sentinel.Code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ErrorCode from err. Errors that crossed a gateway arrive as plain
// text, so the "CODE: detail" prefix is parsed when no ContractError is in the chain.
func CodeOf(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	msg := err.Error()
	for _, code := range allCodes {
		if strings.Contains(msg, string(code)) {
			return code, true
		}
	}
	return "", false
}

// No code is a substring of another, so match order does not matter.
var allCodes = []ErrorCode{
	CodeInsufficientTreasury, CodeInsufficientBalance, CodeOracleNotRegistered,
	CodeAlreadyInitialized, CodeDuplicateResponse, CodeAlreadyRegistered,
	CodeInsufficientFunds, CodeCallerNotFunded, CodeInsufficientFee,
	CodeDuplicateFlight, CodeDuplicatePolicy, CodeRequestNotFound, CodeNotInitialized,
	CodeNotOperational, CodeFlightNotFound, CodeRequestExpired, CodeRequestClosed,
	CodeDuplicateVote, CodeAlreadyFunded, CodeInvalidInput, CodeNotAirline,
	CodeNotOwner, CodeNoCredit, CodePolicyNotFound,
}

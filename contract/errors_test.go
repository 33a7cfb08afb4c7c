package contract

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContractErrorMatchesByCode(t *testing.T) {
	err := fmt.Errorf("Pay: %w", reject(ErrNoCredit, "nothing for %s", passenger1))

	assert.True(t, errors.Is(err, ErrNoCredit))
	assert.False(t, errors.Is(err, ErrNotOwner))
	assert.Contains(t, err.Error(), "NO_CREDIT: nothing for")
	assert.Equal(t, "NOT_OWNER", ErrNotOwner.Error())
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		ok   bool
	}{
		{"nil", nil, "", false},
		{"wrapped", fmt.Errorf("op: %w", reject(ErrRequestClosed, "done")), CodeRequestClosed, true},
		{"gateway text", errors.New("endorsement failure: chaincode response 500, INSUFFICIENT_TREASURY: treasury holds 0"), CodeInsufficientTreasury, true},
		{"not initialized text", errors.New("NOT_INITIALIZED: InitLedger has not been called"), CodeNotInitialized, true},
		{"infrastructure", errors.New("failed to read state: connection reset"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := CodeOf(tt.err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

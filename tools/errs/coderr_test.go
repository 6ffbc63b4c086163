package errs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDetailReturnsCopy(t *testing.T) {
	base := NewCodeError("transaction_rejected", "transaction rejected")
	withDetail := base.WithDetail("insufficient balance")

	assert.Empty(t, base.Detail, "sentinel must stay pristine")
	assert.Equal(t, "insufficient balance", withDetail.Detail)

	// 细节可叠加
	more := withDetail.WithDetail("bet=100")
	assert.Equal(t, "insufficient balance, bet=100", more.Detail)
}

func TestIsMatchesByCode(t *testing.T) {
	err := ErrTxRejected.WithDetail("whatever")
	assert.True(t, ErrTxRejected.Is(err))
	assert.False(t, ErrBackendDown.Is(err))
}

func TestAsCodeErrorUnwraps(t *testing.T) {
	wrapped := ErrBackendDown.WrapMsg("nonce resync failed", "account", "abcd")
	ce := AsCodeError(wrapped)
	require.NotNil(t, ce)
	assert.Equal(t, "backend_unavailable", ce.Code)
	assert.Contains(t, ce.Detail, "account=abcd")

	assert.Nil(t, AsCodeError(nil))
	assert.Nil(t, AsCodeError(assert.AnError))
}

func TestErrorStringIncludesDetail(t *testing.T) {
	err := ErrNonceMismatch.WithDetail("expected 5, got 3")
	assert.Contains(t, err.Error(), "nonce_mismatch")
	assert.Contains(t, err.Error(), "expected 5, got 3")
}

package nonce

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccount = "ab12cd34ef56"

func TestAllocateSequential(t *testing.T) {
	m := NewManager()

	assert.Equal(t, uint64(0), m.Allocate(testAccount))
	assert.Equal(t, uint64(1), m.Allocate(testAccount))
	assert.Equal(t, uint64(2), m.Allocate(testAccount))
	assert.Equal(t, 3, m.PendingCount(testAccount))
}

// 并发分配必须全不重且相对 confirmed 无空洞
func TestAllocateConcurrentUnique(t *testing.T) {
	m := NewManager()
	const n = 200

	var wg sync.WaitGroup
	results := make(chan uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- m.Allocate(testAccount)
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uint64]bool, n)
	for v := range results {
		require.False(t, seen[v], "duplicate nonce %d", v)
		require.Less(t, v, uint64(n), "gap beyond confirmed window")
		seen[v] = true
	}
	assert.Equal(t, uint64(n), m.Confirmed(testAccount))
}

func TestConfirmIdempotent(t *testing.T) {
	m := NewManager()
	n := m.Allocate(testAccount)

	m.Confirm(testAccount, n)
	assert.Equal(t, 0, m.PendingCount(testAccount))

	// 再确认一次是 no-op
	m.Confirm(testAccount, n)
	assert.Equal(t, 0, m.PendingCount(testAccount))

	// 没见过的账户也是 no-op
	m.Confirm("unknown", 7)
}

func TestResyncConvergence(t *testing.T) {
	m := NewManager()
	for i := 0; i < 5; i++ {
		m.Allocate(testAccount)
	}
	require.Equal(t, 5, m.PendingCount(testAccount))

	fetch := func(ctx context.Context, account string) (uint64, error) {
		return 42, nil
	}
	require.NoError(t, m.Resync(context.Background(), testAccount, fetch))

	assert.Equal(t, uint64(42), m.Confirmed(testAccount))
	assert.Equal(t, 0, m.PendingCount(testAccount))

	// resync 后继续分配从权威值开始
	assert.Equal(t, uint64(42), m.Allocate(testAccount))
}

func TestResyncFetchFailure(t *testing.T) {
	m := NewManager()
	m.Allocate(testAccount)

	fetch := func(ctx context.Context, account string) (uint64, error) {
		return 0, errors.New("backend unreachable")
	}
	err := m.Resync(context.Background(), testAccount, fetch)
	require.Error(t, err)

	// 失败不得动本地状态
	assert.Equal(t, uint64(1), m.Confirmed(testAccount))
	assert.Equal(t, 1, m.PendingCount(testAccount))
}

func TestSeedOnlyForward(t *testing.T) {
	m := NewManager()
	m.Seed(testAccount, 10)
	assert.Equal(t, uint64(10), m.Confirmed(testAccount))

	m.Seed(testAccount, 3) // 不回退
	assert.Equal(t, uint64(10), m.Confirmed(testAccount))
}

func TestReset(t *testing.T) {
	m := NewManager()
	m.Allocate(testAccount)
	m.Reset(testAccount)

	assert.Equal(t, uint64(0), m.Confirmed(testAccount))
	assert.Equal(t, 0, m.PendingCount(testAccount))
}

func TestIsNonceError(t *testing.T) {
	assert.True(t, IsNonceError("Nonce mismatch: expected 5"))
	assert.True(t, IsNonceError("transaction replay detected"))
	assert.True(t, IsNonceError("sequence mismatch"))
	assert.True(t, IsNonceError("STALE transaction"))
	assert.False(t, IsNonceError("insufficient balance"))
	assert.False(t, IsNonceError(""))
}

func TestIsNonceRejectionPrefersCode(t *testing.T) {
	// 有结构化码时文本不参与判断
	assert.True(t, IsNonceRejection("NONCE_MISMATCH", "whatever"))
	assert.False(t, IsNonceRejection("INSUFFICIENT_FUNDS", "bad nonce"))
	// 没有码退回文本匹配
	assert.True(t, IsNonceRejection("", "bad nonce"))
	assert.False(t, IsNonceRejection("", "out of chips"))
}

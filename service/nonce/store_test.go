package nonce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	saved map[string]uint64
}

func (s *memStore) Save(_ context.Context, confirmed map[string]uint64) error {
	s.saved = confirmed
	return nil
}

func (s *memStore) Load(_ context.Context) (map[string]uint64, error) {
	return s.saved, nil
}

func TestPersistRestoreRoundTrip(t *testing.T) {
	m := NewManager()
	m.Seed("acc-a", 7)
	m.Allocate("acc-b") // confirmed=1 pending={0}

	st := &memStore{}
	require.NoError(t, m.Persist(context.Background(), st))

	fresh := NewManager()
	require.NoError(t, fresh.Restore(context.Background(), st))

	assert.Equal(t, uint64(7), fresh.Confirmed("acc-a"))
	assert.Equal(t, uint64(1), fresh.Confirmed("acc-b"))
	// pending 不持久化 重启后一律为空
	assert.Equal(t, 0, fresh.PendingCount("acc-b"))
}

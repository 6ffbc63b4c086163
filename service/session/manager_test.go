package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"CProject/service/nonce"
	"CProject/service/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== 测试桩 =====

type fakeTransport struct {
	mu     sync.Mutex
	sent   []any
	closed bool
}

func (f *fakeTransport) SendJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeUpdates struct {
	mu           sync.Mutex
	disconnected bool
}

func (f *fakeUpdates) WaitForEvent(uint64, stream.EventType, time.Duration) *stream.Event { return nil }
func (f *fakeUpdates) WaitForAnyEvent(stream.EventType, time.Duration) *stream.Event      { return nil }
func (f *fakeUpdates) WaitForStartedOrError(time.Duration) *stream.Event                  { return nil }
func (f *fakeUpdates) WaitForMoveOrComplete(time.Duration) *stream.Event                  { return nil }
func (f *fakeUpdates) Disconnect() {
	f.mu.Lock()
	f.disconnected = true
	f.mu.Unlock()
}

func (f *fakeUpdates) isDisconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

type fakeBoot struct {
	mu        sync.Mutex
	calls     []string
	regErr    error
	deposited int64
}

func (b *fakeBoot) Register(_ context.Context, _ *Session) error {
	b.mu.Lock()
	b.calls = append(b.calls, "register")
	b.mu.Unlock()
	return b.regErr
}

func (b *fakeBoot) Deposit(_ context.Context, _ *Session, amount int64) error {
	b.mu.Lock()
	b.calls = append(b.calls, "deposit")
	b.deposited = amount
	b.mu.Unlock()
	return nil
}

type env struct {
	mgr     *Manager
	boot    *fakeBoot
	nonces  *nonce.Manager
	updates *fakeUpdates
	order   *[]string
	clock   *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newEnv(t *testing.T) *env {
	t.Helper()

	order := &[]string{}
	updates := &fakeUpdates{}
	boot := &fakeBoot{}
	nonces := nonce.NewManager()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	factory := func(pub string) (Updates, error) {
		*order = append(*order, "subscribe")
		return updates, nil
	}

	mgr := NewManager(ManagerConf{
		MaxIdle:    time.Hour,
		SweepEvery: time.Hour, // 单测里手动触发清理
		Clock:      clock.Now,
	}, nonces, factory, boot)
	t.Cleanup(mgr.Close)

	return &env{mgr: mgr, boot: boot, nonces: nonces, updates: updates, order: order, clock: clock}
}

// ===== 用例 =====

func TestCreateSessionIndexesAndBootstrap(t *testing.T) {
	e := newEnv(t)
	tr := &fakeTransport{}

	sess, err := e.mgr.CreateSession(context.Background(), tr, CreateOptions{AutoFund: true, FundAmount: 500})
	require.NoError(t, err)

	assert.True(t, sess.Registered())
	assert.True(t, sess.HasBalance())
	assert.Equal(t, int64(500), e.boot.deposited)

	// 先订阅后注册 反了会漏注册确认事件
	require.Equal(t, []string{"subscribe"}, *e.order)
	assert.Equal(t, []string{"register", "deposit"}, e.boot.calls)

	byConn, ok := e.mgr.GetByConn(sess.ConnID)
	require.True(t, ok)
	assert.Same(t, sess, byConn)

	byPub, ok := e.mgr.GetByAccount(sess.Account())
	require.True(t, ok)
	assert.Same(t, sess, byPub)

	assert.NotEmpty(t, sess.DisplayName)
}

func TestCreateSessionRegisterFailureReleasesStream(t *testing.T) {
	e := newEnv(t)
	e.boot.regErr = assert.AnError

	_, err := e.mgr.CreateSession(context.Background(), &fakeTransport{}, CreateOptions{})
	require.Error(t, err)
	assert.True(t, e.updates.isDisconnected())
	assert.Equal(t, 0, e.mgr.Count())
}

func TestDestroySessionRemovesBothIndexes(t *testing.T) {
	e := newEnv(t)
	sess, err := e.mgr.CreateSession(context.Background(), &fakeTransport{}, CreateOptions{})
	require.NoError(t, err)

	e.nonces.Allocate(sess.Account())

	removed := e.mgr.DestroySession(sess.ConnID)
	require.Same(t, sess, removed)
	assert.True(t, e.updates.isDisconnected())

	_, ok := e.mgr.GetByConn(sess.ConnID)
	assert.False(t, ok)
	_, ok = e.mgr.GetByAccount(sess.Account())
	assert.False(t, ok)

	// 账户 nonce 态一起丢
	assert.Equal(t, uint64(0), e.nonces.Confirmed(sess.Account()))
	assert.Equal(t, 0, e.nonces.PendingCount(sess.Account()))

	// 再销毁是 no-op
	assert.Nil(t, e.mgr.DestroySession(sess.ConnID))
}

func TestCleanupIdleSessions(t *testing.T) {
	e := newEnv(t)
	tr := &fakeTransport{}
	sess, err := e.mgr.CreateSession(context.Background(), tr, CreateOptions{})
	require.NoError(t, err)

	// 还没超时 不动
	assert.Equal(t, 0, e.mgr.CleanupIdleSessions(30*time.Minute))

	e.clock.Advance(31 * time.Minute)
	assert.Equal(t, 1, e.mgr.CleanupIdleSessions(30*time.Minute))
	assert.True(t, tr.isClosed())

	_, ok := e.mgr.GetByConn(sess.ConnID)
	assert.False(t, ok)
	_, ok = e.mgr.GetByAccount(sess.Account())
	assert.False(t, ok)
}

func TestTouchKeepsSessionAlive(t *testing.T) {
	e := newEnv(t)
	sess, err := e.mgr.CreateSession(context.Background(), &fakeTransport{}, CreateOptions{})
	require.NoError(t, err)

	e.clock.Advance(20 * time.Minute)
	sess.Touch(e.clock.Now())
	e.clock.Advance(20 * time.Minute)

	// 距最后活动只有 20 分钟 不清
	assert.Equal(t, 0, e.mgr.CleanupIdleSessions(30*time.Minute))
}

func TestGameTransitions(t *testing.T) {
	e := newEnv(t)
	sess, err := e.mgr.CreateSession(context.Background(), &fakeTransport{}, CreateOptions{})
	require.NoError(t, err)

	id, gt := sess.ActiveGame()
	assert.Zero(t, id)
	assert.Empty(t, gt)

	p1 := sess.ProposeGameID()
	p2 := sess.ProposeGameID()
	assert.NotZero(t, p1)
	assert.NotZero(t, p2)
	assert.NotEqual(t, p1, p2, "proposed ids must be unique across the account lifetime")

	sess.SetActiveGame(p2, "blackjack")
	id, gt = sess.ActiveGame()
	assert.Equal(t, p2, id)
	assert.Equal(t, "blackjack", gt)

	// 后端改派的号是权威的
	sess.AdoptGameID(777)
	id, _ = sess.ActiveGame()
	assert.Equal(t, uint64(777), id)

	// 0 不覆盖
	sess.AdoptGameID(0)
	id, _ = sess.ActiveGame()
	assert.Equal(t, uint64(777), id)

	sess.EndGame()
	id, gt = sess.ActiveGame()
	assert.Zero(t, id)
	assert.Empty(t, gt)
}

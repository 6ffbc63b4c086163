package session

import (
	"context"
	"sync"
	"time"

	"CProject/logger"
	"CProject/service/nonce"
	"CProject/tools/ids"
	"CProject/tools/keys"
	"CProject/tools/safe"

	pkgerr "github.com/pkg/errors"
)

// ===== 配置 =====

type ManagerConf struct {
	MaxIdle    time.Duration    // 空闲多久算死会话
	SweepEvery time.Duration    // 清理周期
	Clock      func() time.Time // 可注入时钟（单测用）nil => time.Now
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = time.Minute
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = 30 * time.Minute
	}
}

// Bootstrap 建会话时要打通的链上流程 由编排层注入（注册 + 首充）
type Bootstrap interface {
	Register(ctx context.Context, sess *Session) error
	Deposit(ctx context.Context, sess *Session, amount int64) error
}

// StreamFactory 给账户开一条结果事件订阅
type StreamFactory func(publicKeyHex string) (Updates, error)

type CreateOptions struct {
	DisplayName string // 为空则从公钥派生
	AutoFund    bool
	FundAmount  int64
}

// ===== Manager =====

// Manager 管全部活跃会话 双索引：连接号 + 公钥 hex
type Manager struct {
	mu     sync.RWMutex
	byConn map[string]*Session
	byPub  map[string]*Session

	conf      ManagerConf
	nonces    *nonce.Manager
	newStream StreamFactory
	boot      Bootstrap

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewManager(conf ManagerConf, nonces *nonce.Manager, newStream StreamFactory, boot Bootstrap) *Manager {
	conf.norm()
	m := &Manager{
		byConn:    make(map[string]*Session),
		byPub:     make(map[string]*Session),
		conf:      conf,
		nonces:    nonces,
		newStream: newStream,
		boot:      boot,
	}
	m.stopCh = make(chan struct{})
	safe.Go("session-sweeper", m.sweeper)
	return m
}

func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.byConn))
	for _, s := range m.byConn {
		sessions = append(sessions, s)
	}
	m.byConn = map[string]*Session{}
	m.byPub = map[string]*Session{}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stream.Disconnect()
		_ = s.Conn.Close()
	}
}

// CreateSession 生成密钥对、起名、开订阅、打通注册（和首充）。
// 返回时会话已经能玩。顺序固定：先订阅再注册——反过来会漏掉注册本身的确认事件。
func (m *Manager) CreateSession(ctx context.Context, conn Transport, opts CreateOptions) (*Session, error) {
	kp, err := keys.Generate()
	if err != nil {
		return nil, err
	}

	name := opts.DisplayName
	if name == "" {
		name = "player-" + kp.PublicHex()[:8]
	}

	now := m.conf.Clock()
	sess := &Session{
		ConnID:      ids.GenerateString(),
		Conn:        conn,
		Keys:        kp,
		DisplayName: name,
	}
	sess.mu.Lock()
	sess.connectedAt = now
	sess.lastActivityAt = now
	sess.mu.Unlock()

	st, err := m.newStream(kp.PublicHex())
	if err != nil {
		return nil, pkgerr.Wrap(err, "open updates stream")
	}
	sess.Stream = st

	if err := m.boot.Register(ctx, sess); err != nil {
		st.Disconnect()
		return nil, err
	}
	sess.SetRegistered()

	if opts.AutoFund && opts.FundAmount > 0 {
		if err := m.boot.Deposit(ctx, sess, opts.FundAmount); err != nil {
			st.Disconnect()
			return nil, err
		}
		sess.SetHasBalance()
	}

	m.mu.Lock()
	m.byConn[sess.ConnID] = sess
	m.byPub[kp.PublicHex()] = sess
	m.mu.Unlock()

	logger.Infof("[session] created conn=%s account=%s name=%s", sess.ConnID, kp.PublicHex()[:12], name)
	return sess, nil
}

// GetByConn 热路径 O(1)
func (m *Manager) GetByConn(connID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byConn[connID]
	return s, ok
}

// GetByAccount nonce 重同步和跨组件关联用
func (m *Manager) GetByAccount(publicKeyHex string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byPub[publicKeyHex]
	return s, ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byConn)
}

// DestroySession 拆订阅 摘双索引 丢账户 nonce 态 返回被摘的会话
func (m *Manager) DestroySession(connID string) *Session {
	m.mu.Lock()
	sess, ok := m.byConn[connID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.byConn, connID)
	delete(m.byPub, sess.Account())
	m.mu.Unlock()

	sess.Stream.Disconnect()
	m.nonces.Reset(sess.Account())
	logger.Infof("[session] destroyed conn=%s account=%s", connID, sess.Account()[:12])
	return sess
}

// CleanupIdleSessions 扫全量 踢掉超时会话并强关传输 返回踢掉的数量。
// 必须跑在独立定时器上——死会话不会再发消息 等请求触发就永远清不掉。
func (m *Manager) CleanupIdleSessions(maxIdle time.Duration) int {
	now := m.conf.Clock()

	m.mu.RLock()
	var stale []*Session
	for _, s := range m.byConn {
		if now.Sub(s.LastActivityAt()) > maxIdle {
			stale = append(stale, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range stale {
		if m.DestroySession(s.ConnID) != nil {
			_ = s.Conn.Close()
		}
	}
	if len(stale) > 0 {
		logger.Infof("[session] idle sweep evicted=%d", len(stale))
	}
	return len(stale)
}

func (m *Manager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			m.CleanupIdleSessions(m.conf.MaxIdle)
		}
	}
}

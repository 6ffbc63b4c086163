package nonce

import (
	"context"
	"strings"
	"sync"

	"CProject/logger"
	errs "CProject/tools/errs"
)

// FetchAccountNonce 从后端取权威 nonce。取不到返回 error，
// 调用方必须把本次分配当作不可用，不许瞎猜。
type FetchAccountNonce func(ctx context.Context, account string) (uint64, error)

// accountState 单账户的本地视图
type accountState struct {
	confirmed uint64              // 下一个可用 nonce 只增
	pending   map[uint64]struct{} // 已发出未确认
}

// Manager 账户 nonce 的本地簿记。
// 乐观分配 出错靠 Resync 收敛。全部状态在内存 快照持久化见 store.go。
type Manager struct {
	mu       sync.Mutex
	accounts map[string]*accountState
}

func NewManager() *Manager {
	return &Manager{accounts: make(map[string]*accountState)}
}

func (m *Manager) state(account string) *accountState {
	st, ok := m.accounts[account]
	if !ok {
		st = &accountState{pending: make(map[uint64]struct{})}
		m.accounts[account] = st
	}
	return st
}

// Allocate 取 confirmed 并自增 登记 pending。
// 同账户并发调用由锁串行化 两个在途请求绝不会拿到同一个 nonce。
func (m *Manager) Allocate(account string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state(account)
	n := st.confirmed
	st.confirmed++
	st.pending[n] = struct{}{}
	return n
}

// Confirm 从 pending 摘除 幂等 不存在就是 no-op
func (m *Manager) Confirm(account string, nonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.accounts[account]; ok {
		delete(st.pending, nonce)
	}
}

// Seed 用权威值初始化账户（注册完成后/快照恢复时用）
// 只允许往前走 不会回退 confirmed
func (m *Manager) Seed(account string, confirmed uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state(account)
	if confirmed > st.confirmed {
		st.confirmed = confirmed
	}
}

// Resync 用后端账户状态覆盖 confirmed 并清空 pending。
// 真被接受的交易对后续 nonce 计算已无影响 真丢掉的交易换新 nonce 重发也安全。
func (m *Manager) Resync(ctx context.Context, account string, fetch FetchAccountNonce) error {
	onchain, err := fetch(ctx, account)
	if err != nil {
		return errs.WrapMsg(err, "nonce resync fetch failed", "account", account)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state(account)
	dropped := len(st.pending)
	st.confirmed = onchain
	st.pending = make(map[uint64]struct{})

	logger.Infof("[nonce] resync account=%s confirmed=%d dropped_pending=%d", short(account), onchain, dropped)
	return nil
}

// Reset 丢弃账户全部本地状态（会话销毁时）
func (m *Manager) Reset(account string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, account)
}

// Confirmed 当前本地视图 单测用
func (m *Manager) Confirmed(account string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.accounts[account]; ok {
		return st.confirmed
	}
	return 0
}

// PendingCount 在途数量 单测用
func (m *Manager) PendingCount(account string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.accounts[account]; ok {
		return len(st.pending)
	}
	return 0
}

// nonceMarkers 后端拒绝文案里的 nonce/重放特征。
// 误报只多一次 resync（能收敛 代价一个往返）漏报则按普通失败处理 不重试。
var nonceMarkers = []string{
	"nonce",
	"replay",
	"sequence mismatch",
	"stale",
	"already used",
}

// IsNonceError 文本启发式判断是否 nonce 相关拒绝
func IsNonceError(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range nonceMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsNonceRejection 优先看后端结构化错误码 没有才退回文本匹配
func IsNonceRejection(code, message string) bool {
	if code != "" {
		return code == "NONCE_MISMATCH"
	}
	return IsNonceError(message)
}

func short(account string) string {
	if len(account) > 12 {
		return account[:12]
	}
	return account
}

package session

import (
	"encoding/binary"
	"hash/fnv"
	"sync"
	"time"

	"CProject/service/stream"
	"CProject/tools/keys"
)

// Transport 客户端连接的最小面 网关层包一下 gorilla conn
type Transport interface {
	SendJSON(v any) error
	Close() error
}

// Updates 会话独占的结果事件订阅 具体实现是 stream.UpdatesStream
// 抽成接口方便编排层单测打桩
type Updates interface {
	WaitForEvent(sessionID uint64, et stream.EventType, timeout time.Duration) *stream.Event
	WaitForAnyEvent(et stream.EventType, timeout time.Duration) *stream.Event
	WaitForStartedOrError(timeout time.Duration) *stream.Event
	WaitForMoveOrComplete(timeout time.Duration) *stream.Event
	Disconnect()
}

// Session 一条客户端连接的全部内存态。
// 密钥对和 UpdatesStream 订阅归它独占 销毁时必须释放订阅。
type Session struct {
	ConnID      string
	Conn        Transport
	Keys        *keys.Keypair
	DisplayName string

	Stream Updates

	mu             sync.Mutex
	registered     bool
	hasBalance     bool
	activeGameID   uint64 // 0 = 没在局里
	gameType       string
	gameSeq        uint64 // 单调 派生对局号用
	connectedAt    time.Time
	lastActivityAt time.Time
}

func (s *Session) Account() string { return s.Keys.PublicHex() }

func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastActivityAt = now
	s.mu.Unlock()
}

func (s *Session) LastActivityAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityAt
}

func (s *Session) ConnectedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectedAt
}

func (s *Session) SetRegistered() {
	s.mu.Lock()
	s.registered = true
	s.mu.Unlock()
}

func (s *Session) Registered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registered
}

func (s *Session) SetHasBalance() {
	s.mu.Lock()
	s.hasBalance = true
	s.mu.Unlock()
}

func (s *Session) HasBalance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasBalance
}

// ActiveGame 当前对局 (id, type) id=0 表示空闲
func (s *Session) ActiveGame() (uint64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeGameID, s.gameType
}

// ProposeGameID 派生下一局的对局号 纯本地 不置 active
// active 要等提交被接受才乐观置上
func (s *Session) ProposeGameID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gameSeq++
	return deriveGameSessionID(s.Keys.Public(), s.gameSeq)
}

// SetActiveGame 提交被接受后乐观置上对局态
func (s *Session) SetActiveGame(id uint64, gameType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeGameID = id
	s.gameType = gameType
}

// AdoptGameID 后端改派的对局号是权威的 覆盖本地提案
func (s *Session) AdoptGameID(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != 0 {
		s.activeGameID = id
	}
}

// EndGame 清对局态 纯本地
func (s *Session) EndGame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeGameID = 0
	s.gameType = ""
}

// deriveGameSessionID (公钥, 计数器) -> 账户生命周期内唯一的对局号。
// 和还在结算的上一局撞号会串局 所以计数器必须进哈希。
func deriveGameSessionID(pub []byte, seq uint64) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(pub)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	_, _ = h.Write(b[:])
	id := h.Sum64()
	if id == 0 {
		id = 1 // 0 是"没在局里"的哨兵
	}
	return id
}

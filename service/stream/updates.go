package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"CProject/logger"

	"github.com/gorilla/websocket"
)

// ===== 配置 =====

const (
	defaultBackoffBase = 500 * time.Millisecond
	defaultBackoffMax  = 30 * time.Second
	historyCap         = 128
	readBufSize        = 4096
)

type filterKind int

const (
	filterNone filterKind = iota
	filterAccount
	filterSession
)

type filter struct {
	kind  filterKind
	value string
}

// encode 把过滤器编码进订阅地址
func (f filter) encode(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	switch f.kind {
	case filterAccount:
		q.Set("account", f.value)
	case filterSession:
		q.Set("session", f.value)
	default:
		return "", errors.New("no filter set")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ===== 等待者 =====

type waiter struct {
	match func(*Event) bool
	ch    chan *Event // 容量 1 只发一次
}

// ===== UpdatesStream =====

// UpdatesStream 订阅后端结果事件流 单过滤器实例。
// 事件先到后等也能命中（历史缓冲）别的会话的事件直接忽略继续等。
// 断线指数退避重连 重连沿用断线前的过滤器。
type UpdatesStream struct {
	wsURL  string
	dialer *websocket.Dialer

	mu        sync.Mutex
	fil       filter
	conn      *websocket.Conn
	closed    bool
	backoff   time.Duration
	reconnect *time.Timer
	waiters   []*waiter
	history   []*Event
}

func NewUpdatesStream(wsURL string) *UpdatesStream {
	return &UpdatesStream{
		wsURL:   wsURL,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second, ReadBufferSize: readBufSize},
		backoff: defaultBackoffBase,
	}
}

// ConnectForAccount 按账户订阅（整个账户一个过滤器 一人同时只有一局）
func (s *UpdatesStream) ConnectForAccount(publicKeyHex string) error {
	return s.connect(filter{kind: filterAccount, value: publicKeyHex})
}

// ConnectForSession 按对局订阅
func (s *UpdatesStream) ConnectForSession(sessionID uint64) error {
	return s.connect(filter{kind: filterSession, value: fmt.Sprintf("%d", sessionID)})
}

func (s *UpdatesStream) connect(f filter) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("stream closed")
	}
	if s.conn != nil {
		s.mu.Unlock()
		return errors.New("already connected")
	}
	s.fil = f
	s.mu.Unlock()

	return s.dial()
}

func (s *UpdatesStream) dial() error {
	s.mu.Lock()
	f := s.fil
	s.mu.Unlock()

	addr, err := f.encode(s.wsURL)
	if err != nil {
		return err
	}

	conn, _, err := s.dialer.Dial(addr, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return errors.New("stream closed")
	}
	s.conn = conn
	s.backoff = defaultBackoffBase // 连上了 退避归零
	s.mu.Unlock()

	go s.readLoop(conn)
	return nil
}

func (s *UpdatesStream) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.onDisconnected(conn, err)
			return
		}
		var ev Event
		if jerr := json.Unmarshal(data, &ev); jerr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warnf("[stream] bad event err=%v sample=%q", jerr, sample)
			continue
		}
		s.ingest(&ev)
	}
}

// ingest 派发一条事件：先喂给第一个匹配的等待者 没人等就进历史缓冲
func (s *UpdatesStream) ingest(ev *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, w := range s.waiters {
		if w.match(ev) {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			w.ch <- ev // 容量 1 不会阻塞
			return
		}
	}

	s.history = append(s.history, ev)
	if len(s.history) > historyCap {
		s.history = s.history[1:]
	}
}

func (s *UpdatesStream) onDisconnected(conn *websocket.Conn, err error) {
	_ = conn.Close()

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	if s.closed {
		s.mu.Unlock()
		return
	}
	delay := s.backoff
	s.backoff *= 2
	if s.backoff > defaultBackoffMax {
		s.backoff = defaultBackoffMax
	}
	logger.Infof("[stream] disconnected err=%v reconnect_in=%s", err, delay)
	s.reconnect = time.AfterFunc(delay, func() {
		if derr := s.dial(); derr != nil {
			// dial 失败走同一条断线路径继续退避
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			logger.Warnf("[stream] reconnect failed err=%v", derr)
			s.scheduleRetry()
		}
	})
	s.mu.Unlock()
}

func (s *UpdatesStream) scheduleRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	delay := s.backoff
	s.backoff *= 2
	if s.backoff > defaultBackoffMax {
		s.backoff = defaultBackoffMax
	}
	s.reconnect = time.AfterFunc(delay, func() {
		if derr := s.dial(); derr != nil {
			s.scheduleRetry()
		}
	})
}

// Disconnect 拆订阅 取消未决的重连定时器 未决等待全部按超时收尾
func (s *UpdatesStream) Disconnect() {
	s.mu.Lock()
	s.closed = true
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	conn := s.conn
	s.conn = nil
	waiters := s.waiters
	s.waiters = nil
	s.history = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	for _, w := range waiters {
		close(w.ch)
	}
}

// ===== 等待原语 =====

// wait 注册 (match, deadline) 由派发循环或超时二者先到者解析 恰好一次。
// 超时不算错误 返回 nil 事件。
func (s *UpdatesStream) wait(match func(*Event) bool, timeout time.Duration) *Event {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	// 先翻历史 事件可能比等待先到
	for i, ev := range s.history {
		if match(ev) {
			s.history = append(s.history[:i], s.history[i+1:]...)
			s.mu.Unlock()
			return ev
		}
	}
	w := &waiter{match: match, ch: make(chan *Event, 1)}
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-w.ch:
		return ev // Disconnect 时 channel 关闭 读出 nil 等价超时
	case <-timer.C:
		s.removeWaiter(w)
		// 摘除和派发可能赛跑 channel 里可能已经有事件了
		select {
		case ev := <-w.ch:
			return ev
		default:
			return nil
		}
	}
}

func (s *UpdatesStream) removeWaiter(target *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.waiters {
		if w == target {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}

// WaitForEvent 等会话+类型都匹配的下一条事件 超时返回 nil
func (s *UpdatesStream) WaitForEvent(sessionID uint64, et EventType, timeout time.Duration) *Event {
	return s.wait(func(ev *Event) bool {
		return ev.Type == et && ev.SessionID == sessionID
	}, timeout)
}

// WaitForAnyEvent 只按类型等 忽略会话号。
// 过滤器已经圈定单账户且一人只有一局时用这个。
func (s *UpdatesStream) WaitForAnyEvent(et EventType, timeout time.Duration) *Event {
	return s.wait(func(ev *Event) bool {
		return ev.Type == et
	}, timeout)
}

// WaitForStartedOrError 开局确认或开局被拒。
// started 不按会话号匹配——后端可能改派会话号 按客户端提案号等会永远等不到。
func (s *UpdatesStream) WaitForStartedOrError(timeout time.Duration) *Event {
	return s.wait(func(ev *Event) bool {
		return ev.Type == EventStarted || ev.Type == EventError
	}, timeout)
}

// WaitForMoveOrComplete 一步棋可能推进对局、终局 也可能被拒
func (s *UpdatesStream) WaitForMoveOrComplete(timeout time.Duration) *Event {
	return s.wait(func(ev *Event) bool {
		return ev.Type == EventMoved || ev.Type == EventCompleted || ev.Type == EventError
	}, timeout)
}

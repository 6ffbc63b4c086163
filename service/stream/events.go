package stream

// EventType 后端结果事件的判别标签
type EventType string

const (
	EventStarted   EventType = "started"
	EventMoved     EventType = "moved"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
)

// Event 后端结果事件 瞬态 最多被一个等待者消费
// 变体字段按 Type 取用 其余为零值
type Event struct {
	Type      EventType `json:"type"`
	SessionID uint64    `json:"session_id"`

	// started
	InitialState []byte `json:"initial_state,omitempty"`

	// moved
	MoveNumber int      `json:"move_number,omitempty"`
	Logs       []string `json:"logs,omitempty"`

	// completed
	Payout       int64 `json:"payout,omitempty"`
	FinalBalance int64 `json:"final_balance,omitempty"`

	// error
	ErrCode    string `json:"err_code,omitempty"`
	ErrMessage string `json:"err_message,omitempty"`
}

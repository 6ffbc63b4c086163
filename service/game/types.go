package game

// ===== 客户端协议（JSON over WebSocket）=====

// ClientMessage 入站消息信封 Payload 按消息类型再解
type ClientMessage struct {
	Type     string         `json:"type"`
	GameType string         `json:"game_type,omitempty"`
	Bet      int64          `json:"bet,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// 入站消息类型
const (
	MsgStartGame  = "start_game"
	MsgMove       = "move"
	MsgGetBalance = "get_balance"
	MsgPing       = "ping"
)

// SessionReady 会话可玩（注册/首充都打通了）
type SessionReady struct {
	Type    string `json:"type"` // "session_ready"
	Player  string `json:"player"`
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

// Balance 余额查询回执
type Balance struct {
	Type    string `json:"type"` // "balance"
	Balance int64  `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// GameStarted 开局回执 Provisional=true 表示确认事件还没到 先乐观放行
type GameStarted struct {
	Type        string `json:"type"` // "game_started"
	SessionID   string `json:"sessionId"`
	GameType    string `json:"game_type"`
	Bet         string `json:"bet"`
	Provisional bool   `json:"provisional,omitempty"`
}

// MoveAccepted 提交被收下但结果事件超时 对局还在进行
type MoveAccepted struct {
	Type        string `json:"type"` // "move_accepted"
	SessionID   string `json:"sessionId"`
	Provisional bool   `json:"provisional,omitempty"`
}

// GameMove 对局推进一步
type GameMove struct {
	Type       string   `json:"type"` // "game_move"
	SessionID  string   `json:"sessionId"`
	MoveNumber int      `json:"move_number"`
	Logs       []string `json:"logs,omitempty"`
}

// GameResult 终局 Won: payout>0 赢 payout<0 输 payout==0 平局退注
type GameResult struct {
	Type       string   `json:"type"` // "game_result"
	SessionID  string   `json:"sessionId"`
	Won        bool     `json:"won"`
	Payout     int64    `json:"payout"`
	FinalChips int64    `json:"final_chips"`
	Message    string   `json:"message"`
	Logs       []string `json:"logs,omitempty"`
}

// Pong 心跳回执
type Pong struct {
	Type string `json:"type"` // "pong"
	TS   int64  `json:"ts"`
}

// ErrorMessage 出站错误 code 是闭集 见 tools/errs
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ===== 游戏类型注册表 =====

// 游戏类型 -> 指令里的类型字节
var gameTypes = map[string]byte{
	"blackjack": 1,
	"dice":      2,
	"slots":     3,
}

// GameTypeByte 查类型字节 未知游戏返回 false
func GameTypeByte(gameType string) (byte, bool) {
	b, ok := gameTypes[gameType]
	return b, ok
}

package errs

// 网关错误码 闭集
// 新增错误码要同步客户端 SDK
var (
	ErrInvalidMessage  = NewCodeError("invalid_message", "invalid message")
	ErrInvalidGameType = NewCodeError("invalid_game_type", "unknown game type")
	ErrInvalidBet      = NewCodeError("invalid_bet", "bet must be positive")
	ErrNotRegistered   = NewCodeError("not_registered", "account not registered")
	ErrNoActiveGame    = NewCodeError("no_active_game", "no active game")
	ErrGameInProgress  = NewCodeError("game_in_progress", "game already in progress")
	ErrBackendDown     = NewCodeError("backend_unavailable", "backend unavailable")
	ErrTxRejected      = NewCodeError("transaction_rejected", "transaction rejected")
	ErrNonceMismatch   = NewCodeError("nonce_mismatch", "nonce mismatch")
	ErrSessionExpired  = NewCodeError("session_expired", "session expired")
	ErrInternal        = NewCodeError("internal_error", "internal error")
)

package game

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"CProject/logger"
	"CProject/service/backend"
	"CProject/service/nonce"
	"CProject/service/session"
	"CProject/service/stream"
	errs "CProject/tools/errs"

	pkgerr "github.com/pkg/errors"
)

// Submitter 提交面 具体实现是 backend.Client 单测换桩
type Submitter interface {
	Submit(ctx context.Context, txBytes []byte) backend.SubmitResult
	GetAccount(ctx context.Context, publicKeyHex string) *backend.AccountState
}

// Engine 把 编码→取nonce→签名→提交→等确认事件 串起来的编排层。
// 所有重试策略都在这里 SubmitClient 自己从不重试。
type Engine struct {
	submit      Submitter
	nonces      *nonce.Manager
	waitTimeout time.Duration
}

func NewEngine(submit Submitter, nonces *nonce.Manager, waitTimeout time.Duration) *Engine {
	if waitTimeout <= 0 {
		waitTimeout = 15 * time.Second
	}
	return &Engine{submit: submit, nonces: nonces, waitTimeout: waitTimeout}
}

func (e *Engine) fetchNonce(ctx context.Context, account string) (uint64, error) {
	st := e.submit.GetAccount(ctx, account)
	if st == nil {
		return 0, pkgerr.New("account state unavailable")
	}
	return st.Nonce, nil
}

// submitWithRetry 一次动作的 分配nonce→签名→提交 加 nonce 拒绝后的
// 重同步+重试。重试上界是显式的 attempt 0..1 第二次还撞 nonce 直接硬失败。
// 接受后 nonce 已 Confirm 等事件是调用方的事。
func (e *Engine) submitWithRetry(ctx context.Context, sess *session.Session, ins Instruction) error {
	account := sess.Account()

	for attempt := 0; attempt <= 1; attempt++ {
		n := e.nonces.Allocate(account)
		tx := buildTransaction(sess.Keys, n, ins)

		res := e.submit.Submit(ctx, tx)
		if res.Accepted {
			e.nonces.Confirm(account, n)
			return nil
		}

		if res.Transport {
			// 不知道落没落地 本地 confirmed 可能已脏 先尽力收敛再报不可用
			if rerr := e.nonces.Resync(ctx, account, e.fetchNonce); rerr != nil {
				logger.Warnf("[op] resync after transport failure also failed account=%s err=%v", account[:12], rerr)
			}
			return errs.ErrBackendDown.WithDetail(res.Err)
		}

		if nonce.IsNonceRejection(res.Code, res.Err) {
			logger.Infof("[op] nonce rejection account=%s attempt=%d err=%s", account[:12], attempt, res.Err)
			if attempt == 1 {
				// 重试也撞了 升级成硬失败 不许无限转圈
				return errs.ErrNonceMismatch.WithDetail(res.Err)
			}
			if rerr := e.nonces.Resync(ctx, account, e.fetchNonce); rerr != nil {
				// 后端都联系不上 这次分配作废 不许瞎猜
				return errs.ErrBackendDown.WrapMsg("nonce resync failed", "cause", rerr)
			}
			continue
		}

		// 语义拒绝 原样上抛 不重试
		return errs.ErrTxRejected.WithDetail(res.Err)
	}
	return errs.ErrInternal.WithDetail("unreachable retry state")
}

// ===== Bootstrap（session.Manager 注入用）=====

// Register 上链注册账户 接受即视为注册成功
// 订阅在这之前就已打开 注册自己的确认事件不会丢
func (e *Engine) Register(ctx context.Context, sess *session.Session) error {
	return e.submitWithRetry(ctx, sess, registerInstruction(sess.DisplayName))
}

// Deposit 首充
func (e *Engine) Deposit(ctx context.Context, sess *session.Session, amount int64) error {
	if amount <= 0 {
		return errs.ErrInvalidBet.WithDetail("deposit must be positive")
	}
	return e.submitWithRetry(ctx, sess, depositInstruction(amount))
}

// ===== StartGame =====

// StartGame 开局。本地守卫不过直接拒 不碰网络。
// 接受后乐观置对局态再等 started/error：
//   - started 事件里的对局号是权威的 可能和客户端提案不同 必须覆盖
//   - error 回滚对局态 上抛后端的话
//   - 超时 拿提案号发临时回执 不让用户干等一个可能只是慢的后端
func (e *Engine) StartGame(ctx context.Context, sess *session.Session, gameType string, bet int64) (*GameStarted, error) {
	if id, _ := sess.ActiveGame(); id != 0 {
		return nil, errs.ErrGameInProgress.WithDetail(fmt.Sprintf("session %d", id))
	}
	if !sess.Registered() {
		return nil, errs.ErrNotRegistered
	}
	gt, ok := GameTypeByte(gameType)
	if !ok {
		return nil, errs.ErrInvalidGameType.WithDetail(gameType)
	}
	if bet <= 0 {
		return nil, errs.ErrInvalidBet
	}

	proposed := sess.ProposeGameID()

	if err := e.submitWithRetry(ctx, sess, startInstruction(gt, bet, proposed)); err != nil {
		return nil, err
	}

	sess.SetActiveGame(proposed, gameType)

	ev := sess.Stream.WaitForStartedOrError(e.waitTimeout)
	switch {
	case ev == nil:
		logger.Infof("[op] start confirmation timeout account=%s proposed=%d", sess.Account()[:12], proposed)
		return &GameStarted{
			Type:        "game_started",
			SessionID:   strconv.FormatUint(proposed, 10),
			GameType:    gameType,
			Bet:         strconv.FormatInt(bet, 10),
			Provisional: true,
		}, nil

	case ev.Type == stream.EventStarted:
		sess.AdoptGameID(ev.SessionID)
		id, _ := sess.ActiveGame()
		return &GameStarted{
			Type:      "game_started",
			SessionID: strconv.FormatUint(id, 10),
			GameType:  gameType,
			Bet:       strconv.FormatInt(bet, 10),
		}, nil

	default: // error 事件
		sess.EndGame()
		return nil, errs.ErrTxRejected.WithDetail(ev.ErrMessage)
	}
}

// ===== MakeMove =====

// MakeMove 走一步。completed 清对局态 moved 留在局里
// error 事件不动对局态（一步被拒不等于终局）超时同开局的乐观回执策略。
func (e *Engine) MakeMove(ctx context.Context, sess *session.Session, payload map[string]any) (any, error) {
	gameID, _ := sess.ActiveGame()
	if gameID == 0 {
		return nil, errs.ErrNoActiveGame
	}

	ins, err := moveInstruction(gameID, payload)
	if err != nil {
		return nil, errs.ErrInvalidMessage.WithDetail(err.Error())
	}

	if err := e.submitWithRetry(ctx, sess, ins); err != nil {
		return nil, err
	}

	ev := sess.Stream.WaitForMoveOrComplete(e.waitTimeout)
	switch {
	case ev == nil:
		logger.Infof("[op] move confirmation timeout account=%s game=%d", sess.Account()[:12], gameID)
		return &MoveAccepted{
			Type:        "move_accepted",
			SessionID:   strconv.FormatUint(gameID, 10),
			Provisional: true,
		}, nil

	case ev.Type == stream.EventCompleted:
		sess.EndGame()
		return &GameResult{
			Type:       "game_result",
			SessionID:  strconv.FormatUint(gameID, 10),
			Won:        ev.Payout > 0,
			Payout:     ev.Payout,
			FinalChips: ev.FinalBalance,
			Message:    resultMessage(ev.Payout),
			Logs:       ev.Logs,
		}, nil

	case ev.Type == stream.EventMoved:
		return &GameMove{
			Type:       "game_move",
			SessionID:  strconv.FormatUint(gameID, 10),
			MoveNumber: ev.MoveNumber,
			Logs:       ev.Logs,
		}, nil

	default: // error 事件 对局不动
		return nil, errs.ErrTxRejected.WithDetail(ev.ErrMessage)
	}
}

// Balance 查余额 拿不到按后端不可用处理 绝不当成零余额
func (e *Engine) Balance(ctx context.Context, sess *session.Session) (*Balance, error) {
	st := e.submit.GetAccount(ctx, sess.Account())
	if st == nil {
		return nil, errs.ErrBackendDown.WithDetail("account state unavailable")
	}
	return &Balance{Type: "balance", Balance: st.Balance, Nonce: st.Nonce}, nil
}

func resultMessage(payout int64) string {
	switch {
	case payout > 0:
		return fmt.Sprintf("You win %d chips!", payout)
	case payout < 0:
		return fmt.Sprintf("You lose %d chips", -payout)
	default:
		return "Push, bet returned"
	}
}

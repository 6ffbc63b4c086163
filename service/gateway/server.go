package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"CProject/global/config"
	"CProject/logger"
	"CProject/service/backend"
	"CProject/service/game"
	"CProject/service/session"
	"CProject/tools/decode"
	errs "CProject/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(r *http.Request) bool { return true }}

// Server 面向客户端的 WebSocket 网关
type Server struct {
	sessions *session.Manager
	engine   *game.Engine
	disp     *game.Dispatcher
	backend  *backend.Client
}

func NewServer(sessions *session.Manager, engine *game.Engine, disp *game.Dispatcher, bk *backend.Client) *Server {
	return &Server{sessions: sessions, engine: engine, disp: disp, backend: bk}
}

// HandleWS ===== WebSocket 处理 =====
// 一条连接一个会话 建会话（含注册/首充）完成前不进读循环
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}

	transport := newWSTransport(ws)

	sess, err := s.sessions.CreateSession(c.Request.Context(), transport, session.CreateOptions{
		AutoFund:   config.Global.AutoFund,
		FundAmount: config.Global.InitialDeposit,
	})
	if err != nil {
		logger.Errorf("[HandleWS] create session failed: %v", err)
		s.sendError(transport, err)
		_ = ws.Close()
		return
	}

	// 余额拿不到不拦会话 回执里报 0 客户端随后可以 get_balance
	balance := int64(0)
	if st := s.backend.GetAccount(c.Request.Context(), sess.Account()); st != nil {
		balance = st.Balance
	}
	_ = transport.SendJSON(&game.SessionReady{
		Type:    "session_ready",
		Player:  sess.DisplayName,
		Account: sess.Account(),
		Balance: balance,
	})

	gctx := &game.Context{Engine: s.engine, Sessions: s.sessions}

	// ---- 读循环：本连接的请求天然串行 互不等待的只有别的连接 ----
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed conn=%s", sess.ConnID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout conn=%s err=%v", sess.ConnID, rerr)
			} else {
				logger.Infof("[WS] read err conn=%s err=%v", sess.ConnID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		var raw map[string]any
		if perr := json.Unmarshal(data, &raw); perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[WS] bad frame conn=%s err=%v sample=%q", sess.ConnID, perr, sample)
			s.sendError(transport, errs.ErrInvalidMessage.WithDetail("malformed JSON"))
			continue
		}

		// 宽松解码 "bet":"100" 这种瘦客户端发法也收
		msg, derr := decode.DecodeMap[game.ClientMessage](raw)
		if derr != nil {
			s.sendError(transport, errs.ErrInvalidMessage.WithDetail(derr.Error()))
			continue
		}

		sess.Touch(time.Now())

		if derr := s.disp.Dispatch(gctx, msg, sess); derr != nil {
			s.sendError(transport, derr)
		}
	}

	// ---- 退出：销毁会话 释放订阅 ----
	if s.sessions.DestroySession(sess.ConnID) != nil {
		logger.Infof("[WS] session torn down conn=%s", sess.ConnID)
	}
	_ = ws.Close()
}

func (s *Server) sendError(t *wsTransport, err error) {
	ce := errs.AsCodeError(err)
	if ce == nil {
		ce = errs.ErrInternal.WithDetail(err.Error())
	}
	message := ce.Msg
	if ce.Detail != "" {
		message = ce.Msg + ": " + ce.Detail
	}
	_ = t.SendJSON(&game.ErrorMessage{Type: "error", Code: ce.Code, Message: message})
}

// HandleHealthz 网关自身健康 + 后端可达性
func (s *Server) HandleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	backendUp := s.backend.HealthCheck(ctx)
	status := http.StatusOK
	if !backendUp {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"gateway":  "ok",
		"backend":  backendUp,
		"sessions": s.sessions.Count(),
	})
}

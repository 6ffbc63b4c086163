package handlers

import (
	"time"

	"CProject/service/game"
	"CProject/service/session"
)

type PingHandler struct{}

func NewPingHandler() game.Handler { return &PingHandler{} }

func (h *PingHandler) Type() string { return game.MsgPing }

func (h *PingHandler) Handle(_ *game.Context, _ *game.ClientMessage, sess *session.Session) error {
	return sess.Conn.SendJSON(&game.Pong{Type: "pong", TS: time.Now().UnixMilli()})
}

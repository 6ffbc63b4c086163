package handlers

import (
	"context"

	"CProject/service/game"
	"CProject/service/session"
)

type BalanceHandler struct{}

func NewBalanceHandler() game.Handler { return &BalanceHandler{} }

func (h *BalanceHandler) Type() string { return game.MsgGetBalance }

func (h *BalanceHandler) Handle(ctx *game.Context, _ *game.ClientMessage, sess *session.Session) error {
	resp, err := ctx.Engine.Balance(context.Background(), sess)
	if err != nil {
		return err
	}
	return sess.Conn.SendJSON(resp)
}

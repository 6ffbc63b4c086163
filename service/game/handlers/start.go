package handlers

import (
	"context"

	"CProject/service/game"
	"CProject/service/session"
)

type StartGameHandler struct{}

func NewStartGameHandler() game.Handler { return &StartGameHandler{} }

func (h *StartGameHandler) Type() string { return game.MsgStartGame }

func (h *StartGameHandler) Handle(ctx *game.Context, msg *game.ClientMessage, sess *session.Session) error {
	resp, err := ctx.Engine.StartGame(context.Background(), sess, msg.GameType, msg.Bet)
	if err != nil {
		return err
	}
	return sess.Conn.SendJSON(resp)
}

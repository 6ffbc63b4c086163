package handlers

import (
	"context"

	"CProject/service/game"
	"CProject/service/session"
	errs "CProject/tools/errs"
)

type MoveHandler struct{}

func NewMoveHandler() game.Handler { return &MoveHandler{} }

func (h *MoveHandler) Type() string { return game.MsgMove }

func (h *MoveHandler) Handle(ctx *game.Context, msg *game.ClientMessage, sess *session.Session) error {
	if msg.Payload == nil {
		return errs.ErrInvalidMessage.WithDetail("move requires payload")
	}
	resp, err := ctx.Engine.MakeMove(context.Background(), sess, msg.Payload)
	if err != nil {
		return err
	}
	return sess.Conn.SendJSON(resp)
}

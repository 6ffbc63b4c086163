package game

import (
	"CProject/service/session"
	errs "CProject/tools/errs"
)

// Context 处理器拿到的依赖面
type Context struct {
	Engine   *Engine
	Sessions *session.Manager
}

// Handler 一种入站消息类型一个处理器
type Handler interface {
	Type() string
	Handle(ctx *Context, msg *ClientMessage, sess *session.Session) error
}

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Type()] = h }

func (d *Dispatcher) Dispatch(ctx *Context, msg *ClientMessage, sess *session.Session) error {
	h, ok := d.handlers[msg.Type]
	if !ok {
		return errs.ErrInvalidMessage.WithDetail("unknown type " + msg.Type)
	}
	return h.Handle(ctx, msg, sess)
}

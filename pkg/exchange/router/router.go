// Package router maps inbound message types to handlers. The set of
// known kinds is closed; anything else falls through to a logging
// default rather than failing.
package router

import (
	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"

	"fixbench/pkg/fix"
)

// Kind identifies the message types this system understands.
type Kind int

const (
	KindUnknown Kind = iota
	KindNewOrderSingle
	KindOrderCancelRequest
	KindOrderCancelReplaceRequest
	KindExecutionReport
	KindOrderCancelReject
)

func (k Kind) String() string {
	switch k {
	case KindNewOrderSingle:
		return "NewOrderSingle"
	case KindOrderCancelRequest:
		return "OrderCancelRequest"
	case KindOrderCancelReplaceRequest:
		return "OrderCancelReplaceRequest"
	case KindExecutionReport:
		return "ExecutionReport"
	case KindOrderCancelReject:
		return "OrderCancelReject"
	default:
		return "Unknown"
	}
}

// Classify inspects the MsgType tag (35).
func Classify(msg *quickfix.Message) Kind {
	switch fix.MsgType(msg) {
	case "D":
		return KindNewOrderSingle
	case "F":
		return KindOrderCancelRequest
	case "G":
		return KindOrderCancelReplaceRequest
	case "8":
		return KindExecutionReport
	case "9":
		return KindOrderCancelReject
	default:
		return KindUnknown
	}
}

// Handler is the capability invoked for one message kind.
type Handler interface {
	Handle(msg *quickfix.Message, sessionID quickfix.SessionID) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(msg *quickfix.Message, sessionID quickfix.SessionID) error

func (f HandlerFunc) Handle(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	return f(msg, sessionID)
}

type Router struct {
	handlers map[Kind]Handler
	fallback Handler
}

func New(log *zap.SugaredLogger) *Router {
	return &Router{
		handlers: make(map[Kind]Handler),
		fallback: &defaultHandler{log: log},
	}
}

func (r *Router) Register(kind Kind, h Handler) {
	r.handlers[kind] = h
}

// Route performs a single lookup-and-invoke. Unregistered kinds go to
// the default handler.
func (r *Router) Route(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	h, ok := r.handlers[Classify(msg)]
	if !ok {
		h = r.fallback
	}
	return h.Handle(msg, sessionID)
}

// defaultHandler logs messages nothing else claimed.
type defaultHandler struct {
	log *zap.SugaredLogger
}

func (h *defaultHandler) Handle(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	h.log.Infow("app_in_unhandled", "session", sessionID.String(), "raw", fix.Raw(msg))
	return nil
}

package fix

import (
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"go.uber.org/zap"
)

// HandleFunc processes one inbound application message.
type HandleFunc func(msg *quickfix.Message, sessionID quickfix.SessionID) error

// Dispatcher decouples inbound message arrival from handling; see
// pkg/exchange/dispatch for the worker-pool implementation.
type Dispatcher interface {
	Submit(msg *quickfix.Message, sessionID quickfix.SessionID, handle HandleFunc)
}

// Routes resolves a message to its type-specific handler.
type Routes interface {
	Route(msg *quickfix.Message, sessionID quickfix.SessionID) error
}

// App implements quickfix.Application for both roles. Session lifecycle
// events are logged; every inbound application message is copied off the
// engine's delivery goroutine and submitted to the dispatcher.
type App struct {
	transport  *EngineTransport
	dispatcher Dispatcher
	router     Routes
	log        *zap.SugaredLogger
}

func NewApp(transport *EngineTransport, dispatcher Dispatcher, router Routes, log *zap.SugaredLogger) *App {
	return &App{
		transport:  transport,
		dispatcher: dispatcher,
		router:     router,
		log:        log,
	}
}

// OnCreate is called when a session is first configured; the connection
// is not established yet.
func (a *App) OnCreate(sessionID quickfix.SessionID) {
	a.log.Infow("session_created", "session", sessionID.String())
}

func (a *App) OnLogon(sessionID quickfix.SessionID) {
	a.transport.setLoggedOn(sessionID, true)
	a.log.Infow("logon",
		"session", sessionID.String(),
		"sender", sessionID.SenderCompID,
		"target", sessionID.TargetCompID,
		"begin_string", sessionID.BeginString)
}

func (a *App) OnLogout(sessionID quickfix.SessionID) {
	a.transport.setLoggedOn(sessionID, false)
	a.log.Infow("logout",
		"session", sessionID.String(),
		"sender", sessionID.SenderCompID,
		"target", sessionID.TargetCompID)
}

func (a *App) ToAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) {
	switch mt, _ := msg.Header.GetString(tag.MsgType); mt {
	case "A":
		a.log.Infow("sending_logon", "target", sessionID.TargetCompID)
	case "5":
		a.log.Infow("sending_logout", "target", sessionID.TargetCompID, "reason", Text(msg))
	}
}

func (a *App) FromAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	switch mt, _ := msg.Header.GetString(tag.MsgType); mt {
	case "A":
		a.log.Infow("received_logon", "target", sessionID.TargetCompID)
	case "5":
		a.log.Infow("received_logout", "target", sessionID.TargetCompID, "reason", Text(msg))
	case "0":
		a.log.Debugw("heartbeat", "target", sessionID.TargetCompID)
	case "3":
		a.log.Warnw("session_reject", "target", sessionID.TargetCompID, "reason", Text(msg))
	}
	return nil
}

func (a *App) ToApp(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	a.log.Infow("app_out", "session", sessionID.String(), "raw", Raw(msg))
	return nil
}

// FromApp is invoked on the engine's delivery goroutine. The message is
// copied because the engine may reuse it once this call returns.
func (a *App) FromApp(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	cp := quickfix.NewMessage()
	msg.CopyInto(cp)
	a.dispatcher.Submit(cp, sessionID, a.router.Route)
	return nil
}

var _ quickfix.Application = (*App)(nil)

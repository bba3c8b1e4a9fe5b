package fix

import (
	"errors"
	"sync"

	"github.com/quickfixgo/quickfix"
)

// ErrNotConnected is returned by EngineTransport.Send when the target
// session has no established logon.
var ErrNotConnected = errors.New("session not connected")

// SessionSender is the only thing the order-flow core knows about the
// FIX engine: deliver one structured message to a named session.
type SessionSender interface {
	Send(m quickfix.Messagable, sessionID quickfix.SessionID) error
	IsConnected(sessionID quickfix.SessionID) bool
}

// EngineTransport sends through the quickfix engine. The engine exposes
// no public session registry, so logon state is tracked here from the
// application callbacks (see App.OnLogon/OnLogout).
type EngineTransport struct {
	mu       sync.RWMutex
	loggedOn map[quickfix.SessionID]bool
}

func NewEngineTransport() *EngineTransport {
	return &EngineTransport{loggedOn: make(map[quickfix.SessionID]bool)}
}

func (t *EngineTransport) Send(m quickfix.Messagable, sessionID quickfix.SessionID) error {
	if !t.IsConnected(sessionID) {
		return ErrNotConnected
	}
	return quickfix.SendToTarget(m, sessionID)
}

func (t *EngineTransport) IsConnected(sessionID quickfix.SessionID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loggedOn[sessionID]
}

func (t *EngineTransport) setLoggedOn(sessionID quickfix.SessionID, up bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loggedOn[sessionID] = up
}

var _ SessionSender = (*EngineTransport)(nil)

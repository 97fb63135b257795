package app

import (
	"github.com/rs/zerolog"

	"bitchat/internal/domain"
	"bitchat/internal/queue"
)

// App is the built application handed to commands.
type App struct {
	Config Config
	Log    zerolog.Logger

	Initiator domain.InitiatorService
	Sessions  domain.SessionCoordinator
	Responder domain.ResponderService
	Inbox     *queue.Inbound
}

// New builds the logger and the dependency graph from cfg.
func New(cfg Config) (*App, error) {
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)
	w, err := NewWire(cfg, log)
	if err != nil {
		return nil, err
	}
	return &App{
		Config:    cfg,
		Log:       log,
		Initiator: w.Initiator,
		Sessions:  w.Sessions,
		Responder: w.Responder,
		Inbox:     w.Inbox,
	}, nil
}

// Shutdown releases the session, withdraws advertising, and closes the
// inbox. Safe to call more than once.
func (a *App) Shutdown() {
	a.Sessions.Teardown()
	a.Responder.Stop()
	a.Inbox.Close()
}

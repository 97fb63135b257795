package app

import (
	"github.com/rs/zerolog"

	"bitchat/internal/domain"
	"bitchat/internal/queue"
	initiatorsvc "bitchat/internal/services/initiator"
	respondersvc "bitchat/internal/services/responder"
	sessionsvc "bitchat/internal/services/session"
	"bitchat/internal/transport/ble"
)

// Wire bundles the transports and services for the CLI.
type Wire struct {
	Initiator domain.InitiatorService
	Sessions  domain.SessionCoordinator
	Responder domain.ResponderService
	Inbox     *queue.Inbound
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config, log zerolog.Logger) (*Wire, error) {
	// Inbound messages land here regardless of which role produced them
	inbox := queue.NewInbound()

	// Transports default to the real BLE stack unless cfg injects substitutes
	central := cfg.Central
	if central == nil {
		var err error
		central, err = ble.NewCentral(cfg.ConnectTimeout, log)
		if err != nil {
			return nil, err
		}
	}
	advertiser := cfg.Advertiser
	if advertiser == nil {
		advertiser = ble.NewPeripheral(log)
	}

	// High-level services
	initiatorSvc := initiatorsvc.New(central, cfg.Name, log)
	sessionSvc := sessionsvc.New(initiatorSvc, inbox, log)
	responderSvc := respondersvc.New(advertiser, sessionSvc, cfg.Name, log)

	return &Wire{
		Initiator: initiatorSvc,
		Sessions:  sessionSvc,
		Responder: responderSvc,
		Inbox:     inbox,
	}, nil
}

package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bitchat/internal/codec"
	"bitchat/internal/domain"
	"bitchat/internal/queue"
)

// Service is the session coordinator. It owns the one session slot shared by
// both roles and accepts every inbound payload, whether it arrived over the
// initiator's subscription or the responder's advertised characteristic.
//
// All state transitions happen under one mutex. Transport callbacks only
// touch the lock briefly; nothing blocking runs while it is held.
type Service struct {
	init  domain.InitiatorService
	inbox *queue.Inbound
	log   zerolog.Logger

	mu    sync.Mutex
	state domain.SessionState
	sess  *domain.Session

	// gen bumps on every teardown so an in-flight connect can detect that
	// its result became stale.
	gen uint64
}

// New constructs the coordinator around the initiator service and the
// inbound queue.
func New(init domain.InitiatorService, inbox *queue.Inbound, log zerolog.Logger) *Service {
	return &Service{
		init:  init,
		inbox: inbox,
		state: domain.StateIdle,
		log:   log.With().Str("component", "session").Logger(),
	}
}

// Connect establishes an initiator session with the peer at address.
//
// The slot is claimed (Connecting) before any transport work starts, so a
// second connect attempt in any state fails fast with ErrAlreadyConnected.
// On failure the coordinator returns to Idle; the initiator has already
// closed whatever half-open link existed.
func (s *Service) Connect(ctx context.Context, address string) (domain.Status, error) {
	s.mu.Lock()
	if s.state != domain.StateIdle {
		st := s.statusLocked()
		s.mu.Unlock()
		return st, fmt.Errorf("%w: %s", domain.ErrAlreadyConnected, describe(st))
	}
	s.state = domain.StateConnecting
	start := s.gen
	s.mu.Unlock()

	s.log.Info().Str("address", address).Msg("connecting")
	sess, err := s.init.Connect(ctx, address, s)

	s.mu.Lock()
	if err != nil {
		if s.gen == start {
			s.state = domain.StateIdle
		}
		s.mu.Unlock()
		return domain.Status{State: domain.StateIdle}, err
	}
	if s.gen != start {
		// Torn down while the connect was in flight. The fresh link must not
		// resurrect the session.
		s.mu.Unlock()
		s.init.Disconnect(sess)
		return domain.Status{State: domain.StateIdle},
			fmt.Errorf("%w: torn down during connect", domain.ErrConnectFailed)
	}
	s.state = domain.StateConnected
	s.sess = sess
	st := s.statusLocked()
	s.mu.Unlock()

	s.log.Info().Str("peer", sess.Peer.Label()).Str("session", sess.ID).Msg("initiator session established")
	return st, nil
}

// Send routes text through the active session's outbound link.
//
// A write failure is reported but never tears the session down; the user
// decides whether to disconnect. Responder sessions have no outbound link,
// so sends on them fail with ErrNotConnected.
func (s *Service) Send(ctx context.Context, text string) (domain.Message, error) {
	s.mu.Lock()
	if s.state != domain.StateConnected {
		state := s.state
		s.mu.Unlock()
		return domain.Message{}, fmt.Errorf("%w: state %s", domain.ErrNotConnected, state)
	}
	sess := s.sess
	s.mu.Unlock()

	return s.init.Send(ctx, sess, text)
}

// Teardown releases the session slot and closes the link best-effort. It
// returns the status it replaced and is safe to call repeatedly, including
// while a connect is in flight.
func (s *Service) Teardown() domain.Status {
	s.mu.Lock()
	prior := s.statusLocked()
	sess := s.sess
	s.sess = nil
	s.state = domain.StateIdle
	s.gen++
	s.mu.Unlock()

	if sess != nil {
		s.init.Disconnect(sess)
		s.log.Info().Str("session", sess.ID).Msg("session torn down")
	}
	return prior
}

// Status reports a snapshot of the coordinator.
func (s *Service) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Accept implements domain.MessageSink for both arrival paths.
//
// A valid payload from a new peer while Idle claims the slot as a responder
// session. While a session exists, only its peer's payloads are admitted;
// anything else is refused with ErrPeerBusy so the transport can bounce the
// write. Payloads that fail to decode are logged and dropped without
// disturbing the session.
func (s *Service) Accept(from domain.PeerIdentity, payload []byte) error {
	// Refuse foreign writers before spending any work on the payload.
	if err := s.routeCheck(from); err != nil {
		return err
	}

	text, err := codec.Decode(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("peer", from.Label()).Msg("dropping undecodable payload")
		return nil
	}

	claimed, err := s.claim(from)
	if err != nil {
		return err
	}
	if claimed {
		s.log.Info().Str("peer", from.Label()).Msg("responder session established by inbound write")
	}

	if !s.inbox.Enqueue(domain.Message{Body: text, Direction: domain.Inbound}) {
		s.log.Debug().Str("peer", from.Label()).Msg("inbox closed, message dropped")
	}
	return nil
}

// routeCheck rejects writers the current state excludes.
func (s *Service) routeCheck(from domain.PeerIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case domain.StateConnecting:
		s.log.Warn().Str("peer", from.Label()).Msg("inbound write rejected, connect in flight")
		return fmt.Errorf("%w: connect in flight", domain.ErrPeerBusy)
	case domain.StateConnected:
		if !samePeer(s.sess.Peer, from) {
			s.log.Warn().Str("peer", from.Label()).Str("active", s.sess.Peer.Label()).
				Msg("inbound write from second peer rejected")
			return fmt.Errorf("%w: session with %s", domain.ErrPeerBusy, s.sess.Peer.Label())
		}
	}
	return nil
}

// claim takes the slot for a first valid inbound message, or re-validates
// routing when the state moved between routeCheck and now.
func (s *Service) claim(from domain.PeerIdentity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case domain.StateIdle:
		s.sess = &domain.Session{
			ID:            uuid.NewString(),
			Peer:          from,
			Role:          domain.RoleResponder,
			EstablishedAt: time.Now(),
		}
		s.state = domain.StateConnected
		return true, nil
	case domain.StateConnecting:
		return false, fmt.Errorf("%w: connect in flight", domain.ErrPeerBusy)
	default:
		if !samePeer(s.sess.Peer, from) {
			return false, fmt.Errorf("%w: session with %s", domain.ErrPeerBusy, s.sess.Peer.Label())
		}
		return false, nil
	}
}

func (s *Service) statusLocked() domain.Status {
	st := domain.Status{State: s.state}
	if s.state == domain.StateConnected && s.sess != nil {
		st.SessionID = s.sess.ID
		st.Peer = s.sess.Peer
		st.Role = s.sess.Role
		st.EstablishedAt = s.sess.EstablishedAt
	}
	return st
}

// samePeer matches a writer against the session peer. Some stacks cannot
// resolve the writer's identity; an unknown address routes to the active
// session rather than stranding the peer.
func samePeer(active, from domain.PeerIdentity) bool {
	if active.Address == "" || from.Address == "" {
		return true
	}
	return strings.EqualFold(active.Address, from.Address)
}

func describe(st domain.Status) string {
	if st.State == domain.StateConnected {
		return fmt.Sprintf("%s session with %s", st.Role, st.Peer.Label())
	}
	return fmt.Sprintf("state %s", st.State)
}

// Compile-time assertion that Service implements domain.SessionCoordinator.
var _ domain.SessionCoordinator = (*Service)(nil)

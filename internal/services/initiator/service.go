package initiator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"bitchat/internal/codec"
	"bitchat/internal/domain"
)

// Service performs the central half of the protocol against a transport.
//
// It produces links and operates them; it never tracks which session is
// active. That stays with the session coordinator, which calls in here.
type Service struct {
	central domain.Central
	name    string
	log     zerolog.Logger
}

// New constructs an initiator Service around the given central transport.
func New(central domain.Central, displayName string, log zerolog.Logger) *Service {
	return &Service{
		central: central,
		name:    displayName,
		log:     log.With().Str("component", "initiator").Logger(),
	}
}

// Scan discovers nearby devices for up to timeout.
//
// Devices advertising the chat service, or carrying the chat name marker, are
// preferred. When nothing matches, the unfiltered list is returned so the
// user can still try an address by hand.
func (s *Service) Scan(ctx context.Context, timeout time.Duration) ([]domain.PeerIdentity, error) {
	var all []domain.Discovery
	err := s.central.Scan(ctx, timeout, func(d domain.Discovery) {
		all = append(all, d)
	})
	if err != nil {
		return nil, fmt.Errorf("initiator: scan: %w", err)
	}

	chat := lo.Filter(all, func(d domain.Discovery, _ int) bool { return IsChatPeer(d) })
	picked := chat
	if len(picked) == 0 {
		picked = all
		if len(all) > 0 {
			s.log.Debug().Int("devices", len(all)).Msg("no chat peers seen, reporting everything")
		}
	}

	s.log.Info().Int("devices", len(all)).Int("chat_peers", len(chat)).Msg("scan finished")
	return lo.Map(picked, func(d domain.Discovery, _ int) domain.PeerIdentity { return d.Peer }), nil
}

// IsChatPeer reports whether a scan observation looks like a chat peer:
// either the advertisement carried the chat service UUID or the device name
// contains the chat marker.
func IsChatPeer(d domain.Discovery) bool {
	return d.ChatService || strings.Contains(d.Peer.Name, domain.LocalNamePrefix)
}

// Connect dials address, verifies the chat service, and subscribes inbound
// notifications into sink.
//
// Steps:
//  1. Open the link through the central transport.
//  2. Resolve the remote GATT database and locate the chat service.
//  3. Check both chat characteristics are present.
//  4. Subscribe to the read characteristic, delivering into sink.
//
// Any failure after the link opens closes it before returning; a half-open
// link never escapes.
func (s *Service) Connect(ctx context.Context, address string, sink domain.MessageSink) (*domain.Session, error) {
	link, err := s.central.Connect(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrConnectFailed, address, err)
	}

	svcs, err := link.Services(ctx)
	if err != nil {
		s.closeLink(link)
		return nil, fmt.Errorf("%w: resolve services: %v", domain.ErrConnectFailed, err)
	}

	svc, ok := findService(svcs, domain.ServiceUUID)
	if !ok {
		s.closeLink(link)
		return nil, fmt.Errorf("%w: %s offers no %s", domain.ErrServiceNotFound, address, domain.ServiceUUID)
	}
	if !hasCharacteristic(svc, domain.TXCharUUID) || !hasCharacteristic(svc, domain.RXCharUUID) {
		s.closeLink(link)
		return nil, fmt.Errorf("%w: service %s", domain.ErrCharacteristicsNotFound, svc.UUID)
	}

	peer := link.Peer()
	err = link.Subscribe(domain.RXCharUUID, func(payload []byte) {
		if err := sink.Accept(peer, payload); err != nil {
			s.log.Warn().Err(err).Str("peer", peer.Label()).Msg("inbound notification refused")
		}
	})
	if err != nil {
		s.closeLink(link)
		return nil, fmt.Errorf("%w: subscribe: %v", domain.ErrConnectFailed, err)
	}

	sess := &domain.Session{
		ID:            uuid.NewString(),
		Peer:          peer,
		Role:          domain.RoleInitiator,
		EstablishedAt: time.Now(),
		Link:          link,
	}
	s.log.Info().Str("peer", peer.Label()).Str("session", sess.ID).Msg("link established")
	return sess, nil
}

// Send encodes text and writes it to the peer's write characteristic. The
// returned message is the local echo. A write failure surfaces as an error
// and leaves the link untouched.
func (s *Service) Send(ctx context.Context, sess *domain.Session, text string) (domain.Message, error) {
	if sess == nil || sess.Link == nil {
		return domain.Message{}, fmt.Errorf("%w: no outbound link", domain.ErrNotConnected)
	}

	payload := codec.Encode(s.name, text)
	if err := sess.Link.Write(ctx, domain.TXCharUUID, payload); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", domain.ErrWriteFailed, err)
	}

	s.log.Debug().Str("peer", sess.Peer.Label()).Int("bytes", len(payload)).Msg("message written")
	return domain.Message{Sender: s.name, Body: text, Direction: domain.Outbound}, nil
}

// Disconnect unsubscribes and closes the session's link. Failures are logged
// and swallowed; teardown is best-effort on every path.
func (s *Service) Disconnect(sess *domain.Session) {
	if sess == nil || sess.Link == nil {
		return
	}
	if err := sess.Link.Unsubscribe(domain.RXCharUUID); err != nil {
		s.log.Debug().Err(err).Msg("unsubscribe failed during teardown")
	}
	s.closeLink(sess.Link)
	s.log.Info().Str("peer", sess.Peer.Label()).Str("session", sess.ID).Msg("link closed")
}

func (s *Service) closeLink(link domain.Link) {
	if err := link.Close(); err != nil {
		s.log.Debug().Err(err).Msg("link close failed")
	}
}

func findService(svcs []domain.ServiceInfo, uuidStr string) (domain.ServiceInfo, bool) {
	for _, svc := range svcs {
		if strings.EqualFold(svc.UUID, uuidStr) {
			return svc, true
		}
	}
	return domain.ServiceInfo{}, false
}

func hasCharacteristic(svc domain.ServiceInfo, uuidStr string) bool {
	return lo.ContainsBy(svc.Characteristics, func(c string) bool {
		return strings.EqualFold(c, uuidStr)
	})
}

// Compile-time assertion that Service implements domain.InitiatorService.
var _ domain.InitiatorService = (*Service)(nil)

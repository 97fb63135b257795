package responder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"bitchat/internal/domain"
)

// Service runs the responder role: it registers the chat advertisement and
// GATT service, then keeps a worker watching the asynchronous registration
// outcome until stopped.
//
// Inbound writes never pass through here; the advertiser delivers them
// straight to the session coordinator's sink.
type Service struct {
	adv  domain.Advertiser
	sink domain.MessageSink
	name string
	log  zerolog.Logger

	mu          sync.Mutex
	started     bool
	advertising bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// New constructs a responder Service around the given advertiser, delivering
// inbound writes into sink.
func New(adv domain.Advertiser, sink domain.MessageSink, displayName string, log zerolog.Logger) *Service {
	return &Service{
		adv:  adv,
		sink: sink,
		name: displayName,
		log:  log.With().Str("component", "responder").Logger(),
	}
}

// Start submits the advertisement and GATT registration and launches the
// worker that tracks the asynchronous outcome. Registration being submitted
// does not mean advertising is live yet; the worker logs each stage as it
// settles.
//
// ErrAdvertisingUnavailable passes through untouched so callers can keep the
// app running as a pure initiator.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("responder: already started")
	}

	ad := domain.Advertisement{
		LocalName:     domain.AdvertisedName(s.name),
		ServiceUUID:   domain.ServiceUUID,
		WriteCharUUID: domain.TXCharUUID,
		ReadCharUUID:  domain.RXCharUUID,
	}

	wctx, cancel := context.WithCancel(ctx)
	results, err := s.adv.Advertise(wctx, ad, s.sink)
	if err != nil {
		cancel()
		if errors.Is(err, domain.ErrAdvertisingUnavailable) {
			s.log.Warn().Err(err).Msg("peripheral role unavailable, running initiator-only")
			return err
		}
		return fmt.Errorf("responder: start advertising: %w", err)
	}

	done := make(chan struct{})
	s.started = true
	s.advertising = true
	s.cancel = cancel
	s.done = done

	s.log.Info().Str("name", ad.LocalName).Msg("advertising requested")
	go s.watch(wctx, results, done)
	return nil
}

// watch consumes registration results until they settle or the worker is
// cancelled.
func (s *Service) watch(ctx context.Context, results <-chan error, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-results:
			if !ok {
				return
			}
			if err != nil {
				s.mu.Lock()
				s.advertising = false
				s.mu.Unlock()
				s.log.Error().Err(err).Msg("registration failed")
				continue
			}
			s.log.Info().Msg("registration confirmed")
		}
	}
}

// Stop withdraws the advertisement and waits for the worker to exit.
// Idempotent, and safe when Start never succeeded.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.advertising = false
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done
	if err := s.adv.Close(); err != nil {
		s.log.Debug().Err(err).Msg("advertiser close failed")
	}
	s.log.Info().Msg("advertising stopped")
}

// Advertising reports whether the advertisement is believed live: requested,
// not stopped, and no registration stage has failed.
func (s *Service) Advertising() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advertising
}

// Compile-time assertion that Service implements domain.ResponderService.
var _ domain.ResponderService = (*Service)(nil)

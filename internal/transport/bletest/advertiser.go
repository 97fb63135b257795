package bletest

import (
	"context"
	"fmt"
	"sync"

	"bitchat/internal/domain"
)

// Advertiser implements domain.Advertiser in memory. Tests deliver inbound
// writes through WriteFromPeer as if a remote central had written to the
// advertised service.
type Advertiser struct {
	// Unavailable makes Advertise fail as on a platform without peripheral
	// support.
	Unavailable bool

	// RegistrationResults scripts the asynchronous registration outcomes.
	// Nil means both stages succeed.
	RegistrationResults []error

	mu     sync.Mutex
	sink   domain.MessageSink
	ad     domain.Advertisement
	active bool
	closes int
}

func (a *Advertiser) Advertise(ctx context.Context, ad domain.Advertisement, sink domain.MessageSink) (<-chan error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.Unavailable {
		return nil, fmt.Errorf("%w: no capable adapter", domain.ErrAdvertisingUnavailable)
	}

	a.mu.Lock()
	a.sink = sink
	a.ad = ad
	a.active = true
	results := a.RegistrationResults
	a.mu.Unlock()

	if results == nil {
		results = []error{nil, nil}
	}
	ch := make(chan error, len(results))
	for _, err := range results {
		ch <- err
	}
	close(ch)
	return ch, nil
}

func (a *Advertiser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = false
	a.closes++
	return nil
}

// WriteFromPeer simulates a remote central writing payload to the advertised
// write characteristic.
func (a *Advertiser) WriteFromPeer(from domain.PeerIdentity, payload []byte) error {
	a.mu.Lock()
	sink, active := a.sink, a.active
	a.mu.Unlock()
	if !active || sink == nil {
		return fmt.Errorf("not advertising")
	}
	return sink.Accept(from, payload)
}

// Active reports whether an advertisement is currently registered.
func (a *Advertiser) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Ad returns the advertisement most recently registered.
func (a *Advertiser) Ad() domain.Advertisement {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ad
}

// Closes reports how many times Close has been called.
func (a *Advertiser) Closes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closes
}

var _ domain.Advertiser = (*Advertiser)(nil)

package bletest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"bitchat/internal/domain"
)

// Peer scripts one connectable remote device.
type Peer struct {
	Identity domain.PeerIdentity
	Services []domain.ServiceInfo

	// WriteErr and SubscribeErr force the corresponding link operation to
	// fail when non-nil.
	WriteErr     error
	SubscribeErr error

	mu     sync.Mutex
	links  []*Link
	writes map[string][][]byte
}

// NewChatPeer returns a peer exposing the standard chat service.
func NewChatPeer(address, name string) *Peer {
	return &Peer{
		Identity: domain.PeerIdentity{Address: address, Name: name},
		Services: []domain.ServiceInfo{{
			UUID:            domain.ServiceUUID,
			Characteristics: []string{domain.TXCharUUID, domain.RXCharUUID},
		}},
	}
}

// Written returns every payload written to the named characteristic, oldest
// first.
func (p *Peer) Written(charUUID string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.writes[strings.ToLower(charUUID)]...)
}

// Links returns every link ever opened to this peer, oldest first.
func (p *Peer) Links() []*Link {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Link(nil), p.links...)
}

// Notify delivers payload to every link subscribed to the characteristic.
func (p *Peer) Notify(charUUID string, payload []byte) {
	p.mu.Lock()
	links := append([]*Link(nil), p.links...)
	p.mu.Unlock()
	for _, l := range links {
		l.notify(charUUID, payload)
	}
}

func (p *Peer) recordWrite(charUUID string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writes == nil {
		p.writes = make(map[string][][]byte)
	}
	key := strings.ToLower(charUUID)
	p.writes[key] = append(p.writes[key], append([]byte(nil), payload...))
}

func (p *Peer) addLink(l *Link) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.links = append(p.links, l)
}

func (p *Peer) advertisesChat() bool {
	for _, s := range p.Services {
		if strings.EqualFold(s.UUID, domain.ServiceUUID) {
			return true
		}
	}
	return false
}

// Central implements domain.Central over scripted peers.
type Central struct {
	// ScanErr and ConnectErr force the corresponding call to fail.
	ScanErr    error
	ConnectErr error

	// BeforeConnect, when set, runs at the top of Connect. Tests use it to
	// stall or fail connects deterministically.
	BeforeConnect func(address string) error

	mu          sync.Mutex
	peers       map[string]*Peer
	discoveries []domain.Discovery
	connects    int
}

// NewCentral returns a central that discovers and connects to the given
// peers.
func NewCentral(peers ...*Peer) *Central {
	c := &Central{peers: make(map[string]*Peer, len(peers))}
	for _, p := range peers {
		c.peers[strings.ToUpper(p.Identity.Address)] = p
		c.discoveries = append(c.discoveries, domain.Discovery{
			Peer:        p.Identity,
			ChatService: p.advertisesChat(),
		})
	}
	return c
}

// AddDiscovery injects a scan observation without a connectable peer behind
// it, e.g. unrelated neighbourhood devices.
func (c *Central) AddDiscovery(d domain.Discovery) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discoveries = append(c.discoveries, d)
}

// Connects reports how many Connect calls succeeded.
func (c *Central) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *Central) Scan(ctx context.Context, timeout time.Duration, found func(domain.Discovery)) error {
	if c.ScanErr != nil {
		return c.ScanErr
	}
	c.mu.Lock()
	snapshot := append([]domain.Discovery(nil), c.discoveries...)
	c.mu.Unlock()
	for _, d := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		found(d)
	}
	return nil
}

func (c *Central) Connect(ctx context.Context, address string) (domain.Link, error) {
	if hook := c.BeforeConnect; hook != nil {
		if err := hook(address); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.ConnectErr != nil {
		return nil, c.ConnectErr
	}

	c.mu.Lock()
	p, ok := c.peers[strings.ToUpper(address)]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("no device at %s", address)
	}
	c.connects++
	c.mu.Unlock()

	l := &Link{peer: p, subs: make(map[string]func([]byte))}
	p.addLink(l)
	return l, nil
}

// Link implements domain.Link against a scripted peer.
type Link struct {
	// CloseErr and UnsubscribeErr force the corresponding call to fail.
	CloseErr       error
	UnsubscribeErr error

	peer   *Peer
	mu     sync.Mutex
	closed bool
	subs   map[string]func([]byte)
}

func (l *Link) Peer() domain.PeerIdentity { return l.peer.Identity }

func (l *Link) Services(ctx context.Context) ([]domain.ServiceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]domain.ServiceInfo(nil), l.peer.Services...), nil
}

func (l *Link) Write(ctx context.Context, charUUID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: link", domain.ErrClosed)
	}
	if l.peer.WriteErr != nil {
		return l.peer.WriteErr
	}
	l.peer.recordWrite(charUUID, payload)
	return nil
}

func (l *Link) Subscribe(charUUID string, deliver func([]byte)) error {
	if l.peer.SubscribeErr != nil {
		return l.peer.SubscribeErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("%w: link", domain.ErrClosed)
	}
	l.subs[strings.ToLower(charUUID)] = deliver
	return nil
}

func (l *Link) Unsubscribe(charUUID string) error {
	if l.UnsubscribeErr != nil {
		return l.UnsubscribeErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subs, strings.ToLower(charUUID))
	return nil
}

func (l *Link) Close() error {
	l.mu.Lock()
	l.closed = true
	l.subs = make(map[string]func([]byte))
	l.mu.Unlock()
	return l.CloseErr
}

// Closed reports whether Close has been called.
func (l *Link) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Link) notify(charUUID string, payload []byte) {
	l.mu.Lock()
	deliver := l.subs[strings.ToLower(charUUID)]
	l.mu.Unlock()
	if deliver != nil {
		deliver(append([]byte(nil), payload...))
	}
}

var (
	_ domain.Central = (*Central)(nil)
	_ domain.Link    = (*Link)(nil)
)

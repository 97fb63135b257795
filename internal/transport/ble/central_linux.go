//go:build linux

package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"

	"bitchat/internal/domain"
)

const (
	connectAttempts   = 3
	connectRetryDelay = 500 * time.Millisecond
)

var (
	chatServiceUUID = mustUUID(domain.ServiceUUID)
)

func mustUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(fmt.Sprintf("ble: bad uuid %q: %v", s, err))
	}
	return u
}

// Central implements domain.Central on the host adapter.
type Central struct {
	adapter        *bluetooth.Adapter
	connectTimeout time.Duration
	log            zerolog.Logger

	mu       sync.Mutex
	scanning bool
}

// NewCentral enables the default adapter and returns a central transport.
func NewCentral(connectTimeout time.Duration, log zerolog.Logger) (domain.Central, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}
	return &Central{
		adapter:        adapter,
		connectTimeout: connectTimeout,
		log:            log.With().Str("component", "ble.central").Logger(),
	}, nil
}

// Scan observes advertisements until timeout or ctx cancellation, reporting
// each distinct device once. The callback runs on the calling goroutine.
func (c *Central) Scan(ctx context.Context, timeout time.Duration, found func(domain.Discovery)) error {
	c.mu.Lock()
	if c.scanning {
		c.mu.Unlock()
		return fmt.Errorf("ble: scan already running")
	}
	c.scanning = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.scanning = false
		c.mu.Unlock()
	}()

	// adapter.Scan blocks until StopScan; a timer and a ctx watcher end it.
	stop := time.AfterFunc(timeout, func() { _ = c.adapter.StopScan() })
	defer stop.Stop()

	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.adapter.StopScan()
		case <-watcherDone:
		}
	}()

	seen := make(map[string]struct{})
	err := c.adapter.Scan(func(_ *bluetooth.Adapter, res bluetooth.ScanResult) {
		addr := res.Address.String()
		if _, dup := seen[addr]; dup {
			return
		}
		seen[addr] = struct{}{}
		found(domain.Discovery{
			Peer:        domain.PeerIdentity{Address: addr, Name: res.LocalName()},
			ChatService: res.HasServiceUUID(chatServiceUUID),
		})
	})
	if err != nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return ctx.Err()
}

// Connect dials address with a few retries and returns the open link.
func (c *Central) Connect(ctx context.Context, address string) (domain.Link, error) {
	mac, err := bluetooth.ParseMAC(strings.ToUpper(address))
	if err != nil {
		return nil, fmt.Errorf("ble: parse address %q: %w", address, err)
	}
	target := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}

	var params bluetooth.ConnectionParams
	if c.connectTimeout > 0 {
		params.ConnectionTimeout = bluetooth.NewDuration(c.connectTimeout)
	}

	var dev bluetooth.Device
	err = retry.Do(
		func() error {
			d, err := c.adapter.Connect(target, params)
			if err != nil {
				return err
			}
			dev = d
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.Delay(connectRetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug().Uint("attempt", n+1).Err(err).Str("address", address).Msg("connect retry")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("ble: connect %s: %w", address, err)
	}

	c.log.Debug().Str("address", address).Msg("device connected")
	return &link{
		dev:  dev,
		peer: domain.PeerIdentity{Address: strings.ToUpper(address)},
		log:  c.log,
	}, nil
}

// link wraps a connected device and its resolved characteristics.
type link struct {
	dev  bluetooth.Device
	peer domain.PeerIdentity
	log  zerolog.Logger

	mu     sync.Mutex
	chars  map[string]bluetooth.DeviceCharacteristic
	closed bool
}

func (l *link) Peer() domain.PeerIdentity { return l.peer }

// Services resolves the remote GATT database and caches characteristic
// handles for Write and Subscribe. Discovery failures on individual services
// leave that service listed without characteristics; the caller validates
// what it needs.
func (l *link) Services(ctx context.Context) ([]domain.ServiceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	svcs, err := l.dev.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}

	out := make([]domain.ServiceInfo, 0, len(svcs))
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, svc := range svcs {
		info := domain.ServiceInfo{UUID: strings.ToLower(svc.UUID().String())}
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			l.log.Debug().Err(err).Str("service", info.UUID).Msg("characteristic discovery failed")
			out = append(out, info)
			continue
		}
		for _, ch := range chars {
			cu := strings.ToLower(ch.UUID().String())
			info.Characteristics = append(info.Characteristics, cu)
			if l.chars == nil {
				l.chars = make(map[string]bluetooth.DeviceCharacteristic)
			}
			l.chars[cu] = ch
		}
		out = append(out, info)
	}
	return out, nil
}

func (l *link) Write(ctx context.Context, charUUID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch, err := l.characteristic(charUUID)
	if err != nil {
		return err
	}
	if _, err := ch.WriteWithoutResponse(payload); err != nil {
		return fmt.Errorf("ble: write %s: %w", charUUID, err)
	}
	return nil
}

func (l *link) Subscribe(charUUID string, deliver func([]byte)) error {
	ch, err := l.characteristic(charUUID)
	if err != nil {
		return err
	}
	// The stack may reuse the notification buffer; hand out a copy.
	err = ch.EnableNotifications(func(buf []byte) {
		deliver(append([]byte(nil), buf...))
	})
	if err != nil {
		return fmt.Errorf("ble: enable notifications %s: %w", charUUID, err)
	}
	return nil
}

// Unsubscribe is a no-op at this layer. BlueZ drops the notification session
// when the connection closes, and Close always follows Unsubscribe on every
// teardown path.
func (l *link) Unsubscribe(charUUID string) error {
	if _, err := l.characteristic(charUUID); err != nil {
		return err
	}
	l.log.Debug().Str("characteristic", charUUID).Msg("notifications left to lapse with the connection")
	return nil
}

func (l *link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	if err := l.dev.Disconnect(); err != nil {
		return fmt.Errorf("ble: disconnect: %w", err)
	}
	return nil
}

func (l *link) characteristic(charUUID string) (bluetooth.DeviceCharacteristic, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("%w: link", domain.ErrClosed)
	}
	ch, ok := l.chars[strings.ToLower(charUUID)]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("ble: characteristic %s not resolved", charUUID)
	}
	return ch, nil
}

var (
	_ domain.Central = (*Central)(nil)
	_ domain.Link    = (*link)(nil)
)

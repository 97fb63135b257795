//go:build linux

package ble

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	dbus "github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"bitchat/internal/domain"
)

const (
	bluezService     = "org.bluez"
	advMgrIface      = "org.bluez.LEAdvertisingManager1"
	advIface         = "org.bluez.LEAdvertisement1"
	gattMgrIface     = "org.bluez.GattManager1"
	gattServiceIface = "org.bluez.GattService1"
	gattChrcIface    = "org.bluez.GattCharacteristic1"
	objManagerIface  = "org.freedesktop.DBus.ObjectManager"
	propsIface       = "org.freedesktop.DBus.Properties"

	errNotAuthorized = "org.bluez.Error.NotAuthorized"
	errFailed        = "org.bluez.Error.Failed"
	errNotSupported  = "org.bluez.Error.NotSupported"
)

var pathCounter uint64

// Peripheral implements domain.Advertiser against BlueZ.
//
// Advertise connects a private system bus connection, probes for an adapter
// with advertising and GATT managers, exports the advertisement and the chat
// service objects, and submits both registrations asynchronously. Close
// withdraws everything in reverse order; a later Advertise starts fresh.
type Peripheral struct {
	log zerolog.Logger

	mu          sync.Mutex
	bus         *dbus.Conn
	advertising bool
	cleanup     []func()
}

// NewPeripheral returns an advertiser. Construction cannot fail; platform
// support is probed when Advertise runs.
func NewPeripheral(log zerolog.Logger) domain.Advertiser {
	return &Peripheral{log: log.With().Str("component", "ble.peripheral").Logger()}
}

func (p *Peripheral) Advertise(ctx context.Context, ad domain.Advertisement, sink domain.MessageSink) (<-chan error, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.advertising {
		return nil, fmt.Errorf("ble: already advertising")
	}

	conn, err := systemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: system bus: %v", domain.ErrAdvertisingUnavailable, err)
	}
	p.bus = conn
	p.cleanup = append(p.cleanup, func() { _ = conn.Close() })

	adapterPath, err := findPeripheralAdapter(conn)
	if err != nil {
		p.runCleanupLocked()
		return nil, err
	}

	// Unique per advertising cycle so a withdraw/re-advertise never collides.
	id := atomic.AddUint64(&pathCounter, 1)
	base := "/org/bitchat/p" + strconv.FormatUint(id, 10)
	advPath := dbus.ObjectPath(base + "/advertisement0")
	appPath := dbus.ObjectPath(base + "/app")
	svcPath := dbus.ObjectPath(base + "/app/service0")
	txPath := dbus.ObjectPath(base + "/app/service0/char0")
	rxPath := dbus.ObjectPath(base + "/app/service0/char1")

	advObj := &advertisement{ad: ad, log: p.log}
	app := newGattApp(ad, svcPath, txPath, rxPath, sink, p.log)

	exports := []struct {
		obj   interface{}
		path  dbus.ObjectPath
		iface string
	}{
		{advObj, advPath, advIface},
		{advObj, advPath, propsIface},
		{app, appPath, objManagerIface},
		{app.service, svcPath, propsIface},
		{app.tx, txPath, gattChrcIface},
		{app.tx, txPath, propsIface},
		{app.rx, rxPath, gattChrcIface},
		{app.rx, rxPath, propsIface},
	}
	for _, e := range exports {
		if err := conn.Export(e.obj, e.path, e.iface); err != nil {
			p.runCleanupLocked()
			return nil, fmt.Errorf("ble: export %s at %s: %w", e.iface, e.path, err)
		}
		p.cleanup = append(p.cleanup, func() { _ = conn.Export(nil, e.path, e.iface) })
	}

	// Both registrations are asynchronous; BlueZ answers after it has talked
	// to the controller.
	adapter := conn.Object(bluezService, adapterPath)
	advCall := make(chan *dbus.Call, 1)
	adapter.Go(advMgrIface+".RegisterAdvertisement", 0, advCall, advPath, map[string]dbus.Variant{})
	appCall := make(chan *dbus.Call, 1)
	adapter.Go(gattMgrIface+".RegisterApplication", 0, appCall, appPath, map[string]dbus.Variant{})

	p.cleanup = append(p.cleanup, func() {
		_ = adapter.Call(gattMgrIface+".UnregisterApplication", 0, appPath).Err
		_ = adapter.Call(advMgrIface+".UnregisterAdvertisement", 0, advPath).Err
	})
	p.advertising = true

	results := make(chan error, 2)
	go collectRegistrations(ctx, results, []pendingRegistration{
		{what: "advertisement", call: advCall},
		{what: "gatt application", call: appCall},
	})

	p.log.Info().Str("adapter", string(adapterPath)).Str("name", ad.LocalName).Msg("registrations submitted")
	return results, nil
}

// Close withdraws the advertisement and GATT application. Idempotent; the
// peripheral can advertise again afterwards.
func (p *Peripheral) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runCleanupLocked()
	return nil
}

// runCleanupLocked releases resources in reverse order of registration and
// resets the peripheral for a fresh Advertise.
func (p *Peripheral) runCleanupLocked() {
	for i := len(p.cleanup) - 1; i >= 0; i-- {
		p.cleanup[i]()
	}
	p.cleanup = nil
	p.bus = nil
	p.advertising = false
}

// systemBus opens a private connection so closing it cannot disturb other
// users of the shared bus.
func systemBus() (*dbus.Conn, error) {
	conn, err := dbus.SystemBusPrivate()
	if err != nil {
		return nil, err
	}
	if err := conn.Auth(nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.Hello(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// findPeripheralAdapter picks the first adapter exposing both the advertising
// and GATT managers. Absence of either means the platform cannot take the
// peripheral role.
func findPeripheralAdapter(conn *dbus.Conn) (dbus.ObjectPath, error) {
	root := conn.Object(bluezService, dbus.ObjectPath("/"))
	var objs map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if call := root.Call(objManagerIface+".GetManagedObjects", 0); call.Err != nil {
		return "", fmt.Errorf("%w: bluez not reachable: %v", domain.ErrAdvertisingUnavailable, call.Err)
	} else if err := call.Store(&objs); err != nil {
		return "", fmt.Errorf("%w: decode managed objects: %v", domain.ErrAdvertisingUnavailable, err)
	}

	var best dbus.ObjectPath
	for path, ifaces := range objs {
		if _, ok := ifaces[advMgrIface]; !ok {
			continue
		}
		if _, ok := ifaces[gattMgrIface]; !ok {
			continue
		}
		if best == "" || path < best {
			best = path
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: no adapter exposes %s", domain.ErrAdvertisingUnavailable, advMgrIface)
	}
	return best, nil
}

type pendingRegistration struct {
	what string
	call chan *dbus.Call
}

func collectRegistrations(ctx context.Context, results chan<- error, pending []pendingRegistration) {
	defer close(results)
	for _, reg := range pending {
		select {
		case <-ctx.Done():
			return
		case call := <-reg.call:
			if call.Err != nil {
				results <- fmt.Errorf("ble: register %s: %w", reg.what, call.Err)
				continue
			}
			results <- nil
		}
	}
}

// advertisement implements org.bluez.LEAdvertisement1 plus its properties.
type advertisement struct {
	ad  domain.Advertisement
	log zerolog.Logger
}

// Release is called by BlueZ when it withdraws the advertisement on its own.
func (a *advertisement) Release() *dbus.Error {
	a.log.Debug().Msg("advertisement released by bluez")
	return nil
}

func (a *advertisement) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != advIface {
		return nil, unknownInterface(iface)
	}
	return map[string]dbus.Variant{
		"Type":           dbus.MakeVariant("peripheral"),
		"ServiceUUIDs":   dbus.MakeVariant([]string{a.ad.ServiceUUID}),
		"LocalName":      dbus.MakeVariant(a.ad.LocalName),
		"IncludeTxPower": dbus.MakeVariant(true),
	}, nil
}

func (a *advertisement) Get(iface, prop string) (dbus.Variant, *dbus.Error) {
	return getFromAll(a.GetAll, iface, prop)
}

func (a *advertisement) Set(iface, prop string, v dbus.Variant) *dbus.Error {
	return readOnlyProperty(prop)
}

// gattApp is the ObjectManager root BlueZ walks to discover the service.
type gattApp struct {
	service *gattService
	tx, rx  *gattCharacteristic

	svcPath, txPath, rxPath dbus.ObjectPath
}

func newGattApp(ad domain.Advertisement, svcPath, txPath, rxPath dbus.ObjectPath, sink domain.MessageSink, log zerolog.Logger) *gattApp {
	svc := &gattService{uuid: ad.ServiceUUID, chars: []dbus.ObjectPath{txPath, rxPath}}
	tx := &gattCharacteristic{
		uuid:    ad.WriteCharUUID,
		svcPath: svcPath,
		flags:   []string{"write", "notify"},
		log:     log,
		onWrite: func(from domain.PeerIdentity, value []byte) error {
			return sink.Accept(from, value)
		},
	}
	rx := &gattCharacteristic{
		uuid:    ad.ReadCharUUID,
		svcPath: svcPath,
		flags:   []string{"read", "notify"},
		log:     log,
	}
	return &gattApp{service: svc, tx: tx, rx: rx, svcPath: svcPath, txPath: txPath, rxPath: rxPath}
}

func (g *gattApp) GetManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, *dbus.Error) {
	svcProps, _ := g.service.GetAll(gattServiceIface)
	txProps, _ := g.tx.GetAll(gattChrcIface)
	rxProps, _ := g.rx.GetAll(gattChrcIface)
	return map[dbus.ObjectPath]map[string]map[string]dbus.Variant{
		g.svcPath: {gattServiceIface: svcProps},
		g.txPath:  {gattChrcIface: txProps},
		g.rxPath:  {gattChrcIface: rxProps},
	}, nil
}

// gattService implements org.bluez.GattService1 properties.
type gattService struct {
	uuid  string
	chars []dbus.ObjectPath
}

func (s *gattService) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != gattServiceIface {
		return nil, unknownInterface(iface)
	}
	return map[string]dbus.Variant{
		"UUID":            dbus.MakeVariant(s.uuid),
		"Primary":         dbus.MakeVariant(true),
		"Characteristics": dbus.MakeVariant(s.chars),
	}, nil
}

func (s *gattService) Get(iface, prop string) (dbus.Variant, *dbus.Error) {
	return getFromAll(s.GetAll, iface, prop)
}

func (s *gattService) Set(iface, prop string, v dbus.Variant) *dbus.Error {
	return readOnlyProperty(prop)
}

// gattCharacteristic implements org.bluez.GattCharacteristic1 for one
// characteristic. Writes are forwarded to onWrite from the bus dispatch
// goroutine, so the handler must stay non-blocking.
type gattCharacteristic struct {
	uuid    string
	svcPath dbus.ObjectPath
	flags   []string
	log     zerolog.Logger
	onWrite func(from domain.PeerIdentity, value []byte) error

	mu        sync.Mutex
	value     []byte
	notifying bool
}

func (c *gattCharacteristic) ReadValue(options map[string]dbus.Variant) ([]byte, *dbus.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.value...), nil
}

func (c *gattCharacteristic) WriteValue(value []byte, options map[string]dbus.Variant) *dbus.Error {
	if c.onWrite == nil {
		return &dbus.Error{Name: errNotSupported, Body: []interface{}{"write not supported"}}
	}

	from := writerIdentity(options)
	if err := c.onWrite(from, value); err != nil {
		if errors.Is(err, domain.ErrPeerBusy) {
			c.log.Debug().Str("peer", from.Label()).Msg("write bounced, slot busy")
			return &dbus.Error{Name: errNotAuthorized, Body: []interface{}{err.Error()}}
		}
		return &dbus.Error{Name: errFailed, Body: []interface{}{err.Error()}}
	}

	c.mu.Lock()
	c.value = append([]byte(nil), value...)
	c.mu.Unlock()
	return nil
}

func (c *gattCharacteristic) StartNotify() *dbus.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifying = true
	return nil
}

func (c *gattCharacteristic) StopNotify() *dbus.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifying = false
	return nil
}

func (c *gattCharacteristic) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != gattChrcIface {
		return nil, unknownInterface(iface)
	}
	return map[string]dbus.Variant{
		"UUID":    dbus.MakeVariant(c.uuid),
		"Service": dbus.MakeVariant(c.svcPath),
		"Flags":   dbus.MakeVariant(c.flags),
	}, nil
}

func (c *gattCharacteristic) Get(iface, prop string) (dbus.Variant, *dbus.Error) {
	return getFromAll(c.GetAll, iface, prop)
}

func (c *gattCharacteristic) Set(iface, prop string, v dbus.Variant) *dbus.Error {
	return readOnlyProperty(prop)
}

// writerIdentity extracts who wrote from the WriteValue options. BlueZ hands
// over the device object path; some stacks omit it.
func writerIdentity(options map[string]dbus.Variant) domain.PeerIdentity {
	v, ok := options["device"]
	if !ok {
		return domain.PeerIdentity{}
	}
	path, ok := v.Value().(dbus.ObjectPath)
	if !ok {
		return domain.PeerIdentity{}
	}
	return domain.PeerIdentity{Address: macFromDevicePath(path)}
}

// macFromDevicePath converts .../dev_XX_XX_XX_XX_XX_XX to a MAC address.
func macFromDevicePath(p dbus.ObjectPath) string {
	s := string(p)
	idx := strings.LastIndex(s, "/dev_")
	if idx < 0 {
		return ""
	}
	return strings.ReplaceAll(s[idx+5:], "_", ":")
}

func getFromAll(all func(string) (map[string]dbus.Variant, *dbus.Error), iface, prop string) (dbus.Variant, *dbus.Error) {
	props, derr := all(iface)
	if derr != nil {
		return dbus.Variant{}, derr
	}
	v, ok := props[prop]
	if !ok {
		return dbus.Variant{}, &dbus.Error{
			Name: "org.freedesktop.DBus.Error.InvalidArgs",
			Body: []interface{}{fmt.Sprintf("unknown property %s", prop)},
		}
	}
	return v, nil
}

func unknownInterface(iface string) *dbus.Error {
	return &dbus.Error{
		Name: "org.freedesktop.DBus.Error.UnknownInterface",
		Body: []interface{}{iface},
	}
}

func readOnlyProperty(prop string) *dbus.Error {
	return &dbus.Error{
		Name: "org.freedesktop.DBus.Error.PropertyReadOnly",
		Body: []interface{}{prop},
	}
}

var _ domain.Advertiser = (*Peripheral)(nil)

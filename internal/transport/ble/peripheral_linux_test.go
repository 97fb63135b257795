//go:build linux

package ble

import (
	"fmt"
	"testing"

	dbus "github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"bitchat/internal/domain"
)

func TestMacFromDevicePath_KnownShapes(t *testing.T) {
	cases := map[dbus.ObjectPath]string{
		"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF": "AA:BB:CC:DD:EE:FF",
		"/org/bluez/hci1/dev_00_11_22_33_44_55": "00:11:22:33:44:55",
		"/org/bluez/hci0":                       "",
		"":                                      "",
	}
	for path, want := range cases {
		require.Equal(t, want, macFromDevicePath(path), "path %q", path)
	}
}

func TestWriterIdentity_UsesDeviceOption(t *testing.T) {
	opts := map[string]dbus.Variant{
		"device": dbus.MakeVariant(dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_01")),
	}

	from := writerIdentity(opts)

	require.Equal(t, "AA:BB:CC:DD:EE:01", from.Address)
	require.Empty(t, from.Name)
}

func TestWriterIdentity_MissingOrMalformed_IsZero(t *testing.T) {
	require.True(t, writerIdentity(nil).IsZero())
	require.True(t, writerIdentity(map[string]dbus.Variant{
		"device": dbus.MakeVariant("not-a-path"),
	}).IsZero())
}

func TestAdvertisement_ExposesChatProperties(t *testing.T) {
	adv := &advertisement{
		ad: domain.Advertisement{
			LocalName:   domain.AdvertisedName("alice"),
			ServiceUUID: domain.ServiceUUID,
		},
		log: zerolog.Nop(),
	}

	props, derr := adv.GetAll(advIface)
	require.Nil(t, derr)
	require.Equal(t, "peripheral", props["Type"].Value())
	require.Equal(t, []string{domain.ServiceUUID}, props["ServiceUUIDs"].Value())
	require.Equal(t, "BitChat-alice", props["LocalName"].Value())

	_, derr = adv.GetAll("org.bluez.Wrong")
	require.NotNil(t, derr)
}

func TestGattApp_ManagedObjectsDescribeService(t *testing.T) {
	ad := domain.Advertisement{
		ServiceUUID:   domain.ServiceUUID,
		WriteCharUUID: domain.TXCharUUID,
		ReadCharUUID:  domain.RXCharUUID,
	}
	app := newGattApp(ad, "/p/app/service0", "/p/app/service0/char0", "/p/app/service0/char1", nil, zerolog.Nop())

	objs, derr := app.GetManagedObjects()
	require.Nil(t, derr)
	require.Len(t, objs, 3)

	svc := objs["/p/app/service0"][gattServiceIface]
	require.Equal(t, domain.ServiceUUID, svc["UUID"].Value())
	require.Equal(t, true, svc["Primary"].Value())

	tx := objs["/p/app/service0/char0"][gattChrcIface]
	require.Equal(t, domain.TXCharUUID, tx["UUID"].Value())
	require.Contains(t, tx["Flags"].Value().([]string), "write")

	rx := objs["/p/app/service0/char1"][gattChrcIface]
	require.Equal(t, domain.RXCharUUID, rx["UUID"].Value())
	require.Contains(t, rx["Flags"].Value().([]string), "notify")
}

type recordingSink struct {
	from    domain.PeerIdentity
	payload []byte
	err     error
}

func (r *recordingSink) Accept(from domain.PeerIdentity, payload []byte) error {
	r.from = from
	r.payload = append([]byte(nil), payload...)
	return r.err
}

func TestWriteValue_ForwardsWriterToSink(t *testing.T) {
	sink := &recordingSink{}
	ad := domain.Advertisement{
		ServiceUUID:   domain.ServiceUUID,
		WriteCharUUID: domain.TXCharUUID,
		ReadCharUUID:  domain.RXCharUUID,
	}
	app := newGattApp(ad, "/p/app/service0", "/p/app/service0/char0", "/p/app/service0/char1", sink, zerolog.Nop())

	opts := map[string]dbus.Variant{
		"device": dbus.MakeVariant(dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_01")),
	}
	derr := app.tx.WriteValue([]byte("bob: hi"), opts)

	require.Nil(t, derr)
	require.Equal(t, "AA:BB:CC:DD:EE:01", sink.from.Address)
	require.Equal(t, []byte("bob: hi"), sink.payload)

	value, derr := app.tx.ReadValue(nil)
	require.Nil(t, derr)
	require.Equal(t, []byte("bob: hi"), value)
}

func TestWriteValue_BusySlot_NotAuthorized(t *testing.T) {
	sink := &recordingSink{err: fmt.Errorf("%w: session with bob", domain.ErrPeerBusy)}
	ad := domain.Advertisement{
		ServiceUUID:   domain.ServiceUUID,
		WriteCharUUID: domain.TXCharUUID,
		ReadCharUUID:  domain.RXCharUUID,
	}
	app := newGattApp(ad, "/p/s", "/p/s/c0", "/p/s/c1", sink, zerolog.Nop())

	derr := app.tx.WriteValue([]byte("mallory: hi"), nil)

	require.NotNil(t, derr)
	require.Equal(t, errNotAuthorized, derr.Name)
}

func TestWriteValue_ReadCharacteristic_NotSupported(t *testing.T) {
	ad := domain.Advertisement{
		ServiceUUID:   domain.ServiceUUID,
		WriteCharUUID: domain.TXCharUUID,
		ReadCharUUID:  domain.RXCharUUID,
	}
	app := newGattApp(ad, "/p/s", "/p/s/c0", "/p/s/c1", nil, zerolog.Nop())

	derr := app.rx.WriteValue([]byte("x"), nil)

	require.NotNil(t, derr)
	require.Equal(t, errNotSupported, derr.Name)
}

package responder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"bitchat/internal/domain"
	"bitchat/internal/queue"
	"bitchat/internal/services/responder"
	"bitchat/internal/services/session"
	"bitchat/internal/transport/bletest"
)

func newResponder(adv *bletest.Advertiser) (*responder.Service, *queue.Inbound) {
	inbox := queue.NewInbound()
	coord := session.New(nil, inbox, zerolog.Nop())
	return responder.New(adv, coord, "alice", zerolog.Nop()), inbox
}

func TestStart_RegistersChatSurface(t *testing.T) {
	adv := &bletest.Advertiser{}
	svc, _ := newResponder(adv)

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	require.True(t, svc.Advertising())
	require.True(t, adv.Active())

	ad := adv.Ad()
	require.Equal(t, "BitChat-alice", ad.LocalName)
	require.Equal(t, domain.ServiceUUID, ad.ServiceUUID)
	require.Equal(t, domain.TXCharUUID, ad.WriteCharUUID)
	require.Equal(t, domain.RXCharUUID, ad.ReadCharUUID)
}

func TestStart_Twice_Fails(t *testing.T) {
	svc, _ := newResponder(&bletest.Advertiser{})

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	require.Error(t, svc.Start(context.Background()))
}

func TestStart_Unavailable_ReportsSentinel(t *testing.T) {
	adv := &bletest.Advertiser{Unavailable: true}
	svc, _ := newResponder(adv)

	err := svc.Start(context.Background())
	require.ErrorIs(t, err, domain.ErrAdvertisingUnavailable)
	require.False(t, svc.Advertising())

	// Stop without a successful Start is a no-op.
	svc.Stop()
	require.Equal(t, 0, adv.Closes())
}

func TestStart_AsyncRegistrationFailure_ClearsAdvertising(t *testing.T) {
	adv := &bletest.Advertiser{RegistrationResults: []error{nil, errors.New("busy adapter")}}
	svc, _ := newResponder(adv)

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	require.Eventually(t, func() bool { return !svc.Advertising() },
		time.Second, 5*time.Millisecond)
}

func TestStop_WithdrawsAndIsIdempotent(t *testing.T) {
	adv := &bletest.Advertiser{}
	svc, _ := newResponder(adv)

	require.NoError(t, svc.Start(context.Background()))
	svc.Stop()
	svc.Stop()

	require.False(t, svc.Advertising())
	require.False(t, adv.Active())
	require.Equal(t, 1, adv.Closes())
}

func TestInboundWrites_ReachTheSessionSink(t *testing.T) {
	adv := &bletest.Advertiser{}
	svc, inbox := newResponder(adv)

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	writer := domain.PeerIdentity{Address: "AA:BB:CC:DD:EE:09"}
	require.NoError(t, adv.WriteFromPeer(writer, []byte("dave: anyone home?")))

	e, ok := inbox.Dequeue(time.Second)
	require.True(t, ok)
	require.Equal(t, "dave: anyone home?", e.Message.Body)
	require.Equal(t, domain.Inbound, e.Message.Direction)
}

func TestInboundWrites_SecondPeerRefused(t *testing.T) {
	adv := &bletest.Advertiser{}
	svc, _ := newResponder(adv)

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	dave := domain.PeerIdentity{Address: "AA:BB:CC:DD:EE:09"}
	eve := domain.PeerIdentity{Address: "AA:BB:CC:DD:EE:0A"}

	require.NoError(t, adv.WriteFromPeer(dave, []byte("dave: claimed")))
	require.ErrorIs(t, adv.WriteFromPeer(eve, []byte("eve: me too")), domain.ErrPeerBusy)
}

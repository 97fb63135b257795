package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"bitchat/internal/app"
	"bitchat/internal/domain"
	"bitchat/internal/transport/bletest"
)

func testConfig(central domain.Central, adv domain.Advertiser) app.Config {
	return app.Config{
		Name:           "alice",
		ScanTimeout:    time.Second,
		ConnectTimeout: time.Second,
		DrainPoll:      10 * time.Millisecond,
		LogLevel:       "disabled",
		LogFormat:      "console",
		Central:        central,
		Advertiser:     adv,
	}
}

func TestNew_WiresBothRoles(t *testing.T) {
	bob := bletest.NewChatPeer("AA:BB:CC:DD:EE:01", "BitChat-bob")
	central := bletest.NewCentral(bob)
	adv := &bletest.Advertiser{}

	a, err := app.New(testConfig(central, adv))
	require.NoError(t, err)

	ctx := context.Background()

	// Responder role: advertise, then an inbound write lands in the inbox.
	require.NoError(t, a.Responder.Start(ctx))
	require.Equal(t, "BitChat-alice", adv.Ad().LocalName)
	require.NoError(t, adv.WriteFromPeer(bob.Identity, []byte("bob: hi")))

	entry, ok := a.Inbox.Dequeue(time.Second)
	require.True(t, ok)
	require.Equal(t, "bob: hi", entry.Message.Body)

	a.Sessions.Teardown()

	// Initiator role: connect out and send through the same graph.
	status, err := a.Sessions.Connect(ctx, bob.Identity.Address)
	require.NoError(t, err)
	require.Equal(t, domain.StateConnected, status.State)

	_, err = a.Sessions.Send(ctx, "hello")
	require.NoError(t, err)
	written := bob.Written(domain.TXCharUUID)
	require.Len(t, written, 1)
	require.Equal(t, "alice: hello", string(written[0]))
}

func TestNew_AdvertisingUnavailable_InitiatorStillWorks(t *testing.T) {
	bob := bletest.NewChatPeer("AA:BB:CC:DD:EE:01", "BitChat-bob")
	central := bletest.NewCentral(bob)
	adv := &bletest.Advertiser{Unavailable: true}

	a, err := app.New(testConfig(central, adv))
	require.NoError(t, err)
	defer a.Shutdown()

	ctx := context.Background()

	err = a.Responder.Start(ctx)
	require.ErrorIs(t, err, domain.ErrAdvertisingUnavailable)
	require.False(t, a.Responder.Advertising())

	// The degraded peer still scans, connects and sends.
	peers, err := a.Initiator.Scan(ctx, time.Second)
	require.NoError(t, err)
	require.Len(t, peers, 1)

	status, err := a.Sessions.Connect(ctx, bob.Identity.Address)
	require.NoError(t, err)
	require.Equal(t, domain.StateConnected, status.State)

	_, err = a.Sessions.Send(ctx, "still chatting")
	require.NoError(t, err)
	require.Len(t, bob.Written(domain.TXCharUUID), 1)
}

func TestShutdown_Idempotent(t *testing.T) {
	central := bletest.NewCentral()
	adv := &bletest.Advertiser{}

	a, err := app.New(testConfig(central, adv))
	require.NoError(t, err)
	require.NoError(t, a.Responder.Start(context.Background()))

	a.Shutdown()
	a.Shutdown()

	require.True(t, a.Inbox.Closed())
	require.False(t, a.Responder.Advertising())
	require.Equal(t, domain.StateIdle, a.Sessions.Status().State)
}

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	t.Setenv("BITCHAT_NAME", "carol")

	cfg, err := app.LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "carol", cfg.Name)
	require.Equal(t, 5*time.Second, cfg.ScanTimeout)
	require.Equal(t, 500*time.Millisecond, cfg.DrainPoll)
	require.False(t, cfg.NoAdvertise)
}

func TestLoadConfig_ExplicitFileMissing_Fails(t *testing.T) {
	_, err := app.LoadConfig(t.TempDir() + "/absent.yaml")
	require.Error(t, err)
}

func TestNewLogger_Levels(t *testing.T) {
	require.Equal(t, zerolog.WarnLevel, app.NewLogger("warn", "json").GetLevel())
	require.Equal(t, zerolog.InfoLevel, app.NewLogger("not-a-level", "console").GetLevel())
}

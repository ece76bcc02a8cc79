package extnclient_test

import (
	"context"
	"testing"
	"time"

	"github.com/rdkcentral/ripple-core/pkg/contracts"
	"github.com/rdkcentral/ripple-core/pkg/extnclient"
	"github.com/stretchr/testify/require"
)

type pingRequest struct{ Value string }

func (pingRequest) Contract() contracts.Contract { return contracts.DeviceInfoContract }
func (r pingRequest) GetExtnPayload() contracts.ExtnPayload {
	return contracts.NewRequestPayload(r)
}

type pongResponse struct{ Value string }

func (pongResponse) Contract() contracts.Contract { return contracts.DeviceInfoContract }
func (r pongResponse) GetExtnPayload() contracts.ExtnPayload {
	return contracts.NewResponsePayload(r)
}

func TestSendExtnRequest_HappyPath(t *testing.T) {
	bus := extnclient.New(nil)
	bus.StartReaper()
	defer bus.Stop()

	inbox, err := bus.Register("device-adapter", []contracts.Contract{contracts.DeviceInfoContract})
	require.NoError(t, err)

	go func() {
		msg := <-inbox
		req, ok := contracts.GetFromPayload[pingRequest](msg.Payload)
		require.True(t, ok)
		bus.Respond(msg.ID, pongResponse{Value: req.Value + "-pong"})
	}()

	resp, err := bus.SendExtnRequest(context.Background(), "caller", pingRequest{Value: "ping"})
	require.NoError(t, err)
	pong, ok := contracts.GetFromPayload[pongResponse](resp)
	require.True(t, ok)
	require.Equal(t, "ping-pong", pong.Value)
	require.Equal(t, 0, bus.PendingCount())
}

func TestSendExtnRequest_NoContract(t *testing.T) {
	bus := extnclient.New(nil)
	_, err := bus.SendExtnRequest(context.Background(), "caller", pingRequest{Value: "x"})
	require.ErrorIs(t, err, contracts.ErrNoContract)
}

func TestSendExtnRequest_Timeout(t *testing.T) {
	bus := extnclient.New(map[contracts.Contract]time.Duration{
		contracts.DeviceInfoContract: 50 * time.Millisecond,
	})
	bus.StartReaper()
	defer bus.Stop()

	inbox, err := bus.Register("device-adapter", []contracts.Contract{contracts.DeviceInfoContract})
	require.NoError(t, err)
	go func() {
		<-inbox // never responds
	}()

	start := time.Now()
	_, err = bus.SendExtnRequest(context.Background(), "caller", pingRequest{Value: "x"})
	elapsed := time.Since(start)
	require.ErrorIs(t, err, contracts.ErrTimeout)
	require.InDelta(t, 50*time.Millisecond, elapsed, float64(200*time.Millisecond))

	// State is not corrupted: a subsequent request on the same contract
	// still succeeds (spec §8 scenario 6).
	go func() {
		msg := <-inbox
		bus.Respond(msg.ID, pongResponse{Value: "ok"})
	}()
	resp, err := bus.SendExtnRequest(context.Background(), "caller", pingRequest{Value: "y"})
	require.NoError(t, err)
	pong, ok := contracts.GetFromPayload[pongResponse](resp)
	require.True(t, ok)
	require.Equal(t, "ok", pong.Value)
}

func TestRegister_LastRegistrationWins(t *testing.T) {
	bus := extnclient.New(nil)
	inboxA, err := bus.Register("a", []contracts.Contract{contracts.DeviceInfoContract})
	require.NoError(t, err)
	inboxB, err := bus.Register("b", []contracts.Contract{contracts.DeviceInfoContract})
	require.NoError(t, err)

	bus.Event(pingRequest{Value: "evt"})
	select {
	case <-inboxA:
		t.Fatal("displaced extension a should not receive new traffic")
	default:
	}
	select {
	case <-inboxB:
	default:
		t.Fatal("current owner b should receive the event")
	}
}

func TestRegister_RejectDisplaceWhenDisabled(t *testing.T) {
	bus := extnclient.New(nil)
	bus.AllowDisplace = false
	_, err := bus.Register("a", []contracts.Contract{contracts.WifiContract})
	require.NoError(t, err)
	_, err = bus.Register("b", []contracts.Contract{contracts.WifiContract})
	require.Error(t, err)
}

func TestRespond_UnknownIDIsDropped(t *testing.T) {
	bus := extnclient.New(nil)
	// Must not panic and must not affect pending state.
	bus.Respond("does-not-exist", pongResponse{Value: "x"})
	require.Equal(t, 0, bus.PendingCount())
}

func TestSendExtnRequest_CancellationDoesNotOrphan(t *testing.T) {
	bus := extnclient.New(map[contracts.Contract]time.Duration{
		contracts.DeviceInfoContract: 2 * time.Second,
	})
	bus.StartReaper()
	defer bus.Stop()

	inbox, err := bus.Register("device-adapter", []contracts.Contract{contracts.DeviceInfoContract})
	require.NoError(t, err)
	go func() { <-inbox }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_, _ = bus.SendExtnRequest(ctx, "caller", pingRequest{Value: "x"})
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendExtnRequest did not return after context cancellation")
	}
}

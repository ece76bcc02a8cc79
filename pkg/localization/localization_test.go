package localization_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rdkcentral/ripple-core/pkg/contracts"
	"github.com/rdkcentral/ripple-core/pkg/deviceinfo"
	"github.com/rdkcentral/ripple-core/pkg/eventproc"
	"github.com/rdkcentral/ripple-core/pkg/extnclient"
	"github.com/rdkcentral/ripple-core/pkg/localization"
	"github.com/rdkcentral/ripple-core/pkg/router"
	"github.com/rdkcentral/ripple-core/pkg/storage"
	"github.com/stretchr/testify/require"
)

// fakeDeviceInfoExtension answers DeviceInfo requests inline, standing in
// for a real plugin over the extn bus.
func fakeDeviceInfoExtension(t *testing.T, bus *extnclient.Client, availableTimezones []string, currentTimezone *string) {
	inbox, err := bus.Register("fake-device-info", []contracts.Contract{contracts.DeviceInfoContract})
	require.NoError(t, err)
	go func() {
		for msg := range inbox {
			req, ok := contracts.GetFromPayload[deviceinfo.Request](msg.Payload)
			if !ok {
				continue
			}
			var resp deviceinfo.Response
			switch req.Kind {
			case deviceinfo.KindGetAvailableTimezones:
				resp = deviceinfo.Response{ListValue: availableTimezones}
			case deviceinfo.KindGetTimezone:
				resp = deviceinfo.Response{StringValue: *currentTimezone}
			case deviceinfo.KindSetTimezone:
				*currentTimezone = req.TimezoneValue
				resp = deviceinfo.Response{}
			}
			msg.Callback <- contracts.ExtnMessage{ID: msg.ID, Payload: contracts.NewResponsePayload(resp)}
		}
	}()
}

func decodeResult[T any](t *testing.T, frame []byte) T {
	var decoded struct {
		Result T `json:"result"`
	}
	require.NoError(t, json.Unmarshal(frame, &decoded))
	return decoded.Result
}

func hasError(frame []byte) bool {
	var decoded struct {
		Error *struct{ Code int } `json:"error"`
	}
	_ = json.Unmarshal(frame, &decoded)
	return decoded.Error != nil
}

func TestLocality_RoundTripsThroughStorage(t *testing.T) {
	state := router.NewState(nil)
	svc := localization.New(storage.New(), extnclient.New(nil), nil)
	require.NoError(t, svc.Register(state))

	setReq := router.RpcRequest{Ctx: router.CallContext{CallID: 1}, Method: "localization.setLocality", Params: []byte(`{"value":"US-CA"}`)}
	result := make(chan router.ApiMessage, 1)
	state.Dispatch(context.Background(), setReq, func(m router.ApiMessage) { result <- m })
	<-result

	getReq := router.RpcRequest{Ctx: router.CallContext{CallID: 2}, Method: "localization.locality"}
	state.Dispatch(context.Background(), getReq, func(m router.ApiMessage) { result <- m })
	msg := <-result
	require.Equal(t, "US-CA", decodeResult[string](t, msg.Payload))
}

func TestSetTimeZone_RejectsUnsupportedTimezone(t *testing.T) {
	bus := extnclient.New(nil)
	current := "America/Denver"
	fakeDeviceInfoExtension(t, bus, []string{"America/Denver", "America/New_York"}, &current)

	state := router.NewState(nil)
	svc := localization.New(storage.New(), bus, nil)
	require.NoError(t, svc.Register(state))

	req := router.RpcRequest{Ctx: router.CallContext{CallID: 1}, Method: "localization.setTimeZone", Params: []byte(`{"value":"Mars/Olympus_Mons"}`)}
	result := make(chan router.ApiMessage, 1)
	state.Dispatch(context.Background(), req, func(m router.ApiMessage) { result <- m })

	msg := <-result
	require.True(t, hasError(msg.Payload))
	require.Equal(t, "America/Denver", current, "rejected timezone must not have been applied")
}

func TestSetTimeZone_AcceptsSupportedTimezoneThenTimeZoneReflectsIt(t *testing.T) {
	bus := extnclient.New(nil)
	current := "America/Denver"
	fakeDeviceInfoExtension(t, bus, []string{"America/Denver", "America/New_York"}, &current)

	state := router.NewState(nil)
	svc := localization.New(storage.New(), bus, nil)
	require.NoError(t, svc.Register(state))

	setReq := router.RpcRequest{Ctx: router.CallContext{CallID: 1}, Method: "localization.setTimeZone", Params: []byte(`{"value":"America/New_York"}`)}
	result := make(chan router.ApiMessage, 1)
	state.Dispatch(context.Background(), setReq, func(m router.ApiMessage) { result <- m })
	msg := <-result
	require.False(t, hasError(msg.Payload))

	getReq := router.RpcRequest{Ctx: router.CallContext{CallID: 2}, Method: "localization.timeZone"}
	state.Dispatch(context.Background(), getReq, func(m router.ApiMessage) { result <- m })
	msg = <-result
	require.Equal(t, "America/New_York", decodeResult[string](t, msg.Payload))
}

func TestOnTimeZoneChanged_RegistersListener(t *testing.T) {
	events := eventproc.New(func(appID, eventID string, mode eventproc.CallbackMode, value any) {})
	state := router.NewState(nil)
	svc := localization.New(storage.New(), extnclient.New(nil), events)
	require.NoError(t, svc.Register(state))

	ctx := router.WithAppID(context.Background(), "app-1")
	req := router.RpcRequest{Ctx: router.CallContext{CallID: 1}, Method: "localization.onTimeZoneChanged", Params: []byte(`{"listen":true}`)}
	result := make(chan router.ApiMessage, 1)
	state.Dispatch(ctx, req, func(m router.ApiMessage) { result <- m })
	<-result

	require.Eventually(t, func() bool {
		return events.HasListeners(localization.OnTimeZoneChangedEvent)
	}, time.Second, 10*time.Millisecond)
}

// Package localization implements the localization.* JSON-RPC methods
// (spec §8): locale-ish string properties backed by storage, and the
// timezone trio which is instead routed through the DeviceInfo contract
// because the platform, not this process, is the source of truth for
// which timezones exist and which one is active.
//
// Grounded on localization_rpc.rs's LocalizationImpl: StorageManager
// get_string/set_string for the simple properties, and timezone_set's
// validate-then-set flow for setTimeZone.
package localization

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/rdkcentral/ripple-core/pkg/contracts"
	"github.com/rdkcentral/ripple-core/pkg/deviceinfo"
	"github.com/rdkcentral/ripple-core/pkg/eventproc"
	"github.com/rdkcentral/ripple-core/pkg/extnclient"
	"github.com/rdkcentral/ripple-core/pkg/router"
	"github.com/rdkcentral/ripple-core/pkg/storage"
)

const storageNamespace = "localization"

// OnTimeZoneChangedEvent is the eventproc event name platform timezone
// change notifications arrive under.
const OnTimeZoneChangedEvent = "device.onTimeZoneChanged"

// Service wires storage-backed locality/locale properties and
// DeviceInfo-routed timezone operations into a method table.
type Service struct {
	store  *storage.Store
	bus    *extnclient.Client
	events *eventproc.Processor
}

// New builds a Service. events may be nil if onTimeZoneChanged isn't needed.
func New(store *storage.Store, bus *extnclient.Client, events *eventproc.Processor) *Service {
	return &Service{store: store, bus: bus, events: events}
}

// Register installs every localization.* method this Service implements
// into state.
func (s *Service) Register(state *router.State) error {
	entries := []router.MethodEntry{
		{Name: "localization.locality", Kind: router.Sync, Handler: s.getProperty("locality")},
		{Name: "localization.setLocality", Kind: router.Sync, Handler: s.setProperty("locality")},
		{Name: "localization.language", Kind: router.Sync, Handler: s.getProperty("language")},
		{Name: "localization.setLanguage", Kind: router.Sync, Handler: s.setProperty("language")},
		{Name: "localization.locale", Kind: router.Sync, Handler: s.getProperty("locale")},
		{Name: "localization.setLocale", Kind: router.Sync, Handler: s.setProperty("locale")},
		{Name: "localization.timeZone", Kind: router.Async, Handler: s.getTimeZone},
		{Name: "localization.setTimeZone", Kind: router.Async, Handler: s.setTimeZone},
		{Name: "localization.onTimeZoneChanged", Kind: router.Sync, Handler: s.onTimeZoneChanged},
	}
	for _, e := range entries {
		if err := state.Register(e); err != nil {
			return fmt.Errorf("localization: %w", err)
		}
	}
	return nil
}

type setPropertyParams struct {
	Value string `json:"value"`
}

func (s *Service) getProperty(key string) router.HandlerFunc {
	return func(ctx context.Context, id any, params []byte, sink router.Sink) {
		v, err := s.store.GetString(ctx, storageNamespace, key)
		if err != nil {
			sink <- router.EncodeError(id, router.CodeInternalError, err.Error())
			return
		}
		sink <- router.EncodeResult(id, v)
	}
}

func (s *Service) setProperty(key string) router.HandlerFunc {
	return func(ctx context.Context, id any, params []byte, sink router.Sink) {
		var p setPropertyParams
		if err := json.Unmarshal(params, &p); err != nil {
			sink <- router.EncodeError(id, router.CodeInvalidParams, err.Error())
			return
		}
		if err := s.store.SetString(ctx, storageNamespace, key, p.Value); err != nil {
			sink <- router.EncodeError(id, router.CodeInternalError, err.Error())
			return
		}
		sink <- router.EncodeResult(id, nil)
	}
}

func (s *Service) getTimeZone(ctx context.Context, id any, params []byte, sink router.Sink) {
	resp, err := s.bus.SendExtnRequest(ctx, "localization", deviceinfo.Request{Kind: deviceinfo.KindGetTimezone})
	if err != nil {
		sink <- router.EncodeError(id, router.CodeInternalError, fmt.Sprintf("timezone: %s", err))
		return
	}
	dr, ok := contracts.GetFromPayload[deviceinfo.Response](resp)
	if !ok {
		sink <- router.EncodeError(id, router.CodeInternalError, "timezone: malformed device response")
		return
	}
	sink <- router.EncodeResult(id, dr.StringValue)
}

// setTimeZone mirrors timezone_set: it refuses to forward a timezone that
// GetAvailableTimezones doesn't recognize, rather than letting the
// platform reject it, so the caller sees a specific error message.
func (s *Service) setTimeZone(ctx context.Context, id any, params []byte, sink router.Sink) {
	var p setPropertyParams
	if err := json.Unmarshal(params, &p); err != nil {
		sink <- router.EncodeError(id, router.CodeInvalidParams, err.Error())
		return
	}

	availResp, err := s.bus.SendExtnRequest(ctx, "localization", deviceinfo.Request{Kind: deviceinfo.KindGetAvailableTimezones})
	if err != nil {
		sink <- router.EncodeError(id, router.CodeInternalError, fmt.Sprintf("setTimeZone: %s", err))
		return
	}
	avail, ok := contracts.GetFromPayload[deviceinfo.Response](availResp)
	if !ok {
		sink <- router.EncodeError(id, router.CodeInternalError, "setTimeZone: malformed device response")
		return
	}
	if !slices.Contains(avail.ListValue, p.Value) {
		sink <- router.EncodeError(id, router.CodeInvalidParams, fmt.Sprintf("timezone_set: Unsupported timezone: tz=%s", p.Value))
		return
	}

	_, err = s.bus.SendExtnRequest(ctx, "localization", deviceinfo.Request{Kind: deviceinfo.KindSetTimezone, TimezoneValue: p.Value})
	if err != nil {
		sink <- router.EncodeError(id, router.CodeInternalError, fmt.Sprintf("setTimeZone: %s", err))
		return
	}
	sink <- router.EncodeResult(id, nil)
}

type listenRequestParams struct {
	Listen bool `json:"listen"`
}

type listenerResponse struct {
	Listening bool   `json:"listening"`
	Event     string `json:"event"`
}

func decodeTimeZoneChanged(raw json.RawMessage) (any, error) {
	var v struct {
		TimeZone string `json:"timeZone"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v.TimeZone, nil
}

func (s *Service) onTimeZoneChanged(ctx context.Context, id any, params []byte, sink router.Sink) {
	var p listenRequestParams
	if err := json.Unmarshal(params, &p); err != nil {
		sink <- router.EncodeError(id, router.CodeInvalidParams, err.Error())
		return
	}
	if s.events != nil {
		appID, _ := router.AppIDFromContext(ctx)
		s.events.HandleListener(OnTimeZoneChangedEvent, appID, p.Listen, func() *eventproc.Handler {
			return eventproc.NewHandler(OnTimeZoneChangedEvent, decodeTimeZoneChanged, nil, eventproc.FireboltAppEvent)
		})
	}
	sink <- router.EncodeResult(id, listenerResponse{Listening: p.Listen, Event: OnTimeZoneChangedEvent})
}

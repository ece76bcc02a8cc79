package eventproc_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rdkcentral/ripple-core/pkg/eventproc"
	"github.com/stretchr/testify/require"
)

type voiceGuidance struct {
	State bool `json:"state"`
}

func decodeVoiceGuidance(raw json.RawMessage) (any, error) {
	var v voiceGuidance
	err := json.Unmarshal(raw, &v)
	return v, err
}

// Scenario 4 (spec §8): two identical consecutive events deliver once;
// an intervening different value re-arms delivery.
func TestProcess_DeduplicatesConsecutiveIdenticalPayloads(t *testing.T) {
	var mu sync.Mutex
	var deliveries []bool

	proc := eventproc.New(func(appID, eventID string, mode eventproc.CallbackMode, value any) {
		mu.Lock()
		defer mu.Unlock()
		deliveries = append(deliveries, value.(voiceGuidance).State)
	})

	changed := proc.HandleListener("voiceGuidanceChanged", "app1", true, func() *eventproc.Handler {
		h := &eventproc.Handler{
			EventID: "voiceGuidanceChanged",
			Decode:  decodeVoiceGuidance,
			IsValid: func(any) bool { return true },
		}
		return h
	})
	require.True(t, changed, "first listen on an event must report a platform-level change")

	proc.Process("voiceGuidanceChanged", json.RawMessage(`{"state":true}`))
	proc.Process("voiceGuidanceChanged", json.RawMessage(`{"state":true}`))
	proc.Process("voiceGuidanceChanged", json.RawMessage(`{"state":false}`))
	proc.Process("voiceGuidanceChanged", json.RawMessage(`{"state":true}`))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []bool{true, false, true}, deliveries)
}

// Scenario 5 (spec §8): listener lifecycle add/remove.
func TestHandleListener_Lifecycle(t *testing.T) {
	proc := eventproc.New(func(string, string, eventproc.CallbackMode, any) {})

	make := func() *eventproc.Handler {
		return &eventproc.Handler{EventID: "powerStateChanged", Decode: decodeVoiceGuidance, IsValid: func(any) bool { return true }}
	}

	changed := proc.HandleListener("powerStateChanged", "appA", true, make)
	require.True(t, changed)
	require.True(t, proc.HasListeners("powerStateChanged"))

	// Idempotent add: adding the same app twice leaves one entry and does
	// not report a second platform-level change.
	changed = proc.HandleListener("powerStateChanged", "appA", true, make)
	require.False(t, changed)

	changed = proc.HandleListener("powerStateChanged", "appA", false, make)
	require.True(t, changed, "removing the last listener must report a platform-level change (unsubscribe)")
	require.False(t, proc.HasListeners("powerStateChanged"))

	// Idempotent remove: removing again is a no-op, not an error.
	changed = proc.HandleListener("powerStateChanged", "appA", false, make)
	require.False(t, changed)
}

func TestProcess_InvalidEventIsSuppressed(t *testing.T) {
	delivered := false
	proc := eventproc.New(func(string, string, eventproc.CallbackMode, any) { delivered = true })

	proc.HandleListener("networkChanged", "app1", true, func() *eventproc.Handler {
		return &eventproc.Handler{
			EventID: "networkChanged",
			Decode:  decodeVoiceGuidance,
			IsValid: func(v any) bool { return !v.(voiceGuidance).State }, // reject "true" as transient
		}
	})
	proc.Process("networkChanged", json.RawMessage(`{"state":true}`))
	require.False(t, delivered)
}

// Package deviceinfo implements the DeviceInfo contract (spec §6): platform
// identity, capability and timezone queries routed to whichever extension
// registered DeviceInfoContract. Grounded on device_info_request.rs's
// request/response enum, translated into Go's idiomatic tagged-struct shape
// since Go has no sum type: one Kind discriminant, fields populated only
// for the Kinds that use them.
package deviceinfo

import (
	"time"

	"github.com/araddon/dateparse"
	"github.com/rdkcentral/ripple-core/pkg/contracts"
)

// Kind discriminates the DeviceInfo request variants.
type Kind int

const (
	KindMacAddress Kind = iota
	KindModel
	KindMake
	KindVersion
	KindHdcpSupport
	KindScreenResolution
	KindGetTimezone
	KindSetTimezone
	KindGetAvailableTimezones
	KindVoiceGuidanceEnabled
	KindSetVoiceGuidanceEnabled
	KindFullCapabilities
)

// Request is a single DeviceInfo query or command. TimezoneValue and
// VoiceGuidance are populated only for the Set* Kinds.
type Request struct {
	Kind          Kind
	TimezoneValue string
	VoiceGuidance bool
}

func (Request) Contract() contracts.Contract { return contracts.DeviceInfoContract }
func (r Request) GetExtnPayload() contracts.ExtnPayload {
	return contracts.NewRequestPayload(r)
}

// Response carries the result of a DeviceInfo request. Exactly the fields
// relevant to the originating request's Kind are meaningful; callers that
// know the Kind they asked for know which field to read.
type Response struct {
	StringValue string
	BoolValue   bool
	ListValue   []string
	Capabilities *Capabilities
}

func (Response) Contract() contracts.Contract { return contracts.DeviceInfoContract }
func (r Response) GetExtnPayload() contracts.ExtnPayload {
	return contracts.NewResponsePayload(r)
}

// Capabilities mirrors DeviceCapabilities: the aggregate snapshot returned
// by FullCapabilities.
type Capabilities struct {
	Make             string
	Model            string
	ScreenResolution []int
	VideoResolution  []int
	IsWifi           bool
}

// ParseTimestamp parses a platform-reported timestamp of unknown exact
// layout (device clocks vary across vendors and firmware versions), as
// opposed to assuming RFC 3339.
func ParseTimestamp(raw string) (time.Time, error) {
	return dateparse.ParseAny(raw)
}

// Package contracts defines the capability-contract enum and the tagged
// extn message envelope that the extn client, router and plugin pool all
// speak. It is intentionally free of any transport or bus logic: it is the
// vocabulary other packages share, nothing more.
package contracts

// Contract identifies a kind of service an extension can fulfil. Callers
// address a Contract, never a concrete extension.
type Contract string

const (
	DeviceInfoContract     Contract = "DeviceInfo"
	WifiContract           Contract = "Wifi"
	BrowserContract        Contract = "Browser"
	PermissionsContract    Contract = "Permissions"
	StorageContract        Contract = "Storage"
	AdvertisingContract    Contract = "Advertising"
	CapsContract           Contract = "Caps"
	BridgeProtocolContract Contract = "BridgeProtocol"
)

// ExtnPayloadProvider is implemented by every concrete domain type that
// travels inside an ExtnMessage (DeviceInfoRequest, WifiRequest,
// PermissionResponse, AppEvent, ...). It is how a domain type declares
// which contract it belongs to without the bus knowing its concrete type.
type ExtnPayloadProvider interface {
	// Contract returns the capability contract this payload targets/belongs to.
	Contract() Contract
	// GetExtnPayload wraps the value as the ExtnPayload it should travel as.
	GetExtnPayload() ExtnPayload
}

// ExtnPayload is the sum type carried by an ExtnMessage: exactly one of
// Request, Response or Event is non-nil, enforced by the three
// constructors below rather than by an exhaustive type switch.
type ExtnPayload struct {
	Request  *RequestPayload
	Response *ResponsePayload
	Event    *EventPayload
}

// RequestPayload wraps a concrete request value addressed at Contract().
type RequestPayload struct {
	Value ExtnPayloadProvider
}

// ResponsePayload wraps a concrete response value.
type ResponsePayload struct {
	Value ExtnPayloadProvider
}

// EventPayload wraps a concrete event value.
type EventPayload struct {
	Value ExtnPayloadProvider
}

// NewRequestPayload builds an ExtnPayload carrying a request value.
func NewRequestPayload(v ExtnPayloadProvider) ExtnPayload {
	return ExtnPayload{Request: &RequestPayload{Value: v}}
}

// NewResponsePayload builds an ExtnPayload carrying a response value.
func NewResponsePayload(v ExtnPayloadProvider) ExtnPayload {
	return ExtnPayload{Response: &ResponsePayload{Value: v}}
}

// NewEventPayload builds an ExtnPayload carrying an event value.
func NewEventPayload(v ExtnPayloadProvider) ExtnPayload {
	return ExtnPayload{Event: &EventPayload{Value: v}}
}

// Contract returns the contract of whichever branch is populated, or ""
// if the payload is the zero value.
func (p ExtnPayload) Contract() Contract {
	switch {
	case p.Request != nil:
		return p.Request.Value.Contract()
	case p.Response != nil:
		return p.Response.Value.Contract()
	case p.Event != nil:
		return p.Event.Value.Contract()
	}
	return ""
}

// IsRequest, IsResponse, IsEvent report which branch of the sum type is set.
func (p ExtnPayload) IsRequest() bool  { return p.Request != nil }
func (p ExtnPayload) IsResponse() bool { return p.Response != nil }
func (p ExtnPayload) IsEvent() bool    { return p.Event != nil }

// GetFromPayload extracts a value of type T from payload if, and only if,
// the payload's inner request/response/event value is of that concrete
// type. This is the Go realization of the round-trip law in spec §8:
// GetFromPayload[T](GetExtnPayload(x)) == (x, true) and returns
// (zero, false) for any payload whose inner tag differs.
func GetFromPayload[T ExtnPayloadProvider](payload ExtnPayload) (T, bool) {
	var zero T
	var v ExtnPayloadProvider
	switch {
	case payload.Request != nil:
		v = payload.Request.Value
	case payload.Response != nil:
		v = payload.Response.Value
	case payload.Event != nil:
		v = payload.Event.Value
	default:
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Callback is the single-shot return channel a request message carries.
// A nil Callback marks an event or a response, per the invariant in spec §3.
type Callback chan ExtnMessage

// ExtnMessage is the unit of traffic on the extn bus (spec §3).
//
// Invariant: a request always carries a non-nil Callback; a response
// always has a non-empty ID matching some outstanding request and a nil
// Callback; an event carries neither. Messages that violate this are
// dropped by the bus with a logged error, never answered — see
// pkg/extnclient.
type ExtnMessage struct {
	// ID is the opaque correlation string, unique per in-flight request.
	ID string
	// Requestor identifies the originating extension.
	Requestor string
	// Target is the capability contract this message is addressed to.
	Target Contract
	// Payload is the request, response or event value carried.
	Payload ExtnPayload
	// Callback is the one-shot return channel; non-nil only for requests.
	Callback Callback
}

// Valid reports whether m satisfies the request/response/event invariant
// of spec §3.
func (m ExtnMessage) Valid() bool {
	switch {
	case m.Payload.IsRequest():
		return m.Callback != nil
	case m.Payload.IsResponse():
		return m.ID != "" && m.Callback == nil
	case m.Payload.IsEvent():
		return m.Callback == nil
	}
	return false
}

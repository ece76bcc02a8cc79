package contracts

import "errors"

// RippleError is the closed error taxonomy shared by every layer (spec §7).
// Each sentinel below is checked with errors.Is; richer context is added by
// wrapping with fmt.Errorf("...: %w", ErrXxx).
var (
	// ErrNoContract: no extension fulfils the requested capability contract.
	ErrNoContract = errors.New("no_contract: no extension fulfils this contract")

	// ErrSendFailure: the transport dropped mid-request; caller may retry.
	ErrSendFailure = errors.New("send_failure: transport dropped the request")

	// ErrCallbackClosed: the caller went away before a response arrived.
	ErrCallbackClosed = errors.New("callback_closed: requestor is no longer listening")

	// ErrTimeout: the correlation deadline expired before a response arrived.
	ErrTimeout = errors.New("timeout: no response before deadline")

	// ErrInvalidInput: payload failed a schema/validity check.
	ErrInvalidInput = errors.New("invalid_input: payload failed validation")

	// ErrInvalidOutput: handler produced no frame, or a malformed one.
	ErrInvalidOutput = errors.New("invalid_output: handler produced no usable frame")

	// ErrBootstrapError: a bootstrap step failed; the process must exit non-zero.
	ErrBootstrapError = errors.New("bootstrap_error: a bootstrap step failed")

	// ErrNotFound: the requested key/namespace has no stored value.
	ErrNotFound = errors.New("not_found: no value stored for this key")
)

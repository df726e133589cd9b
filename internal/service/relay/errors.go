package relay

import "errors"

var (
	ErrAlreadyRegistered = errors.New("connection already registered")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrNotRegistered     = errors.New("connection not registered")
	ErrAdminNotPermitted = errors.New("connection not admitted as admin")
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrUnknownEvent      = errors.New("unknown event type")
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrStoreUnavailable  = errors.New("message store unavailable")
	ErrSendQueueFull     = errors.New("send queue full")
	ErrConnectionClosed  = errors.New("connection closed")
)

// dropReason maps an inbound-event error to a metrics label.
func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedEnvelope):
		return "malformed_envelope"
	case errors.Is(err, ErrUnknownEvent):
		return "unknown_event"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, ErrAdminNotPermitted):
		return "admin_not_permitted"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrUnknownConnection):
		return "unknown_connection"
	default:
		return "other"
	}
}

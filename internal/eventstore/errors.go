package eventstore

import (
	"git.home.luguber.info/inful/pursloader/internal/foundation/errors"
)

var (
	// ErrUnknownEventType indicates a stored event whose type this build does not know.
	ErrUnknownEventType = errors.EventStoreError("unknown event type").Build()

	// ErrDecodePayloadFailed indicates a stored payload could not be decoded.
	ErrDecodePayloadFailed = errors.EventStoreError("failed to decode event payload").Build()
)

package frame

import "errors"

// ErrInvalidPrefix is returned when an inbound 16-octet prefix matches none
// of the known frame kinds. This is always fatal for the connection.
var ErrInvalidPrefix = errors.New("frame: unrecognized prefix")

// ErrInvalidResponseKind is returned when a response frame's responseKind
// octet is neither ERROR nor MESSAGE: an unrecognized kind is invalid
// encoding, never silently read as an error string.
var ErrInvalidResponseKind = errors.New("frame: invalid response kind")

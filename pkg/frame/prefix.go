package frame

// PrefixLen is the fixed octet length of every frame prefix.
const PrefixLen = 16

// Kind identifies which of the five frame shapes a prefix names.
type Kind int

const (
	KindUnknown Kind = iota
	KindRequest
	KindResponse
	KindStreamMessage
	KindStreamResponse
	KindStreamClose
)

// asciiPrefix zero-pads tag on the left to PrefixLen octets, matching the
// literal construction (e.g. 5 zero octets ‖ "scg-request").
func asciiPrefix(tag string) [PrefixLen]byte {
	var p [PrefixLen]byte
	copy(p[PrefixLen-len(tag):], tag)
	return p
}

// Frame prefixes: mutually distinct ASCII-tagged literals, one per frame
// kind, zero-padded to PrefixLen.
var (
	RequestPrefix        = asciiPrefix("scg-request")
	ResponsePrefix       = asciiPrefix("scg-response")
	StreamMessagePrefix  = asciiPrefix("scg-stream-msg")
	StreamResponsePrefix = asciiPrefix("scg-stream-resp")
	StreamClosePrefix    = asciiPrefix("scg-stream-close")
)

func kindOf(p [PrefixLen]byte) Kind {
	switch p {
	case RequestPrefix:
		return KindRequest
	case ResponsePrefix:
		return KindResponse
	case StreamMessagePrefix:
		return KindStreamMessage
	case StreamResponsePrefix:
		return KindStreamResponse
	case StreamClosePrefix:
		return KindStreamClose
	default:
		return KindUnknown
	}
}

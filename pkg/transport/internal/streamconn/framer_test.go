package streamconn

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		[]byte("hi"),
		bytes.Repeat([]byte{0xAB}, 254),
		bytes.Repeat([]byte{0xCD}, 255),
		bytes.Repeat([]byte{0xEF}, 70000),
	}

	for _, payload := range cases {
		var buf bytes.Buffer
		if err := writeFrame(&buf, payload); err != nil {
			t.Fatalf("writeFrame(len=%d) = %v", len(payload), err)
		}
		got, err := readFrame(&buf)
		if err != nil {
			t.Fatalf("readFrame(len=%d) = %v", len(payload), err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("round-trip len=%d: got %d bytes, want %d", len(payload), len(got), len(payload))
		}
	}
}

//go:build fuzz
// +build fuzz

package codec

import (
	"errors"
	"testing"
)

// FuzzRecordCodec_Decode feeds arbitrary bytes to the decoder. It must either
// return a record that re-encodes to the consumed prefix or a protocol error.
func FuzzRecordCodec_Decode(f *testing.F) {
	codec := NewRecordCodec()

	// Add seed corpus
	f.Add([]byte{0x40})
	f.Add([]byte{0x00, byte(KindNull)})
	f.Add([]byte{0x22, byte(KindString), 0, 0, 0, 1, 'a', byte(KindInteger), 0, 0, 0, 7})
	f.Add([]byte{0x80, byte(KindDouble), 0x40, 0x04, 0, 0, 0, 0, 0, 0})

	f.Fuzz(func(t *testing.T, data []byte) {
		header, record, n, err := codec.Decode(data)
		if err != nil {
			if !errors.Is(err, ErrProtocol) {
				t.Fatalf("Decode returned a non-protocol error: %v", err)
			}
			return
		}
		if header.IsSentinel() {
			return
		}

		encoded, err := codec.Encode(record, header.IsLast(), header.Group())
		if err != nil {
			t.Fatalf("Re-encode failed for %v: %v", record, err)
		}

		_, again, _, err := codec.Decode(encoded)
		if err != nil {
			t.Fatalf("Decode of re-encoded record failed: %v", err)
		}
		if !again.Equal(record) {
			t.Errorf("Record mismatch after re-encode: got %v, want %v", again, record)
		}
		if len(encoded) > n {
			t.Errorf("Re-encoded %d bytes from %d consumed", len(encoded), n)
		}
	})
}

// FuzzRecordCodec_StringRoundTrip tests string and bytes fields with random payloads
func FuzzRecordCodec_StringRoundTrip(f *testing.F) {
	codec := NewRecordCodec()

	f.Add("", []byte(""))
	f.Add("key", []byte("value"))
	f.Add("🔑", []byte{0x00, 0x01, 0x02})

	f.Fuzz(func(t *testing.T, s string, b []byte) {
		if len(s) > 100000 || len(b) > 100000 {
			t.Skip("Input too large for fuzz test")
		}

		record := Tuple(String(s), Bytes(b))
		encoded, err := codec.Encode(record, true, 0)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		_, decoded, _, err := codec.Decode(encoded)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if !decoded.Equal(record) {
			t.Errorf("Record mismatch: got %v, want %v", decoded, record)
		}
	})
}

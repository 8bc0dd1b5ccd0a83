// Package codec provides record serialization and deserialization for the
// tether worker protocol.
//
// The codec package implements the compact tagged-header format exchanged with
// the controlling host process. It is pure: it never owns a transport and only
// reads from the Reader it is handed.
//
// # Record Format
//
// Every record starts with a one byte header followed by its fields:
//
//	[Header(1)][Tag(1)][Payload]...[Tag(1)][Payload]
//
// Header bits:
//   - bit 7: logical group id (0 or 1), only meaningful for co-group streams
//   - bit 6: end-of-stream sentinel when set alone (0x40 for group 0, 0xC0 for group 1)
//   - bit 5: last record of the current group
//   - bits 4-0: field count; 0 means a single bare scalar without tuple wrapper
//
// Field tags and payloads (all numbers big-endian, fixed width):
//   - 0 Null: no payload
//   - 1 Bytes, 2 String: 4 byte signed length, then the raw bytes
//   - 4 Double: 8 bytes, 5 Float: 4 bytes (IEEE754)
//   - 6 Long: 8 bytes, 7 Integer: 4 bytes, 8 Short: 2 bytes, 9 Byte: 1 byte
//   - 10 Boolean: 1 byte, 1 for true
//
// There is no record-level length envelope: a reader that misreads one tag
// cannot find the next record again.
//
// # Usage
//
// Basic encoding and decoding:
//
//	c := codec.NewRecordCodec()
//
//	// Encode the last record of group 0
//	encoded, err := c.Encode(codec.Tuple(codec.String("word"), codec.Int(3)), true, 0)
//	if err != nil {
//	    return err
//	}
//
//	// Decode it back
//	header, record, n, err := c.Decode(encoded)
//	if err != nil {
//	    return err
//	}
//
// Streaming decode uses ReadHeader and ReadRecord against any Reader, which is
// how the stream package consumes a channel.
//
// # Error Handling
//
// Every wire violation (unknown tag, malformed header, negative length) is a
// *ProtocolError that matches ErrProtocol with errors.Is. Errors returned by
// the Reader are passed through untouched so that transport failures stay
// distinguishable from format failures. Both are fatal for the connection.
//
// # Thread Safety
//
// RecordCodec is stateless and safe for concurrent use. Records are values;
// their field slices must not be modified after creation.
package codec

package codec_test

import (
	"fmt"
	"log"

	"github.com/ssargent/tether/pkg/codec"
)

// ExampleRecordCodec_basic demonstrates basic record encoding and decoding
func ExampleRecordCodec_basic() {
	// Create a new codec
	c := codec.NewRecordCodec()

	// Encode the last record of group 0
	record := codec.Tuple(codec.String("word"), codec.Int(3))
	encoded, err := c.Encode(record, true, 0)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Encoded %d bytes, header 0x%02x\n", len(encoded), encoded[0])

	// Decode the record
	header, decoded, _, err := c.Decode(encoded)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Header: %s\n", header)
	fmt.Printf("Record: %s\n", decoded)

	// Output:
	// Encoded 15 bytes, header 0x22
	// Header: group=0 last=true fields=2
	// Record: ("word", 3)
}

// ExampleScalar demonstrates the bare scalar shorthand
func ExampleScalar() {
	c := codec.NewRecordCodec()

	encoded, err := c.Encode(codec.Scalar(codec.Double(2.5)), false, 1)
	if err != nil {
		log.Fatal(err)
	}

	_, decoded, _, err := c.Decode(encoded)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Header byte: 0x%02x\n", encoded[0])
	fmt.Printf("Scalar: %t\n", decoded.IsScalar())
	fmt.Printf("Value: %s (%s)\n", decoded.Value(), decoded.Value().Kind())

	// Output:
	// Header byte: 0x80
	// Scalar: true
	// Value: 2.5 (double)
}

// ExampleRecordCodec_EncodeSentinel shows the end-of-stream bytes
func ExampleRecordCodec_EncodeSentinel() {
	c := codec.NewRecordCodec()

	fmt.Printf("group 0: 0x%02x\n", c.EncodeSentinel(0)[0])
	fmt.Printf("group 1: 0x%02x\n", c.EncodeSentinel(1)[0])

	// Output:
	// group 0: 0x40
	// group 1: 0xc0
}

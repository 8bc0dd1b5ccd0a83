package stream

import (
	"fmt"

	"github.com/ssargent/tether/pkg/codec"
)

// Resetter is the part of a channel the broadcast phase needs
type Resetter interface {
	Reset() error
}

// ReadBroadcastTable consumes the broadcast-variable phase. The host writes a
// count, then per variable its name and its records, each as a self-contained
// segment. The cursor and the channel are reset together after every segment.
func ReadBroadcastTable(cursor Source, ch Resetter) (map[string][]codec.Record, error) {
	countRec, err := cursor.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to read broadcast count: %w", err)
	}
	count, err := integerValue(countRec)
	if err != nil {
		return nil, err
	}
	if err := resetBoth(cursor, ch); err != nil {
		return nil, err
	}

	table := make(map[string][]codec.Record)
	for i := int64(0); i < count; i++ {
		nameRec, err := cursor.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read broadcast name %d: %w", i, err)
		}
		name, err := stringValue(nameRec)
		if err != nil {
			return nil, err
		}
		if err := resetBoth(cursor, ch); err != nil {
			return nil, err
		}

		records, err := cursor.All()
		if err != nil {
			return nil, fmt.Errorf("failed to read broadcast variable %q: %w", name, err)
		}
		if records == nil {
			records = []codec.Record{}
		}
		table[name] = records
		if err := resetBoth(cursor, ch); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func resetBoth(cursor Source, ch Resetter) error {
	cursor.Reset()
	if err := ch.Reset(); err != nil {
		return fmt.Errorf("failed to reset channel: %w", err)
	}
	return nil
}

func integerValue(rec codec.Record) (int64, error) {
	if rec.IsNone() || !rec.IsScalar() {
		return 0, fmt.Errorf("%w: broadcast count must be a scalar, got %s", codec.ErrProtocol, rec)
	}
	switch v := rec.Value(); v.Kind() {
	case codec.KindByte, codec.KindShort, codec.KindInteger, codec.KindLong:
		if v.Int64() < 0 {
			return 0, fmt.Errorf("%w: negative broadcast count %d", codec.ErrProtocol, v.Int64())
		}
		return v.Int64(), nil
	default:
		return 0, fmt.Errorf("%w: broadcast count has kind %s", codec.ErrProtocol, v.Kind())
	}
}

func stringValue(rec codec.Record) (string, error) {
	if rec.IsNone() || !rec.IsScalar() {
		return "", fmt.Errorf("%w: broadcast name must be a scalar, got %s", codec.ErrProtocol, rec)
	}
	v := rec.Value()
	if v.Kind() != codec.KindString {
		return "", fmt.Errorf("%w: broadcast name has kind %s", codec.ErrProtocol, v.Kind())
	}
	return v.Str(), nil
}

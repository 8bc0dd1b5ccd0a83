package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
)

// ErrSegmentNotFound is returned for ids the store does not hold
var ErrSegmentNotFound = errors.New("segment not found")

var segmentPrefix = []byte("seg/")

// SegmentStore archives raw channel segments keyed by KSUID, so ids sort by
// capture time
type SegmentStore struct {
	db *pebble.DB
}

// NewSegmentStore opens or creates a store in path
func NewSegmentStore(path string) (*SegmentStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open segment store: %w", err)
	}
	return &SegmentStore{db: db}, nil
}

func segmentKey(id ksuid.KSUID) []byte {
	return append(append([]byte{}, segmentPrefix...), id.Bytes()...)
}

// Put stores a segment under a new id
func (s *SegmentStore) Put(segment []byte) (ksuid.KSUID, error) {
	id := ksuid.New()
	if err := s.db.Set(segmentKey(id), segment, pebble.Sync); err != nil {
		return ksuid.Nil, fmt.Errorf("failed to store segment: %w", err)
	}
	return id, nil
}

// Get returns a copy of the segment stored under id
func (s *SegmentStore) Get(id ksuid.KSUID) ([]byte, error) {
	data, closer, err := s.db.Get(segmentKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSegmentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read segment %s: %w", id, err)
	}
	defer closer.Close()

	return bytes.Clone(data), nil
}

// List returns all segment ids, oldest first
func (s *SegmentStore) List() ([]ksuid.KSUID, error) {
	upper := append([]byte{}, segmentPrefix...)
	upper[len(upper)-1]++
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: segmentPrefix,
		UpperBound: upper,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	defer iter.Close()

	var ids []ksuid.KSUID
	for iter.First(); iter.Valid(); iter.Next() {
		id, err := ksuid.FromBytes(iter.Key()[len(segmentPrefix):])
		if err != nil {
			return nil, fmt.Errorf("corrupt segment key: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, iter.Error()
}

// Delete removes a segment
func (s *SegmentStore) Delete(id ksuid.KSUID) error {
	return s.db.Delete(segmentKey(id), pebble.Sync)
}

// Close closes the store
func (s *SegmentStore) Close() error {
	return s.db.Close()
}

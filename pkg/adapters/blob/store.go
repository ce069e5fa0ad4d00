// Package blob persists session snapshots in object storage through
// gocloud.dev/blob. Any bucket URL with a registered driver works; the
// in-memory and local file drivers are linked in.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aretw0/stepwise/pkg/domain"
	gcblob "gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

const suffix = ".json"

// Store implements ports.SnapshotStore on a blob bucket.
type Store struct {
	bucket *gcblob.Bucket
	prefix string
}

// Open opens the bucket at bucketURL (e.g. "mem://", "file:///var/lib/stepwise").
func Open(ctx context.Context, bucketURL, prefix string) (*Store, error) {
	bucket, err := gcblob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	return New(bucket, prefix), nil
}

// New wraps an already open bucket.
func New(bucket *gcblob.Bucket, prefix string) *Store {
	return &Store{bucket: bucket, prefix: prefix}
}

func (s *Store) keyFor(sessionID string) string {
	return s.prefix + sessionID + suffix
}

// Save writes the snapshot object.
func (s *Store) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	opts := &gcblob.WriterOptions{ContentType: "application/json"}
	if err := s.bucket.WriteAll(ctx, s.keyFor(sessionID), data, opts); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot object.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	data, err := s.bucket.ReadAll(ctx, s.keyFor(sessionID))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the snapshot object. Missing objects are ignored.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	err := s.bucket.Delete(ctx, s.keyFor(sessionID))
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// List returns the session IDs stored under the prefix.
func (s *Store) List(ctx context.Context) ([]string, error) {
	iter := s.bucket.List(&gcblob.ListOptions{Prefix: s.prefix})
	ids := []string{}
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", err)
		}
		if obj.IsDir || !strings.HasSuffix(obj.Key, suffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(obj.Key, s.prefix), suffix)
		if id != "" && !strings.Contains(id, "/") {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes the bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

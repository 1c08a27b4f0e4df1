package store

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// ValkeyStore is a key-value store backed by a Valkey (Redis-compatible)
// server, for deployments where multiple gateway instances share one cache.
type ValkeyStore struct {
	client valkey.Client
}

// OpenValkey connects to the Valkey server at addr.
func OpenValkey(addr string) (*ValkeyStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &ValkeyStore{client: client}, nil
}

// Get returns the value for key, or ErrNotFound.
func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.client.Do(ctx, s.client.B().Get().Key(key).Build())
	if err := cmd.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return cmd.AsBytes()
}

// Put overwrites any existing value at key without expiry; staleness is
// governed by the cache layer, not the backend.
func (s *ValkeyStore) Put(ctx context.Context, key string, value []byte) error {
	cmd := s.client.Do(ctx,
		s.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Build(),
	)
	return cmd.Error()
}

// Delete removes the value at key.
func (s *ValkeyStore) Delete(ctx context.Context, key string) error {
	cmd := s.client.Do(ctx, s.client.B().Del().Key(key).Build())
	return cmd.Error()
}

// Close releases the client.
func (s *ValkeyStore) Close() {
	s.client.Close()
}

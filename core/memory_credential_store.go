package core

import (
	"context"
	"sort"
	"sync"
	"time"
)

type credentialKey struct {
	userID   string
	provider string
}

// MemoryCredentialStore keeps encrypted credential records in memory. It
// backs the vault in tests and in deployments that skip SQL persistence.
type MemoryCredentialStore struct {
	mu      sync.Mutex
	entries map[credentialKey]CredentialRecord
	nowFn   func() time.Time
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		entries: make(map[credentialKey]CredentialRecord),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryCredentialStore) Save(_ context.Context, record CredentialRecord) (CredentialRecord, error) {
	key := NewSessionKey(record.UserID, record.Provider)
	if err := key.Validate(); err != nil {
		return CredentialRecord{}, err
	}
	record.UserID = key.UserID
	record.Provider = key.Provider

	now := s.nowFn()
	s.mu.Lock()
	defer s.mu.Unlock()

	mapKey := credentialKey{userID: key.UserID, provider: key.Provider}
	if existing, ok := s.entries[mapKey]; ok {
		record.CreatedAt = existing.CreatedAt
	} else if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	record.EncryptedPayload = append([]byte(nil), record.EncryptedPayload...)
	s.entries[mapKey] = record
	return record, nil
}

func (s *MemoryCredentialStore) Get(_ context.Context, userID string, provider string) (CredentialRecord, error) {
	key := NewSessionKey(userID, provider)
	if err := key.Validate(); err != nil {
		return CredentialRecord{}, err
	}

	s.mu.Lock()
	record, ok := s.entries[credentialKey{userID: key.UserID, provider: key.Provider}]
	s.mu.Unlock()

	if !ok {
		return CredentialRecord{}, NewCredentialsNotFoundError(key)
	}
	record.EncryptedPayload = append([]byte(nil), record.EncryptedPayload...)
	return record, nil
}

func (s *MemoryCredentialStore) Delete(_ context.Context, userID string, provider string) error {
	key := NewSessionKey(userID, provider)
	if err := key.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.entries, credentialKey{userID: key.UserID, provider: key.Provider})
	s.mu.Unlock()
	return nil
}

func (s *MemoryCredentialStore) Touch(_ context.Context, userID string, provider string, at time.Time) error {
	key := NewSessionKey(userID, provider)
	if err := key.Validate(); err != nil {
		return err
	}
	if at.IsZero() {
		at = s.nowFn()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mapKey := credentialKey{userID: key.UserID, provider: key.Provider}
	record, ok := s.entries[mapKey]
	if !ok {
		return NewCredentialsNotFoundError(key)
	}
	stamped := at.UTC()
	record.LastValidatedAt = &stamped
	record.UpdatedAt = s.nowFn()
	s.entries[mapKey] = record
	return nil
}

func (s *MemoryCredentialStore) List(_ context.Context) ([]CredentialRecord, error) {
	s.mu.Lock()
	records := make([]CredentialRecord, 0, len(s.entries))
	for _, record := range s.entries {
		record.EncryptedPayload = append([]byte(nil), record.EncryptedPayload...)
		records = append(records, record)
	}
	s.mu.Unlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].Provider != records[j].Provider {
			return records[i].Provider < records[j].Provider
		}
		return records[i].UserID < records[j].UserID
	})
	return records, nil
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)

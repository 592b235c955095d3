package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCredentialStoreSavePreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := NewMemoryCredentialStore()
	store.nowFn = clock.Now

	first, err := store.Save(ctx, CredentialRecord{
		UserID:           "u1",
		Provider:         "KITE",
		EncryptedPayload: []byte("cipher-1"),
		PayloadFormat:    CredentialPayloadFormatFieldsJSON,
		PayloadVersion:   CredentialPayloadVersionV1,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.Provider != "kite" {
		t.Fatalf("expected normalized provider, got %q", first.Provider)
	}

	clock.Advance(time.Hour)
	second, err := store.Save(ctx, CredentialRecord{
		UserID:           "u1",
		Provider:         "kite",
		EncryptedPayload: []byte("cipher-2"),
	})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("upsert must preserve created at: %v vs %v", second.CreatedAt, first.CreatedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("expected updated at to advance, got %v", second.UpdatedAt)
	}
}

func TestMemoryCredentialStoreGetCopiesPayload(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()

	if _, err := store.Save(ctx, CredentialRecord{UserID: "u1", Provider: "dhan", EncryptedPayload: []byte("cipher")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	record, err := store.Get(ctx, "u1", "dhan")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	record.EncryptedPayload[0] = 'X'

	fresh, err := store.Get(ctx, "u1", "dhan")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if string(fresh.EncryptedPayload) != "cipher" {
		t.Fatalf("payload mutated through a returned copy: %q", fresh.EncryptedPayload)
	}
}

func TestMemoryCredentialStoreTouch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()

	if err := store.Touch(ctx, "u1", "dhan", time.Now()); err == nil {
		t.Fatal("expected touch of missing record to fail")
	}

	if _, err := store.Save(ctx, CredentialRecord{UserID: "u1", Provider: "dhan", EncryptedPayload: []byte("c")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := store.Touch(ctx, "u1", "dhan", at); err != nil {
		t.Fatalf("touch: %v", err)
	}
	record, err := store.Get(ctx, "u1", "dhan")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.LastValidatedAt == nil || !record.LastValidatedAt.Equal(at) {
		t.Fatalf("unexpected last validated at %v", record.LastValidatedAt)
	}
}

func TestMemoryCredentialStoreListSorted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()

	for _, pair := range [][2]string{{"u2", "kite"}, {"u1", "angel"}, {"u1", "kite"}} {
		if _, err := store.Save(ctx, CredentialRecord{UserID: pair[0], Provider: pair[1], EncryptedPayload: []byte("c")}); err != nil {
			t.Fatalf("save %v: %v", pair, err)
		}
	}
	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected three records, got %d", len(records))
	}
	want := [][2]string{{"u1", "angel"}, {"u1", "kite"}, {"u2", "kite"}}
	for i, pair := range want {
		if records[i].UserID != pair[0] || records[i].Provider != pair[1] {
			t.Fatalf("unexpected order at %d: %+v", i, records[i])
		}
	}
}

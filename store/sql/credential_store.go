package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-broker-sessions/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// CredentialStore persists encrypted credential records in SQL. One row per
// user and provider pair; saving again replaces the payload in place.
type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*credentialRecord]
}

func (s *CredentialStore) Save(ctx context.Context, in core.CredentialRecord) (core.CredentialRecord, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	key := core.NewSessionKey(in.UserID, in.Provider)
	if err := key.Validate(); err != nil {
		return core.CredentialRecord{}, err
	}
	in.UserID = key.UserID
	in.Provider = key.Provider
	now := time.Now().UTC()

	var saved core.CredentialRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, findErr := s.findTx(ctx, tx, key)
		if findErr != nil {
			return findErr
		}
		if existing == nil {
			record := newCredentialRecord(in, now)
			inserted, createErr := s.repo.CreateTx(ctx, tx, record)
			if createErr != nil {
				return createErr
			}
			saved = inserted.toDomain()
			return nil
		}

		existing.EncryptedPayload = append([]byte(nil), in.EncryptedPayload...)
		existing.PayloadFormat = in.PayloadFormat
		existing.PayloadVersion = in.PayloadVersion
		existing.EncryptionKeyID = in.EncryptionKeyID
		existing.EncryptionVersion = in.EncryptionVersion
		existing.UpdatedAt = now
		if in.LastValidatedAt != nil {
			stamped := in.LastValidatedAt.UTC()
			existing.LastValidatedAt = &stamped
		}
		if _, updateErr := tx.NewUpdate().
			Model(existing).
			WherePK().
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		saved = existing.toDomain()
		return nil
	})
	if err != nil {
		return core.CredentialRecord{}, err
	}
	return saved, nil
}

func (s *CredentialStore) Get(ctx context.Context, userID string, provider string) (core.CredentialRecord, error) {
	if s == nil || s.repo == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	key := core.NewSessionKey(userID, provider)
	if err := key.Validate(); err != nil {
		return core.CredentialRecord{}, err
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", key.UserID),
		repository.SelectBy("provider", "=", key.Provider),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.CredentialRecord{}, err
	}
	if len(records) == 0 {
		return core.CredentialRecord{}, core.NewCredentialsNotFoundError(key)
	}
	return records[0].toDomain(), nil
}

func (s *CredentialStore) Delete(ctx context.Context, userID string, provider string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	key := core.NewSessionKey(userID, provider)
	if err := key.Validate(); err != nil {
		return err
	}
	_, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("user_id = ?", key.UserID).
		Where("provider = ?", key.Provider).
		Exec(ctx)
	return err
}

func (s *CredentialStore) Touch(ctx context.Context, userID string, provider string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	key := core.NewSessionKey(userID, provider)
	if err := key.Validate(); err != nil {
		return err
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	result, err := s.db.NewUpdate().
		Model((*credentialRecord)(nil)).
		Set("last_validated_at = ?", at.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("user_id = ?", key.UserID).
		Where("provider = ?", key.Provider).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affErr := result.RowsAffected(); affErr == nil && affected == 0 {
		return core.NewCredentialsNotFoundError(key)
	}
	return nil
}

func (s *CredentialStore) List(ctx context.Context) ([]core.CredentialRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.OrderBy("provider ASC, user_id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.CredentialRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *CredentialStore) findTx(ctx context.Context, tx bun.Tx, key core.SessionKey) (*credentialRecord, error) {
	records := []*credentialRecord{}
	err := tx.NewSelect().
		Model(&records).
		Where("user_id = ?", key.UserID).
		Where("provider = ?", key.Provider).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

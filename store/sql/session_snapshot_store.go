package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-broker-sessions/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// SessionSnapshotStore mirrors the in-memory session table into SQL so
// sessions survive a restart. Writes are last-wins per user and provider.
type SessionSnapshotStore struct {
	db   *bun.DB
	repo repository.Repository[*sessionSnapshotRecord]
}

func (s *SessionSnapshotStore) Save(ctx context.Context, session core.Session) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session snapshot store is not configured")
	}
	if err := session.Key.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, findErr := s.findTx(ctx, tx, session.Key)
		if findErr != nil {
			return findErr
		}
		if existing == nil {
			record := newSessionSnapshotRecord(session, now)
			if !session.CreatedAt.IsZero() {
				record.CreatedAt = session.CreatedAt
			}
			_, createErr := s.repo.CreateTx(ctx, tx, record)
			return createErr
		}

		existing.State = string(session.State)
		existing.AccessToken = session.AccessToken
		existing.ExpiresAt = session.ExpiresAt
		existing.LastRefreshedAt = session.LastRefreshedAt
		existing.Failures = session.Failures
		existing.Epoch = int64(session.Epoch)
		existing.UpdatedAt = now
		_, updateErr := tx.NewUpdate().
			Model(existing).
			WherePK().
			Exec(ctx)
		return updateErr
	})
}

func (s *SessionSnapshotStore) Delete(ctx context.Context, key core.SessionKey) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session snapshot store is not configured")
	}
	if err := key.Validate(); err != nil {
		return err
	}
	_, err := s.db.NewDelete().
		Model((*sessionSnapshotRecord)(nil)).
		Where("user_id = ?", key.UserID).
		Where("provider = ?", key.Provider).
		Exec(ctx)
	return err
}

func (s *SessionSnapshotStore) List(ctx context.Context) ([]core.Session, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: session snapshot store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.OrderBy("provider ASC, user_id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Session, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *SessionSnapshotStore) findTx(ctx context.Context, tx bun.Tx, key core.SessionKey) (*sessionSnapshotRecord, error) {
	records := []*sessionSnapshotRecord{}
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

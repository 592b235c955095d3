package sqlstore

import (
	"time"

	"github.com/goliatone/go-broker-sessions/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:broker_credentials,alias:bc"`

	ID                string     `bun:"id,pk"`
	UserID            string     `bun:"user_id,notnull"`
	Provider          string     `bun:"provider,notnull"`
	EncryptedPayload  []byte     `bun:"encrypted_payload,notnull"`
	PayloadFormat     string     `bun:"payload_format,notnull"`
	PayloadVersion    int        `bun:"payload_version,notnull"`
	EncryptionKeyID   string     `bun:"encryption_key_id,notnull"`
	EncryptionVersion int        `bun:"encryption_version,notnull"`
	CreatedAt         time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	LastValidatedAt   *time.Time `bun:"last_validated_at,nullzero"`
}

func newCredentialRecord(in core.CredentialRecord, now time.Time) *credentialRecord {
	record := &credentialRecord{
		ID:                uuid.NewString(),
		UserID:            in.UserID,
		Provider:          in.Provider,
		EncryptedPayload:  append([]byte(nil), in.EncryptedPayload...),
		PayloadFormat:     in.PayloadFormat,
		PayloadVersion:    in.PayloadVersion,
		EncryptionKeyID:   in.EncryptionKeyID,
		EncryptionVersion: in.EncryptionVersion,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if in.LastValidatedAt != nil {
		stamped := in.LastValidatedAt.UTC()
		record.LastValidatedAt = &stamped
	}
	return record
}

func (r *credentialRecord) toDomain() core.CredentialRecord {
	if r == nil {
		return core.CredentialRecord{}
	}
	out := core.CredentialRecord{
		UserID:            r.UserID,
		Provider:          r.Provider,
		EncryptedPayload:  append([]byte(nil), r.EncryptedPayload...),
		PayloadFormat:     r.PayloadFormat,
		PayloadVersion:    r.PayloadVersion,
		EncryptionKeyID:   r.EncryptionKeyID,
		EncryptionVersion: r.EncryptionVersion,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.LastValidatedAt != nil {
		stamped := r.LastValidatedAt.UTC()
		out.LastValidatedAt = &stamped
	}
	return out
}

type sessionSnapshotRecord struct {
	bun.BaseModel `bun:"table:broker_sessions,alias:bs"`

	ID              string    `bun:"id,pk"`
	UserID          string    `bun:"user_id,notnull"`
	Provider        string    `bun:"provider,notnull"`
	State           string    `bun:"state,notnull"`
	AccessToken     string    `bun:"access_token,notnull"`
	ExpiresAt       time.Time `bun:"expires_at,nullzero"`
	LastRefreshedAt time.Time `bun:"last_refreshed_at,nullzero"`
	Failures        int       `bun:"failures,notnull"`
	Epoch           int64     `bun:"epoch,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newSessionSnapshotRecord(session core.Session, now time.Time) *sessionSnapshotRecord {
	return &sessionSnapshotRecord{
		ID:              uuid.NewString(),
		UserID:          session.Key.UserID,
		Provider:        session.Key.Provider,
		State:           string(session.State),
		AccessToken:     session.AccessToken,
		ExpiresAt:       session.ExpiresAt,
		LastRefreshedAt: session.LastRefreshedAt,
		Failures:        session.Failures,
		Epoch:           int64(session.Epoch),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (r *sessionSnapshotRecord) toDomain() core.Session {
	if r == nil {
		return core.Session{}
	}
	return core.Session{
		Key:             core.NewSessionKey(r.UserID, r.Provider),
		State:           core.SessionState(r.State),
		AccessToken:     r.AccessToken,
		ExpiresAt:       r.ExpiresAt,
		LastRefreshedAt: r.LastRefreshedAt,
		Failures:        r.Failures,
		Epoch:           uint64(r.Epoch),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

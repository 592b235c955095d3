package sqlstore

import "github.com/goliatone/go-broker-sessions/core"

var (
	_ core.CredentialStore        = (*CredentialStore)(nil)
	_ core.SessionSnapshotStore   = (*SessionSnapshotStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)

package query

import (
	"github.com/goliatone/go-broker-sessions/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetStatusMessage, core.SessionStatus]   = (*GetStatusQuery)(nil)
	_ gocmd.Querier[ListAccountsMessage, []core.AccountRef] = (*ListAccountsQuery)(nil)
	_ gocmd.Querier[HealthMessage, core.HealthReport]       = (*HealthQuery)(nil)
)

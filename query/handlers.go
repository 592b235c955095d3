package query

import (
	"context"

	"github.com/goliatone/go-broker-sessions/core"
)

type StatusReader interface {
	Status(ctx context.Context, key core.SessionKey) (core.SessionStatus, error)
}

type AccountReader interface {
	ListAccounts(ctx context.Context) ([]core.AccountRef, error)
}

type HealthReader interface {
	Health(ctx context.Context) (core.HealthReport, error)
}

type GetStatusQuery struct {
	reader StatusReader
}

func NewGetStatusQuery(reader StatusReader) *GetStatusQuery {
	return &GetStatusQuery{reader: reader}
}

func (q *GetStatusQuery) Query(ctx context.Context, msg GetStatusMessage) (core.SessionStatus, error) {
	if q == nil || q.reader == nil {
		return core.SessionStatus{}, queryDependencyError("query: status reader is required")
	}
	return q.reader.Status(ctx, msg.Key)
}

type ListAccountsQuery struct {
	reader AccountReader
}

func NewListAccountsQuery(reader AccountReader) *ListAccountsQuery {
	return &ListAccountsQuery{reader: reader}
}

func (q *ListAccountsQuery) Query(ctx context.Context, _ ListAccountsMessage) ([]core.AccountRef, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: account reader is required")
	}
	return q.reader.ListAccounts(ctx)
}

type HealthQuery struct {
	reader HealthReader
}

func NewHealthQuery(reader HealthReader) *HealthQuery {
	return &HealthQuery{reader: reader}
}

func (q *HealthQuery) Query(ctx context.Context, _ HealthMessage) (core.HealthReport, error) {
	if q == nil || q.reader == nil {
		return core.HealthReport{}, queryDependencyError("query: health reader is required")
	}
	return q.reader.Health(ctx)
}

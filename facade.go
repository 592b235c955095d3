package brokersessions

import (
	"fmt"

	brokercommand "github.com/goliatone/go-broker-sessions/command"
	brokerquery "github.com/goliatone/go-broker-sessions/query"
)

// CommandQueryService is the service surface the facade wires commands and
// queries against. *core.Service satisfies it.
type CommandQueryService interface {
	brokercommand.MutatingService
	brokerquery.StatusReader
	brokerquery.AccountReader
	brokerquery.HealthReader
}

type Commands struct {
	RegisterCredentials *brokercommand.RegisterCredentialsCommand
	DeleteCredentials   *brokercommand.DeleteCredentialsCommand
	Connect             *brokercommand.ConnectCommand
	CompleteAuth        *brokercommand.CompleteAuthCommand
	Disconnect          *brokercommand.DisconnectCommand
	RefreshSession      *brokercommand.RefreshSessionCommand
}

type Queries struct {
	GetStatus    *brokerquery.GetStatusQuery
	ListAccounts *brokerquery.ListAccountsQuery
	Health       *brokerquery.HealthQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("brokersessions: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		RegisterCredentials: brokercommand.NewRegisterCredentialsCommand(service),
		DeleteCredentials:   brokercommand.NewDeleteCredentialsCommand(service),
		Connect:             brokercommand.NewConnectCommand(service),
		CompleteAuth:        brokercommand.NewCompleteAuthCommand(service),
		Disconnect:          brokercommand.NewDisconnectCommand(service),
		RefreshSession:      brokercommand.NewRefreshSessionCommand(service),
	}
	facade.queries = Queries{
		GetStatus:    brokerquery.NewGetStatusQuery(service),
		ListAccounts: brokerquery.NewListAccountsQuery(service),
		Health:       brokerquery.NewHealthQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

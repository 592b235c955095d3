package command

import (
	"context"

	"github.com/goliatone/go-broker-sessions/core"
	gocmd "github.com/goliatone/go-command"
)

// MutatingService is the slice of the session service the command layer
// drives. *core.Service satisfies it.
type MutatingService interface {
	RegisterCredentials(ctx context.Context, req core.RegisterCredentialsRequest) (core.AccountRef, error)
	DeleteCredentials(ctx context.Context, key core.SessionKey) error
	Connect(ctx context.Context, req core.ConnectRequest) (core.ConnectResult, error)
	CompleteAuth(ctx context.Context, req core.CompleteAuthRequest) (core.SessionStatus, error)
	Disconnect(ctx context.Context, key core.SessionKey) error
	RefreshSession(ctx context.Context, req core.RefreshRequest) (core.RefreshResult, error)
}

type RegisterCredentialsCommand struct {
	service MutatingService
}

func NewRegisterCredentialsCommand(service MutatingService) *RegisterCredentialsCommand {
	return &RegisterCredentialsCommand{service: service}
}

func (c *RegisterCredentialsCommand) Execute(ctx context.Context, msg RegisterCredentialsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	out, err := c.service.RegisterCredentials(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteCredentialsCommand struct {
	service MutatingService
}

func NewDeleteCredentialsCommand(service MutatingService) *DeleteCredentialsCommand {
	return &DeleteCredentialsCommand{service: service}
}

func (c *DeleteCredentialsCommand) Execute(ctx context.Context, msg DeleteCredentialsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	return c.service.DeleteCredentials(ctx, msg.Key)
}

type ConnectCommand struct {
	service MutatingService
}

func NewConnectCommand(service MutatingService) *ConnectCommand {
	return &ConnectCommand{service: service}
}

func (c *ConnectCommand) Execute(ctx context.Context, msg ConnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connect service is required")
	}
	out, err := c.service.Connect(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteAuthCommand struct {
	service MutatingService
}

func NewCompleteAuthCommand(service MutatingService) *CompleteAuthCommand {
	return &CompleteAuthCommand{service: service}
}

func (c *CompleteAuthCommand) Execute(ctx context.Context, msg CompleteAuthMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: auth completion service is required")
	}
	out, err := c.service.CompleteAuth(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectCommand struct {
	service MutatingService
}

func NewDisconnectCommand(service MutatingService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

func (c *DisconnectCommand) Execute(ctx context.Context, msg DisconnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect service is required")
	}
	return c.service.Disconnect(ctx, msg.Key)
}

type RefreshSessionCommand struct {
	service MutatingService
}

func NewRefreshSessionCommand(service MutatingService) *RefreshSessionCommand {
	return &RefreshSessionCommand{service: service}
}

func (c *RefreshSessionCommand) Execute(ctx context.Context, msg RefreshSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.RefreshSession(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

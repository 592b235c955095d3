package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RegisterCredentialsMessage] = (*RegisterCredentialsCommand)(nil)
	_ gocmd.Commander[DeleteCredentialsMessage]   = (*DeleteCredentialsCommand)(nil)
	_ gocmd.Commander[ConnectMessage]             = (*ConnectCommand)(nil)
	_ gocmd.Commander[CompleteAuthMessage]        = (*CompleteAuthCommand)(nil)
	_ gocmd.Commander[DisconnectMessage]          = (*DisconnectCommand)(nil)
	_ gocmd.Commander[RefreshSessionMessage]      = (*RefreshSessionCommand)(nil)
)

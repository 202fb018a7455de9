package handlers

import (
	"context"

	appcomm "github.com/alissayuxuan/OMNI-SYS/internal/application/comm"
)

// nodeManager is the subset of appcomm.Manager the bridge drives.
type nodeManager interface {
	CreateNode(ctx context.Context, identity string, creds *appcomm.Credentials) (*appcomm.Node, error)
	ShutdownNode(identity string) bool
	Identities() []string
	Send(ctx context.Context, identity, destination, protocol, msgType string, payload any) (appcomm.SendStatus, error)
}

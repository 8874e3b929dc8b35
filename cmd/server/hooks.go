package main

import (
	"context"
	"log/slog"

	"privchat/domain"
	"privchat/wire"
)

// defaultHooks is the capability set used when no embedding
// application customizes delivery metadata or heartbeat handling.
type defaultHooks struct {
	log *slog.Logger
}

func (h defaultHooks) SenderMetadata(ctx context.Context, user *domain.User) map[string]any {
	return nil
}

func (h defaultHooks) OnHeartbeat(ctx context.Context, user *domain.User, payload map[string]any) *wire.Error {
	h.log.Debug("Heartbeat received", "user_pk", user.PK)
	return nil
}

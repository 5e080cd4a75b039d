package middleware

import (
	"context"
	"errors"
	"strings"

	"rentdesk/internal/app/commands"
)

var ErrActorRequired = errors.New("middleware: actor id required")

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// ActorCommand exposes the staff member issuing a write.
type ActorCommand interface {
	Actor() string
}

// RequireActor rejects writes that do not name an actor. Identity itself is
// resolved upstream; the id is opaque here.
type RequireActor struct{}

func (RequireActor) Authorize(_ context.Context, message any) error {
	cmd, ok := message.(ActorCommand)
	if !ok {
		return nil
	}
	if strings.TrimSpace(cmd.Actor()) == "" {
		return ErrActorRequired
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

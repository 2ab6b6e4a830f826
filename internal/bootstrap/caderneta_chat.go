package bootstrap

import (
	"context"
	"io"

	"caderneta_server/adapter/in/cli"
	"caderneta_server/adapter/out/messaging"
	"caderneta_server/config"
)

// RunChat talks to the bot from a terminal. Replies, including onboarding
// codes, are printed to w instead of being sent to WhatsApp.
func RunChat(ctx context.Context, cfg *config.Config, r io.Reader, w io.Writer) error {
	console := messaging.NewConsoleSender(w)
	deps, cleanup, err := NewDependencies(ctx, cfg, console)
	if err != nil {
		return err
	}
	defer cleanup()

	return cli.NewChat(deps.Bot, console, cfg.ChatPhone).Run(ctx, r, w)
}

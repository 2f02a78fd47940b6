// Command refittctl administers a REFITT API deployment: schema migrations,
// client credentials and tokens.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/refitt/refitt-api/internal/app"
	"github.com/refitt/refitt-api/internal/domain/auth"
	"github.com/refitt/refitt-api/internal/storage/postgres"
	"github.com/refitt/refitt-api/internal/token"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lg, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	if err := newRootCommand().ExecuteContext(zctx.Base(ctx, lg)); err != nil {
		lg.Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "refittctl",
		Short:         "Administer the REFITT API",
		Long:          "Configuration is read like the server does: REFITT_* environment variables and config.yaml.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCommand(),
		newClientCommand(),
		newTokenCommand(),
	)
	return root
}

// session holds what a command needs to talk to the database.
type session struct {
	cfg  *app.Config
	pool *pgxpool.Pool
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := app.LoadCLIConfig()
	if err != nil {
		return nil, err
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, pool: pool}, nil
}

func (s *session) Close() {
	s.pool.Close()
}

// auth returns the credential service. A zero lifetime uses the configured
// token lifetime.
func (s *session) auth(lifetime time.Duration) (*auth.Service, error) {
	codec, err := token.NewCodec([]byte(s.cfg.Token.Secret))
	if err != nil {
		return nil, errors.Wrap(err, "create token codec")
	}
	if lifetime == 0 {
		lifetime = s.cfg.Token.Lifetime
	}
	return auth.NewService(postgres.NewClientRepository(s.pool), codec, auth.Options{
		Lifetime: lifetime,
		Level:    s.cfg.Client.Level,
	}), nil
}

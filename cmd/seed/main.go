package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/alphabot-ai/inkpost/internal/config"
	"github.com/alphabot-ai/inkpost/internal/model"
	"github.com/alphabot-ai/inkpost/internal/observability"
	"github.com/alphabot-ai/inkpost/internal/sandbox"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "seed",
		Usage: "Fill an inkpost API with fake users, stories and images",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:3000/api", Usage: "API base URL"},
			&cli.IntFlag{Name: "users", Value: 5, Usage: "accounts to create"},
			&cli.IntFlag{Name: "stories", Value: 12, Usage: "stories to publish"},
			&cli.Int64Flag{Name: "seed", Usage: "random seed (0 picks one)"},
			&cli.StringFlag{Name: "admin", Value: "admin", Usage: "admin username used for bans"},
			&cli.StringFlag{Name: "admin-password", EnvVars: []string{"INKPOST_SANDBOX_ADMIN_PASSWORD"}, Usage: "admin password; bans are skipped without it"},
			&cli.IntFlag{Name: "ban", Value: 1, Usage: "users to ban"},
			&cli.BoolFlag{Name: "serve", Usage: "start a sandbox, seed it and keep serving"},
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:3000", Usage: "sandbox listen address with --serve"},
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Action: func(c *cli.Context) error {
			logger := observability.NewLogger(os.Stderr, c.String("log-level"), "text")
			opts := options{
				BaseURL:       c.String("url"),
				Users:         c.Int("users"),
				Stories:       c.Int("stories"),
				Seed:          c.Int64("seed"),
				Admin:         c.String("admin"),
				AdminPassword: c.String("admin-password"),
				Ban:           c.Int("ban"),
			}
			if c.Bool("serve") {
				return serve(c.Context, c.String("addr"), opts, logger)
			}
			sum, err := seed(c.Context, opts, logger)
			if err != nil {
				return err
			}
			sum.print(os.Stdout, opts.BaseURL)
			return nil
		},
	}
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// serve runs an in-process sandbox, seeds it, flags a few stories and keeps
// serving until interrupted.
func serve(ctx context.Context, addr string, opts options, logger *slog.Logger) error {
	cfg := config.Sandbox{
		Secret:        "seed-sandbox-secret",
		AdminUser:     opts.Admin,
		AdminPassword: opts.AdminPassword,
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = "Admin1234"
		opts.AdminPassword = cfg.AdminPassword
	}
	sb, err := sandbox.New(cfg, sandbox.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- sb.ListenAndServe(ctx, addr) }()

	opts.BaseURL = "http://" + addr + sandbox.APIPrefix
	sum, err := seed(ctx, opts, logger)
	if err != nil {
		cancel()
		<-errCh
		return err
	}
	for i, id := range sum.Stories {
		if i >= 2 {
			break
		}
		if err := sb.SetStoryStatus(id, model.StatusFlagged); err != nil {
			return err
		}
		sum.Flagged++
	}
	sum.print(os.Stdout, opts.BaseURL)
	logger.Info("sandbox seeded, press Ctrl+C to stop", slog.String("admin", cfg.AdminUser))
	return <-errCh
}

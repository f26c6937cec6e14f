package main

import (
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/alphabot-ai/inkpost/internal/sandbox"
)

func (e *env) serveSandbox(c *cli.Context) error {
	addr := e.cfg.Sandbox.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}
	srv, err := sandbox.New(e.cfg.Sandbox, sandbox.WithLogger(e.logger))
	if err != nil {
		return err
	}
	e.logger.Info("sandbox admin account", slog.String("username", e.cfg.Sandbox.AdminUser))
	return srv.ListenAndServe(c.Context, addr)
}

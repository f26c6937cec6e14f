package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/alphabot-ai/inkpost/internal/auth"
)

func (e *env) health(c *cli.Context) error {
	api, err := e.client(c.Context)
	if err != nil {
		return err
	}
	h, err := api.HealthCheck(c.Context)
	if err != nil {
		return errors.New(e.tr.Error(err))
	}
	return e.out.print(h, func(w io.Writer) {
		fmt.Fprintf(w, "%s  %s\n", h.Status, api.BaseURL())
		if h.Time != "" {
			fmt.Fprintf(w, "server time %s\n", h.Time)
		}
	}, nil)
}

func (e *env) register(c *cli.Context) error {
	a, err := e.auth(c.Context)
	if err != nil {
		return err
	}
	form := auth.RegisterForm{
		Username: c.Args().First(),
		Password: c.String("password"),
		Confirm:  c.String("confirm"),
	}
	if !c.IsSet("confirm") {
		form.Confirm = form.Password
	}
	return a.Register(c.Context, form)
}

func (e *env) login(c *cli.Context) error {
	a, err := e.auth(c.Context)
	if err != nil {
		return err
	}
	if err := a.Login(c.Context, c.Args().First(), c.String("password")); err != nil {
		return err
	}
	return e.printSession(a.View())
}

func (e *env) logout(c *cli.Context) error {
	a, err := e.auth(c.Context)
	if err != nil {
		return err
	}
	_, err = a.Logout(c.Context)
	return err
}

func (e *env) whoami(c *cli.Context) error {
	a, err := e.auth(c.Context)
	if err != nil {
		return err
	}
	return e.printSession(a.View())
}

type sessionInfo struct {
	auth.View `yaml:",inline"`
	BaseURL   string     `json:"baseUrl"`
	Backend   string     `json:"backend"`
	Expires   *time.Time `json:"expires,omitempty"`
}

func (e *env) printSession(v auth.View) error {
	info := sessionInfo{View: v, BaseURL: e.cfg.BaseURL, Backend: e.cfg.Session.Backend}
	if claims, ok := e.store.Claims(); ok && v.LoggedIn && !claims.ExpiresAt.IsZero() {
		exp := claims.ExpiresAt
		info.Expires = &exp
	}
	return e.out.print(info, func(w io.Writer) {
		if !v.LoggedIn {
			fmt.Fprintf(w, "anonymous  %s\n", info.BaseURL)
			return
		}
		fmt.Fprintf(w, "%s (%s)  %s\n", v.Username, v.Role, info.BaseURL)
		if info.Expires != nil {
			fmt.Fprintf(w, "session expires %s\n", humanize.Time(*info.Expires))
		}
	}, nil)
}

// Package auth reconciles the session on start-up and drives the login,
// registration and logout flows.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/alphabot-ai/inkpost/internal/client"
	"github.com/alphabot-ai/inkpost/internal/i18n"
	"github.com/alphabot-ai/inkpost/internal/model"
	"github.com/alphabot-ai/inkpost/internal/notify"
	"github.com/alphabot-ai/inkpost/internal/observability"
	"github.com/alphabot-ai/inkpost/internal/session"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 8
)

// API is the part of the API client the controller needs.
type API interface {
	Register(ctx context.Context, username, password string) (model.User, error)
	Login(ctx context.Context, username, password string) (string, error)
}

type Form string

const (
	FormLogin    Form = "login"
	FormRegister Form = "register"
)

// FormError is shown next to the form that produced it.
type FormError struct {
	Form    Form
	Message string
	Err     error
}

func (e *FormError) Error() string { return e.Message }

func (e *FormError) Unwrap() error { return e.Err }

// View is the state of the authentication bar.
type View struct {
	LoggedIn      bool   `json:"loggedIn"`
	Username      string `json:"username,omitempty"`
	Role          string `json:"role,omitempty"`
	ShowAdminLink bool   `json:"showAdminLink"`
}

type RegisterForm struct {
	Username string
	Password string
	Confirm  string
}

type Controller struct {
	api      API
	session  *session.Store
	notifier notify.Notifier
	tr       *i18n.Translator
	logger   *slog.Logger

	mu        sync.Mutex
	view      View
	listeners []func(context.Context)
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func New(api API, st *session.Store, n notify.Notifier, tr *i18n.Translator, opts ...Option) *Controller {
	c := &Controller{api: api, session: st, notifier: n, tr: tr, logger: observability.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnLogin registers fn to run after every successful login.
func (c *Controller) OnLogin(fn func(context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Init clears an absent, undecodable or expired token and returns the view
// for the resulting state.
func (c *Controller) Init(ctx context.Context) (View, error) {
	if !c.session.IsAuthenticated() && c.session.HasToken() {
		if err := c.session.Clear(ctx); err != nil {
			return View{}, err
		}
		c.logger.InfoContext(ctx, "stale session cleared")
	}
	return c.refresh(), nil
}

func (c *Controller) refresh() View {
	v := View{}
	if claims, ok := c.session.Claims(); ok && c.session.IsAuthenticated() {
		v = View{
			LoggedIn:      true,
			Username:      claims.Username,
			Role:          claims.Role,
			ShowAdminLink: claims.IsAdmin(),
		}
	}
	c.mu.Lock()
	c.view = v
	c.mu.Unlock()
	return v
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Controller) IsAuthenticated() bool {
	return c.session.IsAuthenticated()
}

func (c *Controller) IsAdmin() bool {
	claims, ok := c.session.Claims()
	return ok && c.session.IsAuthenticated() && claims.IsAdmin()
}

// Login validates the form, authenticates and notifies listeners.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return &FormError{Form: FormLogin, Message: c.tr.Sprintf(i18n.MsgFillAllFields)}
	}
	if _, err := c.api.Login(ctx, username, password); err != nil {
		c.logger.InfoContext(ctx, "login failed", slog.String("username", username), slog.String("error", err.Error()))
		return &FormError{Form: FormLogin, Message: c.failureMessage(err, FormLogin), Err: err}
	}

	c.refresh()
	c.notifier.Notify(c.tr.Sprintf(i18n.MsgWelcome, username), notify.Success)

	c.mu.Lock()
	listeners := append(([]func(context.Context))(nil), c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(ctx)
	}
	return nil
}

// ValidateRegistration reports the first rule f breaks, or nil.
func (c *Controller) ValidateRegistration(f RegisterForm) *FormError {
	msg := ""
	username := strings.TrimSpace(f.Username)
	switch {
	case username == "" || f.Password == "" || f.Confirm == "":
		msg = c.tr.Sprintf(i18n.MsgFillAllFields)
	case utf8.RuneCountInString(username) < MinUsernameLength:
		msg = c.tr.Sprintf(i18n.MsgUsernameTooShort, MinUsernameLength)
	case utf8.RuneCountInString(f.Password) < MinPasswordLength:
		msg = c.tr.Sprintf(i18n.MsgPasswordTooShort, MinPasswordLength)
	case f.Password != f.Confirm:
		msg = c.tr.Sprintf(i18n.MsgPasswordMismatch)
	case !complexEnough(f.Password):
		msg = c.tr.Sprintf(i18n.MsgPasswordComplexity)
	default:
		return nil
	}
	return &FormError{Form: FormRegister, Message: msg}
}

// complexEnough requires an ASCII lowercase letter, uppercase letter and digit.
func complexEnough(password string) bool {
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return lower && upper && digit
}

// Register creates the account. The caller moves on to the login form.
func (c *Controller) Register(ctx context.Context, f RegisterForm) error {
	if fe := c.ValidateRegistration(f); fe != nil {
		return fe
	}
	username := strings.TrimSpace(f.Username)
	if _, err := c.api.Register(ctx, username, f.Password); err != nil {
		return &FormError{Form: FormRegister, Message: c.failureMessage(err, FormRegister), Err: err}
	}
	c.notifier.Notify(c.tr.Sprintf(i18n.MsgRegistered), notify.Success)
	return nil
}

func (c *Controller) Logout(ctx context.Context) (View, error) {
	if err := c.session.Clear(ctx); err != nil {
		return View{}, err
	}
	v := c.refresh()
	c.notifier.Notify(c.tr.Sprintf(i18n.MsgLoggedOut), notify.Info)
	return v, nil
}

func (c *Controller) failureMessage(err error, form Form) string {
	if !client.IsKind(err, client.KindAPI) {
		return c.tr.Error(err)
	}
	switch client.StatusOf(err) {
	case http.StatusUnauthorized:
		return c.tr.Sprintf(i18n.MsgBadCredentials)
	case http.StatusBadRequest:
		return c.tr.Sprintf(i18n.MsgInvalidInput)
	case http.StatusConflict:
		if form == FormRegister {
			return c.tr.Sprintf(i18n.MsgUsernameTaken)
		}
	case http.StatusInternalServerError:
		return c.tr.Sprintf(i18n.MsgServerError)
	}
	return c.tr.Error(err)
}

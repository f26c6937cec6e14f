package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alphabot-ai/inkpost/internal/model"
)

var errNoToken = errors.New("login response carried no token")

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, username, password string) (model.User, error) {
	raw, err := c.Request(ctx, http.MethodPost, "/register", credentials{username, password})
	if err != nil {
		return model.User{}, err
	}
	user, err := decodeEnvelope[model.User](raw, "user")
	if err != nil {
		return model.User{}, err
	}
	if user.Username == "" {
		user.Username = username
	}
	return user, nil
}

// Login exchanges credentials for a token and stores it in the session.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	raw, err := c.Request(ctx, http.MethodPost, "/login", credentials{username, password})
	if err != nil {
		return "", err
	}
	var body struct {
		Token string `json:"token"`
	}
	if raw == nil {
		return "", decodeError(errNoToken)
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", decodeError(err)
	}
	if body.Token == "" {
		return "", decodeError(errNoToken)
	}
	if err := c.session.SetToken(ctx, body.Token); err != nil {
		return "", err
	}
	return body.Token, nil
}

// Logout clears the session. It makes no network call.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Clear(ctx)
}

// IsAuthenticated reports whether a token is held. Expiry is not checked.
func (c *Client) IsAuthenticated() bool {
	return c.session.HasToken()
}

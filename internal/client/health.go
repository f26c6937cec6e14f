package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/alphabot-ai/inkpost/internal/model"
)

// HealthCheck pings the server. Any failure carries the connectivity message;
// Kind and Status still tell transport and API failures apart.
func (c *Client) HealthCheck(ctx context.Context) (model.Health, error) {
	raw, err := c.Request(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			return model.Health{}, &Error{Kind: ce.Kind, Status: ce.Status, Message: MsgConnectivity, Err: ce}
		}
		return model.Health{}, err
	}
	return decodeEnvelope[model.Health](raw, "")
}

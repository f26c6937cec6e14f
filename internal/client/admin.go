package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/alphabot-ai/inkpost/internal/model"
)

// StatusAll disables the status filter of GetAdminStories.
const StatusAll = "all"

func (c *Client) GetAdminStories(ctx context.Context, page, limit int, status string) (model.Page[model.Story], error) {
	if err := c.requireSession(ctx); err != nil {
		return model.Page[model.Story]{}, err
	}
	q := listQuery(page, limit, DefaultAdminLimit)
	if status != "" && status != StatusAll {
		q.Set("status", status)
	}
	return c.listStories(ctx, "/admin/stories", q)
}

// DeleteStory removes any story.
func (c *Client) DeleteStory(ctx context.Context, id string) error {
	if err := c.requireSession(ctx); err != nil {
		return err
	}
	_, err := c.Request(ctx, http.MethodDelete, "/admin/stories/"+url.PathEscape(id), nil)
	return err
}

func (c *Client) BanUser(ctx context.Context, username, reason string) error {
	if err := c.requireSession(ctx); err != nil {
		return err
	}
	body := struct {
		Reason string `json:"reason"`
	}{reason}
	_, err := c.Request(ctx, http.MethodPost, "/admin/users/"+url.PathEscape(username)+"/ban", body)
	return err
}

func (c *Client) UnbanUser(ctx context.Context, username string) error {
	if err := c.requireSession(ctx); err != nil {
		return err
	}
	_, err := c.Request(ctx, http.MethodPost, "/admin/users/"+url.PathEscape(username)+"/unban", nil)
	return err
}

func (c *Client) ChangeUserRole(ctx context.Context, username, role string) error {
	if err := c.requireSession(ctx); err != nil {
		return err
	}
	body := struct {
		Role string `json:"role"`
	}{role}
	_, err := c.Request(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(username)+"/role", body)
	return err
}

func (c *Client) GetAdminStats(ctx context.Context) (model.AdminStats, error) {
	if err := c.requireSession(ctx); err != nil {
		return model.AdminStats{}, err
	}
	raw, err := c.Request(ctx, http.MethodGet, "/admin/stats", nil)
	if err != nil {
		return model.AdminStats{}, err
	}
	return decodeEnvelope[model.AdminStats](raw, "stats")
}

type userList struct {
	Users      []model.User     `json:"users"`
	Pagination model.Pagination `json:"pagination"`
}

func (c *Client) GetAdminUsers(ctx context.Context, page, limit int) (model.Page[model.User], error) {
	if err := c.requireSession(ctx); err != nil {
		return model.Page[model.User]{}, err
	}
	q := listQuery(page, limit, DefaultAdminLimit)
	raw, err := c.Request(ctx, http.MethodGet, "/admin/users?"+q.Encode(), nil)
	if err != nil {
		return model.Page[model.User]{}, err
	}
	list, err := decodeEnvelope[userList](raw, "")
	if err != nil {
		return model.Page[model.User]{}, err
	}
	if list.Users == nil {
		list.Users = []model.User{}
	}
	return model.Page[model.User]{Items: list.Users, Pagination: list.Pagination}, nil
}

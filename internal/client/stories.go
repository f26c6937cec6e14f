package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/alphabot-ai/inkpost/internal/model"
)

const (
	DefaultStoriesLimit = 10
	DefaultAdminLimit   = 20
)

type storyList struct {
	Stories    []model.Story    `json:"stories"`
	Pagination model.Pagination `json:"pagination"`
}

func (l storyList) page() model.Page[model.Story] {
	if l.Stories == nil {
		l.Stories = []model.Story{}
	}
	return model.Page[model.Story]{Items: l.Stories, Pagination: l.Pagination}
}

func (c *Client) listStories(ctx context.Context, path string, q url.Values) (model.Page[model.Story], error) {
	raw, err := c.Request(ctx, http.MethodGet, path+"?"+q.Encode(), nil)
	if err != nil {
		return model.Page[model.Story]{}, err
	}
	list, err := decodeEnvelope[storyList](raw, "")
	if err != nil {
		return model.Page[model.Story]{}, err
	}
	return list.page(), nil
}

func (c *Client) getStory(ctx context.Context, path string) (model.Story, error) {
	raw, err := c.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return model.Story{}, err
	}
	return decodeEnvelope[model.Story](raw, "story")
}

// GetStories lists public stories.
func (c *Client) GetStories(ctx context.Context, page, limit int) (model.Page[model.Story], error) {
	return c.listStories(ctx, "/stories", listQuery(page, limit, DefaultStoriesLimit))
}

// GetStory fetches one public story.
func (c *Client) GetStory(ctx context.Context, id string) (model.Story, error) {
	return c.getStory(ctx, "/stories/"+url.PathEscape(id))
}

func (c *Client) CreateStory(ctx context.Context, in model.StoryInput) (model.Story, error) {
	if err := c.requireSession(ctx); err != nil {
		return model.Story{}, err
	}
	if in.Images == nil {
		in.Images = []string{}
	}
	raw, err := c.Request(ctx, http.MethodPost, "/stories", in)
	if err != nil {
		return model.Story{}, err
	}
	return decodeEnvelope[model.Story](raw, "story")
}

func (c *Client) GetMyStories(ctx context.Context, page, limit int) (model.Page[model.Story], error) {
	if err := c.requireSession(ctx); err != nil {
		return model.Page[model.Story]{}, err
	}
	return c.listStories(ctx, "/my-stories", listQuery(page, limit, DefaultStoriesLimit))
}

func (c *Client) GetMyStory(ctx context.Context, id string) (model.Story, error) {
	if err := c.requireSession(ctx); err != nil {
		return model.Story{}, err
	}
	return c.getStory(ctx, "/my-stories/"+url.PathEscape(id))
}

func (c *Client) UpdateStory(ctx context.Context, id string, in model.StoryInput) (model.Story, error) {
	if err := c.requireSession(ctx); err != nil {
		return model.Story{}, err
	}
	if in.Images == nil {
		in.Images = []string{}
	}
	raw, err := c.Request(ctx, http.MethodPut, "/my-stories/"+url.PathEscape(id), in)
	if err != nil {
		return model.Story{}, err
	}
	return decodeEnvelope[model.Story](raw, "story")
}

func (c *Client) DeleteMyStory(ctx context.Context, id string) error {
	if err := c.requireSession(ctx); err != nil {
		return err
	}
	_, err := c.Request(ctx, http.MethodDelete, "/my-stories/"+url.PathEscape(id), nil)
	return err
}

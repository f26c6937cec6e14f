package viewer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/inkpost/internal/client"
	"github.com/alphabot-ai/inkpost/internal/i18n"
	"github.com/alphabot-ai/inkpost/internal/model"
)

type stubAPI map[string]model.Story

func (s stubAPI) GetStory(ctx context.Context, id string) (model.Story, error) {
	story, ok := s[id]
	if !ok {
		return model.Story{}, &client.Error{Kind: client.KindAPI, Status: 404, Message: "Not found"}
	}
	return story, nil
}

type failingAPI struct{ err error }

func (f failingAPI) GetStory(context.Context, string) (model.Story, error) {
	return model.Story{}, f.err
}

func TestParagraphs(t *testing.T) {
	cases := map[string][]string{
		"":                       {},
		"one":                    {"one"},
		"  a  \n\n b ":           {"a", "b"},
		"a\n\n\n\n\nb":           {"a", "b"},
		"line one\nline two":     {"line one\nline two"},
		"a\r\n\r\nb":             {"a", "b"},
		"\n\n   \n\nlast\n\n  ": {"last"},
	}
	for in, want := range cases {
		assert.Equal(t, want, Paragraphs(in), "content %q", in)
	}
}

func TestLoadBuildsView(t *testing.T) {
	featured := "https://cdn/f.png"
	api := stubAPI{"s1": {
		ID:            "s1",
		Title:         "Trip",
		Username:      "ann",
		Content:       "Day one.\n\nDay two.",
		CreatedAt:     time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		FeaturedImage: &featured,
		Images:        []string{"https://cdn/a.png", "", "https://cdn/b.png"},
	}}
	c := New(api, i18n.New("en"))

	require.NoError(t, c.Load(context.Background(), "s1"))
	v := c.View()
	assert.True(t, v.Loaded)
	assert.Equal(t, "Trip", v.Title)
	assert.Equal(t, "ann", v.Author)
	assert.Equal(t, "March 5, 2024", v.Date)
	assert.Equal(t, []string{"Day one.", "Day two."}, v.Paragraphs)
	assert.Equal(t, featured, v.FeaturedImage)
	assert.Equal(t, []string{"https://cdn/a.png", "https://cdn/b.png"}, v.Gallery)
	assert.Equal(t, "2 images", v.ImageLabel)
	assert.Nil(t, v.Slide)
}

func TestLoadSpanishDate(t *testing.T) {
	api := stubAPI{"s1": {ID: "s1", Title: "T", Content: "c", CreatedAt: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), Images: []string{"x"}}}
	c := New(api, i18n.New("es"))
	require.NoError(t, c.Load(context.Background(), "s1"))
	v := c.View()
	assert.Equal(t, "5 de marzo de 2024", v.Date)
	assert.Equal(t, "1 imagen", v.ImageLabel)
	assert.Equal(t, "Desconocido", v.Author)
}

func TestLoadNotFound(t *testing.T) {
	c := New(stubAPI{}, i18n.New("en"))
	err := c.Load(context.Background(), "missing")
	require.Error(t, err)
	v := c.View()
	assert.False(t, v.Loaded)
	assert.Equal(t, i18n.MsgStoryNotFound, v.Error)
}

func TestLoadOtherFailure(t *testing.T) {
	c := New(failingAPI{err: &client.Error{Kind: client.KindTransport, Message: client.MsgConnectivity}}, i18n.New("en"))
	require.Error(t, c.Load(context.Background(), "x"))
	assert.Equal(t, "Could not load the story: "+i18n.MsgConnectivity, c.View().Error)
}

func TestGalleryNavigation(t *testing.T) {
	api := stubAPI{"s1": {ID: "s1", Title: "T", Content: "c", Images: []string{"a", "b", "c"}}}
	c := New(api, i18n.New("en"))
	assert.ErrorIs(t, c.OpenImage(0), ErrNoStory)
	require.NoError(t, c.Load(context.Background(), "s1"))

	assert.Error(t, c.OpenImage(3))
	require.NoError(t, c.OpenImage(0))
	s := c.View().Slide
	require.NotNil(t, s)
	assert.Equal(t, Slide{URL: "a", Alt: "Image 1", Counter: "1 of 3", HasPrev: false, HasNext: true}, *s)

	c.PrevImage()
	assert.Equal(t, "a", c.View().Slide.URL)

	c.NextImage()
	c.NextImage()
	c.NextImage()
	s = c.View().Slide
	assert.Equal(t, "c", s.URL)
	assert.Equal(t, "3 of 3", s.Counter)
	assert.False(t, s.HasNext)

	c.CloseImage()
	assert.Nil(t, c.View().Slide)
}

// Package viewer shows a single public story with its image gallery.
package viewer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/alphabot-ai/inkpost/internal/client"
	"github.com/alphabot-ai/inkpost/internal/i18n"
	"github.com/alphabot-ai/inkpost/internal/model"
	"github.com/alphabot-ai/inkpost/internal/observability"
)

var ErrNoStory = errors.New("viewer: no story loaded")

type API interface {
	GetStory(ctx context.Context, id string) (model.Story, error)
}

// Slide is the gallery image currently open.
type Slide struct {
	URL     string `json:"url"`
	Alt     string `json:"alt"`
	Counter string `json:"counter"`
	HasPrev bool   `json:"hasPrev"`
	HasNext bool   `json:"hasNext"`
}

type View struct {
	Loaded        bool     `json:"loaded"`
	ID            string   `json:"id,omitempty"`
	Title         string   `json:"title,omitempty"`
	Author        string   `json:"author,omitempty"`
	Date          string   `json:"date,omitempty"`
	Paragraphs    []string `json:"paragraphs"`
	FeaturedImage string   `json:"featuredImage,omitempty"`
	Gallery       []string `json:"gallery"`
	ImageLabel    string   `json:"imageLabel,omitempty"`
	Slide         *Slide   `json:"slide,omitempty"`
	Error         string   `json:"error,omitempty"`
}

type Controller struct {
	api    API
	tr     *i18n.Translator
	logger *slog.Logger

	mu    sync.Mutex
	gen   uint64
	story *model.Story
	err   string
	slide int
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func New(api API, tr *i18n.Translator, opts ...Option) *Controller {
	c := &Controller{api: api, tr: tr, logger: observability.Discard(), slide: -1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load fetches the story. A 404 becomes the "story not found" message.
func (c *Controller) Load(ctx context.Context, id string) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	story, err := c.api.GetStory(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	c.slide = -1
	if err != nil {
		c.story = nil
		if client.StatusOf(err) == http.StatusNotFound {
			c.err = c.tr.Sprintf(i18n.MsgStoryNotFound)
		} else {
			c.err = c.tr.Sprintf(i18n.MsgLoadStoryFailed, c.tr.Error(err))
		}
		c.logger.DebugContext(ctx, "story load failed", slog.String("id", id), slog.String("error", err.Error()))
		return err
	}
	c.story = &story
	c.err = ""
	return nil
}

// OpenImage opens the gallery at index i.
func (c *Controller) OpenImage(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.story == nil {
		return ErrNoStory
	}
	if i < 0 || i >= len(gallery(c.story)) {
		return errors.New("viewer: image index out of range")
	}
	c.slide = i
	return nil
}

func (c *Controller) CloseImage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slide = -1
}

// NextImage and PrevImage stop at the ends of the gallery.
func (c *Controller) NextImage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.story != nil && c.slide >= 0 && c.slide < len(gallery(c.story))-1 {
		c.slide++
	}
}

func (c *Controller) PrevImage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slide > 0 {
		c.slide--
	}
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{Error: c.err, Paragraphs: []string{}, Gallery: []string{}}
	if c.story == nil {
		return v
	}
	s := c.story
	v.Loaded = true
	v.ID = s.ID
	v.Title = s.Title
	v.Author = s.Username
	if v.Author == "" {
		v.Author = c.tr.Sprintf(i18n.MsgUnknownAuthor)
	}
	if !s.CreatedAt.IsZero() {
		v.Date = c.tr.LongDate(s.CreatedAt)
	}
	v.Paragraphs = Paragraphs(s.Content)
	if s.FeaturedImage != nil {
		v.FeaturedImage = *s.FeaturedImage
	}
	v.Gallery = gallery(s)
	if len(v.Gallery) > 0 {
		v.ImageLabel = c.tr.Sprintf(i18n.MsgImageCount, len(v.Gallery))
	}
	if c.slide >= 0 && c.slide < len(v.Gallery) {
		v.Slide = &Slide{
			URL:     v.Gallery[c.slide],
			Alt:     c.tr.Sprintf(i18n.MsgImageAlt, c.slide+1),
			Counter: c.tr.Sprintf(i18n.MsgImageCounter, c.slide+1, len(v.Gallery)),
			HasPrev: c.slide > 0,
			HasNext: c.slide < len(v.Gallery)-1,
		}
	}
	return v
}

func gallery(s *model.Story) []string {
	out := make([]string, 0, len(s.Images))
	for _, u := range s.Images {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Paragraphs splits content on blank lines, trimming each paragraph and
// dropping empty ones.
func Paragraphs(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	out := []string{}
	for _, p := range strings.Split(content, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

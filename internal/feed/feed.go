// Package feed is the public story listing: one page of stories from the
// API, narrowed and reordered locally by search, author and sort order.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alphabot-ai/inkpost/internal/i18n"
	"github.com/alphabot-ai/inkpost/internal/model"
	"github.com/alphabot-ai/inkpost/internal/observability"
)

const (
	PageSize      = 6
	ExcerptLength = 300
	CardImages    = 3
)

type Sort string

const (
	SortNewest Sort = "newest"
	SortOldest Sort = "oldest"
	SortTitle  Sort = "title"
)

// ParseSort accepts newest, oldest and title.
func ParseSort(s string) (Sort, error) {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case SortNewest, "":
		return SortNewest, nil
	case SortOldest:
		return SortOldest, nil
	case SortTitle:
		return SortTitle, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

type API interface {
	GetStories(ctx context.Context, page, limit int) (model.Page[model.Story], error)
}

// EmptyAction is the call to action shown when there is nothing to list.
type EmptyAction string

const (
	ActionClearFilters EmptyAction = "clear-filters"
	ActionWrite        EmptyAction = "write"
	ActionLogin        EmptyAction = "login"
)

type Card struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Excerpt       string   `json:"excerpt"`
	Author        string   `json:"author"`
	Date          string   `json:"date"`
	Age           string   `json:"age"`
	Images        []string `json:"images,omitempty"`
	MoreImages    int      `json:"moreImages,omitempty"`
	FeaturedImage string   `json:"featuredImage,omitempty"`
	ImageCount    int      `json:"imageCount"`
	ImageLabel    string   `json:"imageLabel,omitempty"`
}

type View struct {
	Cards          []Card      `json:"cards"`
	Authors        []string    `json:"authors"`
	Search         string      `json:"search,omitempty"`
	Author         string      `json:"author,omitempty"`
	Sort           Sort        `json:"sort"`
	Page           int         `json:"page"`
	Pages          int         `json:"pages"`
	Total          int         `json:"total"`
	ShowPagination bool        `json:"showPagination"`
	HasPrev        bool        `json:"hasPrev"`
	HasNext        bool        `json:"hasNext"`
	Filtered       bool        `json:"filtered"`
	ResultCount    int         `json:"resultCount"`
	ResultLabel    string      `json:"resultLabel,omitempty"`
	Empty          bool        `json:"empty"`
	EmptyMessage   string      `json:"emptyMessage,omitempty"`
	EmptyAction    EmptyAction `json:"emptyAction,omitempty"`
	Error          string      `json:"error,omitempty"`
}

type Controller struct {
	api           API
	tr            *i18n.Translator
	logger        *slog.Logger
	now           func() time.Time
	authenticated func() bool

	mu      sync.Mutex
	gen     uint64
	stories []model.Story
	page    int
	pages   int
	total   int
	search  string
	author  string
	sort    Sort
	err     string
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithAuth tells the empty state whether to offer writing or logging in.
func WithAuth(authenticated func() bool) Option {
	return func(c *Controller) { c.authenticated = authenticated }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func New(api API, tr *i18n.Translator, opts ...Option) *Controller {
	c := &Controller{
		api:           api,
		tr:            tr,
		logger:        observability.Discard(),
		now:           time.Now,
		authenticated: func() bool { return false },
		page:          1,
		pages:         1,
		sort:          SortNewest,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load fetches page. A response that arrives after a newer Load started is
// dropped.
func (c *Controller) Load(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	res, err := c.api.GetStories(ctx, page, PageSize)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.logger.DebugContext(ctx, "stale feed response dropped", slog.Int("page", page))
		return nil
	}
	if err != nil {
		c.err = c.tr.Sprintf(i18n.MsgLoadStoriesFailed, c.tr.Error(err))
		return err
	}
	c.err = ""
	c.stories = res.Items
	c.page = res.Pagination.Page
	if c.page < 1 {
		c.page = page
	}
	c.pages = res.Pagination.Pages
	c.total = res.Pagination.Total
	return nil
}

func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	page := c.page
	c.mu.Unlock()
	return c.Load(ctx, page)
}

// NextPage is a no-op on the last page.
func (c *Controller) NextPage(ctx context.Context) error {
	c.mu.Lock()
	page, pages := c.page, c.pages
	c.mu.Unlock()
	if page >= pages {
		return nil
	}
	return c.Load(ctx, page+1)
}

func (c *Controller) PrevPage(ctx context.Context) error {
	c.mu.Lock()
	page := c.page
	c.mu.Unlock()
	if page <= 1 {
		return nil
	}
	return c.Load(ctx, page-1)
}

func (c *Controller) SetSearch(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = strings.TrimSpace(term)
}

func (c *Controller) SetAuthor(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.author = name
}

func (c *Controller) SetSort(s Sort) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sort = s
}

func (c *Controller) ClearFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = ""
	c.author = ""
	c.sort = SortNewest
}

func (c *Controller) View() View {
	c.mu.Lock()
	stories := append([]model.Story(nil), c.stories...)
	v := View{
		Search: c.search,
		Author: c.author,
		Sort:   c.sort,
		Page:   c.page,
		Pages:  c.pages,
		Total:  c.total,
		Error:  c.err,
	}
	c.mu.Unlock()

	v.Authors = authors(stories)
	v.Filtered = v.Search != "" || v.Author != ""
	filtered := filter(stories, v.Search, v.Author)
	c.sortStories(filtered, v.Sort)

	v.Cards = make([]Card, 0, len(filtered))
	for _, s := range filtered {
		v.Cards = append(v.Cards, c.card(s))
	}
	v.ShowPagination = !v.Filtered && v.Pages > 1
	v.HasPrev = v.Page > 1
	v.HasNext = v.Page < v.Pages
	if v.Filtered {
		v.ResultCount = len(v.Cards)
		v.ResultLabel = c.tr.Sprintf(i18n.MsgStoriesFound, v.ResultCount)
	}
	if len(v.Cards) == 0 && v.Error == "" {
		v.Empty = true
		switch {
		case v.Filtered:
			v.EmptyMessage = c.tr.Sprintf(i18n.MsgNoMatches)
			v.EmptyAction = ActionClearFilters
		case c.authenticated():
			v.EmptyMessage = c.tr.Sprintf(i18n.MsgNoStories)
			v.EmptyAction = ActionWrite
		default:
			v.EmptyMessage = c.tr.Sprintf(i18n.MsgNoStories)
			v.EmptyAction = ActionLogin
		}
	}
	return v
}

func filter(stories []model.Story, search, author string) []model.Story {
	needle := strings.ToLower(search)
	out := stories[:0:0]
	for _, s := range stories {
		if needle != "" &&
			!strings.Contains(strings.ToLower(s.Title), needle) &&
			!strings.Contains(strings.ToLower(s.Content), needle) &&
			!strings.Contains(strings.ToLower(s.Username), needle) {
			continue
		}
		if author != "" && s.Username != author {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (c *Controller) sortStories(stories []model.Story, by Sort) {
	switch by {
	case SortOldest:
		sort.SliceStable(stories, func(i, j int) bool { return stories[i].CreatedAt.Before(stories[j].CreatedAt) })
	case SortTitle:
		sort.SliceStable(stories, func(i, j int) bool { return c.tr.Compare(stories[i].Title, stories[j].Title) < 0 })
	default:
		sort.SliceStable(stories, func(i, j int) bool { return stories[i].CreatedAt.After(stories[j].CreatedAt) })
	}
}

func authors(stories []model.Story) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, s := range stories {
		if s.Username != "" && !seen[s.Username] {
			seen[s.Username] = true
			out = append(out, s.Username)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Controller) card(s model.Story) Card {
	card := Card{
		ID:         s.ID,
		Title:      s.Title,
		Excerpt:    Excerpt(s.Content, ExcerptLength),
		Author:     s.Username,
		ImageCount: len(s.Images),
	}
	if !s.CreatedAt.IsZero() {
		card.Date = c.tr.LongDate(s.CreatedAt)
		card.Age = c.tr.RelTime(s.CreatedAt, c.now())
	}
	switch {
	case len(s.Images) > 0:
		n := min(len(s.Images), CardImages)
		card.Images = append([]string(nil), s.Images[:n]...)
		card.MoreImages = len(s.Images) - n
		card.ImageLabel = c.tr.Sprintf(i18n.MsgImageCount, len(s.Images))
	case s.FeaturedImage != nil:
		card.FeaturedImage = *s.FeaturedImage
	}
	return card
}

// Excerpt cuts text to n runes and marks the cut with "...".
func Excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// Package admin is the moderation console: platform statistics, the story
// list with status filter, user bans and role changes.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alphabot-ai/inkpost/internal/feed"
	"github.com/alphabot-ai/inkpost/internal/i18n"
	"github.com/alphabot-ai/inkpost/internal/model"
	"github.com/alphabot-ai/inkpost/internal/notify"
	"github.com/alphabot-ai/inkpost/internal/observability"
	"github.com/alphabot-ai/inkpost/internal/session"
)

const (
	PageSize      = 20
	ExcerptLength = 50

	StatusAll = "all"
)

var (
	ErrAccessDenied = errors.New("admin: access denied")
	ErrNoReason     = errors.New("admin: ban reason required")
	ErrInvalidRole  = errors.New("admin: invalid role")
)

type API interface {
	GetAdminStats(ctx context.Context) (model.AdminStats, error)
	GetAdminStories(ctx context.Context, page, limit int, status string) (model.Page[model.Story], error)
	GetAdminUsers(ctx context.Context, page, limit int) (model.Page[model.User], error)
	DeleteStory(ctx context.Context, id string) error
	BanUser(ctx context.Context, username, reason string) error
	UnbanUser(ctx context.Context, username string) error
	ChangeUserRole(ctx context.Context, username, role string) error
}

type Stats struct {
	TotalStories   int `json:"totalStories"`
	TotalUsers     int `json:"totalUsers"`
	FlaggedStories int `json:"flaggedStories"`
	BannedUsers    int `json:"bannedUsers"`
}

type StoryRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Excerpt     string `json:"excerpt"`
	Author      string `json:"author"`
	Status      string `json:"status"`
	StatusLabel string `json:"statusLabel"`
	Date        string `json:"date,omitempty"`
}

type UserRow struct {
	Username    string `json:"username"`
	Role        string `json:"role"`
	RoleLabel   string `json:"roleLabel"`
	Banned      bool   `json:"banned"`
	StatusLabel string `json:"statusLabel"`
	LastLogin   string `json:"lastLogin,omitempty"`
}

type Moderation struct {
	Flagged      []StoryRow `json:"flagged"`
	FlaggedEmpty string     `json:"flaggedEmpty,omitempty"`
	Banned       []UserRow  `json:"banned"`
	BannedEmpty  string     `json:"bannedEmpty,omitempty"`
}

type View struct {
	Admin             string           `json:"admin"`
	Stats             Stats            `json:"stats"`
	StatsError        string           `json:"statsError,omitempty"`
	Status            string           `json:"status"`
	Stories           []StoryRow       `json:"stories"`
	StoriesPagination model.Pagination `json:"storiesPagination"`
	StoriesError      string           `json:"storiesError,omitempty"`
	Users             []UserRow        `json:"users"`
	UsersPagination   model.Pagination `json:"usersPagination"`
	UsersError        string           `json:"usersError,omitempty"`
	Moderation        Moderation       `json:"moderation"`
}

type Controller struct {
	api      API
	session  *session.Store
	notifier notify.Notifier
	tr       *i18n.Translator
	logger   *slog.Logger

	mu         sync.Mutex
	storiesGen uint64
	usersGen   uint64
	stats      model.AdminStats
	statsErr   string
	status     string
	stories    model.Page[model.Story]
	storiesErr string
	users      model.Page[model.User]
	usersErr   string
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func New(api API, st *session.Store, n notify.Notifier, tr *i18n.Translator, opts ...Option) *Controller {
	c := &Controller{
		api:      api,
		session:  st,
		notifier: n,
		tr:       tr,
		logger:   observability.Discard(),
		status:   StatusAll,
		stories:  model.Page[model.Story]{Pagination: model.Pagination{Page: 1}},
		users:    model.Page[model.User]{Pagination: model.Pagination{Page: 1}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckAccess returns the admin's username, or ErrAccessDenied when the
// session claims are missing, expired or not those of an administrator.
func (c *Controller) CheckAccess() (string, error) {
	claims, ok := c.session.Claims()
	if !ok || !claims.IsAdmin() || c.session.IsExpired() {
		c.notifier.Notify(c.tr.Sprintf(i18n.MsgAccessDenied), notify.Error)
		return "", ErrAccessDenied
	}
	return claims.Username, nil
}

func (c *Controller) LoadStats(ctx context.Context) error {
	stats, err := c.api.GetAdminStats(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.statsErr = c.tr.Sprintf(i18n.MsgLoadStatsFailed, c.tr.Error(err))
		c.logger.WarnContext(ctx, "admin stats failed", slog.String("error", err.Error()))
		return err
	}
	c.stats = stats
	c.statsErr = ""
	return nil
}

// LoadStories fetches one page of stories. An empty status means all.
func (c *Controller) LoadStories(ctx context.Context, page int, status string) error {
	if page < 1 {
		page = 1
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = StatusAll
	}
	c.mu.Lock()
	c.storiesGen++
	gen := c.storiesGen
	c.mu.Unlock()

	res, err := c.api.GetAdminStories(ctx, page, PageSize, status)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.storiesGen {
		return nil
	}
	c.status = status
	if err != nil {
		c.storiesErr = c.tr.Sprintf(i18n.MsgLoadStoriesFailed, c.tr.Error(err))
		return err
	}
	c.storiesErr = ""
	c.stories = res
	return nil
}

func (c *Controller) LoadUsers(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	c.usersGen++
	gen := c.usersGen
	c.mu.Unlock()

	res, err := c.api.GetAdminUsers(ctx, page, PageSize)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.usersGen {
		return nil
	}
	if err != nil {
		c.usersErr = c.tr.Sprintf(i18n.MsgLoadUsersFailed, c.tr.Error(err))
		return err
	}
	c.usersErr = ""
	c.users = res
	return nil
}

// Refresh reloads stats and the current story page concurrently. The panels
// load independently: one failing does not cancel the other.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	page, status := c.stories.Pagination.Page, c.status
	c.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error { return c.LoadStats(ctx) })
	g.Go(func() error { return c.LoadStories(ctx, page, status) })
	return g.Wait()
}

// DeleteStory removes a story and refreshes stats and the story list.
func (c *Controller) DeleteStory(ctx context.Context, id string) error {
	if err := c.api.DeleteStory(ctx, id); err != nil {
		c.notifier.Notify(c.tr.Error(err), notify.Error)
		return err
	}
	c.notifier.Notify(c.tr.Sprintf(i18n.MsgStoryRemoved), notify.Success)
	return c.Refresh(ctx)
}

func (c *Controller) BanUser(ctx context.Context, username, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		c.notifier.Notify(c.tr.Sprintf(i18n.MsgBanReasonRequired), notify.Error)
		return ErrNoReason
	}
	if err := c.api.BanUser(ctx, username, reason); err != nil {
		c.notifier.Notify(c.tr.Error(err), notify.Error)
		return err
	}
	c.notifier.Notify(c.tr.Sprintf(i18n.MsgUserBanned, username), notify.Success)
	return c.afterUserChange(ctx)
}

func (c *Controller) UnbanUser(ctx context.Context, username string) error {
	if err := c.api.UnbanUser(ctx, username); err != nil {
		c.notifier.Notify(c.tr.Error(err), notify.Error)
		return err
	}
	c.notifier.Notify(c.tr.Sprintf(i18n.MsgUserUnbanned, username), notify.Success)
	return c.afterUserChange(ctx)
}

func (c *Controller) ChangeUserRole(ctx context.Context, username, role string) error {
	if role != model.RoleUser && role != model.RoleAdmin {
		c.notifier.Notify(c.tr.Sprintf(i18n.MsgInvalidRole, role), notify.Error)
		return ErrInvalidRole
	}
	if err := c.api.ChangeUserRole(ctx, username, role); err != nil {
		c.notifier.Notify(c.tr.Error(err), notify.Error)
		return err
	}
	c.notifier.Notify(c.tr.Sprintf(i18n.MsgRoleChanged, username, c.roleLabel(role)), notify.Success)
	return c.afterUserChange(ctx)
}

func (c *Controller) afterUserChange(ctx context.Context) error {
	c.mu.Lock()
	page := c.users.Pagination.Page
	c.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error { return c.LoadStats(ctx) })
	g.Go(func() error { return c.LoadUsers(ctx, page) })
	return g.Wait()
}

func (c *Controller) StatusLabel(status string) string {
	switch status {
	case model.StatusActive:
		return c.tr.Sprintf(i18n.MsgStatusActive)
	case model.StatusFlagged:
		return c.tr.Sprintf(i18n.MsgStatusFlagged)
	case model.StatusDeleted:
		return c.tr.Sprintf(i18n.MsgStatusDeleted)
	}
	return status
}

func (c *Controller) roleLabel(role string) string {
	if role == model.RoleAdmin {
		return c.tr.Sprintf(i18n.MsgRoleAdmin)
	}
	return c.tr.Sprintf(i18n.MsgRoleUser)
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Stats: Stats{
			TotalStories:   c.stats.Stories.Total,
			TotalUsers:     c.stats.Users.Total,
			FlaggedStories: c.stats.Stories.Flagged,
			BannedUsers:    c.stats.Users.Banned,
		},
		StatsError:        c.statsErr,
		Status:            c.status,
		Stories:           make([]StoryRow, 0, len(c.stories.Items)),
		StoriesPagination: c.stories.Pagination,
		StoriesError:      c.storiesErr,
		Users:             make([]UserRow, 0, len(c.users.Items)),
		UsersPagination:   c.users.Pagination,
		UsersError:        c.usersErr,
		Moderation:        Moderation{Flagged: []StoryRow{}, Banned: []UserRow{}},
	}
	if claims, ok := c.session.Claims(); ok {
		v.Admin = claims.Username
	}
	for _, s := range c.stories.Items {
		row := c.storyRow(s)
		v.Stories = append(v.Stories, row)
		if s.Status == model.StatusFlagged {
			v.Moderation.Flagged = append(v.Moderation.Flagged, row)
		}
	}
	for _, u := range c.users.Items {
		row := c.userRow(u)
		v.Users = append(v.Users, row)
		if u.IsBanned {
			v.Moderation.Banned = append(v.Moderation.Banned, row)
		}
	}
	if len(v.Moderation.Flagged) == 0 {
		v.Moderation.FlaggedEmpty = c.tr.Sprintf(i18n.MsgNoFlaggedStories)
	}
	if len(v.Moderation.Banned) == 0 {
		v.Moderation.BannedEmpty = c.tr.Sprintf(i18n.MsgNoBannedUsers)
	}
	return v
}

func (c *Controller) storyRow(s model.Story) StoryRow {
	row := StoryRow{
		ID:          s.ID,
		Title:       s.Title,
		Excerpt:     feed.Excerpt(s.Content, ExcerptLength),
		Author:      s.Username,
		Status:      s.Status,
		StatusLabel: c.StatusLabel(s.Status),
	}
	if row.Author == "" {
		row.Author = c.tr.Sprintf(i18n.MsgUnknownAuthor)
	}
	if !s.CreatedAt.IsZero() {
		row.Date = c.tr.ShortDate(s.CreatedAt)
	}
	return row
}

func (c *Controller) userRow(u model.User) UserRow {
	row := UserRow{
		Username:    u.Username,
		Role:        u.Role,
		RoleLabel:   c.roleLabel(u.Role),
		Banned:      u.IsBanned,
		StatusLabel: c.tr.Sprintf(i18n.MsgStatusActive),
	}
	if u.IsBanned {
		row.StatusLabel = c.tr.Sprintf(i18n.MsgStatusBanned)
	}
	if u.LastLogin != nil {
		row.LastLogin = c.tr.ShortDate(*u.LastLogin)
	}
	return row
}

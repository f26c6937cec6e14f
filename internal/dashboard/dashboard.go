// Package dashboard is the signed-in author's workspace: their stories, the
// story editor with its image picker, and their uploaded images.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/alphabot-ai/inkpost/internal/client"
	"github.com/alphabot-ai/inkpost/internal/feed"
	"github.com/alphabot-ai/inkpost/internal/i18n"
	"github.com/alphabot-ai/inkpost/internal/model"
	"github.com/alphabot-ai/inkpost/internal/notify"
	"github.com/alphabot-ai/inkpost/internal/observability"
)

const (
	MaxImages     = 4
	PageSize      = 10
	ExcerptLength = 200
	CardImages    = 2
)

var (
	ErrNoImages      = errors.New("no image files selected")
	ErrMissingFields = errors.New("title and content are required")
)

type API interface {
	GetMyStories(ctx context.Context, page, limit int) (model.Page[model.Story], error)
	GetMyStory(ctx context.Context, id string) (model.Story, error)
	CreateStory(ctx context.Context, in model.StoryInput) (model.Story, error)
	UpdateStory(ctx context.Context, id string, in model.StoryInput) (model.Story, error)
	DeleteMyStory(ctx context.Context, id string) error
	UploadImage(ctx context.Context, f client.ImageFile) (model.Image, error)
	GetMyImages(ctx context.Context, page, limit int) (model.Page[model.Image], error)
	DeleteImage(ctx context.Context, publicID string) error
}

// Progress is called before each file of a batch is uploaded.
type Progress func(current, total int, name string)

type StoryRow struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Excerpt       string   `json:"excerpt"`
	Status        string   `json:"status,omitempty"`
	Date          string   `json:"date,omitempty"`
	Images        []string `json:"images,omitempty"`
	MoreImages    int      `json:"moreImages,omitempty"`
	ImageCount    int      `json:"imageCount"`
	ImageLabel    string   `json:"imageLabel,omitempty"`
	FeaturedImage string   `json:"featuredImage,omitempty"`
}

type ImageRow struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId,omitempty"`
	Name     string `json:"name"`
}

type Editor struct {
	StoryID   string     `json:"storyId,omitempty"`
	Editing   bool       `json:"editing"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Images    []ImageRow `json:"images"`
	SlotsLeft int        `json:"slotsLeft"`
	CanAdd    bool       `json:"canAdd"`
}

type View struct {
	Stories          []StoryRow       `json:"stories"`
	StoriesPage      model.Pagination `json:"storiesPagination"`
	StoriesEmpty     bool             `json:"storiesEmpty"`
	StoriesError     string           `json:"storiesError,omitempty"`
	Editor           Editor           `json:"editor"`
	Images           []ImageRow       `json:"images"`
	ImagesPagination model.Pagination `json:"imagesPagination"`
	ImagesError      string           `json:"imagesError,omitempty"`
}

type Controller struct {
	api      API
	notifier notify.Notifier
	tr       *i18n.Translator
	logger   *slog.Logger

	mu          sync.Mutex
	storiesGen  uint64
	imagesGen   uint64
	stories     model.Page[model.Story]
	storiesErr  string
	images      model.Page[model.Image]
	imagesErr   string
	editID      string
	title       string
	content     string
	selected    []model.Image
	storiesPage int
	imagesPage  int
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func New(api API, n notify.Notifier, tr *i18n.Translator, opts ...Option) *Controller {
	c := &Controller{api: api, notifier: n, tr: tr, logger: observability.Discard(), storiesPage: 1, imagesPage: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) LoadMyStories(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	c.storiesGen++
	gen := c.storiesGen
	c.mu.Unlock()

	res, err := c.api.GetMyStories(ctx, page, PageSize)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.storiesGen {
		return nil
	}
	if err != nil {
		c.storiesErr = c.tr.Sprintf(i18n.MsgLoadStoriesFailed, c.tr.Error(err))
		c.notifyExpired(err)
		return err
	}
	c.storiesErr = ""
	c.stories = res
	c.storiesPage = page
	return nil
}

// NewStory resets the editor for a new story.
func (c *Controller) NewStory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetEditor()
}

func (c *Controller) resetEditor() {
	c.editID = ""
	c.title = ""
	c.content = ""
	c.selected = nil
}

// EditStory loads one of the user's stories into the editor. Empty image
// URLs are dropped.
func (c *Controller) EditStory(ctx context.Context, id string) error {
	story, err := c.api.GetMyStory(ctx, id)
	if err != nil {
		c.notifier.Notify(c.tr.Sprintf(i18n.MsgLoadStoryFailed, c.tr.Error(err)), notify.Error)
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editID = id
	c.title = story.Title
	c.content = story.Content
	c.selected = nil
	for _, u := range story.Images {
		if u != "" {
			c.selected = append(c.selected, model.Image{URL: u})
		}
	}
	return nil
}

// AddImages filters files, caps them to the free slots and uploads them one
// at a time. It returns how many were uploaded.
func (c *Controller) AddImages(ctx context.Context, files []client.ImageFile, progress Progress) (int, error) {
	var images []client.ImageFile
	for _, f := range files {
		if f.IsImage() {
			images = append(images, f)
		}
	}
	if len(images) == 0 {
		c.notifier.Notify(c.tr.Sprintf(i18n.MsgOnlyImages), notify.Error)
		return 0, ErrNoImages
	}

	c.mu.Lock()
	slots := MaxImages - len(c.selected)
	c.mu.Unlock()
	if slots < 0 {
		slots = 0
	}
	if len(images) > slots {
		c.notifier.Notify(c.tr.Sprintf(i18n.MsgImageSlotsLeft, slots), notify.Warning)
		images = images[:slots]
	}

	var valid []client.ImageFile
	for _, f := range images {
		if f.Size > client.MaxImageSize {
			c.notifier.Notify(c.tr.Sprintf(i18n.MsgImageTooLarge, f.Name), notify.Error)
			continue
		}
		valid = append(valid, f)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	for i, f := range valid {
		if progress != nil {
			progress(i+1, len(valid), f.Name)
		}
		img, err := c.api.UploadImage(ctx, f)
		if err == nil && img.URL == "" {
			err = fmt.Errorf("upload of %s returned no url", f.Name)
		}
		if err != nil {
			if client.IsKind(err, client.KindSessionExpired) {
				c.notifier.Notify(c.tr.Sprintf(i18n.MsgSessionExpired), notify.Error)
			} else {
				c.notifier.Notify(c.tr.Sprintf(i18n.MsgUploadFailed, f.Name, c.tr.Error(err)), notify.Error)
			}
			c.logger.WarnContext(ctx, "image upload failed", slog.String("file", f.Name), slog.String("error", err.Error()))
			return i, err
		}
		c.mu.Lock()
		c.selected = append(c.selected, img)
		c.mu.Unlock()
	}
	c.notifier.Notify(c.tr.Sprintf(i18n.MsgUploaded, len(valid)), notify.Success)
	return len(valid), nil
}

func (c *Controller) RemoveImage(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.selected) {
		return fmt.Errorf("no selected image at %d", i)
	}
	c.selected = append(c.selected[:i:i], c.selected[i+1:]...)
	return nil
}

// Submit creates or updates the story in the editor, then reloads the list.
// The featured image is the first selected image.
func (c *Controller) Submit(ctx context.Context, title, content string) error {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)

	c.mu.Lock()
	c.title, c.content = title, content
	editID := c.editID
	urls := make([]string, 0, len(c.selected))
	for _, img := range c.selected {
		urls = append(urls, img.URL)
	}
	page := c.storiesPage
	c.mu.Unlock()

	if title == "" || content == "" {
		c.notifier.Notify(c.tr.Sprintf(i18n.MsgTitleContentNeeded), notify.Error)
		return ErrMissingFields
	}

	in := model.NewStoryInput(title, content, urls)
	var err error
	if editID != "" {
		_, err = c.api.UpdateStory(ctx, editID, in)
	} else {
		_, err = c.api.CreateStory(ctx, in)
	}
	if err != nil {
		c.notifier.Notify(c.tr.Error(err), notify.Error)
		return err
	}
	if editID != "" {
		c.notifier.Notify(c.tr.Sprintf(i18n.MsgStoryUpdated), notify.Success)
	} else {
		c.notifier.Notify(c.tr.Sprintf(i18n.MsgStoryPublished), notify.Success)
	}

	reloadErr := c.LoadMyStories(ctx, page)
	c.mu.Lock()
	c.resetEditor()
	c.mu.Unlock()
	return reloadErr
}

func (c *Controller) DeleteStory(ctx context.Context, id string) error {
	if err := c.api.DeleteMyStory(ctx, id); err != nil {
		c.notifier.Notify(c.tr.Error(err), notify.Error)
		return err
	}
	c.notifier.Notify(c.tr.Sprintf(i18n.MsgStoryDeleted), notify.Success)
	c.mu.Lock()
	page := c.storiesPage
	c.mu.Unlock()
	return c.LoadMyStories(ctx, page)
}

func (c *Controller) LoadMyImages(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	c.imagesGen++
	gen := c.imagesGen
	c.mu.Unlock()

	res, err := c.api.GetMyImages(ctx, page, PageSize)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.imagesGen {
		return nil
	}
	if err != nil {
		c.imagesErr = c.tr.Error(err)
		c.notifyExpired(err)
		return err
	}
	c.imagesErr = ""
	c.images = res
	c.imagesPage = page
	return nil
}

func (c *Controller) DeleteImage(ctx context.Context, publicID string) error {
	if err := c.api.DeleteImage(ctx, publicID); err != nil {
		c.notifier.Notify(c.tr.Error(err), notify.Error)
		return err
	}
	c.notifier.Notify(c.tr.Sprintf(i18n.MsgImageDeleted), notify.Success)
	c.mu.Lock()
	page := c.imagesPage
	c.mu.Unlock()
	return c.LoadMyImages(ctx, page)
}

func (c *Controller) notifyExpired(err error) {
	if client.IsKind(err, client.KindSessionExpired) {
		c.notifier.Notify(c.tr.Sprintf(i18n.MsgSessionExpired), notify.Error)
	}
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Stories:          make([]StoryRow, 0, len(c.stories.Items)),
		StoriesPage:      c.stories.Pagination,
		StoriesError:     c.storiesErr,
		Images:           make([]ImageRow, 0, len(c.images.Items)),
		ImagesPagination: c.images.Pagination,
		ImagesError:      c.imagesErr,
	}
	for _, s := range c.stories.Items {
		row := StoryRow{
			ID:         s.ID,
			Title:      s.Title,
			Excerpt:    feed.Excerpt(s.Content, ExcerptLength),
			Status:     s.Status,
			ImageCount: len(s.Images),
		}
		if !s.CreatedAt.IsZero() {
			row.Date = c.tr.LongDate(s.CreatedAt)
		}
		switch {
		case len(s.Images) > 0:
			n := min(len(s.Images), CardImages)
			row.Images = append([]string(nil), s.Images[:n]...)
			row.MoreImages = len(s.Images) - n
			row.ImageLabel = c.tr.Sprintf(i18n.MsgImageCount, len(s.Images))
		case s.FeaturedImage != nil:
			row.FeaturedImage = *s.FeaturedImage
		}
		v.Stories = append(v.Stories, row)
	}
	v.StoriesEmpty = len(v.Stories) == 0 && v.StoriesError == ""
	for i, img := range c.images.Items {
		v.Images = append(v.Images, imageRow(img, i))
	}

	v.Editor = Editor{
		StoryID:   c.editID,
		Editing:   c.editID != "",
		Title:     c.title,
		Content:   c.content,
		Images:    make([]ImageRow, 0, len(c.selected)),
		SlotsLeft: max(MaxImages-len(c.selected), 0),
	}
	v.Editor.CanAdd = v.Editor.SlotsLeft > 0
	for i, img := range c.selected {
		v.Editor.Images = append(v.Editor.Images, imageRow(img, i))
	}
	return v
}

// imageRow names an image by its original name, the last URL segment, or
// its position.
func imageRow(img model.Image, i int) ImageRow {
	name := img.OriginalName
	if name == "" && img.URL != "" {
		name = path.Base(img.URL)
	}
	if name == "" || name == "." || name == "/" {
		name = fmt.Sprintf("Image %d", i+1)
	}
	return ImageRow{URL: img.URL, PublicID: img.PublicID, Name: name}
}

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/inkpost/internal/client"
	"github.com/alphabot-ai/inkpost/internal/i18n"
	"github.com/alphabot-ai/inkpost/internal/model"
	"github.com/alphabot-ai/inkpost/internal/notify"
)

type fakeAPI struct {
	stories   []model.Story
	story     model.Story
	images    []model.Image
	uploaded  []string
	uploadErr map[string]error
	created   []model.StoryInput
	updated   map[string]model.StoryInput
	deleted   []string
	delImages []string
	listCalls int
}

func (f *fakeAPI) GetMyStories(ctx context.Context, page, limit int) (model.Page[model.Story], error) {
	f.listCalls++
	return model.Page[model.Story]{Items: f.stories, Pagination: model.Pagination{Page: page, Pages: 1, Total: len(f.stories)}}, nil
}

func (f *fakeAPI) GetMyStory(ctx context.Context, id string) (model.Story, error) {
	if f.story.ID != id {
		return model.Story{}, &client.Error{Kind: client.KindAPI, Status: 404, Message: "Not found"}
	}
	return f.story, nil
}

func (f *fakeAPI) CreateStory(ctx context.Context, in model.StoryInput) (model.Story, error) {
	f.created = append(f.created, in)
	return model.Story{ID: "new", Title: in.Title}, nil
}

func (f *fakeAPI) UpdateStory(ctx context.Context, id string, in model.StoryInput) (model.Story, error) {
	if f.updated == nil {
		f.updated = map[string]model.StoryInput{}
	}
	f.updated[id] = in
	return model.Story{ID: id}, nil
}

func (f *fakeAPI) DeleteMyStory(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) UploadImage(ctx context.Context, file client.ImageFile) (model.Image, error) {
	if err := f.uploadErr[file.Name]; err != nil {
		return model.Image{}, err
	}
	f.uploaded = append(f.uploaded, file.Name)
	return model.Image{URL: "https://cdn/" + file.Name, PublicID: "blog/" + file.Name}, nil
}

func (f *fakeAPI) GetMyImages(ctx context.Context, page, limit int) (model.Page[model.Image], error) {
	return model.Page[model.Image]{Items: f.images, Pagination: model.Pagination{Page: page, Pages: 1, Total: len(f.images)}}, nil
}

func (f *fakeAPI) DeleteImage(ctx context.Context, publicID string) error {
	f.delImages = append(f.delImages, publicID)
	return nil
}

func image(name string, size int64) client.ImageFile {
	f := client.NewImageFile(name, []byte("data"))
	f.Size = size
	return f
}

func newController() (*Controller, *fakeAPI, *notify.Recorder) {
	api := &fakeAPI{}
	rec := &notify.Recorder{}
	return New(api, rec, i18n.New("en")), api, rec
}

func TestAddImagesRejectsNonImages(t *testing.T) {
	c, api, rec := newController()
	n, err := c.AddImages(context.Background(), []client.ImageFile{client.NewImageFile("a.txt", []byte("hi"))}, nil)
	assert.ErrorIs(t, err, ErrNoImages)
	assert.Zero(t, n)
	assert.Empty(t, api.uploaded)
	assert.Equal(t, notify.Error, rec.Last().Severity)
}

func TestAddImagesCapsToFreeSlots(t *testing.T) {
	c, api, rec := newController()
	files := []client.ImageFile{image("1.png", 10), image("2.png", 10), image("3.png", 10), image("4.png", 10), image("5.png", 10), image("6.png", 10)}

	var progress []string
	n, err := c.AddImages(context.Background(), files, func(cur, total int, name string) {
		progress = append(progress, fmt.Sprintf("%d/%d %s", cur, total, name))
	})
	require.NoError(t, err)
	assert.Equal(t, MaxImages, n)
	assert.Equal(t, []string{"1.png", "2.png", "3.png", "4.png"}, api.uploaded)
	assert.Equal(t, []string{"1/4 1.png", "2/4 2.png", "3/4 3.png", "4/4 4.png"}, progress)

	entries := rec.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, notify.Entry{Message: "Only 4 more images can be added", Severity: notify.Warning}, entries[0])
	assert.Equal(t, notify.Entry{Message: "Uploaded 4 images", Severity: notify.Success}, entries[1])

	v := c.View().Editor
	assert.Zero(t, v.SlotsLeft)
	assert.False(t, v.CanAdd)
	assert.Len(t, v.Images, 4)

	n, err = c.AddImages(context.Background(), []client.ImageFile{image("7.png", 10)}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, api.uploaded, 4)
}

func TestAddImagesSkipsOversizedFiles(t *testing.T) {
	c, api, rec := newController()
	files := []client.ImageFile{image("big.jpg", 6<<20), image("ok.jpg", 1<<20)}

	n, err := c.AddImages(context.Background(), files, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"ok.jpg"}, api.uploaded)
	assert.Equal(t, notify.Entry{Message: "big.jpg is larger than 5MB", Severity: notify.Error}, rec.Entries()[0])
	assert.Equal(t, "Uploaded 1 image", rec.Last().Message)
}

func TestAddImagesStopsOnSessionExpiry(t *testing.T) {
	c, api, rec := newController()
	api.uploadErr = map[string]error{"2.png": &client.Error{Kind: client.KindSessionExpired, Status: 401, Message: client.MsgSessionExpired}}

	n, err := c.AddImages(context.Background(), []client.ImageFile{image("1.png", 1), image("2.png", 1), image("3.png", 1)}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"1.png"}, api.uploaded)
	assert.Equal(t, notify.Entry{Message: i18n.MsgSessionExpired, Severity: notify.Error}, rec.Last())
	assert.Len(t, c.View().Editor.Images, 1)
}

func TestSubmitCreatesWithFeaturedFirstImage(t *testing.T) {
	c, api, rec := newController()
	ctx := context.Background()
	_, err := c.AddImages(ctx, []client.ImageFile{image("a.png", 1), image("b.png", 1)}, nil)
	require.NoError(t, err)

	require.NoError(t, c.Submit(ctx, "  Title ", " Body  "))
	require.Len(t, api.created, 1)
	in := api.created[0]
	assert.Equal(t, "Title", in.Title)
	assert.Equal(t, "Body", in.Content)
	assert.Equal(t, []string{"https://cdn/a.png", "https://cdn/b.png"}, in.Images)
	require.NotNil(t, in.FeaturedImage)
	assert.Equal(t, "https://cdn/a.png", *in.FeaturedImage)
	assert.Equal(t, i18n.MsgStoryPublished, rec.Last().Message)
	assert.Equal(t, 1, api.listCalls)
	assert.Empty(t, c.View().Editor.Images, "editor resets after submit")
}

func TestSubmitWithoutImagesHasNoFeaturedImage(t *testing.T) {
	c, api, _ := newController()
	require.NoError(t, c.Submit(context.Background(), "T", "C"))
	assert.Nil(t, api.created[0].FeaturedImage)
	assert.Equal(t, []string{}, api.created[0].Images)
}

func TestSubmitRequiresTitleAndContent(t *testing.T) {
	c, api, rec := newController()
	err := c.Submit(context.Background(), "  ", "content")
	assert.ErrorIs(t, err, ErrMissingFields)
	assert.Empty(t, api.created)
	assert.Equal(t, i18n.MsgTitleContentNeeded, rec.Last().Message)
}

func TestEditStoryDropsEmptyURLsAndUpdates(t *testing.T) {
	c, api, rec := newController()
	api.story = model.Story{ID: "s1", Title: "Old", Content: "text", Images: []string{"", "https://cdn/x.png", ""}}
	ctx := context.Background()

	require.NoError(t, c.EditStory(ctx, "s1"))
	ed := c.View().Editor
	assert.True(t, ed.Editing)
	assert.Equal(t, "Old", ed.Title)
	require.Len(t, ed.Images, 1)
	assert.Equal(t, "x.png", ed.Images[0].Name)

	require.NoError(t, c.RemoveImage(0))
	assert.Error(t, c.RemoveImage(0))

	require.NoError(t, c.Submit(ctx, "New", "text"))
	in, ok := api.updated["s1"]
	require.True(t, ok)
	assert.Equal(t, "New", in.Title)
	assert.Empty(t, in.Images)
	assert.Nil(t, in.FeaturedImage)
	assert.Equal(t, i18n.MsgStoryUpdated, rec.Last().Message)
	assert.Empty(t, api.created)
}

func TestEditStoryNotFoundNotifies(t *testing.T) {
	c, _, rec := newController()
	err := c.EditStory(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, "Could not load the story: Not found", rec.Last().Message)
	assert.False(t, c.View().Editor.Editing)
}

func TestDeleteStoryReloads(t *testing.T) {
	c, api, rec := newController()
	api.stories = []model.Story{{ID: "s2", Title: "Keep", Images: []string{"a", "b", "c"}}}
	require.NoError(t, c.DeleteStory(context.Background(), "s1"))
	assert.Equal(t, []string{"s1"}, api.deleted)
	assert.Equal(t, i18n.MsgStoryDeleted, rec.Last().Message)

	rows := c.View().Stories
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a", "b"}, rows[0].Images)
	assert.Equal(t, 1, rows[0].MoreImages)
	assert.Equal(t, "3 images", rows[0].ImageLabel)
}

func TestImagesListAndDelete(t *testing.T) {
	c, api, _ := newController()
	api.images = []model.Image{{URL: "https://cdn/one.png", PublicID: "blog/one"}, {PublicID: "blog/two"}}
	ctx := context.Background()

	require.NoError(t, c.LoadMyImages(ctx, 1))
	v := c.View()
	require.Len(t, v.Images, 2)
	assert.Equal(t, "one.png", v.Images[0].Name)
	assert.Equal(t, "Image 2", v.Images[1].Name)

	require.NoError(t, c.DeleteImage(ctx, "blog/one"))
	assert.Equal(t, []string{"blog/one"}, api.delImages)
}

func TestLoadMyStoriesExpiredSession(t *testing.T) {
	api := &expiringAPI{}
	rec := &notify.Recorder{}
	c := New(api, rec, i18n.New("en"))

	err := c.LoadMyStories(context.Background(), 1)
	require.True(t, errors.Is(err, errExpired))
	assert.Equal(t, i18n.MsgSessionExpired, rec.Last().Message)
	assert.False(t, c.View().StoriesEmpty)
}

var errExpired = &client.Error{Kind: client.KindSessionExpired, Message: client.MsgSessionExpired}

type expiringAPI struct{ fakeAPI }

func (e *expiringAPI) GetMyStories(ctx context.Context, page, limit int) (model.Page[model.Story], error) {
	return model.Page[model.Story]{}, errExpired
}

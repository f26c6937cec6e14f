package sandbox_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alphabot-ai/inkpost/internal/client"
	"github.com/alphabot-ai/inkpost/internal/config"
	"github.com/alphabot-ai/inkpost/internal/model"
	"github.com/alphabot-ai/inkpost/internal/rate"
	"github.com/alphabot-ai/inkpost/internal/sandbox"
	"github.com/alphabot-ai/inkpost/internal/session"
	"github.com/alphabot-ai/inkpost/internal/testutil"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fixture struct {
	sb  *sandbox.Server
	srv *httptest.Server
}

func newFixture(t *testing.T, opts ...sandbox.Option) *fixture {
	t.Helper()
	cfg := config.Sandbox{
		Secret:        "sandbox-secret",
		AdminUser:     "admin",
		AdminPassword: "Admin1234",
		TokenTTL:      time.Hour,
	}
	opts = append([]sandbox.Option{sandbox.WithBcryptCost(bcrypt.MinCost)}, opts...)
	sb, err := sandbox.New(cfg, opts...)
	require.NoError(t, err)
	srv := httptest.NewServer(sb)
	t.Cleanup(srv.Close)
	return &fixture{sb: sb, srv: srv}
}

func (f *fixture) client(t *testing.T) *client.Client {
	t.Helper()
	st, err := session.Open(context.Background(), session.NewMemory())
	require.NoError(t, err)
	return client.New(f.srv.URL+sandbox.APIPrefix, st)
}

func (f *fixture) loggedIn(t *testing.T, username, password string) *client.Client {
	t.Helper()
	ctx := context.Background()
	c := f.client(t)
	if username != "admin" {
		_, err := c.Register(ctx, username, password)
		require.NoError(t, err)
	}
	_, err := c.Login(ctx, username, password)
	require.NoError(t, err)
	return c
}

func apiStatus(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	return client.StatusOf(err)
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := sandbox.New(config.Sandbox{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	h, err := f.client(t).HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "OK", h.Status)
	assert.NotEmpty(t, h.Time)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t)

	u, err := c.Register(ctx, "alice", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, model.RoleUser, u.Role)

	_, err = c.Register(ctx, "alice", "Secret123")
	assert.Equal(t, http.StatusConflict, apiStatus(t, err))
	assert.Equal(t, "Username already exists", err.Error())

	_, err = c.Login(ctx, "alice", "wrong-password")
	assert.Equal(t, http.StatusUnauthorized, apiStatus(t, err))
	assert.Equal(t, "Invalid credentials", err.Error())
	assert.False(t, c.IsAuthenticated())

	token, err := c.Login(ctx, "alice", "Secret123")
	require.NoError(t, err)
	assert.True(t, c.IsAuthenticated())

	claims, ok := session.DecodeClaims(token)
	require.True(t, ok)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, model.RoleUser, claims.Role)
	assert.True(t, c.Session().IsAuthenticated())
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.client(t).Register(context.Background(), "al", "Secret123")
	assert.Equal(t, http.StatusBadRequest, apiStatus(t, err))
}

func TestStoryLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.loggedIn(t, "alice", "Secret123")
	bob := f.loggedIn(t, "bob", "Secret123")

	created, err := alice.CreateStory(ctx, model.NewStoryInput("First", "Hello\n\nWorld", []string{"https://cdn/a.png"}))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.NotNil(t, created.FeaturedImage)
	assert.Equal(t, "https://cdn/a.png", *created.FeaturedImage)

	public, err := f.client(t).GetStory(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "First", public.Title)
	assert.Equal(t, "alice", public.Username)

	_, err = bob.GetMyStory(ctx, created.ID)
	assert.Equal(t, http.StatusNotFound, apiStatus(t, err))

	_, err = alice.UpdateStory(ctx, created.ID, model.NewStoryInput("First!", "Edited", nil))
	require.NoError(t, err)
	mine, err := alice.GetMyStory(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "First!", mine.Title)
	assert.Empty(t, mine.Images)
	assert.Nil(t, mine.FeaturedImage)

	list, err := alice.GetMyStories(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)

	require.NoError(t, alice.DeleteMyStory(ctx, created.ID))
	_, err = f.client(t).GetStory(ctx, created.ID)
	assert.Equal(t, http.StatusNotFound, apiStatus(t, err))
	assert.Equal(t, "Story not found", err.Error())
}

func TestCreateStoryRequiresAuth(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	_, err := c.Request(context.Background(), http.MethodPost, "/stories", model.NewStoryInput("t", "c", nil))
	assert.Equal(t, http.StatusUnauthorized, apiStatus(t, err))
	assert.Equal(t, "Access token required", err.Error())
}

func TestPublicListPaginatesNewestFirst(t *testing.T) {
	now := time.Now()
	f := newFixture(t, sandbox.WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))
	ctx := context.Background()
	alice := f.loggedIn(t, "alice", "Secret123")
	for _, title := range []string{"one", "two", "three"} {
		_, err := alice.CreateStory(ctx, model.NewStoryInput(title, "body", nil))
		require.NoError(t, err)
	}

	page1, err := f.client(t).GetStories(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, model.Pagination{Page: 1, Pages: 2, Total: 3}, page1.Pagination)
	require.Len(t, page1.Items, 2)
	assert.Equal(t, "three", page1.Items[0].Title)

	page2, err := f.client(t).GetStories(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2.Items, 1)
	assert.Equal(t, "one", page2.Items[0].Title)
}

func TestImageUploadListDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.loggedIn(t, "alice", "Secret123")

	img, err := alice.UploadImage(ctx, client.NewImageFile("cat.png", pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(img.PublicID, "inkpost/"), img.PublicID)
	assert.Equal(t, "cat.png", img.OriginalName)

	resp, err := http.Get(img.URL)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, pngHeader, body)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	images, err := alice.GetMyImages(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, images.Items, 1)
	assert.Equal(t, img.PublicID, images.Items[0].PublicID)

	bob := f.loggedIn(t, "bob", "Secret123")
	assert.Equal(t, http.StatusNotFound, apiStatus(t, bob.DeleteImage(ctx, img.PublicID)))

	require.NoError(t, alice.DeleteImage(ctx, img.PublicID))
	images, err = alice.GetMyImages(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, images.Items)
}

func TestUploadRejectsOversizedBodyServerSide(t *testing.T) {
	f := newFixture(t)
	token, err := f.sb.IssueToken("admin", model.RoleAdmin, time.Hour)
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "big.png")
	require.NoError(t, err)
	_, err = part.Write(append(pngHeader, make([]byte, sandbox.MaxImageSize)...))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+sandbox.APIPrefix+"/upload-image", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestUploadRejectsNonImage(t *testing.T) {
	f := newFixture(t)
	token, err := f.sb.IssueToken("admin", model.RoleAdmin, time.Hour)
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("just some text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+sandbox.APIPrefix+"/upload-image", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Only image files are allowed", body["message"])
}

func TestUploadWithForeignTokenExpiresSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t)
	require.NoError(t, c.Session().SetToken(ctx, testutil.Token(t, "alice", "", time.Now().Add(time.Hour))))

	_, err := c.UploadImage(ctx, client.NewImageFile("cat.png", pngHeader))
	require.Error(t, err)
	assert.True(t, client.IsKind(err, client.KindSessionExpired))
	assert.Equal(t, "", c.Session().Token())
}

func TestAdminModeration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.loggedIn(t, "alice", "Secret123")
	admin := f.loggedIn(t, "admin", "Admin1234")

	s1, err := alice.CreateStory(ctx, model.NewStoryInput("Nice", "ok", nil))
	require.NoError(t, err)
	s2, err := alice.CreateStory(ctx, model.NewStoryInput("Spam", "buy", nil))
	require.NoError(t, err)
	require.NoError(t, f.sb.SetStoryStatus(s2.ID, model.StatusFlagged))

	stats, err := admin.GetAdminStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Stories.Total)
	assert.Equal(t, 1, stats.Stories.Flagged)
	assert.Equal(t, 2, stats.Users.Total)
	assert.Equal(t, 0, stats.Users.Banned)

	flagged, err := admin.GetAdminStories(ctx, 1, 20, model.StatusFlagged)
	require.NoError(t, err)
	require.Len(t, flagged.Items, 1)
	assert.Equal(t, s2.ID, flagged.Items[0].ID)

	require.NoError(t, admin.DeleteStory(ctx, s2.ID))
	all, err := admin.GetAdminStories(ctx, 1, 20, client.StatusAll)
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
	public, err := f.client(t).GetStories(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, public.Items, 1)
	assert.Equal(t, s1.ID, public.Items[0].ID)

	_, err = alice.GetAdminStats(ctx)
	assert.Equal(t, http.StatusForbidden, apiStatus(t, err))
	assert.Equal(t, "Admin access required", err.Error())
}

func TestBanBlocksLoginAndRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.loggedIn(t, "alice", "Secret123")
	admin := f.loggedIn(t, "admin", "Admin1234")

	require.NoError(t, admin.BanUser(ctx, "alice", "spam"))
	users, err := admin.GetAdminUsers(ctx, 1, 20)
	require.NoError(t, err)
	require.Len(t, users.Items, 2)
	assert.Equal(t, "alice", users.Items[1].Username)
	assert.True(t, users.Items[1].IsBanned)

	_, err = alice.GetMyStories(ctx, 1, 10)
	assert.Equal(t, http.StatusForbidden, apiStatus(t, err))

	_, err = f.client(t).Login(ctx, "alice", "Secret123")
	assert.Equal(t, http.StatusForbidden, apiStatus(t, err))
	assert.Equal(t, "User is banned: spam", err.Error())

	assert.Equal(t, http.StatusBadRequest, apiStatus(t, admin.BanUser(ctx, "admin", "self")))
	assert.Equal(t, http.StatusNotFound, apiStatus(t, admin.BanUser(ctx, "ghost", "x")))

	require.NoError(t, admin.UnbanUser(ctx, "alice"))
	_, err = f.client(t).Login(ctx, "alice", "Secret123")
	assert.NoError(t, err)
}

func TestChangeRoleGrantsAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.loggedIn(t, "alice", "Secret123")
	admin := f.loggedIn(t, "admin", "Admin1234")

	assert.Equal(t, http.StatusBadRequest, apiStatus(t, admin.ChangeUserRole(ctx, "alice", "owner")))
	require.NoError(t, admin.ChangeUserRole(ctx, "alice", model.RoleAdmin))

	_, err := alice.GetAdminStats(ctx)
	assert.NoError(t, err, "the stored role is authoritative")
}

func TestLoginThrottled(t *testing.T) {
	f := newFixture(t, sandbox.WithLoginLimiter(rate.PerWindow(2, time.Minute)))
	ctx := context.Background()
	c := f.client(t)

	for i := 0; i < 2; i++ {
		_, err := c.Login(ctx, "admin", "nope")
		assert.Equal(t, http.StatusUnauthorized, apiStatus(t, err))
	}
	_, err := c.Login(ctx, "admin", "Admin1234")
	assert.Equal(t, http.StatusTooManyRequests, apiStatus(t, err))
	assert.Contains(t, err.Error(), "Too many login attempts")
}

func TestUnknownRouteIsJSON(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/api/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Not found", body["message"])
}

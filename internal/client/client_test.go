package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/inkpost/internal/model"
	"github.com/alphabot-ai/inkpost/internal/observability"
	"github.com/alphabot-ai/inkpost/internal/session"
	"github.com/alphabot-ai/inkpost/internal/testutil"
)

type fixture struct {
	srv      *httptest.Server
	client   *Client
	session  *session.Store
	requests atomic.Int32
	last     atomic.Pointer[http.Request]
}

func newFixture(t *testing.T, handler http.HandlerFunc, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		f.last.Store(r.Clone(context.Background()))
		handler(w, r)
	}))
	t.Cleanup(f.srv.Close)

	st, err := session.Open(context.Background(), session.NewMemory())
	require.NoError(t, err)
	f.session = st
	f.client = New(f.srv.URL, st, opts...)
	return f
}

func (f *fixture) login(t *testing.T, exp time.Time) string {
	t.Helper()
	token := testutil.Token(t, "alice", model.RoleUser, exp)
	require.NoError(t, f.session.SetToken(context.Background(), token))
	return token
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRequestNoContentIgnoresBody(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	raw, err := f.client.Request(context.Background(), http.MethodDelete, "/my-stories/1", nil)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestRequestErrorMessage(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"message field", 404, `{"message":"Not found"}`, "Not found"},
		{"error field", 400, `{"error":"bad input"}`, "bad input"},
		{"message wins", 409, `{"message":"taken","error":"conflict"}`, "taken"},
		{"no json", 502, `<html>bad gateway</html>`, "HTTP error: 502"},
		{"empty body", 500, ``, "HTTP error: 500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := f.client.Request(context.Background(), http.MethodGet, "/stories/x", nil)
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())
			assert.True(t, IsKind(err, KindAPI))
			assert.Equal(t, tc.status, StatusOf(err))
		})
	}
}

func TestRequestTransportFailure(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	f.srv.Close()

	_, err := f.client.Request(context.Background(), http.MethodGet, "/stories", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTransport))
	assert.Equal(t, MsgConnectivity, err.Error())
	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.NotNil(t, ce.Unwrap())
}

func TestRequestHeaders(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]string{"ok": "yes"})
	})
	token := f.login(t, time.Now().Add(time.Hour))

	_, err := f.client.Request(context.Background(), http.MethodPost, "/stories", map[string]string{"title": "t"})
	require.NoError(t, err)

	req := f.last.Load()
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, "Bearer "+token, req.Header.Get("Authorization"))
	assert.NotEmpty(t, req.Header.Get(requestIDHeader))
}

func TestRequestOmitsAuthorizationWithoutToken(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"stories": []any{}, "pagination": map[string]int{"page": 1}})
	})
	_, err := f.client.GetStories(context.Background(), 1, 6)
	require.NoError(t, err)
	assert.Empty(t, f.last.Load().Header.Get("Authorization"))
}

func TestLoginStoresToken(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Path != "/login" || body["username"] != "alice" || body["password"] != "Secret123" {
			writeJSON(w, 401, map[string]string{"message": "Invalid credentials"})
			return
		}
		writeJSON(w, 200, map[string]string{"token": "a.b.c"})
	})

	token, err := f.client.Login(context.Background(), "alice", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", token)
	assert.Equal(t, "a.b.c", f.session.Token())
	assert.True(t, f.client.IsAuthenticated())
}

func TestLoginFailureKeepsSessionEmpty(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]string{"message": "Invalid credentials"})
	})
	_, err := f.client.Login(context.Background(), "alice", "nope")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.False(t, f.client.IsAuthenticated())
}

func TestLoginWithoutTokenIsDecodeError(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]string{"message": "ok"})
	})
	_, err := f.client.Login(context.Background(), "alice", "Secret123")
	assert.True(t, IsKind(err, KindDecode))
}

func TestLogoutMakesNoRequest(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	f.login(t, time.Now().Add(time.Hour))

	require.NoError(t, f.client.Logout(context.Background()))
	assert.False(t, f.client.IsAuthenticated())
	assert.Zero(t, f.requests.Load())
}

func TestRegisterDecodesUser(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 201, map[string]any{"message": "created", "user": map[string]any{"username": "alice", "role": "user"}})
	})
	user, err := f.client.Register(context.Background(), "alice", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "user", user.Role)
	assert.False(t, f.client.IsAuthenticated(), "register must not log in")
}

func TestGetStoriesQueryAndDecode(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"stories":[{"_id":"s1","title":"Hello","username":"bob","createdAt":"2024-01-02T03:04:05Z"}],"pagination":{"page":2,"pages":3,"total":13}}`)
	})
	page, err := f.client.GetStories(context.Background(), 2, 6)
	require.NoError(t, err)

	q := f.last.Load().URL.Query()
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "6", q.Get("limit"))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "s1", page.Items[0].ID)
	assert.Equal(t, model.Pagination{Page: 2, Pages: 3, Total: 13}, page.Pagination)
}

func TestListDefaultsNormalizeBadInput(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"stories":[],"pagination":{"page":1,"pages":0,"total":0}}`)
	})
	f.login(t, time.Now().Add(time.Hour))

	_, err := f.client.GetAdminStories(context.Background(), 0, -5, StatusAll)
	require.NoError(t, err)
	q := f.last.Load().URL.Query()
	assert.Equal(t, "1", q.Get("page"))
	assert.Equal(t, "20", q.Get("limit"))
	assert.False(t, q.Has("status"))

	_, err = f.client.GetAdminStories(context.Background(), 1, 20, model.StatusFlagged)
	require.NoError(t, err)
	assert.Equal(t, "flagged", f.last.Load().URL.Query().Get("status"))
}

func TestGetStoryUnwrapsEnvelope(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stories/abc", r.URL.Path)
		_, _ = io.WriteString(w, `{"story":{"id":"abc","title":"T","content":"c","images":["u1"],"featuredImage":"u1"}}`)
	})
	story, err := f.client.GetStory(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", story.ID)
	require.NotNil(t, story.FeaturedImage)
	assert.Equal(t, "u1", *story.FeaturedImage)
}

func TestDecodeFailure(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"stories":"nope"}`)
	})
	_, err := f.client.GetStories(context.Background(), 1, 6)
	assert.True(t, IsKind(err, KindDecode))
}

func TestRequestNonJSONSuccessBody(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html>proxy page</html>")
	})
	f.login(t, time.Now().Add(time.Hour))
	ctx := context.Background()

	raw, err := f.client.Request(ctx, http.MethodGet, "/health", nil)
	assert.Nil(t, raw)
	assert.True(t, IsKind(err, KindDecode))

	err = f.client.DeleteMyStory(ctx, "s1")
	assert.True(t, IsKind(err, KindDecode))
	err = f.client.BanUser(ctx, "bob", "spam")
	assert.True(t, IsKind(err, KindDecode))
}

func TestExpiredSessionIsClearedWithoutNetwork(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{})
	})
	f.login(t, time.Now().Add(-time.Minute))

	_, err := f.client.GetMyStories(context.Background(), 1, 10)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSessionExpired))
	assert.Equal(t, MsgSessionExpired, err.Error())
	assert.Empty(t, f.session.Token())
	assert.Zero(t, f.requests.Load())
}

func TestUploadRejectsLargeFileBeforeNetwork(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"image": map[string]string{"url": "u"}})
	})
	f.login(t, time.Now().Add(time.Hour))

	opened := false
	file := ImageFile{
		Name:        "big.jpg",
		ContentType: "image/jpeg",
		Size:        6 << 20,
		Open: func() (io.ReadCloser, error) {
			opened = true
			return io.NopCloser(strings.NewReader("")), nil
		},
	}
	_, err := f.client.UploadImage(context.Background(), file)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
	assert.Contains(t, err.Error(), "5MB")
	assert.False(t, opened)
	assert.Zero(t, f.requests.Load())
}

func TestUploadRejectsNonImage(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	f.login(t, time.Now().Add(time.Hour))

	_, err := f.client.UploadImage(context.Background(), NewImageFile("notes.txt", []byte("hello")))
	assert.True(t, IsKind(err, KindValidation))
	assert.Equal(t, MsgNotAnImage, err.Error())
	assert.Zero(t, f.requests.Load())
}

func TestUploadSendsMultipart(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(MaxImageSize))
		file, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "cat.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "pixels", string(data))
		writeJSON(w, 200, map[string]any{"image": map[string]string{"url": "https://cdn/cat.png", "publicId": "blog/cat"}})
	})
	f.login(t, time.Now().Add(time.Hour))

	img, err := f.client.UploadImage(context.Background(), NewImageFile("cat.png", []byte("pixels")))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/cat.png", img.URL)
	assert.Equal(t, "blog/cat", img.PublicID)
	assert.Equal(t, "cat.png", img.OriginalName)
	assert.True(t, strings.HasPrefix(f.last.Load().Header.Get("Content-Type"), "multipart/form-data"))
}

func TestUploadTokenRejectionClearsSession(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]string{"message": "Token expired"})
	})
	f.login(t, time.Now().Add(time.Hour))

	_, err := f.client.UploadImage(context.Background(), NewImageFile("cat.png", []byte("pixels")))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSessionExpired))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.Empty(t, f.session.Token())
}

func TestUploadOtherUnauthorizedKeepsSession(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]string{"message": "User is banned"})
	})
	token := f.login(t, time.Now().Add(time.Hour))

	_, err := f.client.UploadImage(context.Background(), NewImageFile("cat.png", []byte("pixels")))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindAPI))
	assert.Equal(t, "User is banned", err.Error())
	assert.Equal(t, token, f.session.Token())
}

func TestDeleteImageEscapesPublicID(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	f.login(t, time.Now().Add(time.Hour))

	require.NoError(t, f.client.DeleteImage(context.Background(), "blog/my cat"))
	assert.Equal(t, "/delete-image/blog%2Fmy%20cat", f.last.Load().URL.EscapedPath())
}

func TestAdminUserOperations(t *testing.T) {
	var bodies []map[string]string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusOK)
	})
	f.login(t, time.Now().Add(time.Hour))
	ctx := context.Background()

	require.NoError(t, f.client.BanUser(ctx, "bob", "spam"))
	assert.Equal(t, "/admin/users/bob/ban", f.last.Load().URL.Path)
	require.NoError(t, f.client.UnbanUser(ctx, "bob"))
	assert.Equal(t, "/admin/users/bob/unban", f.last.Load().URL.Path)
	require.NoError(t, f.client.ChangeUserRole(ctx, "bob", model.RoleAdmin))
	assert.Equal(t, http.MethodPut, f.last.Load().Method)
	assert.Equal(t, "/admin/users/bob/role", f.last.Load().URL.Path)

	require.Len(t, bodies, 3)
	assert.Equal(t, "spam", bodies[0]["reason"])
	assert.Equal(t, "admin", bodies[2]["role"])
}

func TestGetAdminStats(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"stories":{"total":10,"flagged":2},"users":{"total":5,"banned":1}}`)
	})
	f.login(t, time.Now().Add(time.Hour))

	stats, err := f.client.GetAdminStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Stories.Total)
	assert.Equal(t, 2, stats.Stories.Flagged)
	assert.Equal(t, 5, stats.Users.Total)
	assert.Equal(t, 1, stats.Users.Banned)
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "OK", "timestamp": "now"})
	})
	h, err := f.client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "OK", h.Status)

	down := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err = down.client.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Equal(t, MsgConnectivity, err.Error())
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(err))
}

func TestMetricsRecorded(t *testing.T) {
	m := observability.NewClientMetrics()
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 404, map[string]string{"message": "Not found"})
	}, WithMetrics(m))

	_, _ = f.client.GetStory(context.Background(), "missing")
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() != "inkpost_client_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["operation"] == "GET /stories/:id" && labels["status"] == "4xx" {
				found = true
			}
		}
	}
	assert.True(t, found)
}

func TestOperationName(t *testing.T) {
	assert.Equal(t, "GET /stories", operationName("GET", "/stories?page=1"))
	assert.Equal(t, "GET /stories/:id", operationName("GET", "/stories/42"))
	assert.Equal(t, "GET /admin/stats", operationName("GET", "/admin/stats"))
	assert.Equal(t, "POST /admin/users/:username/ban", operationName("POST", "/admin/users/bob/ban"))
	assert.Equal(t, "DELETE /admin/stories/:id", operationName("DELETE", "/admin/stories/7"))
}

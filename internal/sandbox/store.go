package sandbox

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alphabot-ai/inkpost/internal/model"
)

var (
	errNotFound = errors.New("not found")
	errExists   = errors.New("already exists")
)

type user struct {
	username  string
	hash      []byte
	role      string
	banned    bool
	banReason string
	createdAt time.Time
	lastLogin *time.Time
}

func (u *user) public() model.User {
	out := model.User{Username: u.username, Role: u.role, IsBanned: u.banned}
	created := u.createdAt
	out.CreatedAt = &created
	if u.lastLogin != nil {
		last := *u.lastLogin
		out.LastLogin = &last
	}
	return out
}

type story struct {
	id            string
	title         string
	content       string
	username      string
	status        string
	featuredImage *string
	images        []string
	createdAt     time.Time
	updatedAt     time.Time
	seq           int
}

// storyJSON uses the Mongo-style _id of the production API.
type storyJSON struct {
	ID            string    `json:"_id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Username      string    `json:"username"`
	Status        string    `json:"status"`
	FeaturedImage *string   `json:"featuredImage"`
	Images        []string  `json:"images"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (s *story) json() storyJSON {
	images := append([]string{}, s.images...)
	return storyJSON{
		ID:            s.id,
		Title:         s.title,
		Content:       s.content,
		Username:      s.username,
		Status:        s.status,
		FeaturedImage: s.featuredImage,
		Images:        images,
		CreatedAt:     s.createdAt,
		UpdatedAt:     s.updatedAt,
	}
}

type image struct {
	publicID     string
	url          string
	originalName string
	owner        string
	contentType  string
	data         []byte
	createdAt    time.Time
	seq          int
}

func (i *image) public() model.Image {
	return model.Image{URL: i.url, PublicID: i.publicID, OriginalName: i.originalName}
}

// store is the sandbox's in-memory state.
type store struct {
	mu      sync.RWMutex
	seq     int
	users   map[string]*user
	stories map[string]*story
	images  map[string]*image
}

func newStore() *store {
	return &store{
		users:   make(map[string]*user),
		stories: make(map[string]*story),
		images:  make(map[string]*image),
	}
}

func (st *store) addUser(u *user) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.users[u.username]; ok {
		return errExists
	}
	st.users[u.username] = u
	return nil
}

// user returns a copy so callers never race with updates.
func (st *store) user(username string) (user, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	u, ok := st.users[username]
	if !ok {
		return user{}, false
	}
	return *u, true
}

func (st *store) updateUser(username string, fn func(u *user)) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	u, ok := st.users[username]
	if !ok {
		return errNotFound
	}
	fn(u)
	return nil
}

func (st *store) listUsers() []model.User {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]model.User, 0, len(st.users))
	for _, u := range st.users {
		out = append(out, u.public())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (st *store) createStory(s *story) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.seq++
	s.seq = st.seq
	s.id = uuid.NewString()
	st.stories[s.id] = s
}

func (st *store) story(id string) (storyJSON, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.stories[id]
	if !ok {
		return storyJSON{}, false
	}
	return s.json(), true
}

func (st *store) updateStory(id string, fn func(s *story) error) (storyJSON, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.stories[id]
	if !ok {
		return storyJSON{}, errNotFound
	}
	if err := fn(s); err != nil {
		return storyJSON{}, err
	}
	return s.json(), nil
}

func (st *store) deleteStory(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.stories, id)
}

// listStories returns matching stories newest first.
func (st *store) listStories(match func(s *story) bool) []storyJSON {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var found []*story
	for _, s := range st.stories {
		if match(s) {
			found = append(found, s)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].createdAt.Equal(found[j].createdAt) {
			return found[i].createdAt.After(found[j].createdAt)
		}
		return found[i].seq > found[j].seq
	})
	out := make([]storyJSON, 0, len(found))
	for _, s := range found {
		out = append(out, s.json())
	}
	return out
}

func (st *store) addImage(img *image) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.seq++
	img.seq = st.seq
	st.images[img.publicID] = img
}

func (st *store) image(publicID string) (image, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	img, ok := st.images[publicID]
	if !ok {
		return image{}, false
	}
	return *img, true
}

func (st *store) deleteImage(publicID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.images, publicID)
}

func (st *store) listImages(owner string) []model.Image {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var found []*image
	for _, img := range st.images {
		if img.owner == owner {
			found = append(found, img)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].seq > found[j].seq })
	out := make([]model.Image, 0, len(found))
	for _, img := range found {
		out = append(out, img.public())
	}
	return out
}

func (st *store) stats() model.AdminStats {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var out model.AdminStats
	for _, s := range st.stories {
		if s.status == model.StatusDeleted {
			continue
		}
		out.Stories.Total++
		if s.status == model.StatusFlagged {
			out.Stories.Flagged++
		}
	}
	for _, u := range st.users {
		out.Users.Total++
		if u.banned {
			out.Users.Banned++
		}
	}
	return out
}

// paginate slices one page out of items. Pages is 0 for an empty list.
func paginate[T any](items []T, page, limit int) ([]T, model.Pagination) {
	total := len(items)
	pages := (total + limit - 1) / limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := min(start+limit, total)
	return items[start:end], model.Pagination{Page: page, Pages: pages, Total: total}
}

package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/alphabot-ai/inkpost/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Health{Status: "OK", Time: s.now().UTC().Format(time.RFC3339)})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	switch {
	case req.Username == "" || req.Password == "":
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	case utf8.RuneCountInString(req.Username) < 3:
		writeError(w, http.StatusBadRequest, "Username must be at least 3 characters")
		return
	case utf8.RuneCountInString(req.Password) < 8:
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	u := &user{username: req.Username, hash: hash, role: model.RoleUser, createdAt: s.now()}
	if err := s.store.addUser(u); errors.Is(err, errExists) {
		writeError(w, http.StatusConflict, "Username already exists")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    u.public(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowLogin(w, r) {
		return
	}
	var req credentials
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	u, ok := s.store.user(strings.TrimSpace(req.Username))
	if !ok || bcrypt.CompareHashAndPassword(u.hash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if u.banned {
		msg := "User is banned"
		if u.banReason != "" {
			msg += ": " + u.banReason
		}
		writeError(w, http.StatusForbidden, msg)
		return
	}
	token, err := s.IssueToken(u.username, u.role, s.cfg.TokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	now := s.now()
	_ = s.store.updateUser(u.username, func(u *user) { u.lastLogin = &now })
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": u.public()})
}

func (s *Server) handleListStories(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r, defaultLimit)
	all := s.store.listStories(func(st *story) bool { return st.status == model.StatusActive })
	items, p := paginate(all, page, limit)
	writeJSON(w, http.StatusOK, map[string]any{"stories": items, "pagination": p})
}

func (s *Server) handleGetStory(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store.story(chi.URLParam(r, "id"))
	if !ok || st.Status != model.StatusActive {
		writeError(w, http.StatusNotFound, "Story not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"story": st})
}

type storyRequest struct {
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	FeaturedImage *string  `json:"featuredImage"`
	Images        []string `json:"images"`
}

func (req *storyRequest) validate() error {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" || req.Content == "" {
		return errors.New("Title and content are required")
	}
	if len(req.Images) > 4 {
		return errors.New("A story can have at most 4 images")
	}
	if req.Images == nil {
		req.Images = []string{}
	}
	return nil
}

func (s *Server) handleCreateStory(w http.ResponseWriter, r *http.Request) {
	var req storyRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := s.now()
	st := &story{
		title:         req.Title,
		content:       req.Content,
		username:      currentUser(r).username,
		status:        model.StatusActive,
		featuredImage: req.FeaturedImage,
		images:        req.Images,
		createdAt:     now,
		updatedAt:     now,
	}
	s.store.createStory(st)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Story created", "story": st.json()})
}

func (s *Server) handleMyStories(w http.ResponseWriter, r *http.Request) {
	owner := currentUser(r).username
	page, limit := pageParams(r, defaultLimit)
	all := s.store.listStories(func(st *story) bool {
		return st.username == owner && st.status != model.StatusDeleted
	})
	items, p := paginate(all, page, limit)
	writeJSON(w, http.StatusOK, map[string]any{"stories": items, "pagination": p})
}

// ownStory reports a story of another user as missing.
func (s *Server) ownStory(w http.ResponseWriter, r *http.Request) (storyJSON, bool) {
	st, ok := s.store.story(chi.URLParam(r, "id"))
	if !ok || st.Username != currentUser(r).username || st.Status == model.StatusDeleted {
		writeError(w, http.StatusNotFound, "Story not found")
		return storyJSON{}, false
	}
	return st, true
}

func (s *Server) handleGetMyStory(w http.ResponseWriter, r *http.Request) {
	st, ok := s.ownStory(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"story": st})
}

func (s *Server) handleUpdateMyStory(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.ownStory(w, r)
	if !ok {
		return
	}
	var req storyRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := s.store.updateStory(existing.ID, func(st *story) error {
		st.title = req.Title
		st.content = req.Content
		st.featuredImage = req.FeaturedImage
		st.images = req.Images
		st.updatedAt = s.now()
		return nil
	})
	if err != nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Story updated", "story": updated})
}

func (s *Server) handleDeleteMyStory(w http.ResponseWriter, r *http.Request) {
	st, ok := s.ownStory(w, r)
	if !ok {
		return
	}
	s.store.deleteStory(st.ID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Story deleted"})
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageSize+1<<20)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image exceeds the 5MB limit")
			return
		}
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImageSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read image")
		return
	}
	if len(data) > MaxImageSize {
		writeError(w, http.StatusRequestEntityTooLarge, "Image exceeds the 5MB limit")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "Only image files are allowed")
		return
	}

	publicID := "inkpost/" + uuid.NewString()
	img := &image{
		publicID:     publicID,
		url:          origin(r) + "/images/" + publicID,
		originalName: path.Base(header.Filename),
		owner:        currentUser(r).username,
		contentType:  contentType,
		data:         data,
		createdAt:    s.now(),
	}
	s.store.addImage(img)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Image uploaded", "image": img.public()})
}

func (s *Server) handleMyImages(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r, defaultLimit)
	items, p := paginate(s.store.listImages(currentUser(r).username), page, limit)
	writeJSON(w, http.StatusOK, map[string]any{"images": items, "pagination": p})
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	publicID, err := url.PathUnescape(chi.URLParam(r, "publicID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image id")
		return
	}
	img, ok := s.store.image(publicID)
	if !ok || img.owner != currentUser(r).username {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	s.store.deleteImage(publicID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Image deleted"})
}

func (s *Server) handleServeImage(w http.ResponseWriter, r *http.Request) {
	img, ok := s.store.image(chi.URLParam(r, "*"))
	if !ok {
		notFound(w)
		return
	}
	w.Header().Set("Content-Type", img.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.data)))
	_, _ = w.Write(img.data)
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.stats())
}

func (s *Server) handleAdminStories(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r, 20)
	status := r.URL.Query().Get("status")
	all := s.store.listStories(func(st *story) bool {
		return status == "" || status == "all" || st.status == status
	})
	items, p := paginate(all, page, limit)
	writeJSON(w, http.StatusOK, map[string]any{"stories": items, "pagination": p})
}

// handleAdminDeleteStory marks the story deleted; it stays visible to admins.
func (s *Server) handleAdminDeleteStory(w http.ResponseWriter, r *http.Request) {
	if err := s.SetStoryStatus(chi.URLParam(r, "id"), model.StatusDeleted); err != nil {
		writeError(w, http.StatusNotFound, "Story not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Story deleted"})
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r, 20)
	items, p := paginate(s.store.listUsers(), page, limit)
	writeJSON(w, http.StatusOK, map[string]any{"users": items, "pagination": p})
}

func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, "Ban reason is required")
		return
	}
	username := chi.URLParam(r, "username")
	if username == currentUser(r).username {
		writeError(w, http.StatusBadRequest, "You cannot ban yourself")
		return
	}
	s.updateUserOr404(w, username, func(u *user) {
		u.banned = true
		u.banReason = strings.TrimSpace(req.Reason)
	}, fmt.Sprintf("User %s banned", username))
}

func (s *Server) handleUnban(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	s.updateUserOr404(w, username, func(u *user) {
		u.banned = false
		u.banReason = ""
	}, fmt.Sprintf("User %s unbanned", username))
}

func (s *Server) handleRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Role != model.RoleUser && req.Role != model.RoleAdmin {
		writeError(w, http.StatusBadRequest, "Invalid role")
		return
	}
	username := chi.URLParam(r, "username")
	s.updateUserOr404(w, username, func(u *user) { u.role = req.Role }, fmt.Sprintf("User %s is now %s", username, req.Role))
}

func (s *Server) updateUserOr404(w http.ResponseWriter, username string, fn func(u *user), message string) {
	if err := s.store.updateUser(username, fn); err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": message})
}

func origin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func readJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message})
}

func writeRateLimit(w http.ResponseWriter, retry time.Duration) {
	seconds := int(retry.Seconds() + 0.999)
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"message":     "Too many login attempts, try again later",
		"retry_after": seconds,
	})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "Not found")
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// Package sandbox is an in-memory implementation of the blogging API. It
// serves the same routes and JSON shapes as the production server and is
// meant for local demos, seeding and tests.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/alphabot-ai/inkpost/internal/config"
	"github.com/alphabot-ai/inkpost/internal/model"
	"github.com/alphabot-ai/inkpost/internal/observability"
	"github.com/alphabot-ai/inkpost/internal/rate"
)

const (
	MaxImageSize = 5 << 20

	// APIPrefix is where the API routes are mounted.
	APIPrefix = "/api"

	defaultLimit = 10
	maxLimit     = 100
)

type Server struct {
	cfg        config.Sandbox
	store      *store
	limiter    rate.Limiter
	logger     *slog.Logger
	now        func() time.Time
	bcryptCost int
	router     chi.Router
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLoginLimiter replaces the per-IP login throttle.
func WithLoginLimiter(l rate.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithBcryptCost lowers the hashing cost, for tests.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.bcryptCost = cost }
}

// New builds a sandbox and seeds the configured admin account.
func New(cfg config.Sandbox, opts ...Option) (*Server, error) {
	if cfg.Secret == "" {
		return nil, errors.New("sandbox: secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	s := &Server{
		cfg:        cfg,
		store:      newStore(),
		logger:     observability.Discard(),
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		if cfg.LoginPerMinute > 0 {
			s.limiter = rate.PerWindow(cfg.LoginPerMinute, time.Minute)
		} else {
			s.limiter = rate.NewMemory(0, 1)
		}
	}
	if cfg.AdminUser != "" {
		if err := s.AddUser(cfg.AdminUser, cfg.AdminPassword, model.RoleAdmin); err != nil {
			return nil, fmt.Errorf("sandbox: seed admin: %w", err)
		}
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/images/*", s.handleServeImage)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Get("/stories", s.handleListStories)
		r.Get("/stories/{id}", s.handleGetStory)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/stories", s.handleCreateStory)
			r.Get("/my-stories", s.handleMyStories)
			r.Get("/my-stories/{id}", s.handleGetMyStory)
			r.Put("/my-stories/{id}", s.handleUpdateMyStory)
			r.Delete("/my-stories/{id}", s.handleDeleteMyStory)
			r.Post("/upload-image", s.handleUploadImage)
			r.Get("/my-images", s.handleMyImages)
			r.Delete("/delete-image/{publicID}", s.handleDeleteImage)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/stats", s.handleAdminStats)
				r.Get("/stories", s.handleAdminStories)
				r.Delete("/stories/{id}", s.handleAdminDeleteStory)
				r.Get("/users", s.handleAdminUsers)
				r.Post("/users/{username}/ban", s.handleBan)
				r.Post("/users/{username}/unban", s.handleUnban)
				r.Put("/users/{username}/role", s.handleRole)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) { notFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) { methodNotAllowed(w) })
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("sandbox listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// AddUser creates an account directly, bypassing registration rules.
func (s *Server) AddUser(username, password, role string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}
	return s.store.addUser(&user{username: username, hash: hash, role: role, createdAt: s.now()})
}

// SetStoryStatus moves a story between active, flagged and deleted.
func (s *Server) SetStoryStatus(id, status string) error {
	switch status {
	case model.StatusActive, model.StatusFlagged, model.StatusDeleted:
	default:
		return fmt.Errorf("sandbox: unknown status %q", status)
	}
	_, err := s.store.updateStory(id, func(st *story) error {
		st.status = status
		st.updatedAt = s.now()
		return nil
	})
	return err
}

// IssueToken signs a token for username without checking credentials.
func (s *Server) IssueToken(username, role string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"username": username,
		"role":     role,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
}

type ctxKey struct{}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Access token required")
			return
		}
		bearer := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(bearer, claims, func(*jwt.Token) (any, error) {
			return []byte(s.cfg.Secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		username, _ := claims["username"].(string)
		u, ok := s.store.user(username)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if u.banned {
			writeError(w, http.StatusForbidden, "User is banned")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

// requireAdmin trusts the stored role, not the one in the token.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r).role != model.RoleAdmin {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) user {
	u, _ := r.Context().Value(ctxKey{}).(user)
	return u
}

func (s *Server) allowLogin(w http.ResponseWriter, r *http.Request) bool {
	if ok, retry := s.limiter.Allow("login:" + clientIP(r)); !ok {
		writeRateLimit(w, retry)
		return false
	}
	return true
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "sandbox request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// pageParams reads page and limit with the API's defaults and bounds.
func pageParams(r *http.Request, def int) (int, int) {
	page := parseIntDefault(r.URL.Query().Get("page"), 1)
	if page < 1 {
		page = 1
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), def)
	if limit < 1 {
		limit = def
	}
	return page, min(limit, maxLimit)
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return def
}

// Package session holds the single bearer token of the client and everything
// derived from it. Claims are decoded from the token payload without any
// signature verification; the server stays authoritative.
package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alphabot-ai/inkpost/internal/model"
)

// TokenKey is the storage key every backend keeps the raw token under.
const TokenKey = "token"

// Backend persists the raw token across process runs.
type Backend interface {
	// Load returns "" when nothing is stored.
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

type State int

const (
	Anonymous State = iota
	Authenticated
	Expired
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return "anonymous"
	}
}

// Claims is the identity embedded in a token payload.
type Claims struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (c Claims) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}

// payload reads only the claims the client needs. Other reserved claims
// may carry any JSON type.
type payload struct {
	Username string           `json:"username"`
	Role     string           `json:"role"`
	Exp      *jwt.NumericDate `json:"exp"`
}

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// DecodeClaims parses the second segment of a three-segment token as
// base64url JSON. Any malformed input yields false.
func DecodeClaims(token string) (Claims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, false
	}
	raw, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return Claims{}, false
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Claims{}, false
	}
	c := Claims{Username: p.Username, Role: p.Role}
	if c.Role == "" {
		c.Role = model.RoleUser
	}
	if p.Exp != nil {
		c.ExpiresAt = p.Exp.Time
	}
	return c, true
}

type Option func(*Store)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is safe for concurrent use. Reads are served from memory and always
// observe the last write.
type Store struct {
	backend Backend
	now     func() time.Time

	mu    sync.RWMutex
	token string
}

// Open creates a store and loads any persisted token from backend.
func Open(ctx context.Context, backend Backend, opts ...Option) (*Store, error) {
	s := &Store{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	token, err := backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.token = token
	return s, nil
}

// SetToken persists token, or clears the session when token is "".
func (s *Store) SetToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if token == "" {
		err = s.backend.Delete(ctx)
	} else {
		err = s.backend.Save(ctx, token)
	}
	if err != nil {
		return err
	}
	s.token = token
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	return s.SetToken(ctx, "")
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) HasToken() bool {
	return s.Token() != ""
}

// Claims decodes the current token.
func (s *Store) Claims() (Claims, bool) {
	token := s.Token()
	if token == "" {
		return Claims{}, false
	}
	return DecodeClaims(token)
}

// IsExpired reports true when there are no claims or the expiry instant has
// been reached.
func (s *Store) IsExpired() bool {
	c, ok := s.Claims()
	if !ok {
		return true
	}
	return s.now().UnixMilli() >= c.ExpiresAt.Unix()*1000
}

func (s *Store) IsAuthenticated() bool {
	return s.HasToken() && !s.IsExpired()
}

func (s *Store) State() State {
	if !s.HasToken() {
		return Anonymous
	}
	if s.IsExpired() {
		return Expired
	}
	return Authenticated
}

// ExpireIfNeeded clears an expired (or undecodable) token. It reports whether
// a token was cleared.
func (s *Store) ExpireIfNeeded(ctx context.Context) (bool, error) {
	if s.State() != Expired {
		return false, nil
	}
	if err := s.Clear(ctx); err != nil {
		return false, err
	}
	return true, nil
}

package model

import (
	"encoding/json"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	StatusActive  = "active"
	StatusFlagged = "flagged"
	StatusDeleted = "deleted"
)

type Story struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Username      string    `json:"username"`
	Status        string    `json:"status,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	FeaturedImage *string   `json:"featuredImage"`
	Images        []string  `json:"images"`
}

// UnmarshalJSON accepts both "id" and the Mongo-style "_id".
func (s *Story) UnmarshalJSON(data []byte) error {
	type alias Story
	var raw struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Story(raw.alias)
	if s.ID == "" {
		s.ID = raw.MongoID
	}
	return nil
}

// StoryInput is the body of create and update calls.
type StoryInput struct {
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	FeaturedImage *string  `json:"featuredImage"`
	Images        []string `json:"images"`
}

// NewStoryInput applies the client convention that the featured image is the
// first image of the story, or none.
func NewStoryInput(title, content string, images []string) StoryInput {
	in := StoryInput{Title: title, Content: content, Images: make([]string, 0, len(images))}
	for _, img := range images {
		if img != "" {
			in.Images = append(in.Images, img)
		}
	}
	if len(in.Images) > 0 {
		featured := in.Images[0]
		in.FeaturedImage = &featured
	}
	return in
}

type Image struct {
	URL          string `json:"url"`
	PublicID     string `json:"publicId"`
	OriginalName string `json:"originalName,omitempty"`
}

type User struct {
	Username  string     `json:"username"`
	Role      string     `json:"role"`
	IsBanned  bool       `json:"isBanned"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

type Pagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Total int `json:"total"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

type AdminStats struct {
	Stories struct {
		Total   int `json:"total"`
		Flagged int `json:"flagged"`
	} `json:"stories"`
	Users struct {
		Total  int `json:"total"`
		Banned int `json:"banned"`
	} `json:"users"`
}

type Health struct {
	Status string `json:"status"`
	Time   string `json:"timestamp,omitempty"`
}

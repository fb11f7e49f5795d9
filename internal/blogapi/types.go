package blogapi

import (
	"encoding/json"
	"time"

	"github.com/postdesk/internal/richtext"
)

// Category is a post category as returned by the blog API.
type Category struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name"`
}

// Author is the embedded author summary of a post.
type Author struct {
	ID     string `json:"_id,omitempty"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Post is the read model served by GET /api/posts/:slug.
type Post struct {
	ID         string             `json:"_id,omitempty"`
	Slug       string             `json:"slug"`
	Title      string             `json:"title"`
	Caption    string             `json:"caption,omitempty"`
	Body       *richtext.Document `json:"body"`
	Photo      string             `json:"photo,omitempty"`
	Categories []Category         `json:"categories"`
	Tags       []string           `json:"tags,omitempty"`
	User       *Author            `json:"user,omitempty"`
	CreatedAt  time.Time          `json:"createdAt,omitempty"`
	UpdatedAt  time.Time          `json:"updatedAt,omitempty"`
}

// UserInfo is the login response; Token authorizes write calls.
type UserInfo struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar,omitempty"`
	Admin    bool   `json:"admin"`
	Verified bool   `json:"verified"`
	Token    string `json:"token"`
}

// Document is the JSON carried in the "document" part of an update.
type Document struct {
	Title string             `json:"title"`
	Body  *richtext.Document `json:"body"`
}

// Picture is a binary file attached as the "postPicture" part.
type Picture struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UpdateForm is the multipart payload of an update.
type UpdateForm struct {
	Picture  *Picture
	Document Document
}

// DocumentJSON returns the exact string sent in the "document" part.
func (f *UpdateForm) DocumentJSON() (string, error) {
	raw, err := json.Marshal(f.Document)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Package blogapitest runs an in-process blog API for tests.
package blogapitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/postdesk/internal/blogapi"
)

// Update is one PUT /api/posts/:slug as received by the server.
type Update struct {
	Slug        string
	Token       string
	Document    string
	PictureName string
	PictureType string
	Picture     []byte
}

type account struct {
	password string
	user     blogapi.UserInfo
}

// Server is a fake blog API backed by memory.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	posts        map[string]blogapi.Post
	photos       map[string][]byte
	accounts     map[string]account
	gets         map[string]int
	photoFetches map[string]int
	updates      []Update
	failStatus   int
	failMessage  string
}

// NewServer starts a fake blog API. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		posts:        make(map[string]blogapi.Post),
		photos:       make(map[string][]byte),
		accounts:     make(map[string]account),
		gets:         make(map[string]int),
		photoFetches: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/posts/{slug}", s.getPost)
	mux.HandleFunc("PUT /api/posts/{slug}", s.updatePost)
	mux.HandleFunc("POST /api/users/login", s.login)
	mux.HandleFunc("GET /uploads/{name}", s.getPhoto)
	s.Server = httptest.NewServer(mux)
	return s
}

// UploadURL is the upload folder base URL, with a trailing slash.
func (s *Server) UploadURL() string {
	return s.URL + "/uploads/"
}

// AddPost stores or replaces a post.
func (s *Server) AddPost(post blogapi.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	s.posts[post.Slug] = post
}

// AddPhoto stores an uploaded photo under name.
func (s *Server) AddPhoto(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos[name] = data
}

// AddUser registers an account; user.Token authorizes updates.
func (s *Server) AddUser(email, password string, user blogapi.UserInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.Email = email
	s.accounts[email] = account{password: password, user: user}
}

// FailUpdates makes every update answer status with message. Status 0 restores normal behavior.
func (s *Server) FailUpdates(status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
	s.failMessage = message
}

// Post returns the stored post.
func (s *Server) Post(slug string) blogapi.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts[slug]
}

// Updates returns the received updates in order.
func (s *Server) Updates() []Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Update(nil), s.updates...)
}

// GetCalls counts GET /api/posts/:slug requests.
func (s *Server) GetCalls(slug string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[slug]
}

// PhotoFetches counts downloads of an uploaded photo.
func (s *Server) PhotoFetches(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photoFetches[name]
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	s.mu.Lock()
	s.gets[slug]++
	post, ok := s.posts[slug]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Post not found"})
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))

	s.mu.Lock()
	failStatus, failMessage := s.failStatus, s.failMessage
	_, exists := s.posts[slug]
	authorized := s.tokenKnown(token)
	s.mu.Unlock()

	if failStatus != 0 {
		writeJSON(w, failStatus, map[string]string{"message": failMessage})
		return
	}
	if !authorized {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authorized, token failed"})
		return
	}
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Post not found"})
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	update := Update{Slug: slug, Token: token, Document: r.FormValue("document")}
	var doc blogapi.Document
	if err := json.Unmarshal([]byte(update.Document), &doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid document"})
		return
	}

	if file, header, err := r.FormFile("postPicture"); err == nil {
		data, readErr := io.ReadAll(file)
		file.Close()
		if readErr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": readErr.Error()})
			return
		}
		update.PictureName = header.Filename
		update.PictureType = header.Header.Get("Content-Type")
		update.Picture = data
	}

	s.mu.Lock()
	post := s.posts[slug]
	post.Title = doc.Title
	if doc.Body != nil {
		post.Body = doc.Body
	}
	post.Photo = update.PictureName
	if update.PictureName != "" {
		s.photos[update.PictureName] = update.Picture
	}
	post.UpdatedAt = time.Now().UTC()
	s.posts[slug] = post
	s.updates = append(s.updates, update)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, post)
}

func (s *Server) tokenKnown(token string) bool {
	if token == "" {
		return false
	}
	for _, acc := range s.accounts {
		if acc.user.Token == token {
			return true
		}
	}
	return false
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request"})
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[req.Email]
	s.mu.Unlock()

	if !ok || acc.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
		return
	}
	writeJSON(w, http.StatusOK, acc.user)
}

func (s *Server) getPhoto(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	s.mu.Lock()
	data, ok := s.photos[name]
	if ok {
		s.photoFetches[name]++
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

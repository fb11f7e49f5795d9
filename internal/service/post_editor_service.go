package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/postdesk/internal/blogapi"
	"github.com/postdesk/internal/db"
	"github.com/postdesk/internal/events"
	"github.com/postdesk/internal/photo"
	"github.com/postdesk/internal/querycache"
	"github.com/postdesk/internal/richtext"
	"github.com/rs/zerolog"
)

var (
	ErrLoadFailed         = errors.New("couldn't fetch the post detail")
	ErrBufferNotFound     = errors.New("edit buffer not found")
	ErrDeleteNotConfirmed = errors.New("photo deletion was not confirmed")
	ErrSessionRequired    = errors.New("editor session is required")
	ErrPhotoRequired      = errors.New("no photo was selected")
)

// ResourceBlog is the query cache resource name for single posts.
const ResourceBlog = "blog"

// View states of the editor page.
const (
	StateLoading = "loading"
	StateError   = "error"
	StateReady   = "ready"
)

// PostReader loads a post from the blog API.
type PostReader interface {
	GetPost(ctx context.Context, slug string) (*blogapi.Post, error)
}

// PostUpdater sends an update to the blog API.
type PostUpdater interface {
	UpdatePost(ctx context.Context, slug, token string, form *blogapi.UpdateForm) (*blogapi.Post, error)
}

// QueryCache is the read-through cache in front of PostReader.
type QueryCache interface {
	Fetch(ctx context.Context, key querycache.Key, dest any, fetch func(ctx context.Context) error) error
	Invalidate(ctx context.Context, key querycache.Key) error
}

// EditorView is what the edit page renders.
type EditorView struct {
	State  string
	Phase  string
	Slug   string
	Post   *blogapi.Post
	Buffer *EditBuffer
}

// PostEditorDeps wires a PostEditorService.
type PostEditorDeps struct {
	Posts   PostReader
	Updater PostUpdater
	Cache   QueryCache
	Photos  photo.Fetcher
	Buffers BufferStore
	Events  events.Publisher
	Logger  zerolog.Logger
}

// PostEditorService drives the load → edit → submit cycle of the post editor.
type PostEditorService struct {
	posts   PostReader
	updater PostUpdater
	cache   QueryCache
	photos  photo.Fetcher
	buffers BufferStore
	events  events.Publisher
	log     zerolog.Logger
}

// NewPostEditorService creates the editor service. A nil Events publisher is a no-op.
func NewPostEditorService(deps PostEditorDeps) *PostEditorService {
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &PostEditorService{
		posts:   deps.Posts,
		updater: deps.Updater,
		cache:   deps.Cache,
		photos:  deps.Photos,
		buffers: deps.Buffers,
		events:  publisher,
		log:     deps.Logger.With().Str("component", "post_editor").Logger(),
	}
}

// CacheKey is the query cache key of a post.
func CacheKey(slug string) querycache.Key {
	return querycache.Key{Resource: ResourceBlog, Slug: slug}
}

// LoadPost reads a post through the query cache. Every failure wraps ErrLoadFailed.
func (s *PostEditorService) LoadPost(ctx context.Context, slug string) (*blogapi.Post, error) {
	slug = strings.TrimSpace(slug)
	var post blogapi.Post
	err := s.cache.Fetch(ctx, CacheKey(slug), &post, func(ctx context.Context) error {
		fetched, err := s.posts.GetPost(ctx, slug)
		if err != nil {
			return err
		}
		post = *fetched
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("slug", slug).Msg("post load failed")
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return &post, nil
}

// Open loads the post and returns the session's buffer, seeding it on first load.
func (s *PostEditorService) Open(ctx context.Context, session, slug string) (*EditorView, error) {
	if strings.TrimSpace(session) == "" {
		return nil, ErrSessionRequired
	}
	slug = strings.TrimSpace(slug)

	post, err := s.LoadPost(ctx, slug)
	if err != nil {
		return &EditorView{State: StateError, Slug: slug}, err
	}

	buf, err := s.buffers.Load(ctx, session, slug)
	if errors.Is(err, ErrBufferNotFound) {
		buf = newEditBuffer(session, slug)
	} else if err != nil {
		return nil, err
	}

	if buf.Seed(post) {
		if err := s.buffers.Save(ctx, buf); err != nil {
			return nil, err
		}
		s.log.Debug().Str("slug", slug).Str("session", session).Msg("edit buffer seeded")
	}

	return &EditorView{
		State:  StateReady,
		Phase:  buf.Phase,
		Slug:   slug,
		Post:   post,
		Buffer: buf,
	}, nil
}

// Buffer returns the stored buffer without loading the post.
func (s *PostEditorService) Buffer(ctx context.Context, session, slug string) (*EditBuffer, error) {
	if strings.TrimSpace(session) == "" {
		return nil, ErrSessionRequired
	}
	return s.buffers.Load(ctx, session, strings.TrimSpace(slug))
}

// SetTitle replaces the buffered title.
func (s *PostEditorService) SetTitle(ctx context.Context, session, slug, title string) (*EditBuffer, error) {
	return s.mutate(ctx, session, slug, func(buf *EditBuffer) error {
		buf.Title = title
		return nil
	})
}

// SetBody replaces the buffered body with the full document from the editor.
func (s *PostEditorService) SetBody(ctx context.Context, session, slug string, doc *richtext.Document) (*EditBuffer, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, session, slug, func(buf *EditBuffer) error {
		buf.Body = doc
		return nil
	})
}

// SelectPhoto replaces the selected photo; the existing photo reference is kept.
func (s *PostEditorService) SelectPhoto(ctx context.Context, session, slug string, pic *blogapi.Picture) (*EditBuffer, error) {
	if pic == nil || len(pic.Data) == 0 {
		return nil, ErrPhotoRequired
	}
	return s.mutate(ctx, session, slug, func(buf *EditBuffer) error {
		buf.Photo = pic
		return nil
	})
}

// DeletePhoto clears both the selected and the existing photo once confirmed.
func (s *PostEditorService) DeletePhoto(ctx context.Context, session, slug string, confirmed bool) (*EditBuffer, error) {
	if !confirmed {
		return nil, ErrDeleteNotConfirmed
	}
	return s.mutate(ctx, session, slug, func(buf *EditBuffer) error {
		buf.Photo = nil
		buf.InitialPhoto = ""
		return nil
	})
}

// Discard drops the session's buffer for slug.
func (s *PostEditorService) Discard(ctx context.Context, session, slug string) error {
	if strings.TrimSpace(session) == "" {
		return ErrSessionRequired
	}
	return s.buffers.Delete(ctx, session, strings.TrimSpace(slug))
}

// Submit sends the buffer to the blog API with token. On success the cached post is
// invalidated once and the buffer is discarded; on failure the buffer is left as it was.
func (s *PostEditorService) Submit(ctx context.Context, session, slug, token string) (*blogapi.Post, error) {
	buf, err := s.ensureBuffer(ctx, session, slug)
	if err != nil {
		return nil, err
	}
	slug = buf.Slug
	logger := s.log.With().Str("slug", slug).Str("session", session).Logger()

	form, err := BuildSubmission(ctx, buf, s.photos)
	if err != nil {
		logger.Warn().Err(err).Msg("building submission failed")
		return nil, err
	}

	buf.Phase = db.PhaseSubmitting
	if err := s.buffers.Save(ctx, buf); err != nil {
		return nil, err
	}

	updated, err := s.updater.UpdatePost(ctx, slug, token, form)
	if err != nil {
		logger.Warn().Err(err).Int("status", blogapi.StatusCode(err)).Msg("post update failed")
		buf.Phase = db.PhaseIdle
		if saveErr := s.buffers.Save(ctx, buf); saveErr != nil {
			logger.Error().Err(saveErr).Msg("restoring buffer phase failed")
		}
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, CacheKey(slug)); err != nil {
		logger.Error().Err(err).Msg("query cache invalidation failed")
	}

	event := events.NewPostUpdated(events.PostUpdatedPayload{
		Slug:         slug,
		Title:        buf.Title,
		PhotoChanged: buf.Photo != nil,
		HasPhoto:     form.Picture != nil,
	})
	if err := s.events.PublishPostUpdated(ctx, event); err != nil {
		logger.Warn().Err(err).Msg("publishing post.updated failed")
	}

	if err := s.buffers.Delete(ctx, session, slug); err != nil {
		logger.Error().Err(err).Msg("discarding submitted buffer failed")
	}

	logger.Info().Str("photo", buf.PhotoState()).Msg("post updated")
	return updated, nil
}

// BuildSubmission assembles the multipart payload from a buffer:
//   - new photo and no existing photo: attach the new file;
//   - existing photo and no new photo: re-download it and attach it as a file;
//   - both: the new photo wins;
//   - neither: no picture part.
//
// The document part always carries the current title and body.
func BuildSubmission(ctx context.Context, buf *EditBuffer, photos photo.Fetcher) (*blogapi.UpdateForm, error) {
	form := &blogapi.UpdateForm{
		Document: blogapi.Document{Title: buf.Title, Body: buf.Body},
	}

	switch {
	case buf.InitialPhoto == "" && buf.Photo != nil:
		form.Picture = buf.Photo
	case buf.InitialPhoto != "" && buf.Photo == nil:
		if photos == nil {
			return nil, fmt.Errorf("re-fetch photo %s: no photo source configured", buf.InitialPhoto)
		}
		pic, err := photos.Fetch(ctx, buf.InitialPhoto)
		if err != nil {
			return nil, fmt.Errorf("re-fetch photo %s: %w", buf.InitialPhoto, err)
		}
		form.Picture = &blogapi.Picture{
			Filename:    buf.InitialPhoto,
			ContentType: pic.ContentType,
			Data:        pic.Data,
		}
	case buf.InitialPhoto != "" && buf.Photo != nil:
		form.Picture = buf.Photo
	}

	return form, nil
}

func (s *PostEditorService) ensureBuffer(ctx context.Context, session, slug string) (*EditBuffer, error) {
	if strings.TrimSpace(session) == "" {
		return nil, ErrSessionRequired
	}
	slug = strings.TrimSpace(slug)

	buf, err := s.buffers.Load(ctx, session, slug)
	if err == nil {
		return buf, nil
	}
	if !errors.Is(err, ErrBufferNotFound) {
		return nil, err
	}

	view, err := s.Open(ctx, session, slug)
	if err != nil {
		return nil, err
	}
	return view.Buffer, nil
}

func (s *PostEditorService) mutate(ctx context.Context, session, slug string, apply func(*EditBuffer) error) (*EditBuffer, error) {
	buf, err := s.ensureBuffer(ctx, session, slug)
	if err != nil {
		return nil, err
	}
	if err := apply(buf); err != nil {
		return nil, err
	}
	if err := s.buffers.Save(ctx, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

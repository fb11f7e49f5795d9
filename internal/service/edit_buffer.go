package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/postdesk/internal/blogapi"
	"github.com/postdesk/internal/db"
	"github.com/postdesk/internal/richtext"
	"gorm.io/gorm"
)

// EditBuffer holds one editor session's unsaved changes to a post.
type EditBuffer struct {
	SessionID    string
	Slug         string
	Title        string
	Body         *richtext.Document
	Photo        *blogapi.Picture
	InitialPhoto string
	Seeded       bool
	Phase        string
}

func newEditBuffer(session, slug string) *EditBuffer {
	return &EditBuffer{SessionID: session, Slug: slug, Phase: db.PhaseIdle}
}

// Seed copies title and photo from the first successful load. Later loads are ignored
// so user edits are never overwritten by a stale response.
func (b *EditBuffer) Seed(post *blogapi.Post) bool {
	if b.Seeded || post == nil {
		return false
	}
	b.Title = post.Title
	b.InitialPhoto = post.Photo
	b.Seeded = true
	return true
}

// PhotoState names which of the three photo outcomes a submit would produce.
func (b *EditBuffer) PhotoState() string {
	switch {
	case b.Photo != nil:
		return "new"
	case b.InitialPhoto != "":
		return "retained"
	default:
		return "none"
	}
}

// BufferStore persists edit buffers keyed by (session, slug).
type BufferStore interface {
	Load(ctx context.Context, session, slug string) (*EditBuffer, error)
	Save(ctx context.Context, buf *EditBuffer) error
	Delete(ctx context.Context, session, slug string) error
}

// GormBufferStore keeps buffers in the db.EditBuffer table.
type GormBufferStore struct {
	db *gorm.DB
}

// NewGormBufferStore creates a BufferStore backed by gdb.
func NewGormBufferStore(gdb *gorm.DB) *GormBufferStore {
	return &GormBufferStore{db: gdb}
}

// Load returns ErrBufferNotFound when nothing is stored.
func (s *GormBufferStore) Load(ctx context.Context, session, slug string) (*EditBuffer, error) {
	var row db.EditBuffer
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND slug = ?", session, slug).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBufferNotFound
		}
		return nil, err
	}
	return fromRow(&row)
}

// Save inserts or replaces the buffer.
func (s *GormBufferStore) Save(ctx context.Context, buf *EditBuffer) error {
	row, err := toRow(buf)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing db.EditBuffer
		err := tx.Where("session_id = ? AND slug = ?", buf.SessionID, buf.Slug).First(&existing).Error
		switch {
		case err == nil:
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			return tx.Save(row).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(row).Error
		default:
			return err
		}
	})
}

// Delete removes the buffer permanently; deleting a missing buffer is not an error.
func (s *GormBufferStore) Delete(ctx context.Context, session, slug string) error {
	return s.db.WithContext(ctx).Unscoped().
		Where("session_id = ? AND slug = ?", session, slug).
		Delete(&db.EditBuffer{}).Error
}

func toRow(buf *EditBuffer) (*db.EditBuffer, error) {
	row := &db.EditBuffer{
		SessionID:    buf.SessionID,
		Slug:         buf.Slug,
		Title:        buf.Title,
		InitialPhoto: buf.InitialPhoto,
		Seeded:       buf.Seeded,
		Phase:        buf.Phase,
	}
	if row.Phase == "" {
		row.Phase = db.PhaseIdle
	}
	if buf.Body != nil {
		raw, err := json.Marshal(buf.Body)
		if err != nil {
			return nil, fmt.Errorf("encode buffer body: %w", err)
		}
		row.Body = raw
	}
	if buf.Photo != nil {
		row.PhotoName = buf.Photo.Filename
		row.PhotoType = buf.Photo.ContentType
		row.PhotoData = buf.Photo.Data
	}
	return row, nil
}

func fromRow(row *db.EditBuffer) (*EditBuffer, error) {
	buf := &EditBuffer{
		SessionID:    row.SessionID,
		Slug:         row.Slug,
		Title:        row.Title,
		InitialPhoto: row.InitialPhoto,
		Seeded:       row.Seeded,
		Phase:        row.Phase,
	}
	if len(row.Body) > 0 {
		doc, err := richtext.Parse(row.Body)
		if err != nil {
			return nil, fmt.Errorf("decode buffer body: %w", err)
		}
		buf.Body = doc
	}
	if row.HasPhoto() {
		buf.Photo = &blogapi.Picture{
			Filename:    row.PhotoName,
			ContentType: row.PhotoType,
			Data:        row.PhotoData,
		}
	}
	return buf, nil
}

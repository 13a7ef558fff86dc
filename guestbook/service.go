// Package guestbook stores visitor photos and announces changes to stream clients.
package guestbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ttsudarshan/portfolio/db"
	"github.com/ttsudarshan/portfolio/logger"
	photo "github.com/ttsudarshan/portfolio/photo/v1"
)

const (
	// DefaultName is used when a visitor leaves the name blank.
	DefaultName = "Anonymous Visitor"
	// MaxNameLength is the longest visitor name kept, in characters.
	MaxNameLength = 50

	keyPrefix = "guestbook/"
)

var (
	ErrInvalidImage = errors.New("invalid image")
	ErrForbidden    = errors.New("not allowed to delete this photo")
	ErrNotFound     = errors.New("photo not found")
)

// PhotoStore persists photo records.
type PhotoStore interface {
	CreatePhoto(ctx context.Context, rec photo.Record) error
	GetPhoto(ctx context.Context, id string) (photo.Record, error)
	DeletePhoto(ctx context.Context, id string) error
	ListPhotos(ctx context.Context) ([]photo.Record, error)
}

// BlobStore persists image bytes.
type BlobStore interface {
	UploadObject(ctx context.Context, key string, data io.Reader, contentType string) error
	GetObject(ctx context.Context, key string) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, key string) error
	PublicURL(key string) string
}

// Announcer tells connected clients about guestbook changes.
type Announcer interface {
	PublishNewPhoto(ctx context.Context, rec photo.Record)
	PublishDeletedPhoto(ctx context.Context, id string)
}

// Config controls image normalization.
type Config struct {
	MaxImageSize int
	JPEGQuality  int
}

// UploadRequest is the body of POST /api/guestbook/upload.
type UploadRequest struct {
	Image     string `json:"image"`
	Name      string `json:"name"`
	VisitorID string `json:"visitor_id"`
}

// Image is a stored photo ready to be streamed to a client.
type Image struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// Service implements the guestbook operations. Every mutation is announced
// only after both the blob and the record operations have succeeded.
type Service struct {
	photos PhotoStore
	blobs  BlobStore
	events Announcer
	cfg    Config
	log    zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates a guestbook service.
func NewService(photos PhotoStore, blobs BlobStore, events Announcer, cfg Config) *Service {
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = 800
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 70
	}
	return &Service{
		photos: photos,
		blobs:  blobs,
		events: events,
		cfg:    cfg,
		log:    logger.Component("guestbook"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// CleanName trims name and limits it to MaxNameLength characters, falling back to DefaultName.
func CleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
	}
	return name
}

// Upload normalizes and stores a visitor photo, then announces it.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (photo.Record, error) {
	raw, err := DecodeDataURL(req.Image)
	if err != nil {
		return photo.Record{}, err
	}

	jpeg, err := NormalizeImage(raw, s.cfg.MaxImageSize, s.cfg.JPEGQuality)
	if err != nil {
		return photo.Record{}, err
	}

	id := s.newID()
	key := keyPrefix + id + ".jpg"

	if err := s.blobs.UploadObject(ctx, key, bytes.NewReader(jpeg), "image/jpeg"); err != nil {
		return photo.Record{}, fmt.Errorf("failed to store image: %w", err)
	}

	imageURL := s.blobs.PublicURL(key)
	if imageURL == "" {
		imageURL = "/api/guestbook/image/" + id
	}

	rec := photo.Record{
		ID:          id,
		VisitorName: CleanName(req.Name),
		VisitorID:   strings.TrimSpace(req.VisitorID),
		ImageURL:    imageURL,
		Filename:    key,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.photos.CreatePhoto(ctx, rec); err != nil {
		if derr := s.blobs.DeleteObject(ctx, key); derr != nil {
			s.log.Warn().Err(derr).Str("key", key).Msg("failed to remove orphaned image")
		}
		return photo.Record{}, fmt.Errorf("failed to save photo: %w", err)
	}

	s.log.Info().Str("photo_id", id).Str("visitor_name", rec.VisitorName).Int("bytes", len(jpeg)).Msg("photo uploaded")
	s.events.PublishNewPhoto(ctx, rec)
	return rec, nil
}

// List returns every photo, newest first.
func (s *Service) List(ctx context.Context) ([]photo.Record, error) {
	photos, err := s.photos.ListPhotos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	return photos, nil
}

// Delete removes a photo owned by visitorID, or any photo when admin is true.
func (s *Service) Delete(ctx context.Context, id, visitorID string, admin bool) error {
	rec, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	if !admin && (visitorID == "" || visitorID != rec.VisitorID) {
		return ErrForbidden
	}

	if err := s.blobs.DeleteObject(ctx, rec.Filename); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	if err := s.photos.DeletePhoto(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete photo: %w", err)
	}

	s.log.Info().Str("photo_id", id).Bool("admin", admin).Msg("photo deleted")
	s.events.PublishDeletedPhoto(ctx, id)
	return nil
}

// Image opens the stored image of a photo. The caller closes Body.
func (s *Service) Image(ctx context.Context, id string) (*Image, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	obj, err := s.blobs.GetObject(ctx, rec.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	img := &Image{Body: obj.Body, ContentType: "image/jpeg"}
	if obj.ContentType != nil && *obj.ContentType != "" {
		img.ContentType = *obj.ContentType
	}
	if obj.ContentLength != nil {
		img.ContentLength = *obj.ContentLength
	}
	return img, nil
}

func (s *Service) get(ctx context.Context, id string) (photo.Record, error) {
	rec, err := s.photos.GetPhoto(ctx, id)
	if db.IsNotFound(err) {
		return photo.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return photo.Record{}, fmt.Errorf("failed to get photo: %w", err)
	}
	return rec, nil
}

package contact

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultAvatarMaxBytes is the avatar size ceiling (5MB).
const DefaultAvatarMaxBytes int64 = 5 << 20

var (
	ErrAvatarTooLarge   = errors.New("avatar exceeds the size limit")
	ErrAvatarType       = errors.New("avatar is not a JPEG or PNG image")
	ErrAvatarUnreadable = errors.New("avatar could not be read")
	ErrAvatarTooMany    = errors.New("more than one avatar file")
	ErrAvatarMissing    = errors.New("no avatar file")
)

var avatarExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
}

var avatarMIMEs = []string{"image/jpeg", "image/png"}

// ImageFile is one file from a drop or file-picker selection.
type ImageFile struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// FileFromHeader adapts an uploaded multipart file.
func FileFromHeader(fh *multipart.FileHeader) ImageFile {
	return ImageFile{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

// AvatarIngestor turns an uploaded image into a base64 data URL usable both
// as a preview and as the avatar field value.
type AvatarIngestor struct {
	maxBytes int64
}

// NewAvatarIngestor creates an ingestor with the given size ceiling.
// A non-positive maxBytes selects DefaultAvatarMaxBytes.
func NewAvatarIngestor(maxBytes int64) *AvatarIngestor {
	if maxBytes <= 0 {
		maxBytes = DefaultAvatarMaxBytes
	}
	return &AvatarIngestor{maxBytes: maxBytes}
}

// MaxBytes returns the size ceiling.
func (a *AvatarIngestor) MaxBytes() int64 {
	return a.maxBytes
}

// MaxMB returns the size ceiling in whole megabytes.
func (a *AvatarIngestor) MaxMB() int64 {
	return a.maxBytes >> 20
}

// Ingest validates and reads exactly one file. The file is read completely
// before anything is returned; a cancelled context yields ctx.Err() and no
// partial result.
func (a *AvatarIngestor) Ingest(ctx context.Context, files []ImageFile) (string, error) {
	switch {
	case len(files) == 0:
		return "", ErrAvatarMissing
	case len(files) > 1:
		return "", ErrAvatarTooMany
	}

	file := files[0]
	if file.Size > a.maxBytes {
		return "", ErrAvatarTooLarge
	}
	if !avatarExtensions[strings.ToLower(filepath.Ext(file.Name))] {
		return "", ErrAvatarType
	}
	if file.Open == nil {
		return "", ErrAvatarUnreadable
	}

	data, err := a.read(ctx, file)
	if err != nil {
		return "", err
	}
	if int64(len(data)) > a.maxBytes {
		return "", ErrAvatarTooLarge
	}

	mt := mimetype.Detect(data)
	if !mt.Is(avatarMIMEs[0]) && !mt.Is(avatarMIMEs[1]) {
		return "", ErrAvatarType
	}

	return "data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

type readResult struct {
	data []byte
	err  error
}

func (a *AvatarIngestor) read(ctx context.Context, file ImageFile) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAvatarUnreadable, err)
	}

	done := make(chan readResult, 1)
	go func() {
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, a.maxBytes+1))
		done <- readResult{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAvatarUnreadable, r.err)
		}
		return r.data, nil
	}
}

// Message returns the user-facing avatar field error for an Ingest error.
func (a *AvatarIngestor) Message(err error) string {
	switch {
	case errors.Is(err, ErrAvatarTooLarge):
		return fmt.Sprintf("Image size must be less than %dMB", a.MaxMB())
	case errors.Is(err, ErrAvatarType):
		return "Only JPEG and PNG images are allowed"
	case errors.Is(err, ErrAvatarTooMany):
		return "Only one image can be uploaded at a time"
	case errors.Is(err, ErrAvatarMissing):
		return "No image selected"
	default:
		return "Unable to read image file"
	}
}

package storage

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// MediaClass groups uploads that share a size limit.
type MediaClass string

const (
	ClassImage MediaClass = "image"
	ClassAudio MediaClass = "audio"
	ClassVideo MediaClass = "video"
)

const (
	MaxImageSize = 10 * 1024 * 1024
	MaxAudioSize = 10 * 1024 * 1024
	MaxVideoSize = 100 * 1024 * 1024

	MaxFilenameLength = 255
)

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrInvalidFileType = errors.New("invalid file type - only images, audio and video are allowed")
	ErrFilenameTooLong = errors.New("filename too long - maximum 255 characters")
	ErrEmptyFile       = errors.New("file is empty")
)

var AllowedMimeTypes = map[string]MediaClass{
	"image/jpeg":      ClassImage,
	"image/png":       ClassImage,
	"image/gif":       ClassImage,
	"image/webp":      ClassImage,
	"video/mp4":       ClassVideo,
	"video/quicktime": ClassVideo,
	"video/webm":      ClassVideo,
	"audio/mpeg":      ClassAudio,
	"audio/mp3":       ClassAudio,
	"audio/mp4":       ClassAudio,
	"audio/m4a":       ClassAudio,
	"audio/wav":       ClassAudio,
	"audio/wave":      ClassAudio,
	"audio/x-wav":     ClassAudio,
	"audio/ogg":       ClassAudio,
}

var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
}

// MaxSize is the upload limit for the class.
func (c MediaClass) MaxSize() int64 {
	switch c {
	case ClassVideo:
		return MaxVideoSize
	case ClassAudio:
		return MaxAudioSize
	default:
		return MaxImageSize
	}
}

// Upload describes a validated file.
type Upload struct {
	Filename    string
	ContentType string
	Class       MediaClass
	Size        int64
}

// Validate checks a file's size, name and type. An empty content type is
// guessed from the filename extension.
func Validate(filename, contentType string, size int64) (*Upload, error) {
	if size <= 0 {
		return nil, ErrEmptyFile
	}
	if len(filename) > MaxFilenameLength {
		return nil, ErrFilenameTooLong
	}

	contentType = normalizeContentType(contentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = guessContentType(filename)
	}
	class, ok := AllowedMimeTypes[contentType]
	if !ok {
		return nil, ErrInvalidFileType
	}
	if size > class.MaxSize() {
		return nil, fmt.Errorf("%w - maximum %dMB allowed for %s", ErrFileTooLarge, class.MaxSize()/(1024*1024), class)
	}
	return &Upload{Filename: filename, ContentType: contentType, Class: class, Size: size}, nil
}

// ValidateUpload runs Validate over a multipart file header.
func ValidateUpload(fileHeader *multipart.FileHeader) (*Upload, error) {
	return Validate(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileHeader.Size)
}

func normalizeContentType(ct string) string {
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func guessContentType(filename string) string {
	if ct, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

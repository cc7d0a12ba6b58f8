package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/foodgram/backend/config"
)

// ImageService stores recipe images. Clients may upload either a raw binary
// body or a data-URI-embedded base64 string; the latter is decoded here.
// Images go to S3 when configured, otherwise to a local media directory.
type ImageService struct {
	s3Config *config.S3Config
	mediaDir string
}

// NewImageService creates a new ImageService instance. s3Config may be nil.
func NewImageService(s3Config *config.S3Config, mediaDir string) *ImageService {
	return &ImageService{
		s3Config: s3Config,
		mediaDir: mediaDir,
	}
}

// IsDataURI reports whether the string is a data-URI-embedded image.
func IsDataURI(data string) bool {
	return strings.HasPrefix(data, "data:image")
}

// DecodeDataURI splits a "data:image/<ext>;base64,<payload>" string into the
// decoded bytes and the file extension.
func DecodeDataURI(data string) ([]byte, string, error) {
	if !IsDataURI(data) {
		return nil, "", &ValidationError{Field: "image", Message: "expected a data:image URI"}
	}

	header, payload, found := strings.Cut(data, ";base64,")
	if !found {
		return nil, "", &ValidationError{Field: "image", Message: "image is not base64 encoded"}
	}

	ext := header[strings.LastIndex(header, "/")+1:]
	if ext == "" {
		return nil, "", &ValidationError{Field: "image", Message: "missing image format"}
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", &ValidationError{Field: "image", Message: "invalid base64 image data"}
	}

	return decoded, ext, nil
}

// StoreDataURI decodes an embedded image and writes it to storage, returning
// the stored location (S3 URL or local path).
func (s *ImageService) StoreDataURI(ctx context.Context, data string) (string, error) {
	decoded, ext, err := DecodeDataURI(data)
	if err != nil {
		return "", err
	}
	return s.Store(ctx, decoded, ext)
}

// Store writes raw image bytes under a date-partitioned key.
func (s *ImageService) Store(ctx context.Context, data []byte, ext string) (string, error) {
	key := fmt.Sprintf("recipe_images/%s/%s.%s",
		time.Now().Format("2006/01/02"), uuid.New().String(), ext)

	if s.s3Config != nil {
		_, err := s.s3Config.Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.s3Config.BucketName),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("image/" + ext),
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload image: %w", err)
		}
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.s3Config.BucketName, key), nil
	}

	path := filepath.Join(s.mediaDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return path, nil
}

package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/mealwise/backend/config"
)

// PhotoArchiveService stores accepted meal photos in S3 so entries survive
// the chat platform's file URL expiry.
type PhotoArchiveService struct {
	s3Config *config.S3Config
	logger   *logrus.Logger
}

// NewPhotoArchiveService creates a new PhotoArchiveService instance
func NewPhotoArchiveService(s3Config *config.S3Config, logger *logrus.Logger) *PhotoArchiveService {
	return &PhotoArchiveService{s3Config: s3Config, logger: logger}
}

// Archive uploads the photo bytes under the given key and returns the public
// URL.
func (s *PhotoArchiveService) Archive(ctx context.Context, image []byte, key string) (string, error) {
	_, err := s.s3Config.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(image),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	publicURL := fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.s3Config.BucketName, key)
	s.logger.WithFields(logrus.Fields{
		"component": "archive",
		"key":       key,
	}).Info("meal photo archived")

	return publicURL, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinIOStorage stores profile pictures in a MinIO/S3 bucket
type MinIOStorage struct {
	client         *minio.Client
	bucketName     string
	endpoint       string
	publicEndpoint string
	useSSL         bool
}

// NewMinIOStorage creates a new MinIO storage client
func NewMinIOStorage(endpoint, publicEndpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOStorage, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	if publicEndpoint == "" {
		publicEndpoint = endpoint
	}

	publicEndpoint = strings.TrimSpace(publicEndpoint)
	publicEndpoint = strings.Trim(publicEndpoint, `"'=`)
	publicEndpoint = strings.TrimSuffix(publicEndpoint, "/")

	storage := &MinIOStorage{
		client:         minioClient,
		bucketName:     bucketName,
		endpoint:       endpoint,
		publicEndpoint: publicEndpoint,
		useSSL:         useSSL,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// An unreachable endpoint is not fatal at startup; the health check reports it.
	exists, err := minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		log.Warn().Err(err).Str("bucket", bucketName).Msg("Failed to check bucket existence, continuing")
	} else if !exists {
		err = minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			log.Error().Err(err).Str("bucket", bucketName).Msg("Failed to create bucket")
		} else {
			log.Info().Str("bucket", bucketName).Msg("Bucket created")

			// profile pictures are served directly to the app
			policy := fmt.Sprintf(`{"Version": "2012-10-17","Statement": [{"Action": ["s3:GetObject"],"Effect": "Allow","Principal": {"AWS": ["*"]},"Resource": ["arn:aws:s3:::%s/profile-pictures/*"],"Sid": ""}]}`, bucketName)
			if err := minioClient.SetBucketPolicy(ctx, bucketName, policy); err != nil {
				log.Error().Err(err).Msg("Failed to set bucket policy")
			}
		}
	}

	log.Info().
		Str("endpoint", endpoint).
		Str("public_endpoint", publicEndpoint).
		Str("bucket", bucketName).
		Msg("MinIO storage initialized")

	return storage, nil
}

// UploadProfilePicture stores a user's picture and returns the object key and public URL
func (s *MinIOStorage) UploadProfilePicture(ctx context.Context, userID string, reader io.Reader, filename string, contentType string, size int64) (string, string, error) {
	key := s.profilePictureKey(userID, filename)

	_, err := s.client.PutObject(
		ctx,
		s.bucketName,
		key,
		reader,
		size,
		minio.PutObjectOptions{
			ContentType:  contentType,
			UserMetadata: map[string]string{"user-id": userID},
		},
	)
	if err != nil {
		return "", "", fmt.Errorf("failed to upload profile picture: %w", err)
	}

	publicURL := s.ObjectURL(key)

	log.Info().
		Str("user_id", userID).
		Str("key", key).
		Str("url", publicURL).
		Msg("Profile picture uploaded")

	return key, publicURL, nil
}

func (s *MinIOStorage) profilePictureKey(userID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s%s%s", profilePictureDir(userID), uuid.New().String(), ext)
}

const profilePicturePrefix = "profile-pictures/"

// ErrForeignObject is returned when a URL does not name one of the caller's pictures
var ErrForeignObject = errors.New("object does not belong to user")

func profilePictureDir(userID string) string {
	return profilePicturePrefix + userID + "/"
}

// ownsPictureKey reports whether key is a file directly under userID's picture prefix
func ownsPictureKey(key, userID string) bool {
	if userID == "" || strings.ContainsAny(userID, "/\\") || strings.Contains(key, "..") {
		return false
	}
	name, ok := strings.CutPrefix(key, profilePictureDir(userID))
	return ok && name != "" && !strings.Contains(name, "/")
}

// OwnsProfilePicture reports whether objectURL points at one of userID's
// uploaded profile pictures.
func OwnsProfilePicture(objectURL, userID string) bool {
	u, err := url.Parse(objectURL)
	if err != nil || strings.Contains(u.Path, "..") {
		return false
	}
	dir := "/" + profilePictureDir(userID)
	idx := strings.Index(u.Path, dir)
	if idx == -1 {
		return false
	}
	return ownsPictureKey(u.Path[idx+1:], userID)
}

// DeleteProfilePicture removes one of userID's pictures. URLs that do not
// point under the user's own picture prefix are refused with ErrForeignObject.
func (s *MinIOStorage) DeleteProfilePicture(ctx context.Context, userID, objectURL string) error {
	objectName := s.KeyFromURL(objectURL)
	if !ownsPictureKey(objectName, userID) {
		return fmt.Errorf("%w: %s", ErrForeignObject, objectURL)
	}

	err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("object_name", objectName).
		Msg("Object deleted")

	return nil
}

// ObjectURL returns the public URL for an object key
func (s *MinIOStorage) ObjectURL(objectKey string) string {
	endpoint := strings.Trim(s.publicEndpoint, "\"'= ")
	if strings.Contains(endpoint, "://") {
		return fmt.Sprintf("%s/%s/%s", endpoint, s.bucketName, objectKey)
	}
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, endpoint, s.bucketName, objectKey)
}

// KeyFromURL extracts the object key from a public URL
func (s *MinIOStorage) KeyFromURL(objectURL string) string {
	u, err := url.Parse(objectURL)
	if err != nil {
		return ""
	}

	// /bucketName/path/to/object
	path := strings.TrimPrefix(u.Path, "/")

	// Check if path starts with bucket name
	prefix := s.bucketName + "/"
	if strings.HasPrefix(path, prefix) {
		return strings.TrimPrefix(path, prefix)
	}

	// bucket name may appear deeper when a proxy prefixes the path
	if idx := strings.Index("/"+path, "/"+prefix); idx != -1 {
		return path[idx+len(prefix):]
	}

	return path
}

// HealthCheck verifies the MinIO connection
func (s *MinIOStorage) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("MinIO health check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket '%s' does not exist", s.bucketName)
	}
	return nil
}

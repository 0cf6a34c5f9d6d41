package firebase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"catalog-backend/utils"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxImageBytes caps a single downloaded image.
const maxImageBytes = 10 << 20

// ObjectUploader writes one object into the bucket and makes it public.
type ObjectUploader interface {
	Upload(ctx context.Context, objectPath, contentType string, body io.Reader) error
}

type bucketUploader struct {
	bucket *storage.BucketHandle
	logger *logrus.Entry
}

func (b *bucketUploader) Upload(ctx context.Context, objectPath, contentType string, body io.Reader) error {
	obj := b.bucket.Object(objectPath)
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := io.Copy(wc, body); err != nil {
		wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload: %w", err)
	}

	// Public so the URL works without authentication
	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		b.logger.WithError(err).WithField("object", objectPath).Warn("Failed to set public ACL")
	}
	return nil
}

// Rehoster copies product images from external URLs into Firebase Storage.
type Rehoster struct {
	Bucket   string
	Uploader ObjectUploader
	HTTP     *http.Client
	Logger   *logrus.Entry

	validateURL func(ctx context.Context, rawURL string) error
}

// NewRehoster builds a Rehoster on the app's storage bucket.
func NewRehoster(ctx context.Context, app *firebase.App, bucketName string, logger *logrus.Entry) (*Rehoster, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("FIREBASE_STORAGE_BUCKET not set")
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage client: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &Rehoster{
		Bucket:      bucketName,
		Uploader:    &bucketUploader{bucket: bucket, logger: logger},
		HTTP:        &http.Client{Timeout: 30 * time.Second},
		Logger:      logger,
		validateURL: validateExternalURL,
	}, nil
}

// RehostImage downloads imageURL and stores it under products/. Images that
// already live in our bucket are returned unchanged.
func (r *Rehoster) RehostImage(ctx context.Context, imageURL string, productID uuid.UUID) (string, error) {
	if bucket, _, err := utils.ParseStorageURL(imageURL); err == nil && bucket == r.Bucket {
		return imageURL, nil
	}

	validate := r.validateURL
	if validate == nil {
		validate = validateExternalURL
	}
	if err := validate(ctx, imageURL); err != nil {
		return "", fmt.Errorf("URL validation failed for %s: %w", imageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image from %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("URL %s returned non-image content-type: %q", imageURL, contentType)
	}

	// Product id plus a random suffix keeps concurrent uploads apart.
	objectPath := fmt.Sprintf(
		"products/%s_%s%s",
		sanitizeFilename(productID.String()),
		uuid.New().String()[:8],
		extensionFor(contentType),
	)

	if err := r.Uploader.Upload(ctx, objectPath, contentType, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	r.Logger.WithFields(logrus.Fields{
		"product_id": productID,
		"object":     objectPath,
	}).Debug("Image rehosted")
	return utils.StorageURL(r.Bucket, objectPath), nil
}

func extensionFor(contentType string) string {
	switch strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

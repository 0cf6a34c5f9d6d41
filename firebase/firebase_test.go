package firebase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"image_test-file.jpg", "image_test-file.jpg"},
		{"", "file"},
		{".", "file"},
		{"..", "file"},
		{"a/b\\c.png", "a_b_c.png"},
	}
	for _, tc := range tests {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeFilenameTooLong(t *testing.T) {
	result := sanitizeFilename(strings.Repeat("a", 200))
	if len(result) != 100 {
		t.Errorf("expected length 100, got %d", len(result))
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip       string
		expected bool
	}{
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
	}
	for _, tc := range tests {
		if got := isPrivateIP(net.ParseIP(tc.ip)); got != tc.expected {
			t.Errorf("isPrivateIP(%s) = %v, want %v", tc.ip, got, tc.expected)
		}
	}
}

func TestParseCIDRInvalid(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for invalid CIDR")
		}
	}()
	parseCIDR("not-a-cidr")
}

func TestValidateExternalURLRejects(t *testing.T) {
	ctx := context.Background()
	for _, raw := range []string{
		"ftp://example.com/file.txt",
		"http://localhost/image.jpg",
		"http:///path",
		"http://127.0.0.1/image.jpg",
	} {
		if err := validateExternalURL(ctx, raw); err == nil {
			t.Errorf("expected %s to be rejected", raw)
		}
	}
}

type memoryUploader struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemoryUploader() *memoryUploader {
	return &memoryUploader{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryUploader) Upload(_ context.Context, objectPath, contentType string, body io.Reader) error {
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[objectPath] = data
	m.types[objectPath] = contentType
	return nil
}

func newTestRehoster(uploader ObjectUploader) *Rehoster {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Rehoster{
		Bucket:      "catalog-bucket",
		Uploader:    uploader,
		HTTP:        http.DefaultClient,
		Logger:      logrus.NewEntry(logger),
		validateURL: func(context.Context, string) error { return nil },
	}
}

func imageServer(t *testing.T, contentType string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		w.Write([]byte("PNGDATA"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRehostImageUploadsToBucket(t *testing.T) {
	srv := imageServer(t, "image/png", http.StatusOK)
	uploader := newMemoryUploader()
	r := newTestRehoster(uploader)
	productID := uuid.New()

	hosted, err := r.RehostImage(context.Background(), srv.URL+"/a.png", productID)
	if err != nil {
		t.Fatalf("RehostImage: %v", err)
	}

	prefix := "https://storage.googleapis.com/catalog-bucket/products/" + productID.String() + "_"
	if !strings.HasPrefix(hosted, prefix) || !strings.HasSuffix(hosted, ".png") {
		t.Errorf("unexpected hosted URL %s", hosted)
	}
	if len(uploader.objects) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(uploader.objects))
	}
	for path, data := range uploader.objects {
		if !bytes.Equal(data, []byte("PNGDATA")) {
			t.Errorf("unexpected object body %q", data)
		}
		if uploader.types[path] != "image/png" {
			t.Errorf("unexpected content type %q", uploader.types[path])
		}
	}
}

func TestRehostImageKeepsOwnBucketURL(t *testing.T) {
	uploader := newMemoryUploader()
	r := newTestRehoster(uploader)
	own := "https://storage.googleapis.com/catalog-bucket/products/x.jpg"

	hosted, err := r.RehostImage(context.Background(), own, uuid.New())
	if err != nil {
		t.Fatalf("RehostImage: %v", err)
	}
	if hosted != own {
		t.Errorf("expected %s, got %s", own, hosted)
	}
	if len(uploader.objects) != 0 {
		t.Error("expected no upload for own bucket URL")
	}
}

func TestRehostImageRejectsNonImage(t *testing.T) {
	srv := imageServer(t, "text/html", http.StatusOK)
	r := newTestRehoster(newMemoryUploader())

	if _, err := r.RehostImage(context.Background(), srv.URL, uuid.New()); err == nil {
		t.Error("expected error for non-image content")
	}
}

func TestRehostImageRejectsHTTPError(t *testing.T) {
	srv := imageServer(t, "image/jpeg", http.StatusNotFound)
	r := newTestRehoster(newMemoryUploader())

	if _, err := r.RehostImage(context.Background(), srv.URL, uuid.New()); err == nil {
		t.Error("expected error for 404")
	}
}

func TestRehostImageUploadFailure(t *testing.T) {
	srv := imageServer(t, "image/jpeg", http.StatusOK)
	uploader := newMemoryUploader()
	uploader.err = errors.New("bucket unavailable")
	r := newTestRehoster(uploader)

	_, err := r.RehostImage(context.Background(), srv.URL, uuid.New())
	if err == nil || !strings.Contains(err.Error(), "bucket unavailable") {
		t.Errorf("expected upload error, got %v", err)
	}
}

func TestRehostImageValidatesURL(t *testing.T) {
	r := newTestRehoster(newMemoryUploader())
	r.validateURL = validateExternalURL

	if _, err := r.RehostImage(context.Background(), "http://localhost/x.png", uuid.New()); err == nil {
		t.Error("expected SSRF validation to reject localhost")
	}
}

func TestExtensionFor(t *testing.T) {
	if extensionFor("image/png; charset=binary") != ".png" {
		t.Error("expected .png")
	}
	if extensionFor("image/jpeg") != ".jpg" {
		t.Error("expected .jpg")
	}
}

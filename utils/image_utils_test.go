package utils

import "testing"

func TestParseStorageURLValid(t *testing.T) {
	bucket, path, err := ParseStorageURL("https://storage.googleapis.com/my-bucket/products/image.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if bucket != "my-bucket" {
		t.Errorf("expected 'my-bucket', got '%s'", bucket)
	}
	if path != "products/image.jpg" {
		t.Errorf("expected 'products/image.jpg', got '%s'", path)
	}
}

func TestParseStorageURLInvalidPrefix(t *testing.T) {
	_, _, err := ParseStorageURL("https://example.com/my-bucket/products/image.jpg")
	if err == nil {
		t.Fatal("expected error for invalid prefix")
	}
}

func TestParseStorageURLNoBucketSeparator(t *testing.T) {
	_, _, err := ParseStorageURL("https://storage.googleapis.com/nobucket")
	if err == nil {
		t.Fatal("expected error for no bucket separator")
	}
}

func TestStorageURLRoundTrip(t *testing.T) {
	url := StorageURL("catalog-images", "products/abc.jpg")
	bucket, path, err := ParseStorageURL(url)
	if err != nil {
		t.Fatal(err)
	}
	if bucket != "catalog-images" || path != "products/abc.jpg" {
		t.Errorf("unexpected parse of %s: %s %s", url, bucket, path)
	}
}

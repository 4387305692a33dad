package catalog

import "testing"

func TestObjectKeyRoundTrip(t *testing.T) {
	key := objectKey(DeliveryTypeUpload, "LGTM/cats/abc", "png")
	if key != "upload/LGTM/cats/abc.png" {
		t.Fatalf("unexpected key %s", key)
	}

	res, ok := resourceFromKey(key)
	if !ok {
		t.Fatal("expected key to parse")
	}
	if res.PublicID != "LGTM/cats/abc" {
		t.Errorf("expected public id LGTM/cats/abc, got %s", res.PublicID)
	}
	if res.Folder != "LGTM/cats" {
		t.Errorf("expected folder LGTM/cats, got %s", res.Folder)
	}
	if res.Format != "png" || res.Type != "upload" || res.ResourceType != "image" {
		t.Errorf("unexpected resource %+v", res)
	}
}

func TestResourceFromKey_Rejects(t *testing.T) {
	for _, key := range []string{"", "upload", "upload/", "/LGTM/a.png", "upload/LGTM/noext", "upload/.png"} {
		if _, ok := resourceFromKey(key); ok {
			t.Errorf("expected %q to be rejected", key)
		}
	}
}

func TestResourceFromKey_RootLevel(t *testing.T) {
	res, ok := resourceFromKey("upload/abc.gif")
	if !ok {
		t.Fatal("expected key to parse")
	}
	if res.Folder != "" {
		t.Errorf("expected empty folder, got %q", res.Folder)
	}
}

func TestWithURLs(t *testing.T) {
	res := withURLs(MediaResource{}, "https://cdn.example/", "upload/LGTM/a.png")
	if res.SecureURL != "https://cdn.example/upload/LGTM/a.png" {
		t.Errorf("unexpected secure url %s", res.SecureURL)
	}
	if res.URL != "http://cdn.example/upload/LGTM/a.png" {
		t.Errorf("unexpected url %s", res.URL)
	}

	res = withURLs(MediaResource{}, "http://localhost:4000/media", "upload/LGTM/a.png")
	if res.URL != res.SecureURL {
		t.Errorf("expected identical urls for a plain http base, got %s and %s", res.URL, res.SecureURL)
	}
}

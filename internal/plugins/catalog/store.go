package catalog

import (
	"context"
	"path"
	"strings"
)

// Store is the media store the catalog reads from and writes to. Objects are
// keyed "<type>/<public_id>.<format>", so listing by delivery type and
// namespace prefix is a plain key-prefix scan.
type Store interface {
	// List returns up to q.MaxResults resources whose type and public ID
	// prefix match the query.
	List(ctx context.Context, q ListQuery) ([]MediaResource, error)

	// Put stores a new image and returns the resource as listed afterwards.
	Put(ctx context.Context, obj Object) (*MediaResource, error)
}

// ListQuery selects a page of resources.
type ListQuery struct {
	Type       string
	Prefix     string
	MaxResults int
}

// Object is a validated image ready to be written to the store.
type Object struct {
	PublicID    string
	Folder      string
	Format      string
	ContentType string
	Body        []byte
	Width       int
	Height      int
}

// objectKey builds the storage key for a resource.
func objectKey(deliveryType, publicID, format string) string {
	return deliveryType + "/" + publicID + "." + format
}

// listPrefix is the key prefix matching every resource of the given type
// whose public ID starts with prefix.
func listPrefix(deliveryType, prefix string) string {
	return deliveryType + "/" + prefix
}

// resourceFromKey reverses objectKey. Keys without a type segment or a format
// extension are not catalog resources.
func resourceFromKey(key string) (MediaResource, bool) {
	deliveryType, rest, ok := strings.Cut(key, "/")
	if !ok || deliveryType == "" || rest == "" {
		return MediaResource{}, false
	}
	ext := path.Ext(rest)
	if ext == "" || len(ext) == len(rest) {
		return MediaResource{}, false
	}
	publicID := strings.TrimSuffix(rest, ext)
	folder := path.Dir(publicID)
	if folder == "." {
		folder = ""
	}
	return MediaResource{
		PublicID:     publicID,
		Folder:       folder,
		Format:       strings.TrimPrefix(ext, "."),
		ResourceType: ResourceTypeImage,
		Type:         deliveryType,
	}, true
}

// withURLs fills URL and SecureURL from the base the key is served under.
// URL mirrors SecureURL over plain http when the base is https.
func withURLs(res MediaResource, base, key string) MediaResource {
	secure := strings.TrimRight(base, "/") + "/" + key
	res.SecureURL = secure
	res.URL = secure
	if rest, ok := strings.CutPrefix(secure, "https://"); ok {
		res.URL = "http://" + rest
	}
	return res
}

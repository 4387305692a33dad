package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// FSStore keeps the catalog on local disk under root, using the object key
// as the relative path. Files are served back under baseURL.
type FSStore struct {
	root    string
	baseURL string
}

// NewFSStore creates a disk-backed store. baseURL is the public URL the root
// directory is served at, e.g. "http://localhost:4000/media".
func NewFSStore(root, baseURL string) *FSStore {
	return &FSStore{root: root, baseURL: baseURL}
}

// List walks the type directory and returns matching resources ordered by
// key, like an object store listing.
func (s *FSStore) List(ctx context.Context, q ListQuery) ([]MediaResource, error) {
	prefix := listPrefix(q.Type, q.Prefix)
	typeDir := filepath.Join(s.root, filepath.FromSlash(q.Type))

	var keys []string
	err := filepath.WalkDir(typeDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		// Nothing has been ingested yet.
		return []MediaResource{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", typeDir, err)
	}

	sort.Strings(keys)
	if q.MaxResults > 0 && len(keys) > q.MaxResults {
		keys = keys[:q.MaxResults]
	}

	resources := make([]MediaResource, 0, len(keys))
	for _, key := range keys {
		res, ok := resourceFromKey(key)
		if !ok {
			continue
		}
		if err := s.stat(key, &res); err != nil {
			slog.Warn("skipping unreadable media file",
				slog.String("key", key),
				slog.Any("error", err),
			)
			continue
		}
		resources = append(resources, withURLs(res, s.baseURL, key))
	}
	return resources, nil
}

// stat fills size, creation time and dimensions from the file on disk.
func (s *FSStore) stat(key string, res *MediaResource) error {
	f, err := os.Open(s.filePath(key))
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	res.Bytes = info.Size()
	res.CreatedAt = info.ModTime().UTC()

	if w, h, err := imageDimensions(f); err == nil {
		res.Width, res.Height = w, h
	}
	return nil
}

// Put writes the object under its key, creating parent directories. Keys
// must already be in canonical form: the filesystem would fold "." and ".."
// segments or doubled slashes, so the stored file would no longer match the
// reported public ID and listings would miss it.
func (s *FSStore) Put(ctx context.Context, obj Object) (*MediaResource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := objectKey(DeliveryTypeUpload, obj.PublicID, obj.Format)
	if path.Clean(key) != key {
		return nil, fmt.Errorf("key %q is not canonical", key)
	}
	full := s.filePath(key)
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(filepath.Separator)) {
		return nil, fmt.Errorf("key %q escapes media root", key)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	if err := os.WriteFile(full, obj.Body, 0644); err != nil {
		return nil, fmt.Errorf("writing media file: %w", err)
	}

	res, ok := resourceFromKey(key)
	if !ok {
		os.Remove(full)
		return nil, fmt.Errorf("invalid key %q", key)
	}
	if err := s.stat(key, &res); err != nil {
		return nil, fmt.Errorf("reading back %s: %w", key, err)
	}
	res = withURLs(res, s.baseURL, key)
	return &res, nil
}

func (s *FSStore) filePath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

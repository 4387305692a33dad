package catalog

import "fmt"

// PrefixFor maps an optional category to the namespace prefix listings use:
// root when category is empty, root/category otherwise.
//
// The category is neither escaped nor validated, so a value such as
// "cats/../dogs" or "a/b" adds path segments. Hardened deployments should
// allow-list categories before they reach this function.
func PrefixFor(root, category string) string {
	if category == "" {
		return root
	}
	return root + "/" + category
}

// FolderFor maps the category of an ingestion to its destination folder.
// Unlike listing, ingestion never falls back to the root namespace, and a
// missing category is rejected instead of landing in a placeholder folder
// such as "LGTM/undefined".
func FolderFor(root, category string) (string, error) {
	if category == "" {
		return "", fmt.Errorf("%w: %w", ErrMalformedInput, ErrCategoryRequired)
	}
	return PrefixFor(root, category), nil
}

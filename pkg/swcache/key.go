package swcache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached response. Keys are method-independent because
// only GET requests are ever cached; the path plus the sorted query
// parameters fully determine the logical request.
type Key struct {
	// Path is the request path (e.g. "/products/api/products/").
	Path string

	// Query holds the query parameters (e.g. {"category_id": "3", "page": "2"}).
	Query url.Values
}

// KeyForURL builds a Key from a parsed request URL.
func KeyForURL(u *url.URL) Key {
	return Key{
		Path:  u.Path,
		Query: u.Query(),
	}
}

// String generates a deterministic cache key string.
// Format: sw:path:query1=val1:query2=val2
//
// Example:
//
//	sw:products/api/products:category_id=3:page=2
func (k Key) String() string {
	parts := []string{"sw"}

	path := strings.Trim(k.Path, "/")
	if path != "" {
		parts = append(parts, path)
	}

	// Query params sorted for determinism
	if len(k.Query) > 0 {
		queryKeys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Query.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}

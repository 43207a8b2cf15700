package epub

import (
	"net/url"
	"path"
	"strings"
)

// normalizePath converts an archive-internal path to canonical form:
// URL-encoded characters decoded, backslashes unified to forward slashes,
// and "."/".." segments collapsed. Normalization is idempotent.
func normalizePath(p string) string {
	if p == "" {
		return p
	}
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Clean(p)
}

// resolveHref joins an href (possibly carrying a #fragment) onto baseDir and
// normalizes the path part. The fragment is preserved untouched through
// normalization.
func resolveHref(baseDir, href string) string {
	if href == "" {
		return normalizePath(baseDir)
	}

	pathPart, fragment := href, ""
	if i := strings.IndexByte(href, '#'); i >= 0 {
		pathPart, fragment = href[:i], href[i:]
	}

	// href may be fragment-only ("#some-id"): resolve to the base itself.
	full := normalizePath(baseDir)
	if pathPart != "" {
		full = normalizePath(path.Join(baseDir, pathPart))
	}
	return full + fragment
}

// hrefPath returns the href with any #fragment removed.
func hrefPath(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}

package auth

import "strings"

var publicPrefixes = []string{
	"/api/shared/",
	"/api/webhooks/",
}

var publicExact = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// IsPublicPath reports whether path is served without a session.
func IsPublicPath(path string) bool {
	path = cleanPath(path)
	if publicExact[path] {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// IsProtectedPath reports whether path requires an authenticated identity.
func IsProtectedPath(path string) bool {
	path = cleanPath(path)
	if IsPublicPath(path) {
		return false
	}
	return path == "/api" || strings.HasPrefix(path, "/api/") || path == "/ws" || strings.HasPrefix(path, "/ws/")
}

// cleanPath strips a trailing slash and collapses duplicate slashes so "//api" cannot skip checks.
func cleanPath(path string) string {
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

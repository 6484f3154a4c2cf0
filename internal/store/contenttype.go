package store

import (
	"mime"
	"strings"
)

// contentTypes maps the extensions the web UI deals in.
var contentTypes = map[string]string{
	"txt":  "text/plain",
	"bin":  "application/octet-stream",
	"html": "text/html",
	"css":  "text/css",
	"js":   "application/javascript",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"pdf":  "application/pdf",
	"ico":  "image/x-icon",
}

// Extension returns the text after the last dot of the final path segment,
// or "" when there is none.
func Extension(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// ContentType infers a content type from the name's extension, falling back
// to the system MIME table and then to text/plain.
func ContentType(name string) string {
	ext := Extension(name)
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ext != "" {
		if ct := mime.TypeByExtension("." + ext); ct != "" {
			return ct
		}
	}
	return "text/plain"
}

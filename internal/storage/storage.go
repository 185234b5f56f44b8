// Package storage stores uploaded media (tutorial cover images) and returns their public URLs.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/graphilearn/engine/pkg/utils"
)

// Object describes a stored file.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (*Object, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageExtension returns the file extension for an accepted image content type.
func ImageExtension(contentType string) (string, bool) {
	ext, ok := extensions[contentType]
	return ext, ok
}

// ContentKey derives a stable key from the file's bytes, so re-uploads dedupe.
func ContentKey(prefix string, data []byte, ext string) string {
	return path.Join(prefix, utils.HexSHA256(data)+ext)
}

func cleanKey(key string) string {
	return strings.TrimLeft(path.Clean("/"+key), "/")
}

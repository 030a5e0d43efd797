package library

import (
	"path"
	"strings"
)

// StorageConfig locates the public object storage that bare audio paths
// are resolved against.
type StorageConfig struct {
	BaseURL string
	Bucket  string
}

// StorageURL resolves a stored audio path to a public URL. Full http(s)
// and file:// URLs are returned unchanged. An empty result means there is
// no audio.
func StorageURL(cfg StorageConfig, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if hasScheme(p) {
		return p
	}

	clean := strings.Trim(p, "/")
	if rest, ok := strings.CutPrefix(clean, cfg.Bucket+"/"); ok && cfg.Bucket != "" {
		clean = strings.TrimLeft(rest, "/")
	}
	if clean == "" || clean == cfg.Bucket {
		return ""
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	return base + "/storage/v1/object/public/" + cfg.Bucket + "/" + clean
}

var doubleSlashSegments = []struct{ from, to string }{
	{"/audio//", "/audio/"},
	{"/public//", "/public/"},
	{"/object//", "/object/"},
}

// HasDoubleSlash reports whether FixDoubleSlashes would change url.
func HasDoubleSlash(url string) bool {
	for _, s := range doubleSlashSegments {
		if strings.Contains(url, s.from) {
			return true
		}
	}
	return false
}

// FixDoubleSlashes collapses doubled slashes after the known storage path
// segments. The scheme separator is left alone.
func FixDoubleSlashes(url string) (string, bool) {
	fixed := url
	for _, s := range doubleSlashSegments {
		fixed = strings.ReplaceAll(fixed, s.from, s.to)
	}
	return fixed, fixed != url
}

// NeedsFormatting reports whether url is a bare storage path rather than a
// full public URL.
func NeedsFormatting(url string) bool {
	return url != "" && !hasScheme(url) && !strings.Contains(url, "/storage/v1/object/")
}

// FormatStorageURL turns a bare path into a full public URL built from its
// file name only.
func FormatStorageURL(cfg StorageConfig, url string) string {
	name := url
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return StorageURL(cfg, name)
}

// DownloadName returns the file name used when saving a sound locally: the
// sound name with the extension of its audio URL.
func DownloadName(s Sound, url string) string {
	name := strings.NewReplacer("/", "-", "\\", "-").Replace(strings.TrimSpace(s.Name))
	if name == "" {
		name = s.ID
	}

	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	ext := path.Ext(url)
	if ext == "" || strings.Contains(ext, "/") {
		return name
	}
	return name + ext
}

func hasScheme(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "file://")
}

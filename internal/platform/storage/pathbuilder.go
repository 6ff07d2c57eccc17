package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// MediaObjectPath composes "{prefix}/{siteKey}/{itemID}.{ext}". Re-uploading media
// for an item overwrites the same object unless the extension changes.
func MediaObjectPath(prefix, siteKey, itemID, ext string) (string, error) {
	site, err := validateSegment("siteKey", siteKey)
	if err != nil {
		return "", err
	}
	id, err := validateSegment("itemID", itemID)
	if err != nil {
		return "", err
	}
	ext, err = validateSegment("extension", strings.TrimPrefix(ext, "."))
	if err != nil {
		return "", err
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.%s", site, id, ext), nil
	}
	return fmt.Sprintf("%s/%s/%s.%s", prefix, site, id, ext), nil
}

// ObjectFromLocator recovers bucket and object name from a media locator. It accepts
// gs:// URIs, storage.googleapis.com URLs, Firebase download URLs and URLs under
// publicBaseURL (whose objects live in defaultBucket). Query strings are ignored.
func ObjectFromLocator(locator, publicBaseURL, defaultBucket string) (bucket, object string, ok bool) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", "", false
	}
	if base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"); base != "" {
		if rest, found := strings.CutPrefix(locator, base+"/"); found {
			rest, _, _ = strings.Cut(rest, "?")
			name, err := url.PathUnescape(rest)
			if err != nil || name == "" {
				return "", "", false
			}
			return defaultBucket, name, true
		}
	}

	u, err := url.Parse(locator)
	if err != nil {
		return "", "", false
	}
	switch {
	case u.Scheme == "gs":
		name := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || name == "" {
			return "", "", false
		}
		return u.Host, name, true
	case u.Host == "firebasestorage.googleapis.com":
		// /v0/b/{bucket}/o/{escaped object}
		parts := strings.SplitN(strings.TrimPrefix(u.EscapedPath(), "/"), "/", 5)
		if len(parts) != 5 || parts[0] != "v0" || parts[1] != "b" || parts[3] != "o" {
			return "", "", false
		}
		name, err := url.PathUnescape(parts[4])
		if err != nil || name == "" {
			return "", "", false
		}
		return parts[2], name, true
	case u.Host == "storage.googleapis.com":
		b, name, found := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if !found || b == "" || name == "" {
			return "", "", false
		}
		return b, name, true
	}
	return "", "", false
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") || strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	return value, nil
}

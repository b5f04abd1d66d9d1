// Package media stores chat attachments on local disk: single-shot data URIs
// and chunked uploads reassembled across several events. Images are
// transcoded to width-capped JPEG; every other payload is stored as-is.
//
// Stored files are addressed by web paths of the form
// /uploads/<category>/<file>, where the files live under the store root.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Upload categories used as sub-directories of the store root.
const (
	CategoryChatMedia = "chat_media"
	CategoryChatFiles = "chat_files"

	// WebPrefix is the URL prefix under which the store root is served.
	WebPrefix = "/uploads"
)

var (
	dataURIRe     = regexp.MustCompile(`(?is)^data:([\w/+.-]+);base64,(.+)$`)
	unsafeExtRe   = regexp.MustCompile(`[^a-z0-9.+-]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	unsafeNameRe  = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	imageSuffixRe = regexp.MustCompile(`(?i)\.(png|jpe?g|gif)$`)
)

// Store writes attachments below a root directory.
type Store struct {
	root string
	tc   Transcoder
	now  func() time.Time
}

// NewStore returns a Store rooted at root (created lazily per category).
func NewStore(root string, tc Transcoder) *Store {
	return &Store{root: root, tc: tc, now: time.Now}
}

// Root returns the directory served under WebPrefix.
func (s *Store) Root() string { return s.root }

func (s *Store) dir(category string) (string, error) {
	d := filepath.Join(s.root, category)
	if err := os.MkdirAll(d, 0o755); err != nil {
		return "", err
	}
	return d, nil
}

// WebPath maps a file stored under category to its public path.
func WebPath(category, name string) string {
	return WebPrefix + "/" + category + "/" + name
}

// IsDataURI reports whether s looks like a base64 data URI.
func IsDataURI(s string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "data:")
}

// ParseDataURI splits a base64 data URI into its MIME type and decoded bytes.
func ParseDataURI(encoded string) (string, []byte, error) {
	m := dataURIRe.FindStringSubmatch(strings.TrimSpace(encoded))
	if m == nil {
		return "", nil, ErrMalformedPayload
	}
	raw, err := decodeBase64(m[2])
	if err != nil {
		return "", nil, err
	}
	if len(raw) == 0 {
		return "", nil, ErrMalformedPayload
	}
	return strings.ToLower(m[1]), raw, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = whitespaceRe.ReplaceAllString(s, "")
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// clients occasionally strip padding
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	}
	return raw, nil
}

// SaveDataURI decodes a data:<mime>;base64,<payload> string and stores it
// under category. Images are transcoded; if transcoding fails the raw bytes
// are kept. It returns the web path of the stored file.
func (s *Store) SaveDataURI(ctx context.Context, encoded, category string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mime, raw, err := ParseDataURI(encoded)
	if err != nil {
		return "", err
	}
	dir, err := s.dir(category)
	if err != nil {
		return "", err
	}
	stem := fmt.Sprintf("%d_%s", s.now().UnixMilli(), uuid.NewString())

	if strings.HasPrefix(mime, "image/") {
		name := stem + ".jpg"
		var buf bytes.Buffer
		err := s.tc.Encode(&buf, bytes.NewReader(raw))
		if err == nil {
			if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
				return "", err
			}
			return WebPath(category, name), nil
		}
		log.Warn().Err(err).Str("mime", mime).Msg("media: keeping original image bytes")
	}

	name := stem + extensionFor(mime, raw)
	if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
		return "", err
	}
	return WebPath(category, name), nil
}

// extensionFor derives a file extension for a declared MIME type. Known
// types use the registry, unknown ones fall back to content sniffing and
// finally to the sanitised subtype.
func extensionFor(mime string, raw []byte) string {
	if m := mimetype.Lookup(mime); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	if ext := mimetype.Detect(raw).Extension(); ext != "" {
		return ext
	}
	sub := "bin"
	if i := strings.IndexByte(mime, '/'); i >= 0 && i+1 < len(mime) {
		sub = mime[i+1:]
	}
	sub = unsafeExtRe.ReplaceAllString(strings.ToLower(sub), "")
	if sub == "" {
		sub = "bin"
	}
	return "." + sub
}

// SafeFileName strips directories and characters unsafe in file names.
func SafeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeNameRe.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "file"
	}
	return base
}

// IsImageName reports whether a file name carries an image extension that
// chunked uploads transcode.
func IsImageName(name string) bool { return imageSuffixRe.MatchString(name) }

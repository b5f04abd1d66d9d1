package media

import "errors"

var (
	// ErrMalformedPayload is returned for data URIs or chunks that cannot be
	// parsed or base64-decoded.
	ErrMalformedPayload = errors.New("malformed media payload")
	// ErrTranscode wraps image decode/encode failures. Callers fall back to
	// the original bytes.
	ErrTranscode = errors.New("image transcode failed")
	// ErrMissingFileName is returned for a chunk without a file name.
	ErrMissingFileName = errors.New("chunk file name is required")
)

// Package dataurl converts binary blobs to and from RFC 2397 data URLs of the
// form data:<media-type>;base64,<payload>.
package dataurl

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

var (
	// ErrRead is returned when the blob cannot be read to completion.
	ErrRead = errors.New("failed to read image")
	// ErrTooLarge is returned when the blob exceeds the encoder's MaxBytes.
	ErrTooLarge = errors.New("image is too large")
	// ErrMalformed is returned by Parse for text that is not a base64 data URL.
	ErrMalformed = errors.New("malformed data url")
)

const (
	prefix   = "data:"
	marker   = ";base64,"
	fallback = "application/octet-stream"
)

// Blob is an uploaded file: a media type as declared by the sender and a body
// that is read once. Name only labels errors.
type Blob struct {
	Name      string
	MediaType string
	Body      io.Reader
}

func (b *Blob) label() string {
	if b.Name == "" {
		return "image"
	}
	return strconv.Quote(b.Name)
}

// Encoder turns blobs into data URLs.
//
// MaxBytes bounds the decoded payload size. Zero means unbounded, in which case
// the whole blob is held in memory twice (raw and encoded) while encoding.
type Encoder struct {
	MaxBytes int64
}

func NewEncoder(maxBytes int64) *Encoder {
	return &Encoder{MaxBytes: maxBytes}
}

// Encode reads the blob to completion and returns its data URL. It blocks until
// the read finishes, fails, or ctx is done; ctx is checked between reads, so a
// reader that blocks forever stalls the call.
func (e *Encoder) Encode(ctx context.Context, b *Blob) (string, error) {
	if b == nil || b.Body == nil {
		return "", fmt.Errorf("%w: no image", ErrRead)
	}

	r := io.Reader(&ctxReader{ctx: ctx, r: b.Body})
	if e.MaxBytes > 0 {
		r = io.LimitReader(r, e.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: reading %s: %v", ErrRead, b.label(), err)
	}
	if e.MaxBytes > 0 && int64(len(data)) > e.MaxBytes {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, b.label(), e.MaxBytes)
	}
	return Format(mediaType(b.MediaType, data), data), nil
}

// Format builds a base64 data URL without touching any reader.
func Format(mediaType string, data []byte) string {
	var sb strings.Builder
	sb.Grow(len(prefix) + len(mediaType) + len(marker) + base64.StdEncoding.EncodedLen(len(data)))
	sb.WriteString(prefix)
	sb.WriteString(mediaType)
	sb.WriteString(marker)
	sb.WriteString(base64.StdEncoding.EncodeToString(data))
	return sb.String()
}

// Parse splits a base64 data URL into its media type and decoded payload.
func Parse(s string) (mediaType string, data []byte, err error) {
	if !strings.HasPrefix(s, prefix) {
		return "", nil, fmt.Errorf("%w: missing %q prefix", ErrMalformed, prefix)
	}
	head, payload, ok := strings.Cut(s[len(prefix):], ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	mediaType, isBase64 := strings.CutSuffix(head, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: payload is not base64", ErrMalformed)
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if mediaType == "" {
		mediaType = fallback
	}
	return mediaType, data, nil
}

func mediaType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != fallback {
		return declared
	}
	if len(data) == 0 {
		return fallback
	}
	// DetectContentType appends "; charset=..." for text types, which is
	// allowed by RFC 2397 but not what browsers emit for images.
	sniffed, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return sniffed
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// FromBytes wraps an in-memory payload as a Blob.
func FromBytes(name, mediaType string, data []byte) *Blob {
	return &Blob{Name: name, MediaType: mediaType, Body: bytes.NewReader(data)}
}

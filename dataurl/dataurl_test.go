package dataurl_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/school-directory/dataurl"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestEncodeDeclaredMediaType(t *testing.T) {
	enc := dataurl.NewEncoder(0)

	got, err := enc.Encode(context.Background(), dataurl.FromBytes("logo.gif", "image/gif", []byte("GIF89a")))
	require.NoError(t, err)
	assert.Equal(t, "data:image/gif;base64,R0lGODlh", got)
}

func TestEncodeSniffsMissingMediaType(t *testing.T) {
	enc := dataurl.NewEncoder(0)

	got, err := enc.Encode(context.Background(), dataurl.FromBytes("logo", "", pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "data:image/png;base64,"), got)

	got, err = enc.Encode(context.Background(), dataurl.FromBytes("notes", "", []byte("plain words")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "data:text/plain;base64,"), got)
}

func TestEncodeEmptyBlob(t *testing.T) {
	got, err := dataurl.NewEncoder(0).Encode(context.Background(), dataurl.FromBytes("empty", "", nil))
	require.NoError(t, err)
	assert.Equal(t, "data:application/octet-stream;base64,", got)
}

func TestEncodeNilBlob(t *testing.T) {
	_, err := dataurl.NewEncoder(0).Encode(context.Background(), nil)
	assert.ErrorIs(t, err, dataurl.ErrRead)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestEncodeReadFailure(t *testing.T) {
	blob := &dataurl.Blob{Name: "broken", MediaType: "image/png", Body: failingReader{}}

	_, err := dataurl.NewEncoder(0).Encode(context.Background(), blob)
	assert.ErrorIs(t, err, dataurl.ErrRead)
	assert.ErrorContains(t, err, "disk gone")
	assert.ErrorContains(t, err, `reading "broken"`)

	blob = &dataurl.Blob{Body: failingReader{}}
	_, err = dataurl.NewEncoder(0).Encode(context.Background(), blob)
	assert.ErrorContains(t, err, "reading image")
}

func TestEncodeMaxBytes(t *testing.T) {
	enc := dataurl.NewEncoder(4)

	_, err := enc.Encode(context.Background(), dataurl.FromBytes("big", "image/png", []byte("12345")))
	assert.ErrorIs(t, err, dataurl.ErrTooLarge)
	assert.ErrorContains(t, err, `"big" exceeds 4 bytes`)

	got, err := enc.Encode(context.Background(), dataurl.FromBytes("fits", "image/png", []byte("1234")))
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,MTIzNA==", got)
}

func TestEncodeCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dataurl.NewEncoder(0).Encode(ctx, dataurl.FromBytes("x", "image/png", []byte("x")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncodeReadsIncrementally(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		pw.Write([]byte("ab"))
		pw.Write([]byte("cd"))
		pw.Close()
	}()

	got, err := dataurl.NewEncoder(0).Encode(context.Background(), &dataurl.Blob{MediaType: "image/png", Body: pr})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,YWJjZA==", got)
}

func TestParseRoundTrip(t *testing.T) {
	mt, data, err := dataurl.Parse(dataurl.Format("image/jpeg", []byte{0xff, 0xd8, 0xff}))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mt)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)
}

func TestParseMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"http://example.com/logo.png",
		"data:image/png;base64",
		"data:image/png,plain",
		"data:image/png;base64,!!!",
	} {
		_, _, err := dataurl.Parse(s)
		assert.ErrorIs(t, err, dataurl.ErrMalformed, "input %q", s)
	}
}

func TestParseDefaultsMediaType(t *testing.T) {
	mt, data, err := dataurl.Parse("data:;base64,aGk=")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", mt)
	assert.Equal(t, []byte("hi"), data)
}

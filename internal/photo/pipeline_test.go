package photo

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FunkyDevv/ITRACK-sub000/internal/apperr"
)

type fakeProvider struct {
	name  string
	url   string
	err   error
	delay time.Duration
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Upload(ctx context.Context, _ []byte, _ string) (string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.url, f.err
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCompressFitsWithinMaxDimension(t *testing.T) {
	out, err := Compress(pngBytes(t, 400, 200), 100)
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestCompressRejectsGarbage(t *testing.T) {
	_, err := Compress([]byte("not an image"), 100)
	assert.ErrorIs(t, err, ErrNotAnImage)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestDecodeDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("hello"))
	out, err := DecodeDataURL("data:image/jpeg;base64," + payload)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	out, err = DecodeDataURL(payload)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	_, err = DecodeDataURL("data:image/jpeg;base64")
	assert.ErrorIs(t, err, ErrBadDataURL)
}

func TestPipelineFallsThroughInOrder(t *testing.T) {
	first := &fakeProvider{name: "mirror-a", err: errors.New("boom")}
	second := &fakeProvider{name: "mirror-b", url: "data:image/jpeg;base64,AAAA"}
	third := &fakeProvider{name: "cloudinary", url: "https://res.cloudinary.com/demo/a.jpg"}
	p := NewPipeline(Options{Timeout: time.Second}, first, second, third)

	res, err := p.Upload(context.Background(), pngBytes(t, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, Result{URL: third.url, Provider: "cloudinary"}, res)
	assert.Equal(t, []int{1, 1, 1}, []int{first.calls, second.calls, third.calls})
	assert.Equal(t, []string{"mirror-a", "mirror-b", "cloudinary"}, p.Providers())
}

func TestPipelineDegradesToPlaceholder(t *testing.T) {
	slow := &fakeProvider{name: "slow", url: "https://x.example.com/a.jpg", delay: time.Second}
	p := NewPipeline(Options{Timeout: 10 * time.Millisecond, PlaceholderURL: "https://placehold.co/600"}, slow)

	res, err := p.Upload(context.Background(), pngBytes(t, 10, 10))
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, ProviderPlaceholder, res.Provider)
	assert.Equal(t, "https://placehold.co/600", res.URL)
}

func TestPipelineExhaustedWithoutPlaceholder(t *testing.T) {
	p := NewPipeline(Options{}, &fakeProvider{name: "a", url: "blob:http://local/1"})
	_, err := p.Upload(context.Background(), pngBytes(t, 10, 10))
	assert.True(t, apperr.IsKind(err, apperr.KindUploadFailure))
}

func TestPipelineRejectsOversized(t *testing.T) {
	p := NewPipeline(Options{MaxBytes: 10}, &fakeProvider{name: "a", url: "https://x.example.com/a.jpg"})
	_, err := p.Upload(context.Background(), pngBytes(t, 50, 50))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	flaky := &fakeProvider{name: "flaky", err: errors.New("down")}
	p := NewPipeline(Options{PlaceholderURL: "https://placehold.co/600"}, flaky)
	for i := 0; i < 5; i++ {
		_, err := p.Upload(context.Background(), pngBytes(t, 10, 10))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, flaky.calls)
}

func TestUsableURL(t *testing.T) {
	assert.True(t, UsableURL("https://cdn.example.com/a.jpg"))
	assert.True(t, UsableURL("http://cdn.example.com/a.jpg"))
	for _, u := range []string{"", "data:image/png;base64,AA", "BLOB:x", "ftp://x/a.jpg", "/relative.jpg", "https://"} {
		assert.False(t, UsableURL(u), u)
	}
}

func TestMirrorUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://mirror.example.com/` + header.Filename + `"}`))
	}))
	defer srv.Close()

	m := NewMirror(srv.URL + "/upload")
	u, err := m.Upload(context.Background(), []byte("jpeg"), "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.com/a.jpg", u)
	assert.Contains(t, m.Name(), "mirror:127.0.0.1")
}

func TestMirrorUploadErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewMirror(srv.URL).Upload(context.Background(), []byte("jpeg"), "a.jpg")
	assert.ErrorContains(t, err, "500")
}

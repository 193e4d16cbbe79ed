package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignSortsParamsAndSkipsAPIKey(t *testing.T) {
	c := New("demo", "key", "secret", "")
	got := c.sign(map[string]string{"timestamp": "100", "folder": "a", "api_key": "key"})
	want := fmt.Sprintf("%x", sha1.Sum([]byte("folder=a&timestamp=100secret")))
	assert.Equal(t, want, got)
}

func TestUploadPostsSignedForm(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/demo/image/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		form = map[string]string{
			"api_key":   r.FormValue("api_key"),
			"timestamp": r.FormValue("timestamp"),
			"folder":    r.FormValue("folder"),
			"signature": r.FormValue("signature"),
		}
		_, _ = w.Write([]byte(`{"public_id":"itrack/x","secure_url":"https://res.cloudinary.com/demo/x.jpg"}`))
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "itrack")
	c.APIBase = srv.URL
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	u, err := c.Upload(context.Background(), []byte("jpeg"), "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/x.jpg", u)
	assert.Equal(t, "key", form["api_key"])
	assert.Equal(t, "1700000000", form["timestamp"])
	assert.Equal(t, c.sign(map[string]string{"timestamp": "1700000000", "folder": "itrack"}), form["signature"])
}

func TestUploadSurfacesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "")
	c.APIBase = srv.URL
	_, err := c.Upload(context.Background(), []byte("jpeg"), "a.jpg")
	assert.ErrorContains(t, err, "401")
}

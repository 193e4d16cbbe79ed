package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindBackendUnavailable, KindOf(errors.New("boom")))
	assert.Equal(t, KindValidation, KindOf(fmt.Errorf("ctx: %w", New(KindValidation, "photo required"))))
}

func TestBackendKeepsTypedErrors(t *testing.T) {
	typed := New(KindStateConflict, "already checked in")
	assert.Same(t, typed, Backend(typed, "ignored"))

	wrapped := Backend(errors.New("dial tcp: refused"), "load sessions")
	assert.True(t, IsKind(wrapped, KindBackendUnavailable))
	assert.Equal(t, "load sessions", Message(wrapped))
	assert.Nil(t, Backend(nil, "noop"))
}

func TestIsMatchesSentinelCopies(t *testing.T) {
	sentinel := New(KindValidation, "photo required")
	copyErr := Wrap(errors.New("cause"), KindValidation, "photo required")
	assert.ErrorIs(t, copyErr, sentinel)
	assert.NotErrorIs(t, New(KindValidation, "location required"), sentinel)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindStateConflict))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindMigrationConflict))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(KindUploadFailure))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(KindBackendUnavailable))
}

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
)

func TestError_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ValidationError("x").HTTPStatus())
	assert.Equal(t, http.StatusNotFound, NotFoundError("x").HTTPStatus())
	assert.Equal(t, http.StatusUnprocessableEntity, UnprocessableError("x", nil).HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, InternalError("x", nil).HTTPStatus())
	assert.Equal(t, http.StatusBadGateway, ExternalError("x", nil).HTTPStatus())
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := InternalError("wrapper", cause)
	assert.ErrorIs(t, err, cause)
}

func TestError_WithContext(t *testing.T) {
	err := ValidationError("bad input").WithContext("field", "url")
	assert.Equal(t, "url", err.Context["field"])

	resp := err.ToResponse()
	assert.Equal(t, "bad input", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, "url", resp.Context["field"])
}

func TestFromDomain(t *testing.T) {
	tests := []struct {
		err      error
		wantType ErrorType
	}{
		{domain.ErrDocumentNotFound, TypeNotFound},
		{fmt.Errorf("get: %w", domain.ErrDocumentNotFound), TypeNotFound},
		{domain.ErrEmptyDocument, TypeUnprocessable},
		{domain.ErrNoChunks, TypeUnprocessable},
		{domain.ErrScorerUnavailable, TypeExternal},
		{stderrors.New("anything else"), TypeInternal},
	}

	for _, tt := range tests {
		got := FromDomain(tt.err)
		require.NotNil(t, got)
		assert.Equal(t, tt.wantType, got.Type, "for %v", tt.err)
	}
}

func TestFromDomain_Nil(t *testing.T) {
	assert.Nil(t, FromDomain(nil))
}

func TestAsStructuredError_PassesThrough(t *testing.T) {
	orig := NotFoundError("missing")
	wrapped := fmt.Errorf("handler: %w", orig)
	assert.Same(t, orig, AsStructuredError(wrapped))
}

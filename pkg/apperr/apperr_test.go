package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("bad %s", "input"), KindValidation},
		{"wrapped not found", fmt.Errorf("failed to get ticket: %w", NotFound("ticket")), KindNotFound},
		{"stale", Stale(), KindStale},
		{"plain error", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("company"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validation("x")))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(Unauthorized("x")))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(Forbidden("x")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("x")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Stale()))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("x")))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "ticket not found", MessageOf(NotFound("ticket")))
	assert.Equal(t, GenericMessage, MessageOf(errors.New("raw driver error")))
}

func TestFromStatus(t *testing.T) {
	e := FromStatus(http.StatusConflict, StaleAccessMessage)
	assert.Equal(t, KindStale, e.Kind)

	e = FromStatus(http.StatusInternalServerError, "")
	assert.Equal(t, KindInternal, e.Kind)
	assert.Equal(t, GenericMessage, e.Message)
}

func TestValidationFieldsError(t *testing.T) {
	err := ValidationFields(map[string]string{"name": "is required", "email": "is invalid"})
	assert.Equal(t, "validation failed (email: is invalid; name: is required)", err.Error())
	assert.Len(t, FieldsOf(err), 2)
}

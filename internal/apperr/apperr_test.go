package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	e := New(ObjectNotFound, "procedure DoesNotExist")
	assert.Equal(t, "ObjectNotFound: procedure DoesNotExist", e.Error())

	w := Wrap(QueryError, "list tables", errors.New("boom"))
	assert.Equal(t, "QueryError: list tables: boom", w.Error())
}

func TestKindOf_WalksChain(t *testing.T) {
	inner := FieldError(MissingField, "sql", "field is required")
	err := fmt.Errorf("dispatch: %w", inner)

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, MissingField, kind)
	assert.True(t, Is(err, MissingField))
	assert.False(t, Is(err, TypeMismatch))

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestWrap_Unwrap(t *testing.T) {
	base := errors.New("driver failure")
	err := Wrap(ConnectionError, "acquire", base)
	assert.ErrorIs(t, err, base)
}

package apperr

import (
	"errors"
	"net/http"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("classified error survives wrapping", func(t *testing.T) {
		err := pkgerrors.Wrap(Forbidden("not your request"), "accept")
		assert.Equal(t, KindForbidden, KindOf(err))
		assert.True(t, IsKind(err, KindForbidden))
		assert.Equal(t, "not your request", PublicMessage(err))
	})

	t.Run("plain error is internal", func(t *testing.T) {
		err := errors.New("disk on fire")
		assert.Equal(t, KindInternal, KindOf(err))
		assert.Equal(t, "internal server error", PublicMessage(err))
	})

	t.Run("nil is never a kind", func(t *testing.T) {
		assert.False(t, IsKind(nil, KindInternal))
	})
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindInvalidRequest:  http.StatusBadRequest,
		KindNotFound:        http.StatusNotFound,
		KindForbidden:       http.StatusForbidden,
		KindConflict:        http.StatusConflict,
		KindUnauthenticated: http.StatusUnauthorized,
		KindInternal:        http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), string(kind))
	}
}

func TestWithHintCopies(t *testing.T) {
	base := Forbidden("you can only message friends")
	hinted := base.WithHint("send_friend_request")

	assert.Empty(t, base.Hint)
	assert.Equal(t, "send_friend_request", HintOf(hinted))
}

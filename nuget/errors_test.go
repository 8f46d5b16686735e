package nuget

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	id := Identity{Name: "A", Version: "1.0.0"}

	t.Run("SentinelMatching", func(t *testing.T) {
		err := fmt.Errorf("wrapped: %w", NewError(KindNotFound, id, "package not found"))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NotErrorIs(t, err, ErrIncompatiblePlatform)
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("Message", func(t *testing.T) {
		err := &Error{Kind: KindOther, Package: id, Message: "feed request failed", Err: errors.New("boom")}
		assert.Equal(t, "A@1.0.0: feed request failed: boom", err.Error())
	})

	t.Run("DeadlineIsNetworkTimeout", func(t *testing.T) {
		assert.Equal(t, KindNetworkTimeout, KindOf(context.DeadlineExceeded))
		e := AsError(id, fmt.Errorf("get: %w", context.DeadlineExceeded))
		assert.Equal(t, KindNetworkTimeout, e.Kind)
		assert.Equal(t, id, e.Package)
	})

	t.Run("AsErrorFillsPackage", func(t *testing.T) {
		e := AsError(id, &Error{Kind: KindIncompatiblePlatform, Message: "no lib"})
		assert.Equal(t, id, e.Package)
		assert.Equal(t, KindIncompatiblePlatform, e.Kind)
	})

	t.Run("KindString", func(t *testing.T) {
		assert.Equal(t, "NotFound", KindNotFound.String())
		assert.Equal(t, "Other", ErrorKind(99).String())
	})
}

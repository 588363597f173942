package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindAndSideSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("transfer: %w", AccountFrozenOrInactive(SideDestination))

	assert.Equal(t, KindAccountFrozenOrInactive, KindOf(err))
	assert.Equal(t, SideDestination, SideOf(err))
	assert.True(t, errors.Is(err, AccountFrozenOrInactive(SideDestination)))
	assert.True(t, errors.Is(err, New(KindAccountFrozenOrInactive, SideNone, "")))
	assert.False(t, errors.Is(err, AccountFrozenOrInactive(SideOrigin)))
}

func TestStorageUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Storage("commit transfer", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindStorage, KindOf(err))
	assert.Equal(t, "commit transfer: connection reset", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, "InsufficientFunds", KindInsufficientFunds.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

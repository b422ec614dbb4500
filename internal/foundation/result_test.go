package foundation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	t.Run("Ok result", func(t *testing.T) {
		result := Ok[string, error]("success")
		assert.True(t, result.IsOk())
		assert.False(t, result.IsErr())
		assert.Equal(t, "success", result.Unwrap())
		assert.Panics(t, func() { result.UnwrapErr() })
	})

	t.Run("Err result", func(t *testing.T) {
		testErr := errors.New("test error")
		result := Err[string, error](testErr)
		assert.True(t, result.IsErr())
		assert.ErrorIs(t, result.UnwrapErr(), testErr)
		assert.Panics(t, func() { result.Unwrap() })
	})

	t.Run("FromTuple", func(t *testing.T) {
		assert.True(t, FromTuple[string, error]("test", nil).IsOk())

		value, err := FromTuple("", errors.New("nope")).ToTuple()
		assert.Empty(t, value)
		assert.EqualError(t, err, "nope")
	})

	t.Run("Match", func(t *testing.T) {
		var got string
		Ok[string, error]("a").Match(func(s string) { got = s }, func(error) { got = "err" })
		assert.Equal(t, "a", got)

		Err[string, error](errors.New("x")).Match(func(s string) { got = s }, func(error) { got = "err" })
		assert.Equal(t, "err", got)
	})
}

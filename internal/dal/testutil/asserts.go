package testutil

import (
	"github.com/stretchr/testify/assert"

	"github.com/Roma7-7-7/price-notifier/internal/dal"
)

func ErrorIsAndContains(wantErr error, contains string) assert.ErrorAssertionFunc {
	return func(t assert.TestingT, err error, i ...any) bool {
		return assert.Error(t, err, i...) && assert.ErrorIs(t, err, wantErr) && assert.ErrorContains(t, err, contains)
	}
}

// Unavailable asserts a storage failure surfaced through the service layer.
func Unavailable(contains string) assert.ErrorAssertionFunc {
	return ErrorIsAndContains(dal.ErrUnavailable, contains)
}

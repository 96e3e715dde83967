package testutil

import (
	"fmt"
	"strings"

	"go.uber.org/mock/gomock"
)

type textMatcher struct {
	parts []string
}

// TextContains matches a string argument that contains every given part.
func TextContains(parts ...string) gomock.Matcher {
	return textMatcher{parts: parts}
}

func (m textMatcher) Matches(x any) bool {
	s, ok := x.(string)
	if !ok {
		return false
	}
	for _, p := range m.parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

func (m textMatcher) String() string {
	return fmt.Sprintf("contains %q", m.parts)
}

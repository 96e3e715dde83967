package clock

import "time"

// Clock reports wall-clock time in a single, fixed location.
type Clock struct {
	loc *time.Location
}

func New() *Clock {
	return &Clock{loc: time.Local}
}

func NewWithLocation(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.Local
	}
	return &Clock{loc: loc}
}

func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

// Mock is a fixed clock for tests. Location follows the location of the mocked value.
type Mock struct {
	value func() time.Time
}

func NewMock(value time.Time) *Mock {
	return NewMockF(func() time.Time {
		return value
	})
}

func NewMockF(value func() time.Time) *Mock {
	return &Mock{value: value}
}

func (m *Mock) Now() time.Time {
	return m.value()
}

func (m *Mock) Location() *time.Location {
	return m.value().Location()
}

func (m *Mock) Set(t time.Time) {
	m.value = func() time.Time {
		return t
	}
}

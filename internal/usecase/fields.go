package usecase

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNoFields = errors.New("form has no fields")

// FieldCycler tracks the active form field over a fixed cyclic order.
type FieldCycler struct {
	fields []string
	index  int
}

func NewFieldCycler(fields []string) (*FieldCycler, error) {
	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if strings.TrimSpace(field) == "" {
			return nil, errors.New("form field name cannot be empty")
		}
		if _, ok := seen[field]; ok {
			return nil, fmt.Errorf("duplicate form field %q", field)
		}
		seen[field] = struct{}{}
	}
	return &FieldCycler{fields: append([]string(nil), fields...)}, nil
}

func (c *FieldCycler) Active() string {
	return c.fields[c.index]
}

// Advance moves to the next field, wrapping to the first after the last.
func (c *FieldCycler) Advance() (previous string, next string) {
	previous = c.fields[c.index]
	c.index = (c.index + 1) % len(c.fields)
	return previous, c.fields[c.index]
}

func (c *FieldCycler) Fields() []string {
	return append([]string(nil), c.fields...)
}

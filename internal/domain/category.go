package domain

import (
	"fmt"
	"strings"
)

// Category is the kind of waste a detector recognised.
type Category int

const (
	Paper Category = iota
	Can
	PetBottle
)

// Categories lists every category in legend order. Series, CSV columns and
// counter listings all follow this order.
var Categories = [...]Category{Paper, Can, PetBottle}

// String returns the identifier used in URLs, config and storage.
func (c Category) String() string {
	switch c {
	case Paper:
		return "paper"
	case Can:
		return "can"
	case PetBottle:
		return "pet_bottle"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Column returns the CSV header name for the category.
func (c Category) Column() string {
	if c == PetBottle {
		return "pet bottle"
	}
	return c.String()
}

func (c Category) Valid() bool {
	return c >= Paper && c <= PetBottle
}

// ParseCategory accepts the identifier as well as the spelling the detectors
// publish ("pet bottle", "pet-bottle").
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paper":
		return Paper, nil
	case "can", "cans":
		return Can, nil
	case "pet_bottle", "pet bottle", "pet-bottle", "pet":
		return PetBottle, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

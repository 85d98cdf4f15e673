package common

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptySlug is returned when neither the input nor the fallback has a
// letter or digit in it.
var ErrEmptySlug = errors.New("slug cannot be empty")

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

const maxSlugLen = 64

// Slugify lowercases input and joins its alphanumeric runs with dashes,
// capped at 64 characters. Skill names and organization slugs are keyed
// this way.
func Slugify(input, fallback string) (string, error) {
	for _, candidate := range []string{input, fallback} {
		if slug := slugify(candidate); slug != "" {
			return slug, nil
		}
	}
	return "", ErrEmptySlug
}

// SlugOf is Slugify without a fallback. It returns "" instead of an error.
func SlugOf(input string) string {
	return slugify(input)
}

func slugify(s string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}

package parse

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	shortCodeRe = regexp.MustCompile(`^[A-Za-z0-9]{3,16}$`)
	slugRe      = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// MenuRef identifies a public menu as reached by a diner.
type MenuRef struct {
	ShortCode string
	Franchise string // empty for plain short-code links
}

// ValidShortCode reports whether s looks like a menu short code.
func ValidShortCode(s string) bool {
	return shortCodeRe.MatchString(s)
}

// ParseMenuRef accepts a bare short code, a "/m/{code}" path, or a
// franchise path "/{franchise}/{code}", optionally as a full URL with a
// query string or fragment.
func ParseMenuRef(raw string) (MenuRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return MenuRef{}, fmt.Errorf("empty menu reference")
	}

	if ValidShortCode(s) {
		return MenuRef{ShortCode: s}, nil
	}

	path := s
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return MenuRef{}, fmt.Errorf("invalid menu url %q: %w", raw, err)
		}
		path = u.Path
	} else if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	switch {
	case len(parts) == 1 && ValidShortCode(parts[0]):
		return MenuRef{ShortCode: parts[0]}, nil
	case len(parts) == 2 && parts[0] == "m" && ValidShortCode(parts[1]):
		return MenuRef{ShortCode: parts[1]}, nil
	case len(parts) == 2 && slugRe.MatchString(parts[0]) && ValidShortCode(parts[1]):
		return MenuRef{ShortCode: parts[1], Franchise: parts[0]}, nil
	}
	return MenuRef{}, fmt.Errorf("unable to parse menu reference: %q", raw)
}

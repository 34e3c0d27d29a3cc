// Package coursekey parses course offering identifiers of the form
// "course-v1:Org+Course+Run" and the older slash separated "Org/Course/Run".
package coursekey

import (
	"errors"
	"regexp"
	"strings"
)

const prefix = "course-v1:"

var ErrInvalidKey = errors.New("invalid_course_key")

var componentPattern = regexp.MustCompile(`^[A-Za-z0-9_.~-]+$`)

// Key identifies a course offering.
type Key struct {
	Org    string
	Course string
	Run    string

	deprecated bool
}

// Parse accepts both the versioned and the slash separated forms.
func Parse(raw string) (Key, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Key{}, ErrInvalidKey
	}

	var (
		parts      []string
		deprecated bool
	)
	switch {
	case strings.HasPrefix(raw, prefix):
		parts = strings.Split(strings.TrimPrefix(raw, prefix), "+")
	case strings.Contains(raw, "/"):
		parts = strings.Split(raw, "/")
		deprecated = true
	default:
		return Key{}, ErrInvalidKey
	}

	if len(parts) != 3 {
		return Key{}, ErrInvalidKey
	}
	for _, part := range parts {
		if !componentPattern.MatchString(part) {
			return Key{}, ErrInvalidKey
		}
	}

	return Key{Org: parts[0], Course: parts[1], Run: parts[2], deprecated: deprecated}, nil
}

// MustParse panics on invalid input. Intended for fixtures.
func MustParse(raw string) Key {
	key, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return key
}

// String renders the key in the form it was parsed from.
func (k Key) String() string {
	if k.IsZero() {
		return ""
	}
	if k.deprecated {
		return k.Org + "/" + k.Course + "/" + k.Run
	}
	return prefix + k.Org + "+" + k.Course + "+" + k.Run
}

func (k Key) IsZero() bool {
	return k.Org == "" && k.Course == "" && k.Run == ""
}

// Offering is the "Course/Run" pair used as a low-cardinality metric label.
func (k Key) Offering() string {
	return k.Course + "/" + k.Run
}

// FromPath extracts a course key embedded in a URL path such as
// /courses/course-v1:MITx+6.002x+2024/about or /courses/MITx/6.002x/2024/info.
func FromPath(path string) (Key, bool) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, segment := range segments {
		if strings.HasPrefix(segment, prefix) {
			key, err := Parse(segment)
			return key, err == nil
		}
		if segment == "course" || segment == "courses" {
			if i+1 < len(segments) && strings.HasPrefix(segments[i+1], prefix) {
				continue
			}
			if i+3 < len(segments) {
				key, err := Parse(strings.Join(segments[i+1:i+4], "/"))
				if err == nil {
					return key, true
				}
			}
		}
	}
	return Key{}, false
}

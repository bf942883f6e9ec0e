package plugin

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a declared plugin or library version.
// A nil *Version means the descriptor declared none.
type Version struct {
	raw       string
	canonical string
}

// ParseVersion wraps a declared version string. The "v" prefix is optional;
// shorthands such as "2" and "1.4" are accepted. Strings that are not
// semantic versions are kept and only compared for equality.
// An empty string yields nil.
func ParseVersion(s string) *Version {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	v := s
	if v[0] == 'V' {
		v = "v" + v[1:]
	} else if v[0] != 'v' {
		v = "v" + v
	}

	var canonical string
	if semver.IsValid(v) {
		canonical = v
	}
	return &Version{raw: s, canonical: canonical}
}

// String returns the version as declared.
func (v *Version) String() string {
	if v == nil {
		return ""
	}
	return v.raw
}

// Valid reports whether the version is a semantic version.
func (v *Version) Valid() bool {
	return v != nil && v.canonical != ""
}

// IsNewerThan reports whether v is strictly newer than other.
// Versions that are absent or not semantic are never newer and never older.
func (v *Version) IsNewerThan(other *Version) bool {
	if !v.Valid() || !other.Valid() {
		return false
	}
	return semver.Compare(v.canonical, other.canonical) > 0
}

// IsSame reports whether v and other denote the same version.
// Two absent versions are the same; an absent and a present one are not.
func (v *Version) IsSame(other *Version) bool {
	switch {
	case v == nil && other == nil:
		return true
	case v == nil || other == nil:
		return false
	case v.Valid() && other.Valid():
		return semver.Compare(v.canonical, other.canonical) == 0
	default:
		return v.raw == other.raw
	}
}

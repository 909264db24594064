package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/equipwatch/equipwatch/pkg/errors"
)

// ModelVersion is a semantic version triple with total ordering by
// (major, minor, patch). It is an immutable value type; the increment
// methods return a new, strictly greater version.
type ModelVersion struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses a "M.m.p" version string
func ParseVersion(s string) (ModelVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return ModelVersion{}, errors.NewValidationError(errors.CodeInvalidVersion,
			fmt.Sprintf("invalid version format: %s", s))
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return ModelVersion{}, errors.NewValidationError(errors.CodeInvalidVersion,
				fmt.Sprintf("invalid version component %q in %s", p, s))
		}
		nums[i] = n
	}

	return ModelVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func (v ModelVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 ordering versions lexicographically by
// (major, minor, patch)
func (v ModelVersion) Compare(o ModelVersion) int {
	if v.Major != o.Major {
		return sign(v.Major - o.Major)
	}
	if v.Minor != o.Minor {
		return sign(v.Minor - o.Minor)
	}
	return sign(v.Patch - o.Patch)
}

// Less reports whether v orders strictly before o
func (v ModelVersion) Less(o ModelVersion) bool {
	return v.Compare(o) < 0
}

// IncrementPatch bumps the patch component
func (v ModelVersion) IncrementPatch() ModelVersion {
	return ModelVersion{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// IncrementMinor bumps the minor component and resets patch
func (v ModelVersion) IncrementMinor() ModelVersion {
	return ModelVersion{Major: v.Major, Minor: v.Minor + 1, Patch: 0}
}

// IncrementMajor bumps the major component and resets minor and patch
func (v ModelVersion) IncrementMajor() ModelVersion {
	return ModelVersion{Major: v.Major + 1, Minor: 0, Patch: 0}
}

// Bump applies the requested version bump
func (v ModelVersion) Bump(bump VersionBump) ModelVersion {
	switch bump {
	case BumpMajor:
		return v.IncrementMajor()
	case BumpMinor:
		return v.IncrementMinor()
	default:
		return v.IncrementPatch()
	}
}

// MarshalJSON serializes the version as a "M.m.p" string
func (v ModelVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON parses a "M.m.p" string
func (v *ModelVersion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// VersionBump selects which version component to increment
type VersionBump string

const (
	BumpMajor VersionBump = "major"
	BumpMinor VersionBump = "minor"
	BumpPatch VersionBump = "patch"
)

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

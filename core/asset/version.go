package asset

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// BaseVersion is the version of a freshly created asset.
const BaseVersion = "0.1"

// ParseVersion returns error if version string is not in MAJOR.MINOR format
func ParseVersion(v string) (*semver.Version, error) {
	semverVersion, err := semver.NewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q", v)
	}
	if semverVersion.Patch() != 0 || semverVersion.Prerelease() != "" {
		return nil, fmt.Errorf("invalid version %q: expected MAJOR.MINOR", v)
	}
	return semverVersion, nil
}

// IncreaseMinorVersion bumps up the minor version +0.1
func IncreaseMinorVersion(v string) (string, error) {
	oldVersion, err := ParseVersion(v)
	if err != nil {
		return "", err
	}
	newVersion := oldVersion.IncMinor()
	return formatVersion(&newVersion), nil
}

// nextVersion picks the version an update should write. Backends that do
// not persist versions report an empty one, in which case the version the
// caller last saw is bumped instead.
func nextVersion(stored, seen string) (string, error) {
	switch {
	case stored != "":
		return IncreaseMinorVersion(stored)
	case seen != "":
		return IncreaseMinorVersion(seen)
	}
	return IncreaseMinorVersion(BaseVersion)
}

func formatVersion(v *semver.Version) string {
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
}

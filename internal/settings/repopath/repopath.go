// Package repopath maps component file specs to repository-relative paths and back.
// The two mappings are exact inverses for every valid fileSpec/roaming pair; the
// reload planner relies on this bijection to resolve repository deltas.
package repopath

import (
	"fmt"
	"path"
	"strings"
)

// RoamingType classifies a configuration file as per-user or shared,
// which decides where it lives inside the settings repository.
type RoamingType int

const (
	// RoamingPerUser files live at the repository root.
	RoamingPerUser RoamingType = iota

	// RoamingShared files live under the shared/ directory.
	RoamingShared
)

// sharedDir is reserved for RoamingShared specs. A per-user fileSpec whose first
// segment is this name would break the bijection, so it is rejected.
const sharedDir = "shared"

func (r RoamingType) String() string {
	switch r {
	case RoamingPerUser:
		return "per-user"
	case RoamingShared:
		return "shared"
	default:
		return "unknown"
	}
}

// ToRepoPath returns the repository-relative path for a component file spec.
// fileSpec must be a clean, slash-separated relative path.
func ToRepoPath(fileSpec string, roaming RoamingType) (string, error) {
	if err := validateFileSpec(fileSpec); err != nil {
		return "", err
	}

	switch roaming {
	case RoamingPerUser:
		if firstSegment(fileSpec) == sharedDir {
			return "", fmt.Errorf("per-user file spec %q collides with the %s/ directory", fileSpec, sharedDir)
		}
		return fileSpec, nil
	case RoamingShared:
		return path.Join(sharedDir, fileSpec), nil
	default:
		return "", fmt.Errorf("unknown roaming type %d", roaming)
	}
}

// ToLocalPath is the exact inverse of ToRepoPath. It returns the component file
// spec and roaming type for a repository-relative path. ok is false for paths
// that do not address a settings file (README, dotfiles, malformed paths);
// such paths carry no component state and are skipped by the reload planner.
func ToLocalPath(repoPath string) (fileSpec string, roaming RoamingType, ok bool) {
	if validateFileSpec(repoPath) != nil {
		return "", RoamingPerUser, false
	}

	if firstSegment(repoPath) == sharedDir {
		rest := strings.TrimPrefix(repoPath, sharedDir+"/")
		if rest == "" || rest == repoPath {
			return "", RoamingPerUser, false
		}
		return rest, RoamingShared, true
	}
	return repoPath, RoamingPerUser, true
}

func validateFileSpec(spec string) error {
	if spec == "" {
		return fmt.Errorf("empty file spec")
	}
	if strings.HasPrefix(spec, "/") || strings.HasSuffix(spec, "/") {
		return fmt.Errorf("file spec %q must be relative", spec)
	}
	if path.Clean(spec) != spec {
		return fmt.Errorf("file spec %q is not a clean path", spec)
	}
	for _, seg := range strings.Split(spec, "/") {
		if seg == ".." || seg == "." {
			return fmt.Errorf("file spec %q escapes the repository", spec)
		}
		if strings.HasPrefix(seg, ".") {
			return fmt.Errorf("file spec %q addresses a hidden path", spec)
		}
	}
	return nil
}

func firstSegment(spec string) string {
	if i := strings.IndexByte(spec, '/'); i >= 0 {
		return spec[:i]
	}
	return spec
}

//go:build !windows

package tasks

import (
	"github.com/openfroyo/installer/pkg/errdefs"
)

func setRegistryValue(path, _, _, _ string) (bool, error) {
	return false, errdefs.NewUnsupportedPlatformError("registry access requires windows", errdefs.ErrUnsupportedOS).
		WithDetail("key", path)
}

func deleteRegistryValue(path, _ string) error {
	return errdefs.NewUnsupportedPlatformError("registry access requires windows", errdefs.ErrUnsupportedOS).
		WithDetail("key", path)
}

func deleteRegistryKey(path string) error {
	return errdefs.NewUnsupportedPlatformError("registry access requires windows", errdefs.ErrUnsupportedOS).
		WithDetail("key", path)
}

//go:build windows

package tasks

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/windows/registry"
)

var registryRoots = map[string]registry.Key{
	"HKCU":                registry.CURRENT_USER,
	"HKEY_CURRENT_USER":   registry.CURRENT_USER,
	"HKLM":                registry.LOCAL_MACHINE,
	"HKEY_LOCAL_MACHINE":  registry.LOCAL_MACHINE,
	"HKCR":                registry.CLASSES_ROOT,
	"HKEY_CLASSES_ROOT":   registry.CLASSES_ROOT,
	"HKU":                 registry.USERS,
	"HKEY_USERS":          registry.USERS,
	"HKCC":                registry.CURRENT_CONFIG,
	"HKEY_CURRENT_CONFIG": registry.CURRENT_CONFIG,
}

func splitRegistryPath(path string) (registry.Key, string, error) {
	root, sub, _ := strings.Cut(path, `\`)
	k, ok := registryRoots[strings.ToUpper(root)]
	if !ok {
		return 0, "", fmt.Errorf("unknown registry root %q", root)
	}
	return k, sub, nil
}

func setRegistryValue(path, name, typ, value string) (bool, error) {
	root, sub, err := splitRegistryPath(path)
	if err != nil {
		return false, err
	}

	key, existed, err := registry.CreateKey(root, sub, registry.SET_VALUE)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer key.Close()

	switch typ {
	case "expand_string":
		err = key.SetExpandStringValue(name, value)
	case "dword":
		var n uint64
		if n, err = strconv.ParseUint(value, 0, 32); err == nil {
			err = key.SetDWordValue(name, uint32(n))
		}
	case "qword":
		var n uint64
		if n, err = strconv.ParseUint(value, 0, 64); err == nil {
			err = key.SetQWordValue(name, n)
		}
	default:
		err = key.SetStringValue(name, value)
	}
	if err != nil {
		return !existed, fmt.Errorf("failed to set %s\\%s: %w", path, name, err)
	}
	return !existed, nil
}

func deleteRegistryValue(path, name string) error {
	root, sub, err := splitRegistryPath(path)
	if err != nil {
		return err
	}
	key, err := registry.OpenKey(root, sub, registry.SET_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer key.Close()

	if err := key.DeleteValue(name); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("failed to delete %s\\%s: %w", path, name, err)
	}
	return nil
}

func deleteRegistryKey(path string) error {
	root, sub, err := splitRegistryPath(path)
	if err != nil {
		return err
	}
	if err := registry.DeleteKey(root, sub); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

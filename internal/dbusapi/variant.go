package dbusapi

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Variant decoders. NetworkManager is consistent about property types but
// the numeric width on the wire differs between properties (y, u, i, x), so
// the integer decoders coerce rather than assert a single width.

func VariantString(v dbus.Variant) (string, error) {
	s, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("variant is %T, not string", v.Value())
	}
	return s, nil
}

func VariantBool(v dbus.Variant) (bool, error) {
	b, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("variant is %T, not bool", v.Value())
	}
	return b, nil
}

func VariantInt64(v dbus.Variant) (int64, error) {
	switch n := v.Value().(type) {
	case byte:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("variant is %T, not an integer", v.Value())
	}
}

func VariantUint32(v dbus.Variant) (uint32, error) {
	n, err := VariantInt64(v)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

func VariantObjectPath(v dbus.Variant) (dbus.ObjectPath, error) {
	p, ok := v.Value().(dbus.ObjectPath)
	if !ok {
		return "", fmt.Errorf("variant is %T, not an object path", v.Value())
	}
	return p, nil
}

func VariantObjectPaths(v dbus.Variant) ([]dbus.ObjectPath, error) {
	paths, ok := v.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, fmt.Errorf("variant is %T, not an object path list", v.Value())
	}
	return paths, nil
}

func VariantBytes(v dbus.Variant) ([]byte, error) {
	b, ok := v.Value().([]byte)
	if !ok {
		return nil, fmt.Errorf("variant is %T, not a byte array", v.Value())
	}
	return b, nil
}

func VariantStrings(v dbus.Variant) ([]string, error) {
	s, ok := v.Value().([]string)
	if !ok {
		return nil, fmt.Errorf("variant is %T, not a string list", v.Value())
	}
	return s, nil
}

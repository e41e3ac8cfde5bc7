package esml

import (
	"fmt"
	"strconv"
	"strings"
)

// ReservedPrefix marks the namespace of must-understand types. A qualified
// name under it (or with no namespace at all) is reserved for the core.
const ReservedPrefix = "core."

// TypeID identifies a type by qualified name and version. HasVersion is
// false for a bare tag ("order.Placed"), which refers to the latest version
// registered at the point of use.
type TypeID struct {
	Name       string
	Version    int
	HasVersion bool
}

// ParseTypeTag parses "name" or "name@version" tags. Versions are positive
// integers; the historical opaque-tag scheme ("@new") is not accepted.
func ParseTypeTag(tag string) (TypeID, error) {
	name := tag
	verPart := ""
	if i := strings.IndexByte(tag, '@'); i >= 0 {
		name = tag[:i]
		verPart = tag[i+1:]
	}
	if name == "" {
		return TypeID{}, fmt.Errorf("invalid type tag %q: empty name", tag)
	}
	if strings.ContainsRune(name, '@') {
		return TypeID{}, fmt.Errorf("invalid type tag %q: name may not contain '@'", tag)
	}
	if verPart == "" {
		if strings.ContainsRune(tag, '@') {
			return TypeID{}, fmt.Errorf("invalid type tag %q: empty version", tag)
		}
		return TypeID{Name: name}, nil
	}
	v, err := strconv.Atoi(verPart)
	if err != nil || v < 1 {
		return TypeID{}, fmt.Errorf("invalid type tag %q: version must be a positive integer", tag)
	}
	return TypeID{Name: name, Version: v, HasVersion: true}, nil
}

// String renders the tag form.
func (id TypeID) String() string {
	if !id.HasVersion {
		return id.Name
	}
	return id.Name + "@" + strconv.Itoa(id.Version)
}

// Reserved reports whether the name falls in the must-understand namespace:
// the core. prefix or a name with no namespace qualifier.
func (id TypeID) Reserved() bool {
	return strings.HasPrefix(id.Name, ReservedPrefix) || !strings.Contains(id.Name, ".")
}

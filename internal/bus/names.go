package bus

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/mcncl/dbusjq/internal/errors"
)

const maxNameLength = 255

var (
	busNameElement   = regexp.MustCompile(`^[A-Za-z_-][A-Za-z0-9_-]*$`)
	uniqueElement    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	interfaceElement = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Target identifies the object whose signals are observed.
type Target struct {
	Service   string
	Path      string
	Interface string
}

// Validate checks the service name, object path and interface name against
// the D-Bus naming rules.
func (t Target) Validate() error {
	if err := ValidateBusName(t.Service); err != nil {
		return err
	}
	if !dbus.ObjectPath(t.Path).IsValid() {
		return fmt.Errorf("%w: %q", errors.ErrInvalidPath, t.Path)
	}
	return ValidateInterfaceName(t.Interface)
}

// ValidateBusName checks a well-known (org.example.Service) or unique
// (:1.42) bus name.
func ValidateBusName(name string) error {
	elementPattern := busNameElement
	rest := name
	if strings.HasPrefix(name, ":") {
		elementPattern = uniqueElement
		rest = name[1:]
	}
	return validateDotted("bus name", name, rest, elementPattern)
}

// ValidateInterfaceName checks an interface name such as
// org.freedesktop.DBus.Properties.
func ValidateInterfaceName(name string) error {
	return validateDotted("interface name", name, name, interfaceElement)
}

// ValidateMemberName checks a signal name such as PropertiesChanged.
func ValidateMemberName(name string) error {
	if len(name) == 0 || len(name) > maxNameLength || !interfaceElement.MatchString(name) {
		return fmt.Errorf("%w: member name %q", errors.ErrInvalidName, name)
	}
	return nil
}

func validateDotted(kind, name, rest string, element *regexp.Regexp) error {
	if len(name) == 0 || len(name) > maxNameLength {
		return fmt.Errorf("%w: %s %q must be 1 to %d characters", errors.ErrInvalidName, kind, name, maxNameLength)
	}
	parts := strings.Split(rest, ".")
	if len(parts) < 2 {
		return fmt.Errorf("%w: %s %q needs at least two elements", errors.ErrInvalidName, kind, name)
	}
	for _, part := range parts {
		if !element.MatchString(part) {
			return fmt.Errorf("%w: %s %q has invalid element %q", errors.ErrInvalidName, kind, name, part)
		}
	}
	return nil
}

package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidMaintenanceMode indicates a maintenance value outside 0, 1 and 2.
var ErrInvalidMaintenanceMode = errors.New("maintenance mode must be 0, 1 or 2")

// MaintenanceMode is the forum availability state.
type MaintenanceMode int

const (
	// MaintenanceOff keeps the forum fully available.
	MaintenanceOff MaintenanceMode = 0
	// MaintenanceLimited lets administrators in while members see the maintenance message.
	MaintenanceLimited MaintenanceMode = 1
	// MaintenanceLockout makes the forum unusable until the value is reset by hand.
	MaintenanceLockout MaintenanceMode = 2
)

// Valid reports whether m is one of the three known modes.
func (m MaintenanceMode) Valid() bool {
	return m >= MaintenanceOff && m <= MaintenanceLockout
}

func (m MaintenanceMode) String() string {
	switch m {
	case MaintenanceOff:
		return "off"
	case MaintenanceLimited:
		return "limited"
	case MaintenanceLockout:
		return "lockout"
	default:
		return "unknown(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseMaintenanceMode accepts the numeric form (0, 1, 2) or the mode name.
func ParseMaintenanceMode(raw string) (MaintenanceMode, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "off":
		return MaintenanceOff, nil
	case "limited":
		return MaintenanceLimited, nil
	case "lockout":
		return MaintenanceLockout, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMaintenanceMode, raw)
	}
	return maintenanceFromInt(value)
}

func maintenanceFromInt(value int) (MaintenanceMode, error) {
	mode := MaintenanceMode(value)
	if !mode.Valid() {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidMaintenanceMode, value)
	}
	return mode, nil
}

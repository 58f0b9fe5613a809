package scale

import "codeberg.org/mutker/vamon/internal/errors"

const ErrUnknownUnit = errors.ErrorCode("scale_unknown_unit")

// entry maps an interval unit to its conversion factor and the next larger
// unit used when displaying durations.
type entry struct {
	unit    string
	seconds float64
	larger  string
}

// The closed set of interval units. Durations configured against an interval
// unit are expressed in the next larger unit; days self-loop.
var table = []entry{
	{"ms", 0.001, "s"},
	{"s", 1.0, "m"},
	{"m", 60.0, "h"},
	{"h", 3600.0, "d"},
	{"d", 86400.0, "d"},
}

// Units returns the valid interval units in ascending order.
func Units() []string {
	units := make([]string, len(table))
	for i, e := range table {
		units[i] = e.unit
	}

	return units
}

// Valid reports whether unit is a member of the closed set.
func Valid(unit string) bool {
	_, err := lookup(unit)
	return err == nil
}

// Factor returns the number of seconds in one interval unit.
func Factor(unit string) (float64, error) {
	e, err := lookup(unit)
	if err != nil {
		return 0, err
	}

	return e.seconds, nil
}

// DurationUnit returns the label of the next larger unit, used for
// duration display and logging.
func DurationUnit(unit string) (string, error) {
	e, err := lookup(unit)
	if err != nil {
		return "", err
	}

	return e.larger, nil
}

// DurationFactor returns the number of seconds in one duration unit for the
// given interval unit, i.e. Factor(DurationUnit(unit)).
func DurationFactor(unit string) (float64, error) {
	larger, err := DurationUnit(unit)
	if err != nil {
		return 0, err
	}

	return Factor(larger)
}

// UnitAt returns the unit at position i of the ordered set, clamped to the
// valid range. Used by the configuration editor to pick a unit by digit key.
func UnitAt(i int) string {
	if i < 0 {
		i = 0
	}
	if i >= len(table) {
		i = len(table) - 1
	}

	return table[i].unit
}

func lookup(unit string) (entry, error) {
	for _, e := range table {
		if e.unit == unit {
			return e, nil
		}
	}

	return entry{}, errors.WithData(ErrUnknownUnit, unit)
}

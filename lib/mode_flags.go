package lib

import (
	"fmt"
	"strings"
)

// RunMode indicates whether advect is running on one rank or many.
type RunMode int

const (
	SerialMode RunMode = iota
	RanksMode
)

func (m RunMode) String() string {
	if m == RanksMode {
		return "ranks"
	}
	return "serial"
}

// CheckStrictness indicates how functions related to the "check" mode
// should behave when they encounter an error.
type CheckStrictness int

const (
	CrashOnError CheckStrictness = iota
	WarnOnError
)

// ParseCheckStrictness converts "crash" or "warn" to a CheckStrictness.
func ParseCheckStrictness(s string) (CheckStrictness, error) {
	switch strings.ToLower(s) {
	case "crash", "":
		return CrashOnError, nil
	case "warn":
		return WarnOnError, nil
	}
	return CrashOnError, fmt.Errorf("The check strictness '%s' is not one "+
		"of 'crash' or 'warn'.", s)
}

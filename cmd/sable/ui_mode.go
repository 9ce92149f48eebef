package main

import (
	"fmt"
	"os"
	"strings"
)

// Both --ui and --color take auto|on|off; auto defers to whether stdout
// is a terminal.
type triState uint8

const (
	triAuto triState = iota
	triOn
	triOff
)

func parseTriState(flag, value string) (triState, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return triAuto, nil
	case "on":
		return triOn, nil
	case "off":
		return triOff, nil
	default:
		return triAuto, fmt.Errorf("invalid --%s value %q (expected auto|on|off)", flag, value)
	}
}

func (t triState) enabled() bool {
	switch t {
	case triOn:
		return true
	case triOff:
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

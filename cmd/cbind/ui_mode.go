package main

import (
	"fmt"
	"os"
	"strings"
)

// uiMode is the value of --ui.
type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

var uiModeNames = map[string]uiMode{
	"":      uiModeAuto,
	"auto":  uiModeAuto,
	"on":    uiModeOn,
	"true":  uiModeOn,
	"off":   uiModeOff,
	"false": uiModeOff,
}

func readUIMode(value string) (uiMode, error) {
	if m, ok := uiModeNames[strings.ToLower(strings.TrimSpace(value))]; ok {
		return m, nil
	}
	return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
}

// shouldUseTUI decides whether generate draws the header list. In auto mode
// the list appears only for several headers, pretty output and a terminal
// stdout; the transcript is then held back until the list closes.
func shouldUseTUI(mode uiMode, jsonOutput bool, headers int) bool {
	if mode != uiModeAuto {
		return mode == uiModeOn
	}
	if jsonOutput || headers < 2 {
		return false
	}
	return isTerminal(os.Stdout)
}

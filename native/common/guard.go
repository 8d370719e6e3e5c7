package common

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModulePaused is returned by every mutating call of a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports which modules are administratively paused.
type PauseView interface {
	IsPaused(module string) bool
}

// PauseSet is an in-memory PauseView keyed by lowercase module name.
type PauseSet map[string]bool

// IsPaused implements PauseView.
func (p PauseSet) IsPaused(module string) bool {
	return p[strings.ToLower(strings.TrimSpace(module))]
}

// Guard returns ErrModulePaused, naming the module, when p reports it paused.
// A nil view never pauses.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}

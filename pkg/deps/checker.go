// Package deps looks up the external programs hope works alongside.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Pianobar is the player whose event_command hope is installed as.
const Pianobar = "pianobar"

// Checker resolves program names against PATH.
type Checker struct {
	programs []string
	lookPath func(string) (string, error)
}

// NewChecker creates a checker for the given program names.
func NewChecker(programs ...string) *Checker {
	return &Checker{programs: programs, lookPath: exec.LookPath}
}

// Missing returns the programs that could not be found, in the order given.
func (c *Checker) Missing() []string {
	var missing []string
	for _, p := range c.programs {
		if _, err := c.lookPath(p); err != nil {
			missing = append(missing, p)
		}
	}
	return missing
}

// Check returns a *MissingError when any program is absent.
func (c *Checker) Check() error {
	if missing := c.Missing(); len(missing) > 0 {
		return &MissingError{Programs: missing}
	}
	return nil
}

// Warn logs each missing program. The listener can still receive events from
// a pianobar started elsewhere, so nothing here is fatal.
func (c *Checker) Warn(logger logrus.FieldLogger) {
	for _, p := range c.Missing() {
		logger.WithField("program", p).Warnf("'%s' not found in PATH", p)
	}
}

// MissingError lists programs absent from PATH.
type MissingError struct {
	Programs []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("not found in PATH: %s", strings.Join(e.Programs, ", "))
}

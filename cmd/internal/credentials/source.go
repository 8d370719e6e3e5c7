package credentials

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves a bearer token: an explicit value first, then an
// environment variable, then an interactive prompt when allowed. The result is
// cached after the first call.
type Source struct {
	explicit string
	envVar   string
	prompt   bool

	// stdin and stderr are replaceable for tests.
	stdinFD    int
	stderr     io.Writer
	isTerminal func(int) bool
	readSecret func(int) ([]byte, error)

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a source. prompt enables the terminal fallback.
func NewSource(explicit, envVar string, prompt bool) *Source {
	return &Source{
		explicit:   strings.TrimSpace(explicit),
		envVar:     strings.TrimSpace(envVar),
		prompt:     prompt,
		stdinFD:    int(os.Stdin.Fd()),
		stderr:     os.Stderr,
		isTerminal: term.IsTerminal,
		readSecret: term.ReadPassword,
	}
}

// Get returns the token, or an empty string when none is configured and
// prompting is disabled.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.explicit != "" {
			s.value = s.explicit
			return
		}
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = strings.TrimSpace(value)
				return
			}
		}
		if !s.prompt {
			return
		}
		if !s.isTerminal(s.stdinFD) {
			s.err = errors.New("token prompt requested but no terminal available")
			return
		}

		fmt.Fprint(s.stderr, "Enter RPC token: ")
		raw, err := s.readSecret(s.stdinFD)
		fmt.Fprintln(s.stderr)
		if err != nil {
			s.err = fmt.Errorf("failed to read token: %w", err)
			return
		}
		token := strings.TrimSpace(string(raw))
		if token == "" {
			s.err = errors.New("RPC token cannot be empty")
			return
		}
		s.value = token
	})

	return s.value, s.err
}

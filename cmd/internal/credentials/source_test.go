package credentials

import (
	"bytes"
	"errors"
	"testing"
)

func TestExplicitWins(t *testing.T) {
	t.Setenv("CRED_TEST_TOKEN", "from-env")
	token, err := NewSource(" flag-token ", "CRED_TEST_TOKEN", true).Get()
	if err != nil || token != "flag-token" {
		t.Fatalf("expected flag token, got %q (%v)", token, err)
	}
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("CRED_TEST_TOKEN", "from-env")
	token, err := NewSource("", "CRED_TEST_TOKEN", false).Get()
	if err != nil || token != "from-env" {
		t.Fatalf("expected env token, got %q (%v)", token, err)
	}

	t.Setenv("CRED_TEST_TOKEN", "  ")
	if _, err := NewSource("", "CRED_TEST_TOKEN", false).Get(); err == nil {
		t.Fatalf("expected error for blank env token")
	}
}

func TestNoTokenWithoutPrompt(t *testing.T) {
	token, err := NewSource("", "CRED_TEST_UNSET_TOKEN", false).Get()
	if err != nil || token != "" {
		t.Fatalf("expected empty token, got %q (%v)", token, err)
	}
}

func TestPrompt(t *testing.T) {
	stderr := &bytes.Buffer{}
	src := NewSource("", "", true)
	src.stderr = stderr
	src.isTerminal = func(int) bool { return true }
	calls := 0
	src.readSecret = func(int) ([]byte, error) {
		calls++
		return []byte("typed-token\n"), nil
	}

	for i := 0; i < 2; i++ {
		token, err := src.Get()
		if err != nil || token != "typed-token" {
			t.Fatalf("expected prompted token, got %q (%v)", token, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single prompt, got %d", calls)
	}
	if stderr.String() != "Enter RPC token: \n" {
		t.Fatalf("unexpected prompt output %q", stderr.String())
	}
}

func TestPromptFailures(t *testing.T) {
	noTTY := NewSource("", "", true)
	noTTY.isTerminal = func(int) bool { return false }
	if _, err := noTTY.Get(); err == nil {
		t.Fatalf("expected error without terminal")
	}

	broken := NewSource("", "", true)
	broken.stderr = &bytes.Buffer{}
	broken.isTerminal = func(int) bool { return true }
	broken.readSecret = func(int) ([]byte, error) { return nil, errors.New("tty closed") }
	if _, err := broken.Get(); err == nil {
		t.Fatalf("expected read error")
	}
}

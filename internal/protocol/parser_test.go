package protocol

import (
	"errors"
	"testing"
)

func TestParseCommandBasic(t *testing.T) {
	t.Parallel()

	cmd, err := ParseCommand("seek 42")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Verb != "SEEK" {
		t.Errorf("Verb = %q, want SEEK", cmd.Verb)
	}
	if cmd.Arg(0) != "42" {
		t.Errorf("Arg(0) = %q, want 42", cmd.Arg(0))
	}
}

func TestParseCommandEmptyLine(t *testing.T) {
	t.Parallel()

	cmd, err := ParseCommand("   ")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Verb != "" {
		t.Errorf("Verb = %q, want empty", cmd.Verb)
	}
}

func TestParseCommandQuotedPathWithSpaces(t *testing.T) {
	t.Parallel()

	cmd, err := ParseCommand(`LOAD "a b/c.mp4"`)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Verb != "LOAD" {
		t.Fatalf("Verb = %q, want LOAD", cmd.Verb)
	}
	if cmd.Arg(0) != "a b/c.mp4" {
		t.Errorf("Arg(0) = %q, want %q", cmd.Arg(0), "a b/c.mp4")
	}
}

func TestParseCommandUnquotedPathWithoutSpaces(t *testing.T) {
	t.Parallel()

	cmd, err := ParseCommand("LOAD a/b/c.mp4")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Arg(0) != "a/b/c.mp4" {
		t.Errorf("Arg(0) = %q, want a/b/c.mp4", cmd.Arg(0))
	}
}

func TestParseCommandMissingArgReturnsEmptyString(t *testing.T) {
	t.Parallel()

	cmd, err := ParseCommand("STATUS")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Arg(0) != "" {
		t.Errorf("Arg(0) = %q, want empty", cmd.Arg(0))
	}
}

func TestParseCommandMultipleArgs(t *testing.T) {
	t.Parallel()

	cmd, err := ParseCommand("FORMAT PAL YUV420P")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Arg(0) != "PAL" || cmd.Arg(1) != "YUV420P" {
		t.Errorf("Args = %v", cmd.Args)
	}
}

func TestParseCommandUnterminatedQuoteReturnsError(t *testing.T) {
	t.Parallel()

	_, err := ParseCommand(`LOAD "a/b/c.mp4`)
	if !errors.Is(err, ErrUnterminatedQuote) {
		t.Fatalf("err = %v, want ErrUnterminatedQuote", err)
	}
}

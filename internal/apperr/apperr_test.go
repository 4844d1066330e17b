package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindsMatchWithErrorsIs(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{"not found", NotFound("task not found"), ErrNotFound},
		{"forbidden", Forbidden(), ErrForbidden},
		{"invalid", Invalid("bad"), ErrInvalid},
		{"invalidf", Invalidf("bad %s", "field"), ErrInvalid},
		{"unauthorized", Unauthorized("no token"), ErrUnauthorized},
		{"conflict", Conflict("email taken"), ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.kind) {
				t.Fatalf("expected %v to match %v", tc.err, tc.kind)
			}
			wrapped := fmt.Errorf("outer: %w", tc.err)
			if !errors.Is(wrapped, tc.kind) {
				t.Fatalf("expected wrapped error to match %v", tc.kind)
			}
		})
	}
}

func TestForbiddenMessageIsFixed(t *testing.T) {
	if got := Message(Forbidden()); got != "not enough permissions" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrInvalid, "cannot store file", cause)
	if !errors.Is(err, cause) || !errors.Is(err, ErrInvalid) {
		t.Fatalf("wrap lost a link: %v", err)
	}
	if Message(err) != "cannot store file" {
		t.Fatalf("unexpected message %q", Message(err))
	}
	if Message(cause) != "" {
		t.Fatal("plain errors must not expose a message")
	}
}

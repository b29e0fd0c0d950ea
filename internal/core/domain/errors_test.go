package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{ErrInvalidRequest, KindInvalidRequest},
		{fmt.Errorf("item abc: %w", ErrNotFound), KindNotFound},
		{fmt.Errorf("purchase: %w", fmt.Errorf("want 5, have 2: %w", ErrInsufficientStock)), KindInsufficientStock},
		{ErrUnauthorized, KindUnauthorized},
		{ErrForbidden, KindForbidden},
		{ErrConflict, KindConflict},
		{ErrAlreadyExists, KindAlreadyExists},
		{ErrDuplicateRequest, KindDuplicateRequest},
		{errors.New("dial tcp 10.0.0.1:3306: connection refused"), KindInternal},
		{nil, KindInternal},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestPublicMessage_HidesInternalCause(t *testing.T) {
	err := errors.New("query items: Error 1045: Access denied for user 'root'")
	if got := PublicMessage(err); got != "internal error" {
		t.Errorf("expected generic message, got %q", got)
	}

	err = fmt.Errorf("item 42: %w", ErrNotFound)
	if got := PublicMessage(err); got != "item 42: not found" {
		t.Errorf("expected wrapped message, got %q", got)
	}
}

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "resource not found")
		if err.Error() != "[NOT_FOUND] resource not found" {
			t.Errorf("expected [NOT_FOUND] resource not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("dial unix: no such file")
		err := Wrap(original, CodeConnect, "daemon unreachable")
		expected := "[CONNECT_ERROR] daemon unreachable: dial unix: no such file"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to the original")
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeLockConflict, "another server is running")
		if !IsCode(err, CodeLockConflict) {
			t.Error("expected IsCode to return true for CodeLockConflict")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeThroughFmtWrap", func(t *testing.T) {
		inner := New(CodeStartupFailure, "server exited with code 3")
		err := fmt.Errorf("connect: %w", inner)
		if !IsCode(err, CodeStartupFailure) {
			t.Error("expected IsCode to see through fmt.Errorf wrapping")
		}
		if CodeOf(err) != CodeStartupFailure {
			t.Errorf("expected CodeOf STARTUP_FAILURE, got %s", CodeOf(err))
		}
	})

	t.Run("AddContext", func(t *testing.T) {
		err := AddContext(New(CodeParseFailure, "unexpected token"), CtxPath, "src/a.js")
		expected := "[PARSE_FAILURE] unexpected token map[path:src/a.js]"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}

		plain := AddContext(errors.New("boom"), CtxSeq, 7)
		if CodeOf(plain) != CodeInternal {
			t.Errorf("expected plain errors to become INTERNAL_ERROR, got %s", CodeOf(plain))
		}
	})

	t.Run("CodeOfPlainError", func(t *testing.T) {
		if CodeOf(errors.New("x")) != CodeInternal {
			t.Error("expected CodeOf to default to INTERNAL_ERROR")
		}
	})
}

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := &AppError{
		Message: "something went wrong",
	}
	if err.Error() != "something went wrong" {
		t.Errorf("expected 'something went wrong', got %v", err.Error())
	}

	wrappedErr := errors.New("underlying error")
	errWithWrap := &AppError{
		Message: "failed operation",
		Err:     wrappedErr,
	}
	expected := "failed operation: underlying error"
	if errWithWrap.Error() != expected {
		t.Errorf("expected %q, got %q", expected, errWithWrap.Error())
	}
	if !errors.Is(errWithWrap, wrappedErr) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestAppError_Code(t *testing.T) {
	err := NewMalformedDestinationError("not a url", nil)
	if err.Code() != "DESTINATION_MALFORMED" {
		t.Errorf("expected DESTINATION_MALFORMED, got %v", err.Code())
	}
	if err.RecoverySuggestion() == "" {
		t.Error("expected a recovery suggestion")
	}
}

func TestAppError_IsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want bool
	}{
		{"malformed destination", NewMalformedDestinationError("x", nil), true},
		{"unsupported scheme", NewUnsupportedSchemeError("ftp"), true},
		{"exporter", NewExporterError("boom", nil), true},
		{"emitter closed", ErrEmitterClosed, false},
		{"internal", NewInternalError("boom", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.IsRecoverable(); got != tt.want {
				t.Errorf("AppError.IsRecoverable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrEmitterClosedMatches(t *testing.T) {
	err := fmt.Errorf("emit: %w", ErrEmitterClosed)
	if !errors.Is(err, ErrEmitterClosed) {
		t.Error("expected wrapped ErrEmitterClosed to match")
	}
	if errors.Is(NewInternalError("x", nil), ErrEmitterClosed) {
		t.Error("expected different types not to match")
	}
}

func TestTypeOf(t *testing.T) {
	err := fmt.Errorf("resolve: %w", NewMalformedDestinationError("x", nil))
	if got := TypeOf(err); got != ErrorTypeMalformedDestination {
		t.Errorf("expected %s, got %s", ErrorTypeMalformedDestination, got)
	}
	if got := TypeOf(errors.New("plain")); got != "" {
		t.Errorf("expected empty type, got %s", got)
	}
}

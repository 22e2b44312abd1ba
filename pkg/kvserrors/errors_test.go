package kvserrors

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestIs(t *testing.T) {
	err := New(KindKeyNotFound, "kvs.Get", "key \"a\" not found")
	if !Is(err, KindKeyNotFound) {
		t.Fatalf("Is(err, KindKeyNotFound) = false, want true")
	}
	if Is(err, KindConversionFailed) {
		t.Fatalf("Is(err, KindConversionFailed) = true, want false")
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(KindPhysicalStorageFailure, "jsonbackend.Flush", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}
	var got *Error
	if !errors.As(err, &got) {
		t.Fatalf("errors.As() failed to match *Error")
	}
	if got.Kind != KindPhysicalStorageFailure {
		t.Fatalf("Kind = %v, want KindPhysicalStorageFailure", got.Kind)
	}
}

func TestFromIOError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not exist", os.ErrNotExist, KindFileNotFound},
		{"other", fmt.Errorf("permission denied"), KindUnmappedError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromIOError("jsonbackend.Load", tt.err)
			if got.Kind != tt.want {
				t.Fatalf("FromIOError().Kind = %v, want %v", got.Kind, tt.want)
			}
		})
	}

	if FromIOError("op", nil) != nil {
		t.Fatalf("FromIOError(nil) should return nil")
	}
}

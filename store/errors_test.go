package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		wantKind error
	}{
		{"context deadline exceeded", "context deadline exceeded", ErrTimeout},
		{"timeout in message", "connection timeout after 30s", ErrTimeout},
		{"AccessDenied response", "AccessDenied: you do not have access", ErrAccessDenied},
		{"HTTP 403", "received status 403", ErrAccessDenied},
		{"permission denied", "open /data/runnel: permission denied", ErrPermissionDenied},
		{"no space left", "write /data/runnel: no space left on device", ErrDiskFull},
		{"NoSuchKey", "NoSuchKey: The specified key does not exist", ErrNotFound},
		{"ENOENT errno", "open /missing: ENOENT", ErrNotFound},
		{"SlowDown", "SlowDown: please reduce request rate", ErrThrottled},
		{"HTTP 429", "received status 429", ErrThrottled},
		{"ExpiredToken", "ExpiredToken: the security token has expired", ErrAuth},
		{"NoCredentialProviders", "NoCredentialProviders: no valid providers", ErrAuth},
		{"connection refused", "dial tcp 127.0.0.1:9000: connection refused", ErrNetwork},
		{"DNS failure", "DNS lookup failed for bucket.s3.amazonaws.com", ErrNetwork},
		{"unrecognized", "something completely unexpected happened", errUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(errors.New(tt.errMsg))
			if !errors.Is(got, tt.wantKind) {
				t.Errorf("classifyError(%q) = %v, want %v", tt.errMsg, got, tt.wantKind)
			}
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if got := classifyError(nil); got != nil {
		t.Errorf("classifyError(nil) = %v, want nil", got)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o operation stalled" }
func (timeoutError) Timeout() bool { return true }

func TestClassifyError_TimeoutInterface(t *testing.T) {
	err := fmt.Errorf("put object: %w", timeoutError{})
	if got := classifyError(err); !errors.Is(got, ErrTimeout) {
		t.Errorf("classifyError = %v, want ErrTimeout", got)
	}
}

func TestStorageError_Chain(t *testing.T) {
	err := WrapReadError(context.DeadlineExceeded, "runnel/snapshots")

	if !errors.Is(err, ErrTimeout) {
		t.Error("expected errors.Is(err, ErrTimeout)")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("underlying error should stay in the chain")
	}

	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if se.Op != "read" || se.Path != "runnel/snapshots" {
		t.Errorf("Op/Path = %q/%q", se.Op, se.Path)
	}
}

func TestWrap_NilAndIdempotent(t *testing.T) {
	if WrapWriteError(nil, "p") != nil || WrapReadError(nil, "p") != nil || WrapInitError(nil, "d") != nil {
		t.Error("wrapping nil should return nil")
	}

	inner := WrapWriteError(errors.New("disk full"), "p")
	outer := WrapInitError(inner, "runnel")

	var se *StorageError
	if !errors.As(outer, &se) || se.Op != "write" {
		t.Errorf("already classified errors should not be rewrapped, got %v", outer)
	}
}

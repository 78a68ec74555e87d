package httpapi

import (
	"testing"
	"time"
)

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB on zero, got %d", maxBodyBytes)
	}
}

func TestSetMaxBodyBytes_PositiveSetsValue(t *testing.T) {
	defer SetMaxBodyBytes(0)
	SetMaxBodyBytes(1234)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestSetChatTimeoutSeconds_NormalizesNegativeToZero(t *testing.T) {
	defer SetChatTimeoutSeconds(0)
	SetChatTimeoutSeconds(-5)
	if chatTimeout != 0 {
		t.Fatalf("expected 0, got %v", chatTimeout)
	}
	SetChatTimeoutSeconds(3)
	if chatTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %v", chatTimeout)
	}
}

func TestSetCORSOptions_FillsMethodsAndHeaders(t *testing.T) {
	defer SetCORSOptions(false, nil, nil, nil)
	SetCORSOptions(true, []string{"http://localhost:3000"}, nil, nil)
	if !corsEnabled || len(corsAllowedMethods) == 0 || len(corsAllowedHeaders) == 0 {
		t.Fatalf("cors defaults not applied: %v %v", corsAllowedMethods, corsAllowedHeaders)
	}
}

package hash

import (
	"strings"
	"testing"
)

func TestHash_Deterministic(t *testing.T) {
	a := Hash([]byte("package main\n"))
	b := Hash([]byte("package main\n"))
	if a != b {
		t.Errorf("expected equal hashes for equal content, got %q vs %q", a, b)
	}
}

func TestHash_WhitespaceSensitive(t *testing.T) {
	a := Hash([]byte("foo"))
	b := Hash([]byte("foo "))
	if a == b {
		t.Error("expected different hashes for content differing only by trailing whitespace")
	}
}

func TestHash_TaggedWithAlgorithm(t *testing.T) {
	h := Hash([]byte("hello world"))
	if !strings.HasPrefix(h, xxh64Prefix) {
		t.Errorf("expected hash to be tagged with %q, got %q", xxh64Prefix, h)
	}
}

func TestHash_DifferentContentDiffers(t *testing.T) {
	a := Hash([]byte("alpha"))
	b := Hash([]byte("beta"))
	if a == b {
		t.Error("expected different content to hash differently")
	}
}

func TestHash_EmptyContent(t *testing.T) {
	h := Hash(nil)
	if h == "" {
		t.Error("expected a non-empty hash for empty content")
	}
}

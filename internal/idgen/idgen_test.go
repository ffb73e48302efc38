package idgen

import (
	"regexp"
	"strings"
	"testing"
)

func TestGenerateWithPrefix_Length(t *testing.T) {
	for _, prefix := range []string{NodePrefix, CommunityPrefix, TaskPrefix, JobPrefix, ComputeNodePrefix} {
		id, err := GenerateWithPrefix(prefix)
		if err != nil {
			t.Fatalf("GenerateWithPrefix(%q) error: %v", prefix, err)
		}
		wantLen := len(prefix) + Length
		if len(id) != wantLen {
			t.Errorf("GenerateWithPrefix(%q) length = %d, want %d (id=%q)", prefix, len(id), wantLen, id)
		}
		if id[:len(prefix)] != prefix {
			t.Errorf("GenerateWithPrefix(%q) = %q, want prefix %q", prefix, id, prefix)
		}
	}
}

func TestGenerateWithPrefix_Charset(t *testing.T) {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(NodePrefix) + `[a-zA-Z0-9]+$`)
	for i := 0; i < 100; i++ {
		id, err := GenerateWithPrefix(NodePrefix)
		if err != nil {
			t.Fatalf("GenerateWithPrefix() error on iteration %d: %v", i, err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("GenerateWithPrefix() = %q, does not match expected charset pattern", id)
		}
	}
}

func TestGenerateWithPrefix_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := GenerateWithPrefix(TaskPrefix)
		if err != nil {
			t.Fatalf("GenerateWithPrefix() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestToken(t *testing.T) {
	tok, err := Token()
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if len(tok) != TokenLength {
		t.Errorf("Token() length = %d, want %d", len(tok), TokenLength)
	}

	other, err := Token()
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if tok == other {
		t.Error("two tokens should not collide")
	}
}

func TestInviteCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := InviteCode()
		if err != nil {
			t.Fatalf("InviteCode() error on iteration %d: %v", i, err)
		}
		if len(code) != InviteLength {
			t.Fatalf("InviteCode() length = %d, want %d (code=%q)", len(code), InviteLength, code)
		}
		for _, c := range code {
			if !strings.ContainsRune(InviteAlphabet, c) {
				t.Fatalf("InviteCode() = %q contains %q outside the invite alphabet", code, c)
			}
		}
	}
}

package auth

import (
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("expected bcrypt hash, got %q", hash)
	}

	if !CheckPassword("hunter2!", hash) {
		t.Error("correct password did not verify")
	}
	if CheckPassword("hunter3!", hash) {
		t.Error("wrong password verified")
	}
}

func TestCheckPasswordMalformedHash(t *testing.T) {
	if CheckPassword("anything", "not-a-bcrypt-hash") {
		t.Error("malformed hash must verify as false")
	}
	if CheckPassword("anything", "") {
		t.Error("empty hash must verify as false")
	}
}

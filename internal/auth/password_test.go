package auth

import (
	"errors"
	"testing"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	h, err := HashPassword("bobpass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h == "bobpass" || !IsHashed(h) {
		t.Fatalf("expected bcrypt hash, got %q", h)
	}
	if !CheckPassword(h, "bobpass") {
		t.Fatalf("hash should verify")
	}
	if CheckPassword(h, "wrong") {
		t.Fatalf("wrong password should not verify")
	}
}

func TestCheckPassword_PlainText(t *testing.T) {
	if IsHashed("bobpass") {
		t.Fatalf("plain text misdetected as hash")
	}
	if !CheckPassword("bobpass", "bobpass") {
		t.Fatalf("plain text should verify")
	}
	if CheckPassword("bobpass", "bobpas") {
		t.Fatalf("mismatch should not verify")
	}
}

func TestPrepare(t *testing.T) {
	got, err := Prepare("pw", false)
	if err != nil || got != "pw" {
		t.Fatalf("plain prepare: %q %v", got, err)
	}
	got, err = Prepare("pw", true)
	if err != nil || !IsHashed(got) {
		t.Fatalf("hashed prepare: %q %v", got, err)
	}
	for _, hash := range []bool{false, true} {
		if _, err := Prepare("", hash); !errors.Is(err, ErrEmptyPassword) {
			t.Fatalf("hash=%t: expected ErrEmptyPassword, got %v", hash, err)
		}
	}
}

package utils

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatal("CheckPassword rejected the right password")
	}
	if CheckPassword("wrong", hash) {
		t.Fatal("CheckPassword accepted the wrong password")
	}
}

func TestRandomPassword(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		p := RandomPassword(12)
		if len(p) != 12 {
			t.Fatalf("len = %d, want 12", len(p))
		}
		seen[p] = true
	}
	if len(seen) < 2 {
		t.Fatal("RandomPassword returned the same value every time")
	}
}

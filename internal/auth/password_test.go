// Package auth tests cover password hashing/verification.
package auth

import "testing"

// TestHashAndVerifyPassword validates positive and negative password checks.
func TestHashAndVerifyPassword(t *testing.T) {
	h, err := HashPassword("secret", DefaultArgon2Params())
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	ok, err := VerifyPassword("secret", h)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatalf("expected password to verify")
	}

	ok, err = VerifyPassword("wrong", h)
	if err != nil {
		t.Fatalf("VerifyPassword(wrong): %v", err)
	}
	if ok {
		t.Fatalf("expected wrong password to fail")
	}
}

// TestVerifyPasswordRejectsMalformedHashes errors on bad PHC strings.
func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	for _, bad := range []string{
		"plaintext",
		"bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"argon2id$v=19$m=1,t=1$c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
	} {
		if _, err := VerifyPassword("x", bad); err == nil {
			t.Fatalf("hash %q: expected error", bad)
		}
	}
}

package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	digest, err := HashPassword("Aa123456")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if digest == "Aa123456" {
		t.Fatalf("digest must not equal plaintext")
	}
	if !CheckPassword("Aa123456", digest) {
		t.Fatalf("expected password check to pass")
	}
	if CheckPassword("wrong-pass1", digest) {
		t.Fatalf("expected password check to fail")
	}
}

func TestCheckPasswordRejectsGarbageDigest(t *testing.T) {
	if CheckPassword("Aa123456", "not-a-bcrypt-digest") {
		t.Fatalf("expected check against malformed digest to fail")
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		ok       bool
	}{
		{"Aa123456", true},
		{"longenough1", true},
		{"short1", false},
		{"onlyletters", false},
		{"12345678", false},
		{"", false},
	}
	for _, tc := range cases {
		err := ValidatePassword(tc.password)
		if tc.ok && err != nil {
			t.Fatalf("password %q: unexpected error %v", tc.password, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("password %q: expected policy error", tc.password)
		}
	}
}

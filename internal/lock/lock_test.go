package lock

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "s3cret" || hash == "" {
		t.Fatalf("hash = %q", hash)
	}

	if !VerifyPassword(hash, "s3cret") {
		t.Error("correct password rejected")
	}
	if VerifyPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
	if VerifyPassword(hash, "") {
		t.Error("empty password accepted")
	}
	if VerifyPassword("", "s3cret") {
		t.Error("empty hash accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	g := NewGate("secret")
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}

	tok := g.Token("talk", hash)
	if tok == "" {
		t.Fatal("empty token")
	}
	if !g.Valid("talk", hash, tok) {
		t.Error("token rejected for matching project and hash")
	}
	if g.Valid("other", hash, tok) {
		t.Error("token accepted for different project")
	}
	if g.Valid("talk", hash, "forged") {
		t.Error("forged token accepted")
	}
	if g.Valid("talk", hash, "") {
		t.Error("empty token accepted for locked project")
	}
}

func TestTokenInvalidatedByHashChange(t *testing.T) {
	g := NewGate("secret")
	h1, _ := HashPassword("old")
	h2, _ := HashPassword("new")

	tok := g.Token("talk", h1)
	if g.Valid("talk", h2, tok) {
		t.Error("token survived password change")
	}
}

func TestUnprotectedProjectNeedsNoToken(t *testing.T) {
	g := NewGate("secret")
	if !g.Valid("talk", "", "") {
		t.Error("empty hash should admit without token")
	}
	if !g.Valid("talk", "", "anything") {
		t.Error("empty hash should admit regardless of token")
	}
}

func TestGatesWithDifferentSecrets(t *testing.T) {
	hash, _ := HashPassword("pw")
	a := NewGate("one")
	b := NewGate("two")

	tok := a.Token("talk", hash)
	if b.Valid("talk", hash, tok) {
		t.Error("token accepted across secrets")
	}
}

package auth

import "testing"

func TestTokenValidator_RoundTrip(t *testing.T) {
	tv := NewTokenValidator("secret", 0)
	token := tv.GenerateToken("alice", "doc1", PermissionWrite)

	claims, ok := tv.Validate(token, "doc1")
	if !ok {
		t.Fatal("expected token to validate")
	}
	if claims.UserID != "alice" || claims.Permission != PermissionWrite {
		t.Fatalf("got %+v", claims)
	}
}

func TestTokenValidator_RejectsWrongFile(t *testing.T) {
	tv := NewTokenValidator("secret", 0)
	token := tv.GenerateToken("alice", "doc1", PermissionRead)

	if _, ok := tv.Validate(token, "doc2"); ok {
		t.Fatal("expected token bound to doc1 to fail against doc2")
	}
}

func TestTokenValidator_RejectsTamperedSignature(t *testing.T) {
	tv := NewTokenValidator("secret", 0)
	token := tv.GenerateToken("alice", "doc1", PermissionWrite)

	tampered := token[:len(token)-1] + "x"
	if _, ok := tv.Validate(tampered, "doc1"); ok {
		t.Fatal("expected tampered token to fail")
	}
}

func TestTokenValidator_RejectsExpired(t *testing.T) {
	tv := NewTokenValidator("secret", 0)
	stale := tv.generateTokenAt("alice", "doc1", PermissionRead, 1)

	if _, ok := tv.Validate(stale, "doc1"); ok {
		t.Fatal("expected 1970-epoch token to be expired")
	}
}

func TestTokenValidator_RejectsWrongSecret(t *testing.T) {
	tv1 := NewTokenValidator("secret-a", 0)
	tv2 := NewTokenValidator("secret-b", 0)
	token := tv1.GenerateToken("alice", "doc1", PermissionWrite)

	if _, ok := tv2.Validate(token, "doc1"); ok {
		t.Fatal("expected token signed with a different secret to fail")
	}
}

func TestTokenValidator_RejectsMalformedToken(t *testing.T) {
	tv := NewTokenValidator("secret", 0)
	for _, bad := range []string{"", "not-base64!!!", "YQ"} {
		if _, ok := tv.Validate(bad, "doc1"); ok {
			t.Errorf("expected malformed token %q to fail", bad)
		}
	}
}

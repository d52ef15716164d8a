package token

import (
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	tok, err := Issue("secret", "admin", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	sub, err := Verify("secret", tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub != "admin" {
		t.Errorf("subject = %q, want admin", sub)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, err := Issue("secret", "admin", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Verify("other-secret", tok); err == nil {
		t.Fatal("Verify accepted a token signed with a different secret")
	}
}

func TestVerify_Expired(t *testing.T) {
	tok, err := Issue("secret", "admin", -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Verify("secret", tok); err == nil {
		t.Fatal("Verify accepted an expired token")
	}
}

func TestVerify_Garbage(t *testing.T) {
	if _, err := Verify("secret", "not.a.token"); err == nil {
		t.Fatal("Verify accepted garbage input")
	}
}

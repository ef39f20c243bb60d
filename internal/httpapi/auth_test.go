package httpapi

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParseTokenCarriesOrganisation(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "")

	token, expiresAt, err := auth.IssueToken("meena", RoleStaff, "demo-shop")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected expiry in the future, got %s", expiresAt)
	}

	actor, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "meena" || actor.Role != RoleStaff || actor.OrgID != "demo-shop" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestIssueTokenRejectsUnknownRoleAndMissingOrg(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "")

	if _, _, err := auth.IssueToken("meena", "cashier", "demo-shop"); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if _, _, err := auth.IssueToken("meena", RoleOwner, " "); err == nil {
		t.Fatal("expected error for missing organisation")
	}
}

func TestParseTokenRejectsForeignSignatureAndMissingOrg(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "")
	other := NewAuthManager("another-secret-key", time.Hour, "")

	token, _, err := other.IssueToken("meena", RoleOwner, "demo-shop")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}

	noOrg := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, shopClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "meena",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleOwner,
	})
	signed, err := noOrg.SignedString([]byte("test-secret-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(signed); err == nil {
		t.Fatal("expected token without organisation to be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "")
	expired := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, shopClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "meena",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role:  RoleOwner,
		OrgID: "demo-shop",
	})
	signed, _ := expired.SignedString([]byte("test-secret-key"))
	if _, err := auth.ParseToken(signed); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestValidateManagerPIN(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, " 482913 ")
	if !auth.ValidateManagerPIN("482913") {
		t.Fatal("expected configured pin to validate")
	}
	if auth.ValidateManagerPIN("000000") || auth.ValidateManagerPIN("") {
		t.Fatal("expected wrong or empty pin to fail")
	}

	disabled := NewAuthManager("test-secret-key", time.Hour, "")
	if disabled.ValidateManagerPIN("disabled") || disabled.ValidateManagerPIN("") {
		t.Fatal("expected every pin to fail when none is configured")
	}
}

package main

import (
	"testing"

	"catalog-backend/utils"
)

func TestOperatorTokenKeepsGivenToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	got, err := operatorToken("given")
	if err != nil || got != "given" {
		t.Fatalf("expected given token, got %q (%v)", got, err)
	}
}

func TestOperatorTokenSignsAdminToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	token, err := operatorToken("")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	claims, err := utils.ValidateToken(token)
	if err != nil {
		t.Fatalf("token should validate: %v", err)
	}
	if claims.Role != "admin" {
		t.Errorf("expected admin role, got %q", claims.Role)
	}
}

func TestOperatorTokenWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	got, err := operatorToken("")
	if err != nil || got != "" {
		t.Fatalf("expected no token, got %q (%v)", got, err)
	}
}

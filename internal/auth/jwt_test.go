package auth

import "testing"

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", 1)

	token, err := svc.Generate(42, "g@example.com", RoleGuardian, 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "g@example.com" || claims.Role != RoleGuardian {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.SchoolID != 0 {
		t.Fatalf("guardian token should carry no school id, got %d", claims.SchoolID)
	}
}

func TestJWTSchoolClaims(t *testing.T) {
	svc := NewJWTService("test-secret", 1)

	token, err := svc.Generate(7, "admin@school.example", RoleSchool, 7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Role != RoleSchool || claims.SchoolID != 7 {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", 1).Generate(1, "x@example.com", RoleGuardian, 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewJWTService("secret-b", 1).Validate(token); err == nil {
		t.Fatal("expected validation failure with wrong secret")
	}
}

func TestJWTGarbage(t *testing.T) {
	if _, err := NewJWTService("secret", 1).Validate("not-a-token"); err == nil {
		t.Fatal("expected validation failure for garbage input")
	}
}

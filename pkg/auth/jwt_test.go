// pkg/auth/jwt_test.go
package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateToken(secret, "m-1", "merchant", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.ActorID != "m-1" || claims.Role != "merchant" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	secret := []byte("test-secret")
	expired, _ := GenerateToken(secret, "c-1", "courier", -time.Minute)
	other, _ := GenerateToken([]byte("other"), "c-1", "courier", time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong secret", other},
		{"garbage", "not.a.jwt"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateToken(secret, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

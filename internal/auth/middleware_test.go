package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestJWTMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/private", JWTMiddleware("secret"), func(c *fiber.Ctx) error {
		identity := IdentityFromLocals(c)
		if identity.ID == "" {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		return c.SendStatus(http.StatusOK)
	})

	svc := NewService("secret", nil)

	// missing token
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized")
	}

	// valid token
	token, _ := svc.signToken(User{ID: "user-1", Email: "u@example.com", Role: RoleParent}, accessTokenTTL)
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ok")
	}
}

func TestRequireRole(t *testing.T) {
	app := fiber.New()
	app.Get("/admin", JWTMiddleware("secret"), RequireRole(RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	svc := NewService("secret", nil)

	parentToken, _ := svc.signToken(User{ID: "user-1", Role: RoleParent}, accessTokenTTL)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+parentToken)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected forbidden for parent role")
	}

	adminToken, _ := svc.signToken(User{ID: "user-2", Role: RoleAdmin}, accessTokenTTL)
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ok for admin role")
	}
}

func TestBearerFromHeader(t *testing.T) {
	if bearerFromHeader("Bearer abc") != "abc" {
		t.Fatalf("expected token")
	}
	if bearerFromHeader("bearer abc") != "abc" {
		t.Fatalf("expected case-insensitive scheme")
	}
	if bearerFromHeader("Basic abc") != "" {
		t.Fatalf("expected empty for wrong scheme")
	}
	if bearerFromHeader("") != "" {
		t.Fatalf("expected empty for missing header")
	}
}

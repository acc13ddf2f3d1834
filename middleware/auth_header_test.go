package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/response"

	"github.com/gofiber/fiber/v3"
)

var authNow = time.Unix(1700000000, 0)

func signedHeaders(t *testing.T, secret string, user *UserInfo) http.Header {
	t.Helper()
	signer := NewAuthHeaderSigner(AuthHeaderSignerConfig{
		Secret:  secret,
		Issuer:  "gateway",
		NowFunc: func() time.Time { return authNow },
	})
	values, err := signer.BuildHeaders(user)
	if err != nil {
		t.Fatalf("BuildHeaders: %v", err)
	}
	h := http.Header{}
	values.WriteTo(h)
	return h
}

func newVerifier(mod func(*AuthConfig)) *AuthHeaderVerifier {
	cfg := AuthConfig{
		Enabled:        true,
		Secret:         "secret",
		AllowedIssuers: []string{"gateway"},
		NowFunc:        func() time.Time { return authNow.Add(10 * time.Second) },
	}
	if mod != nil {
		mod(&cfg)
	}
	return NewAuthHeaderVerifier(cfg, nil)
}

func TestVerifyRoundTrip(t *testing.T) {
	h := signedHeaders(t, "secret", &UserInfo{UserID: "u1", Username: "alice", Permissions: []string{PermCodeUsageManage}})
	values, err := ParseAuthHeaderValues(h)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ac, err := newVerifier(nil).Verify(values)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ac.User.Operator() != "alice" || !ac.User.Has(PermCodeUsageManage) {
		t.Fatalf("unexpected user: %+v", ac.User)
	}
}

func TestVerifyRejects(t *testing.T) {
	cases := []struct {
		name   string
		secret string
		user   *UserInfo
		mod    func(*AuthConfig)
		want   error
	}{
		{"wrong secret", "other", &UserInfo{UserID: "u1"}, nil, ErrAuthHeaderInvalidSign},
		{"expired", "secret", &UserInfo{UserID: "u1"}, func(c *AuthConfig) {
			c.MaxAge = 5 * time.Second
		}, ErrAuthHeaderExpired},
		{"issuer", "secret", &UserInfo{UserID: "u1"}, func(c *AuthConfig) {
			c.AllowedIssuers = []string{"erp"}
		}, ErrAuthHeaderIssuerNotAllowed},
		{"no user", "secret", nil, nil, ErrAuthHeaderMissingUser},
		{"future", "secret", &UserInfo{UserID: "u1"}, func(c *AuthConfig) {
			c.NowFunc = func() time.Time { return authNow.Add(-time.Minute) }
		}, ErrAuthHeaderNotYetValid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values, err := ParseAuthHeaderValues(signedHeaders(t, tc.secret, tc.user))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if _, err := newVerifier(tc.mod).Verify(values); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestVerifyAllowsServiceIdentity(t *testing.T) {
	values, err := ParseAuthHeaderValues(signedHeaders(t, "secret", nil))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ac, err := newVerifier(func(c *AuthConfig) { c.AllowEmptyUser = true }).Verify(values)
	if err != nil || ac.User != nil {
		t.Fatalf("service identity: %+v, %v", ac, err)
	}
}

func TestParseMissingHeaders(t *testing.T) {
	if _, err := ParseAuthHeaderValues(http.Header{}); !errors.Is(err, ErrAuthHeaderMissing) {
		t.Fatalf("expected missing headers, got %v", err)
	}
	h := signedHeaders(t, "secret", &UserInfo{UserID: "u1"})
	h.Set(HeaderAuthTimestamp, "abc")
	if _, err := ParseAuthHeaderValues(h); !errors.Is(err, ErrAuthHeaderInvalidTS) {
		t.Fatalf("expected invalid ts, got %v", err)
	}
}

func newGatedApp(v *AuthHeaderVerifier) *fiber.App {
	app := fiber.New()
	app.Use(v.Authenticate())
	app.Post("/codes", v.RequirePermission(PermCodeUsageManage), func(c fiber.Ctx) error {
		return response.OkWithData(c, fiber.Map{"operator": logger.OperatorFromContext(c.Context())})
	})
	return app
}

func doGated(t *testing.T, app *fiber.App, h http.Header) (int, response.Result) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/codes", nil)
	for k, vs := range h {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	var out response.Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, out
}

func TestGateInjectsOperator(t *testing.T) {
	app := newGatedApp(newVerifier(nil))
	status, out := doGated(t, app, signedHeaders(t, "secret", &UserInfo{
		UserID: "u1", Username: "alice", Permissions: []string{PermCodeUsageManage},
	}))
	if status != http.StatusOK {
		t.Fatalf("status = %d (%s)", status, out.Message)
	}
	if data, _ := out.Data.(map[string]any); data["operator"] != "alice" {
		t.Fatalf("operator not propagated: %v", out.Data)
	}
}

func TestGateRejects(t *testing.T) {
	app := newGatedApp(newVerifier(nil))

	status, out := doGated(t, app, http.Header{})
	if status != http.StatusUnauthorized || out.Code != "UNAUTHENTICATED" {
		t.Fatalf("missing headers: %d %s", status, out.Code)
	}

	status, out = doGated(t, app, signedHeaders(t, "secret", &UserInfo{UserID: "u2", Permissions: []string{PermCodeClassificationManage}}))
	if status != http.StatusForbidden || out.Code != "PERMISSION_DENIED" {
		t.Fatalf("missing permission: %d %s", status, out.Code)
	}

	status, _ = doGated(t, app, signedHeaders(t, "secret", &UserInfo{UserID: "root", Roles: []string{RoleAdmin}}))
	if status != http.StatusOK {
		t.Fatalf("admin must pass, got %d", status)
	}
}

func TestGateDisabledIsOpen(t *testing.T) {
	app := newGatedApp(NewAuthHeaderVerifier(AuthConfig{}, nil))
	if status, _ := doGated(t, app, http.Header{}); status != http.StatusOK {
		t.Fatalf("disabled gate must pass, got %d", status)
	}
}

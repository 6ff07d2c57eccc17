package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type stubTokenVerifier struct {
	token    *firebaseauth.Token
	err      error
	received string
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	s.received = idToken
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func TestRequireFirebaseAuthAllowsEditor(t *testing.T) {
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{
		UID: "uid-1",
		Claims: map[string]any{
			"role":  []any{"Editor", "editor"},
			"email": "owner@example.com",
		},
	}}

	var got *Identity
	handler := NewAuthenticator(verifier).RequireFirebaseAuth(RoleAdmin, RoleEditor)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = IdentityFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/admin/items", nil)
	req.Header.Set("Authorization", "Bearer  token-abc ")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if verifier.received != "token-abc" {
		t.Fatalf("expected trimmed token, got %q", verifier.received)
	}
	if got == nil || got.UID != "uid-1" || got.Email != "owner@example.com" {
		t.Fatalf("unexpected identity %+v", got)
	}
	if !reflect.DeepEqual(got.Roles, []string{"editor"}) {
		t.Fatalf("expected deduplicated roles, got %v", got.Roles)
	}
	if !got.CanEditCatalog() {
		t.Fatalf("expected editor to edit catalog")
	}
}

func TestRequireFirebaseAuthRejections(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		verifier *stubTokenVerifier
		status   int
	}{
		{name: "missing header", header: "", verifier: &stubTokenVerifier{}, status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", verifier: &stubTokenVerifier{}, status: http.StatusUnauthorized},
		{name: "verification failure", header: "Bearer abc", verifier: &stubTokenVerifier{err: errors.New("bad")}, status: http.StatusUnauthorized},
		{
			name:   "role missing",
			header: "Bearer abc",
			verifier: &stubTokenVerifier{token: &firebaseauth.Token{
				UID:    "uid-2",
				Claims: map[string]any{"role": map[string]any{"viewer": true, "admin": false}},
			}},
			status: http.StatusForbidden,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			handler := NewAuthenticator(tc.verifier).RequireFirebaseAuth(RoleAdmin, RoleEditor)(
				http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }),
			)
			req := httptest.NewRequest(http.MethodDelete, "/admin/items/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if called {
				t.Fatalf("handler must not run")
			}
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestRolesClaimShapes(t *testing.T) {
	if got := rolesClaim(" Admin "); !reflect.DeepEqual(got, []string{"admin"}) {
		t.Fatalf("unexpected roles %v", got)
	}
	if got := rolesClaim([]string{"editor", "", "EDITOR"}); !reflect.DeepEqual(got, []string{"editor"}) {
		t.Fatalf("unexpected roles %v", got)
	}
	if got := rolesClaim(42); got != nil {
		t.Fatalf("expected nil for unsupported claim, got %v", got)
	}
}

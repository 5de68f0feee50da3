package keycloak_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dohyunkim-dev/authgate/internal/keycloak"
)

// fakeAdminRealm serves master-realm token grants plus the admin user API,
// counting token grants so tests can assert caching.
func fakeAdminRealm(t *testing.T, api http.HandlerFunc) (*keycloak.Admin, *atomic.Int32) {
	t.Helper()
	var grants atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/master/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		grants.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("client_id"); got != "admin-cli" {
			t.Errorf("client_id = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "admin-at", "expires_in": 60})
	})
	mux.HandleFunc("/admin/realms/myrealm/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer admin-at" {
			t.Errorf("authorization = %q", got)
		}
		api(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return keycloak.NewAdmin(srv.URL, "myrealm", "admin", "admin"), &grants
}

func TestAdminCreateUserReturnsLocationID(t *testing.T) {
	a, grants := fakeAdminRealm(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/admin/realms/myrealm/users" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var u keycloak.UserRepresentation
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if u.Username != "alice@example.com" || !u.EmailVerified {
			t.Errorf("user = %+v", u)
		}
		w.Header().Set("Location", "http://kc/admin/realms/myrealm/users/uid-42")
		w.WriteHeader(http.StatusCreated)
	})

	id, err := a.CreateUser(context.Background(), keycloak.UserRepresentation{
		Username:      "alice@example.com",
		Email:         "alice@example.com",
		Enabled:       true,
		EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "uid-42" {
		t.Errorf("id = %q, want uid-42", id)
	}
	if got := grants.Load(); got != 1 {
		t.Errorf("token grants = %d, want 1", got)
	}
}

func TestAdminTokenCachedAcrossCalls(t *testing.T) {
	a, grants := fakeAdminRealm(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]keycloak.UserRepresentation{})
	})

	for i := 0; i < 3; i++ {
		if _, err := a.FindUsersByEmail(context.Background(), "a@b.c"); err != nil {
			t.Fatalf("find: %v", err)
		}
	}
	if got := grants.Load(); got != 1 {
		t.Errorf("token grants = %d, want 1 (cached)", got)
	}
}

func TestAdminFindUsersByEmailExactQuery(t *testing.T) {
	a, _ := fakeAdminRealm(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("exact") != "true" || q.Get("email") != "alice@example.com" {
			t.Errorf("query = %v", q)
		}
		_ = json.NewEncoder(w).Encode([]keycloak.UserRepresentation{{ID: "uid-1", Email: "alice@example.com"}})
	})

	users, err := a.FindUsersByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(users) != 1 || users[0].ID != "uid-1" {
		t.Errorf("users = %+v", users)
	}
}

func TestAdminAssignRealmRole(t *testing.T) {
	var assigned bool
	a, _ := fakeAdminRealm(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/admin/realms/myrealm/roles/user":
			_ = json.NewEncoder(w).Encode(keycloak.Role{ID: "rid-1", Name: "user"})
		case r.Method == http.MethodPost && r.URL.Path == "/admin/realms/myrealm/users/uid-1/role-mappings/realm":
			var roles []keycloak.Role
			if err := json.NewDecoder(r.Body).Decode(&roles); err != nil {
				t.Fatalf("decode roles: %v", err)
			}
			if len(roles) != 1 || roles[0].ID != "rid-1" {
				t.Errorf("roles = %+v", roles)
			}
			assigned = true
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	role, err := a.RealmRole(context.Background(), "user")
	if err != nil {
		t.Fatalf("realm role: %v", err)
	}
	if err := a.AssignRealmRole(context.Background(), "uid-1", role); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !assigned {
		t.Error("role mapping endpoint not called")
	}
}

func TestAdminDeleteUser(t *testing.T) {
	var deleted bool
	a, _ := fakeAdminRealm(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && r.URL.Path == "/admin/realms/myrealm/users/uid-9" {
			deleted = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	if err := a.DeleteUser(context.Background(), "uid-9"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Error("delete endpoint not called")
	}
}

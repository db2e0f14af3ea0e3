package apiapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/app/core"
	"github.com/ivankudzin/trustsafety/internal/config"
	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
)

type testServer struct {
	*httptest.Server
	tokens map[enums.Role]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := config.Default()
	cfg.HTTP.Addr = ":0"
	cfg.Auth.JWTSecret = "test-secret"

	store := core.MemoryStore(time.Now)
	c, err := core.New(context.Background(), cfg, zap.NewNop(), core.Options{
		Store: store,
		Redis: goredis.NewClient(&goredis.Options{Addr: mr.Addr()}),
	})
	if err != nil {
		t.Fatalf("wire core: %v", err)
	}
	app, err := NewWithCore(context.Background(), cfg, zap.NewNop(), c)
	if err != nil {
		t.Fatalf("create app: %v", err)
	}

	ts := &testServer{Server: httptest.NewServer(app.Handler()), tokens: map[enums.Role]string{}}
	t.Cleanup(ts.Close)

	err = store.WithTx(context.Background(), func(ctx context.Context, tx repo.Tx) error {
		for _, role := range []enums.Role{enums.RoleAdmin, enums.RoleModerator} {
			emp, err := tx.Employees().Create(ctx, model.Employee{Name: string(role), Role: role, IsActive: true})
			if err != nil {
				return err
			}
			token, _, err := c.JWT.GenerateAccessToken(emp.ID, emp.Role)
			if err != nil {
				return err
			}
			ts.tokens[role] = token
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed employees: %v", err)
	}
	return ts
}

func (ts *testServer) get(t *testing.T, path string, role enums.Role) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token, ok := ts.tokens[role]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/api/v1/healthz"} {
		resp := ts.get(t, path, enums.RoleNone)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("unexpected status for %s: got %d want %d", path, resp.StatusCode, http.StatusOK)
		}

		var payload struct {
			OK bool `json:"ok"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if !payload.OK {
			t.Fatalf("unexpected payload: %+v", payload)
		}
	}
}

func TestModerationRoutesEnforceAuth(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		path string
		role enums.Role
		want int
	}{
		{path: "/api/v1/admin/reports/dashboard", role: enums.RoleNone, want: http.StatusUnauthorized},
		{path: "/api/v1/admin/reports/dashboard", role: enums.RoleModerator, want: http.StatusOK},
		{path: "/api/v1/admin/reports/admin-dashboard", role: enums.RoleModerator, want: http.StatusForbidden},
		{path: "/api/v1/admin/reports/admin-dashboard?status=OPN", role: enums.RoleAdmin, want: http.StatusOK},
		{path: "/api/v1/admin/reports/12", role: enums.RoleModerator, want: http.StatusNotFound},
		{path: "/api/v1/admin/appeals/dashboard", role: enums.RoleModerator, want: http.StatusOK},
		{path: "/api/v1/admin/appeals/admin-dashboard", role: enums.RoleModerator, want: http.StatusForbidden},
		{path: "/api/v1/admin/appeals/3/related", role: enums.RoleAdmin, want: http.StatusNotFound},
	}
	for _, tc := range cases {
		resp := ts.get(t, tc.path, tc.role)
		if resp.StatusCode != tc.want {
			t.Fatalf("%s as %s: got %d want %d", tc.path, tc.role, resp.StatusCode, tc.want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.get(t, "/healthz", enums.RoleNone)

	resp := ts.get(t, "/metrics", enums.RoleNone)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusOK)
	}
}

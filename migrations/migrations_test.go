package migrations_test

import (
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/migrations"
)

var roleCheck = regexp.MustCompile(`CHECK \(role IN \(([^)]*)\)\)`)

// lastRoleCheck returns the values allowed by the employees.role constraint
// after every migration has run.
func lastRoleCheck(t *testing.T) []string {
	t.Helper()
	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	sort.Strings(names)

	var allowed []string
	for _, name := range names {
		body, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		for _, m := range roleCheck.FindAllStringSubmatch(string(body), -1) {
			allowed = allowed[:0]
			for _, v := range strings.Split(m[1], ",") {
				allowed = append(allowed, strings.Trim(strings.TrimSpace(v), "'"))
			}
		}
	}
	if len(allowed) == 0 {
		t.Fatalf("no role constraint found")
	}
	return allowed
}

func TestEmployeeRoleConstraintAcceptsEveryRole(t *testing.T) {
	allowed := map[string]bool{}
	for _, v := range lastRoleCheck(t) {
		allowed[v] = true
	}
	for _, role := range []enums.Role{enums.RoleAdmin, enums.RoleModerator} {
		if !allowed[string(role)] {
			t.Fatalf("employees.role constraint rejects %q (allows %v)", role, allowed)
		}
		if enums.ParseRole(string(role)) != role {
			t.Fatalf("role %q does not parse back to itself", role)
		}
	}
	if allowed[string(enums.RoleNone)] {
		t.Fatalf("employees.role constraint must not allow %q", enums.RoleNone)
	}
}

func TestContentTypeConstraintMatchesStoredTypes(t *testing.T) {
	body, err := fs.ReadFile(migrations.FS, "0001_init.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	for _, ct := range []enums.ContentType{enums.ContentTypePost, enums.ContentTypeComment} {
		if !ct.Stored() {
			t.Fatalf("%q should be stored", ct)
		}
		if !strings.Contains(string(body), "'"+string(ct)+"'") {
			t.Fatalf("contents.type constraint does not allow %q", ct)
		}
	}
}

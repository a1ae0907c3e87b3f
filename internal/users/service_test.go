package users_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicworks/fixline/internal/reports/model"
	"github.com/civicworks/fixline/internal/users"
)

// ── Stub repo ─────────────────────────────────────────────────────────────

type stubUserRepo struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*users.User
	byEmail map[string]uuid.UUID
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		byID:    make(map[uuid.UUID]*users.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *stubUserRepo) Create(_ context.Context, u *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[u.Email]; exists {
		return users.ErrDuplicateEmail
	}
	u.ID = uuid.New()
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	r.byID[u.ID] = &cp
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id uuid.UUID) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *stubUserRepo) ListByRole(_ context.Context, role model.Role, dept model.Department) ([]*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*users.User
	for _, u := range r.byID {
		if u.Role != role {
			continue
		}
		if dept != "" && u.Department != dept {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *stubUserRepo) SetPasswordHash(_ context.Context, userID uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[userID]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func newTestService() (*users.UserService, *stubUserRepo) {
	repo := newStubUserRepo()
	return users.NewUserService(repo, zap.NewNop()), repo
}

// ── Tests ─────────────────────────────────────────────────────────────────

func TestSignupAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	u, err := svc.Signup(ctx, "Alice@Example.com", "hunter2hunter2", "Alice", model.RoleReporter, "")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want lowercased", u.Email)
	}
	if u.Role != model.RoleReporter {
		t.Errorf("role = %q, want reporter", u.Role)
	}
	if u.PasswordHash == "hunter2hunter2" {
		t.Error("password stored in plain text")
	}

	got, err := svc.Login(ctx, "alice@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("login returned user %s, want %s", got.ID, u.ID)
	}

	if _, err := svc.Login(ctx, "alice@example.com", "wrong-password"); err == nil {
		t.Error("login with wrong password succeeded")
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "hunter2hunter2"); err == nil {
		t.Error("login with unknown email succeeded")
	}
}

func TestSignupValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	cases := []struct {
		name     string
		email    string
		password string
		userName string
		role     model.Role
		dept     model.Department
	}{
		{"missing email", "", "longenoughpw", "Alice", model.RoleReporter, ""},
		{"short password", "a@b.com", "short", "Alice", model.RoleReporter, ""},
		{"missing name", "a@b.com", "longenoughpw", "  ", model.RoleReporter, ""},
		{"unknown role", "a@b.com", "longenoughpw", "Alice", "superuser", ""},
		{"field head without department", "a@b.com", "longenoughpw", "Alice", model.RoleFieldHead, ""},
		{"field head with unknown department", "a@b.com", "longenoughpw", "Alice", model.RoleFieldHead, "parks"},
		{"reporter with department", "a@b.com", "longenoughpw", "Alice", model.RoleReporter, model.DeptRoad},
		{"maintainer with department", "a@b.com", "longenoughpw", "Alice", model.RoleMaintainer, model.DeptWater},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Signup(ctx, tc.email, tc.password, tc.userName, tc.role, tc.dept); err == nil {
				t.Error("signup succeeded, want error")
			}
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	if _, err := svc.Signup(ctx, "alice@example.com", "longenoughpw", "Alice", model.RoleReporter, ""); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	_, err := svc.Signup(ctx, "alice@example.com", "longenoughpw", "Alice Two", model.RoleReporter, "")
	if !errors.Is(err, users.ErrDuplicateEmail) {
		t.Errorf("second signup err = %v, want ErrDuplicateEmail", err)
	}
}

func TestListFieldHeads(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	mustSignup := func(email, name string, role model.Role, dept model.Department) *users.User {
		t.Helper()
		u, err := svc.Signup(ctx, email, "longenoughpw", name, role, dept)
		if err != nil {
			t.Fatalf("Signup(%s): %v", email, err)
		}
		return u
	}

	mustSignup("rhea@example.com", "Rhea", model.RoleFieldHead, model.DeptRoad)
	mustSignup("wes@example.com", "Wes", model.RoleFieldHead, model.DeptWater)
	mustSignup("rob@example.com", "Rob", model.RoleFieldHead, model.DeptRoad)
	mustSignup("mia@example.com", "Mia", model.RoleMaintainer, "")

	all, err := svc.ListFieldHeads(ctx, "")
	if err != nil {
		t.Fatalf("ListFieldHeads: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all field heads = %d, want 3", len(all))
	}

	road, err := svc.ListFieldHeads(ctx, model.DeptRoad)
	if err != nil {
		t.Fatalf("ListFieldHeads(road): %v", err)
	}
	if len(road) != 2 {
		t.Fatalf("road field heads = %d, want 2", len(road))
	}
	if road[0].Name != "Rhea" || road[1].Name != "Rob" {
		t.Errorf("road field heads = %s, %s; want Rhea, Rob", road[0].Name, road[1].Name)
	}

	if _, err := svc.ListFieldHeads(ctx, "parks"); err == nil {
		t.Error("ListFieldHeads with unknown department succeeded")
	}
}

func TestFieldHeadDirectoryLookup(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	fh, err := svc.Signup(ctx, "wes@example.com", "longenoughpw", "Wes", model.RoleFieldHead, model.DeptWater)
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	maintainer, err := svc.Signup(ctx, "mia@example.com", "longenoughpw", "Mia", model.RoleMaintainer, "")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	name, dept, err := svc.FieldHead(ctx, fh.ID)
	if err != nil {
		t.Fatalf("FieldHead: %v", err)
	}
	if name != "Wes" || dept != model.DeptWater {
		t.Errorf("FieldHead = (%q, %q), want (Wes, water)", name, dept)
	}

	if _, _, err := svc.FieldHead(ctx, maintainer.ID); !errors.Is(err, users.ErrNotFound) {
		t.Errorf("FieldHead on maintainer err = %v, want ErrNotFound", err)
	}
	if _, _, err := svc.FieldHead(ctx, uuid.New()); !errors.Is(err, users.ErrNotFound) {
		t.Errorf("FieldHead on unknown id err = %v, want ErrNotFound", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	u, err := svc.Signup(ctx, "alice@example.com", "originalpass", "Alice", model.RoleReporter, "")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	if err := svc.ChangePassword(ctx, u.ID, "wrong", "replacement-pass"); err == nil {
		t.Error("change with wrong current password succeeded")
	}
	if err := svc.ChangePassword(ctx, u.ID, "originalpass", "short"); err == nil {
		t.Error("change to short password succeeded")
	}

	if err := svc.ChangePassword(ctx, u.ID, "originalpass", "replacement-pass"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := svc.Login(ctx, "alice@example.com", "replacement-pass"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
	if _, err := svc.Login(ctx, "alice@example.com", "originalpass"); err == nil {
		t.Error("login with old password still succeeds")
	}
}

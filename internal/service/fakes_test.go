package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"shopauth/internal/model"
	"shopauth/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// In-memory repository fakes backing the service tests. They mimic the
// persistence layer's contract: gorm.ErrRecordNotFound on misses and
// postgres-flavored duplicate-key errors on unique violations.

var errDuplicate = errors.New(`duplicate key value violates unique constraint (SQLSTATE 23505)`)

type userRoleKey struct {
	UserID   uuid.UUID
	RoleID   uuid.UUID
	TenantID uuid.UUID
}

type memDB struct {
	mu        sync.Mutex
	perms     map[uuid.UUID]*model.Permission
	roles     map[uuid.UUID]*model.Role
	rolePerms map[uuid.UUID]map[uuid.UUID]struct{}
	userRoles map[userRoleKey]struct{}
	users     map[uuid.UUID]*model.User
	tokens    map[uuid.UUID]*model.RefreshToken
	tenants   map[uuid.UUID]*model.Tenant
}

func newMemDB() *memDB {
	return &memDB{
		perms:     make(map[uuid.UUID]*model.Permission),
		roles:     make(map[uuid.UUID]*model.Role),
		rolePerms: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		userRoles: make(map[userRoleKey]struct{}),
		users:     make(map[uuid.UUID]*model.User),
		tokens:    make(map[uuid.UUID]*model.RefreshToken),
		tenants:   make(map[uuid.UUID]*model.Tenant),
	}
}

func (db *memDB) rolePermissions(roleID uuid.UUID) []model.Permission {
	var perms []model.Permission
	for permID := range db.rolePerms[roleID] {
		if p, ok := db.perms[permID]; ok {
			perms = append(perms, *p)
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	return perms
}

// --- TransactionManager ---

type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// --- PermissionRepository ---

type fakePermRepo struct{ db *memDB }

var _ repository.PermissionRepository = (*fakePermRepo)(nil)

func (r *fakePermRepo) Create(ctx context.Context, perm *model.Permission) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.perms {
		if p.TenantID == perm.TenantID && (p.Name == perm.Name || (p.Resource == perm.Resource && p.Action == perm.Action)) {
			return errDuplicate
		}
	}
	if perm.ID == uuid.Nil {
		perm.ID = uuid.New()
	}
	cp := *perm
	r.db.perms[perm.ID] = &cp
	return nil
}

func (r *fakePermRepo) CreateBatch(ctx context.Context, perms []model.Permission) ([]model.Permission, error) {
	r.db.mu.Lock()
	for i := range perms {
		for _, p := range r.db.perms {
			if p.TenantID == perms[i].TenantID && p.Resource == perms[i].Resource && p.Action == perms[i].Action {
				r.db.mu.Unlock()
				return nil, errDuplicate
			}
		}
	}
	r.db.mu.Unlock()
	for i := range perms {
		if err := r.Create(ctx, &perms[i]); err != nil {
			return nil, err
		}
	}
	return perms, nil
}

func (r *fakePermRepo) FindByID(ctx context.Context, id, tenantID uuid.UUID) (*model.Permission, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.perms[id]; ok && p.TenantID == tenantID {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePermRepo) FindByResourceAction(ctx context.Context, resource, action string, tenantID uuid.UUID) (*model.Permission, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.perms {
		if p.TenantID == tenantID && p.Resource == resource && p.Action == action {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePermRepo) FindByIDs(ctx context.Context, ids []uuid.UUID, tenantID uuid.UUID) ([]model.Permission, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var perms []model.Permission
	for _, id := range ids {
		if p, ok := r.db.perms[id]; ok && p.TenantID == tenantID {
			perms = append(perms, *p)
		}
	}
	return perms, nil
}

func (r *fakePermRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Permission, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var perms []model.Permission
	for _, p := range r.db.perms {
		if p.TenantID == tenantID {
			perms = append(perms, *p)
		}
	}
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Resource != perms[j].Resource {
			return perms[i].Resource < perms[j].Resource
		}
		return perms[i].Action < perms[j].Action
	})
	return perms, nil
}

func (r *fakePermRepo) ListByResource(ctx context.Context, resource string, tenantID uuid.UUID) ([]model.Permission, error) {
	all, _ := r.ListByTenant(ctx, tenantID)
	var perms []model.Permission
	for _, p := range all {
		if p.Resource == resource {
			perms = append(perms, p)
		}
	}
	return perms, nil
}

func (r *fakePermRepo) ListByResourceActions(ctx context.Context, resource string, actions []string, tenantID uuid.UUID) ([]model.Permission, error) {
	all, _ := r.ListByResource(ctx, resource, tenantID)
	var perms []model.Permission
	for _, p := range all {
		for _, a := range actions {
			if p.Action == a {
				perms = append(perms, p)
				break
			}
		}
	}
	return perms, nil
}

func (r *fakePermRepo) Update(ctx context.Context, perm *model.Permission) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *perm
	r.db.perms[perm.ID] = &cp
	return nil
}

func (r *fakePermRepo) Delete(ctx context.Context, perm *model.Permission) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.perms, perm.ID)
	return nil
}

func (r *fakePermRepo) ClearRoleBindings(ctx context.Context, perm *model.Permission) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, set := range r.db.rolePerms {
		delete(set, perm.ID)
	}
	return nil
}

// --- RoleRepository ---

type fakeRoleRepo struct{ db *memDB }

var _ repository.RoleRepository = (*fakeRoleRepo)(nil)

func (r *fakeRoleRepo) Create(ctx context.Context, role *model.Role) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.roles {
		if existing.TenantID == role.TenantID && existing.Name == role.Name {
			return errDuplicate
		}
	}
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	cp := *role
	cp.Permissions = nil
	r.db.roles[role.ID] = &cp
	return nil
}

func (r *fakeRoleRepo) Update(ctx context.Context, role *model.Role) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *role
	cp.Permissions = nil
	r.db.roles[role.ID] = &cp
	return nil
}

func (r *fakeRoleRepo) UpsertByName(ctx context.Context, role *model.Role) error {
	r.db.mu.Lock()
	for _, existing := range r.db.roles {
		if existing.TenantID == role.TenantID && existing.Name == role.Name {
			*role = *existing
			r.db.mu.Unlock()
			return nil
		}
	}
	r.db.mu.Unlock()
	return r.Create(ctx, role)
}

func (r *fakeRoleRepo) FindByID(ctx context.Context, id, tenantID uuid.UUID) (*model.Role, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if role, ok := r.db.roles[id]; ok && role.TenantID == tenantID {
		cp := *role
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRoleRepo) FindByIDWithPermissions(ctx context.Context, id, tenantID uuid.UUID) (*model.Role, error) {
	role, err := r.FindByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	r.db.mu.Lock()
	role.Permissions = r.db.rolePermissions(role.ID)
	r.db.mu.Unlock()
	return role, nil
}

func (r *fakeRoleRepo) FindByName(ctx context.Context, name string, tenantID uuid.UUID) (*model.Role, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, role := range r.db.roles {
		if role.TenantID == tenantID && role.Name == name {
			cp := *role
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRoleRepo) FindByIDs(ctx context.Context, ids []uuid.UUID, tenantID uuid.UUID) ([]model.Role, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var roles []model.Role
	for _, id := range ids {
		if role, ok := r.db.roles[id]; ok && role.TenantID == tenantID {
			roles = append(roles, *role)
		}
	}
	return roles, nil
}

func (r *fakeRoleRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Role, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var roles []model.Role
	for _, role := range r.db.roles {
		if role.TenantID == tenantID {
			cp := *role
			cp.Permissions = r.db.rolePermissions(role.ID)
			roles = append(roles, cp)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (r *fakeRoleRepo) GetDefault(ctx context.Context, tenantID uuid.UUID) (*model.Role, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, role := range r.db.roles {
		if role.TenantID == tenantID && role.IsDefault {
			cp := *role
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRoleRepo) ReplacePermissions(ctx context.Context, role *model.Role, perms []model.Permission) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	set := make(map[uuid.UUID]struct{}, len(perms))
	for _, p := range perms {
		set[p.ID] = struct{}{}
	}
	r.db.rolePerms[role.ID] = set
	return nil
}

func (r *fakeRoleRepo) AppendPermissions(ctx context.Context, role *model.Role, perms []model.Permission) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	set := r.db.rolePerms[role.ID]
	if set == nil {
		set = make(map[uuid.UUID]struct{})
		r.db.rolePerms[role.ID] = set
	}
	for _, p := range perms {
		set[p.ID] = struct{}{}
	}
	return nil
}

func (r *fakeRoleRepo) RemovePermissions(ctx context.Context, role *model.Role, perms []model.Permission) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	set := r.db.rolePerms[role.ID]
	for _, p := range perms {
		delete(set, p.ID)
	}
	return nil
}

func (r *fakeRoleRepo) ListForUser(ctx context.Context, userID, tenantID uuid.UUID) ([]model.Role, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var roles []model.Role
	for key := range r.db.userRoles {
		if key.UserID != userID || key.TenantID != tenantID {
			continue
		}
		if role, ok := r.db.roles[key.RoleID]; ok {
			cp := *role
			cp.Permissions = r.db.rolePermissions(role.ID)
			roles = append(roles, cp)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (r *fakeRoleRepo) AttachUser(ctx context.Context, userID, roleID, tenantID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.userRoles[userRoleKey{UserID: userID, RoleID: roleID, TenantID: tenantID}] = struct{}{}
	return nil
}

func (r *fakeRoleRepo) DetachUser(ctx context.Context, userID, roleID, tenantID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.userRoles, userRoleKey{UserID: userID, RoleID: roleID, TenantID: tenantID})
	return nil
}

func (r *fakeRoleRepo) ClearUserRoles(ctx context.Context, userID, tenantID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for key := range r.db.userRoles {
		if key.UserID == userID && key.TenantID == tenantID {
			delete(r.db.userRoles, key)
		}
	}
	return nil
}

func (r *fakeRoleRepo) HasUserRole(ctx context.Context, userID, roleID, tenantID uuid.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	_, ok := r.db.userRoles[userRoleKey{UserID: userID, RoleID: roleID, TenantID: tenantID}]
	return ok, nil
}

// --- UserRepository ---

type fakeUserRepo struct{ db *memDB }

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, user.Email) {
			return errDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	r.db.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if u, ok := r.db.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByIDWithProfile(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeUserRepo) List(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var users []model.User
	for _, u := range r.db.users {
		users = append(users, *u)
	}
	return users, int64(len(users)), nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *user
	r.db.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.users, id)
	return nil
}

func (r *fakeUserRepo) AttachTenant(ctx context.Context, user *model.User, tenant *model.Tenant) error {
	return nil
}

// --- RefreshTokenRepository ---

type fakeTokenRepo struct{ db *memDB }

var _ repository.RefreshTokenRepository = (*fakeTokenRepo)(nil)

func (r *fakeTokenRepo) Create(ctx context.Context, token *model.RefreshToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	cp := *token
	r.db.tokens[token.ID] = &cp
	return nil
}

func (r *fakeTokenRepo) FindByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.tokens {
		if t.Hash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTokenRepo) Update(ctx context.Context, token *model.RefreshToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *token
	r.db.tokens[token.ID] = &cp
	return nil
}

func (r *fakeTokenRepo) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if t, ok := r.db.tokens[id]; ok {
		t.LastUsedAt = &at
	}
	return nil
}

func (r *fakeTokenRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.tokens, id)
	return nil
}

func (r *fakeTokenRepo) DeleteByHash(ctx context.Context, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, t := range r.db.tokens {
		if t.Hash == hash {
			delete(r.db.tokens, id)
		}
	}
	return nil
}

func (r *fakeTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var removed int64
	for id, t := range r.db.tokens {
		if t.ExpiresAt.Before(before) {
			delete(r.db.tokens, id)
			removed++
		}
	}
	return removed, nil
}

// --- TenantRepository ---

type fakeTenantRepo struct{ db *memDB }

var _ repository.TenantRepository = (*fakeTenantRepo)(nil)

func (r *fakeTenantRepo) Create(ctx context.Context, tenant *model.Tenant) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.tenants {
		if t.Slug == tenant.Slug {
			return errDuplicate
		}
	}
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	cp := *tenant
	r.db.tenants[tenant.ID] = &cp
	return nil
}

func (r *fakeTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if t, ok := r.db.tenants[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTenantRepo) GetBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.tenants {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTenantRepo) GetByDomain(ctx context.Context, domain string) (*model.Tenant, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.tenants {
		if t.Domain != nil && *t.Domain == domain {
			cp := *t
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTenantRepo) List(ctx context.Context, page, limit int) ([]model.Tenant, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var tenants []model.Tenant
	for _, t := range r.db.tenants {
		tenants = append(tenants, *t)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].Slug < tenants[j].Slug })
	return tenants, int64(len(tenants)), nil
}

func (r *fakeTenantRepo) Update(ctx context.Context, tenant *model.Tenant) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *tenant
	r.db.tenants[tenant.ID] = &cp
	return nil
}

func (r *fakeTenantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.tenants, id)
	return nil
}

// newTestServices wires the full service stack over a fresh in-memory store.
func newTestServices() (*memDB, PermissionService, RbacService, AuthService, TenantService) {
	db := newMemDB()
	permRepo := &fakePermRepo{db: db}
	roleRepo := &fakeRoleRepo{db: db}
	userRepo := &fakeUserRepo{db: db}
	tokenRepo := &fakeTokenRepo{db: db}
	tenantRepo := &fakeTenantRepo{db: db}
	tx := fakeTxManager{}

	permSvc := NewPermissionService(permRepo, roleRepo, tx)
	rbacSvc := NewRbacService(roleRepo, permSvc, tx)
	authSvc := NewAuthService(userRepo, tokenRepo, rbacSvc, tx)
	tenantSvc := NewTenantService(tenantRepo, rbacSvc)
	return db, permSvc, rbacSvc, authSvc, tenantSvc
}

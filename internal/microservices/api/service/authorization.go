package service

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const (
	ResourceMenu   = "menu"
	ResourceStaff  = "staff"
	ResourceOrders = "orders"

	ActionRead  = "read"
	ActionWrite = "write"
)

// RBAC: subject is the role from the token; admin inherits every staff permission.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

var (
	defaultPolicies = [][]string{
		{"staff", ResourceMenu, ActionRead},
		{"staff", ResourceStaff, ActionRead},
		{"staff", ResourceOrders, ActionRead},
		{"admin", ResourceMenu, ActionWrite},
		{"admin", ResourceStaff, ActionWrite},
		{"admin", ResourceOrders, ActionWrite},
	}
	defaultGroupings = [][]string{
		{"admin", "staff"},
	}
)

type AuthorizationServiceInterface interface {
	CheckPermission(role, resource, action string) (bool, error)
}

type AuthorizationService struct {
	enforcer *casbin.Enforcer
}

func NewAuthorizationService() (*AuthorizationService, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RBAC model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize RBAC enforcer: %w", err)
	}
	if _, err := e.AddPolicies(defaultPolicies); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}
	if _, err := e.AddGroupingPolicies(defaultGroupings); err != nil {
		return nil, fmt.Errorf("failed to load role groupings: %w", err)
	}
	return &AuthorizationService{enforcer: e}, nil
}

func (s *AuthorizationService) CheckPermission(role, resource, action string) (bool, error) {
	allowed, err := s.enforcer.Enforce(role, resource, action)
	if err != nil {
		return false, fmt.Errorf("RBAC permission check failed: %w", err)
	}
	return allowed, nil
}

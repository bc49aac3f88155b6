// Package access decides, for every navigable page, whether a visitor gets the page,
// is sent to the login page or is sent to the unauthorized page.
//
// The decision functions are pure: they read a Session snapshot and a Policy and return a
// Decision. Translating a Decision into an HTTP response is left to the transport layer.
package access

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

type policyKind uint8

const (
	policyInvalid policyKind = iota // zero value: deny
	policyPublic
	policyAll
	policyRoles
)

const (
	publicToken = "PUBLIC"
	allToken    = "ALL"
)

// Policy describes who may view a route: anybody (Public), any authenticated visitor (All)
// or authenticated visitors holding one of a set of roles (AnyRole).
// The zero Policy is invalid and never grants access to an authenticated visitor.
type Policy struct {
	kind  policyKind
	roles map[Role]struct{}
}

// Public returns the policy granting access without a session.
func Public() Policy { return Policy{kind: policyPublic} }

// All returns the policy granting access to any authenticated visitor.
func All() Policy { return Policy{kind: policyAll} }

// AnyRole returns the policy granting access to authenticated visitors holding one of roles.
// Unknown roles are dropped; a policy left without roles is invalid.
func AnyRole(roles ...Role) Policy {
	set := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		if r.Valid() {
			set[r] = struct{}{}
		}
	}
	if len(set) == 0 {
		return Policy{}
	}
	return Policy{kind: policyRoles, roles: set}
}

func (p Policy) IsPublic() bool { return p.kind == policyPublic }
func (p Policy) IsAll() bool    { return p.kind == policyAll }
func (p Policy) Valid() bool    { return p.kind != policyInvalid }

// IsZero lets encoders omit invalid policies.
func (p Policy) IsZero() bool { return !p.Valid() }

// Permits reports whether role satisfies a role-restricted policy.
// Only AnyRole policies permit by role; Public and All are handled by the gates before this.
func (p Policy) Permits(role Role) bool {
	if p.kind != policyRoles {
		return false
	}
	_, ok := p.roles[role]
	return ok
}

// RoleList returns the permitted roles, sorted by privilege.
func (p Policy) RoleList() []Role {
	roles := make([]Role, 0, len(p.roles))
	for r := range p.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Priority() < roles[j].Priority() })
	return roles
}

func (p Policy) String() string {
	switch p.kind {
	case policyPublic:
		return publicToken
	case policyAll:
		return allToken
	case policyRoles:
		names := make([]string, 0, len(p.roles))
		for _, r := range p.RoleList() {
			names = append(names, string(r))
		}
		return "[" + strings.Join(names, ",") + "]"
	default:
		return "INVALID"
	}
}

// ParsePolicy parses the route table notation: "PUBLIC", "ALL", a role name or several role names.
func ParsePolicy(tokens ...string) (Policy, error) {
	if len(tokens) == 0 {
		return Policy{}, errors.New("empty access policy")
	}
	if len(tokens) == 1 {
		switch strings.ToUpper(strings.TrimSpace(tokens[0])) {
		case publicToken:
			return Public(), nil
		case allToken:
			return All(), nil
		}
	}

	roles := make([]Role, 0, len(tokens))
	for _, tok := range tokens {
		r, err := ParseRole(tok)
		if err != nil {
			return Policy{}, errors.Wrap(err, "access policy")
		}
		roles = append(roles, r)
	}
	return AnyRole(roles...), nil
}

// MarshalYAML renders p in the route table notation.
func (p Policy) MarshalYAML() (interface{}, error) {
	switch p.kind {
	case policyPublic, policyAll:
		return p.String(), nil
	case policyRoles:
		roles := p.RoleList()
		if len(roles) == 1 {
			return string(roles[0]), nil
		}
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		return names, nil
	default:
		return nil, nil
	}
}

// MarshalText renders p for JSON payloads.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	student = AuthenticatedSession(Principal{ID: "1", Username: "stu", Role: RoleStudent})
	teacher = AuthenticatedSession(Principal{ID: "2", Username: "tea", Role: RoleTeacher})
	admin   = AuthenticatedSession(Principal{ID: "3", Username: "adm", Role: RoleAdmin})

	anySessions = map[string]Session{
		"anonymous": AnonymousSession(),
		"student":   student,
		"teacher":   teacher,
		"admin":     admin,
	}
)

func TestRouteGate_Decide(t *testing.T) {
	paths := DefaultPaths()
	loc := Location{Path: "/dashboard"}

	tests := []struct {
		name    string
		policy  Policy
		session Session
		want    Decision
	}{
		{
			name:    "public anonymous",
			policy:  Public(),
			session: AnonymousSession(),
			want:    Decision{Outcome: Render, State: StateGranted},
		},
		{
			name:    "all anonymous",
			policy:  All(),
			session: AnonymousSession(),
			want:    Decision{Outcome: Redirect, State: StateDeniedToLogin, Path: "/login", From: &loc},
		},
		{
			name:    "all student",
			policy:  All(),
			session: student,
			want:    Decision{Outcome: Render, State: StateGranted},
		},
		{
			name:    "role set student",
			policy:  AnyRole(RoleTeacher, RoleAdmin),
			session: student,
			want:    Decision{Outcome: Redirect, State: StateDeniedToUnauthorized, Path: "/unauthorized"},
		},
		{
			name:    "role set teacher",
			policy:  AnyRole(RoleTeacher, RoleAdmin),
			session: teacher,
			want:    Decision{Outcome: Render, State: StateGranted},
		},
		{
			name:    "single role admin",
			policy:  AnyRole(RoleAdmin),
			session: admin,
			want:    Decision{Outcome: Render, State: StateGranted},
		},
		{
			name:    "single role teacher",
			policy:  AnyRole(RoleAdmin),
			session: teacher,
			want:    Decision{Outcome: Redirect, State: StateDeniedToUnauthorized, Path: "/unauthorized"},
		},
		{
			name:    "malformed policy admin",
			policy:  Policy{},
			session: admin,
			want:    Decision{Outcome: Redirect, State: StateDeniedToUnauthorized, Path: "/unauthorized"},
		},
		{
			name:    "malformed policy anonymous",
			policy:  Policy{},
			session: AnonymousSession(),
			want:    Decision{Outcome: Redirect, State: StateDeniedToLogin, Path: "/login", From: &loc},
		},
		{
			name:    "unknown roles only",
			policy:  AnyRole("JANITOR"),
			session: student,
			want:    Decision{Outcome: Redirect, State: StateDeniedToUnauthorized, Path: "/unauthorized"},
		},
		{
			name:    "authenticated without user",
			policy:  AnyRole(RoleStudent),
			session: Session{IsAuthenticated: true},
			want:    Decision{Outcome: Redirect, State: StateDeniedToUnauthorized, Path: "/unauthorized"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewRouteGate(tt.policy, paths).Decide(tt.session, loc)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouteGate_PublicAlwaysRenders(t *testing.T) {
	gate := NewRouteGate(Public(), DefaultPaths())
	for name, s := range anySessions {
		t.Run(name, func(t *testing.T) {
			d := gate.Decide(s, Location{Path: "/courses"})
			assert.True(t, d.IsRender(), "got %v", d.Outcome)
		})
	}
}

func TestRouteGate_AnonymousGoesToLogin(t *testing.T) {
	policies := []Policy{All(), AnyRole(RoleStudent), AnyRole(RoleAdmin), AnyRole(RoleTeacher, RoleAdmin), {}}
	loc := Location{Path: "/learn/7/lessons/3", Search: "t=42"}

	for _, p := range policies {
		t.Run(p.String(), func(t *testing.T) {
			d := NewRouteGate(p, DefaultPaths()).Decide(AnonymousSession(), loc)
			assert.Equal(t, Redirect, d.Outcome)
			assert.Equal(t, "/login", d.Path)
			if assert.NotNil(t, d.From) {
				assert.Equal(t, "/learn/7/lessons/3", d.From.Path)
				assert.Equal(t, "/learn/7/lessons/3?t=42", d.From.String())
			}
			assert.True(t, d.Replace())
		})
	}
}

func TestRouteGate_CustomRedirectPath(t *testing.T) {
	gate := NewRouteGate(All(), DefaultPaths())
	gate.RedirectPath = "/register"

	d := gate.Decide(AnonymousSession(), Location{Path: "/cart"})
	assert.Equal(t, "/register", d.Path)
	assert.Equal(t, StateDeniedToLogin, d.State)
}

func TestRouteGate_AllRendersForEveryRole(t *testing.T) {
	gate := NewRouteGate(All(), DefaultPaths())
	for _, s := range []Session{student, teacher, admin} {
		assert.True(t, gate.Decide(s, Location{Path: "/settings"}).IsRender(), s.Role())
	}
}

func TestRouteGate_RoleMembership(t *testing.T) {
	policies := []Policy{
		AnyRole(RoleStudent),
		AnyRole(RoleTeacher),
		AnyRole(RoleAdmin),
		AnyRole(RoleStudent, RoleAdmin),
		AnyRole(RoleTeacher, RoleAdmin),
	}
	for _, p := range policies {
		for _, s := range []Session{student, teacher, admin} {
			d := NewRouteGate(p, DefaultPaths()).Decide(s, Location{Path: "/x"})
			if p.Permits(s.Role()) {
				assert.True(t, d.IsRender(), "%s as %s", p, s.Role())
			} else {
				assert.Equal(t, StateDeniedToUnauthorized, d.State, "%s as %s", p, s.Role())
				assert.Equal(t, "/unauthorized", d.Path)
				assert.Nil(t, d.From)
			}
		}
	}
}

func TestGates_Idempotent(t *testing.T) {
	loc := Location{Path: "/admin"}
	gate := NewRouteGate(AnyRole(RoleTeacher, RoleAdmin), DefaultPaths())
	auth := NewAuthGate(DefaultPaths())

	for name, s := range anySessions {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, gate.Decide(s, loc), gate.Decide(s, loc))
			assert.Equal(t, auth.Decide(s, nil), auth.Decide(s, nil))
		})
	}
}

func TestGates_LoadingTakesPrecedence(t *testing.T) {
	sessions := []Session{
		LoadingSession(),
		{IsLoading: true, IsAuthenticated: true},
		{IsLoading: true, IsAuthenticated: true, User: &Principal{Role: RoleAdmin}},
		{IsLoading: true, User: &Principal{Role: RoleStudent}},
	}
	policies := []Policy{Public(), All(), AnyRole(RoleAdmin), {}}

	for _, s := range sessions {
		for _, p := range policies {
			d := NewRouteGate(p, DefaultPaths()).Decide(s, Location{Path: "/"})
			assert.Equal(t, Decision{Outcome: Pending, State: StateResolving}, d, p.String())
		}
		d := NewAuthGate(DefaultPaths()).Decide(s, &Location{Path: "/settings"})
		assert.Equal(t, Decision{Outcome: Pending, State: StateResolving}, d)
	}
}

func TestAuthGate_Decide(t *testing.T) {
	tests := []struct {
		name       string
		session    Session
		from       *Location
		redirectTo string
		want       Decision
	}{
		{
			name:    "anonymous renders the page",
			session: AnonymousSession(),
			want:    Decision{Outcome: Render, State: StateGranted},
		},
		{
			name:    "anonymous ignores from",
			session: AnonymousSession(),
			from:    &Location{Path: "/settings"},
			want:    Decision{Outcome: Render, State: StateGranted},
		},
		{
			name:    "admin goes to admin landing",
			session: admin,
			want:    Decision{Outcome: Redirect, State: StateDeniedAlreadyAuthenticated, Path: "/admin"},
		},
		{
			name:    "teacher goes to admin landing",
			session: teacher,
			want:    Decision{Outcome: Redirect, State: StateDeniedAlreadyAuthenticated, Path: "/admin"},
		},
		{
			name:    "student goes to student landing",
			session: student,
			want:    Decision{Outcome: Redirect, State: StateDeniedAlreadyAuthenticated, Path: "/dashboard"},
		},
		{
			name:    "from wins over landing",
			session: admin,
			from:    &Location{Path: "/settings"},
			want:    Decision{Outcome: Redirect, State: StateDeniedAlreadyAuthenticated, Path: "/settings"},
		},
		{
			name:    "from keeps its query",
			session: student,
			from:    &Location{Path: "/courses", Search: "?page=2"},
			want:    Decision{Outcome: Redirect, State: StateDeniedAlreadyAuthenticated, Path: "/courses?page=2"},
		},
		{
			name:    "empty from is ignored",
			session: student,
			from:    &Location{},
			want:    Decision{Outcome: Redirect, State: StateDeniedAlreadyAuthenticated, Path: "/dashboard"},
		},
		{
			name:    "scheme relative from is ignored",
			session: student,
			from:    &Location{Path: "//evil.test/x"},
			want:    Decision{Outcome: Redirect, State: StateDeniedAlreadyAuthenticated, Path: "/dashboard"},
		},
		{
			name:    "encoded slash from stays local",
			session: student,
			from:    &Location{Path: "/%2Fevil.test/x"},
			want:    Decision{Outcome: Redirect, State: StateDeniedAlreadyAuthenticated, Path: "/%2Fevil.test/x"},
		},
		{
			name:       "fixed redirect replaces landing",
			session:    admin,
			redirectTo: "/dashboard",
			want:       Decision{Outcome: Redirect, State: StateDeniedAlreadyAuthenticated, Path: "/dashboard"},
		},
		{
			name:       "from wins over fixed redirect",
			session:    admin,
			redirectTo: "/dashboard",
			from:       &Location{Path: "/cart"},
			want:       Decision{Outcome: Redirect, State: StateDeniedAlreadyAuthenticated, Path: "/cart"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewAuthGate(DefaultPaths())
			gate.RedirectTo = tt.redirectTo
			assert.Equal(t, tt.want, gate.Decide(tt.session, tt.from))
		})
	}
}

func TestPaths_Defaults(t *testing.T) {
	gate := RouteGate{Policy: AnyRole(RoleAdmin)}
	d := gate.Decide(student, Location{Path: "/admin/invoices"})
	assert.Equal(t, "/unauthorized", d.Path)

	d = AuthGate{}.Decide(teacher, nil)
	assert.Equal(t, "/admin", d.Path)

	custom := Paths{Login: "/signin", AdminLanding: "/back-office"}
	d = NewRouteGate(All(), custom).Decide(AnonymousSession(), Location{Path: "/cart"})
	assert.Equal(t, "/signin", d.Path)
	d = NewAuthGate(custom).Decide(admin, nil)
	assert.Equal(t, "/back-office", d.Path)
	d = NewAuthGate(custom).Decide(student, nil)
	assert.Equal(t, "/dashboard", d.Path)
}

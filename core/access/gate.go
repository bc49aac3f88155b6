package access

// Paths are the fixed destinations the gates redirect to.
type Paths struct {
	Login          string `yaml:"login" json:"login"`
	Unauthorized   string `yaml:"unauthorized" json:"unauthorized"`
	StudentLanding string `yaml:"studentLanding" json:"studentLanding"`
	AdminLanding   string `yaml:"adminLanding" json:"adminLanding"`
}

// DefaultPaths returns the CoursePalette destinations.
func DefaultPaths() Paths {
	return Paths{
		Login:          "/login",
		Unauthorized:   "/unauthorized",
		StudentLanding: "/dashboard",
		AdminLanding:   "/admin",
	}
}

// withDefaults fills empty destinations from DefaultPaths.
func (p Paths) withDefaults() Paths {
	def := DefaultPaths()
	if p.Login == "" {
		p.Login = def.Login
	}
	if p.Unauthorized == "" {
		p.Unauthorized = def.Unauthorized
	}
	if p.StudentLanding == "" {
		p.StudentLanding = def.StudentLanding
	}
	if p.AdminLanding == "" {
		p.AdminLanding = def.AdminLanding
	}
	return p
}

// Landing returns the default page for a freshly authenticated visitor of the given role.
func (p Paths) Landing(role Role) string {
	if role.IsBackOffice() {
		return p.AdminLanding
	}
	return p.StudentLanding
}

// RouteGate enforces a route's access Policy.
type RouteGate struct {
	Policy Policy
	// RedirectPath is where unauthenticated visitors are sent; defaults to Paths.Login.
	RedirectPath string
	Paths        Paths
}

// NewRouteGate returns a gate enforcing policy, redirecting to the given destinations.
func NewRouteGate(policy Policy, paths Paths) RouteGate {
	return RouteGate{Policy: policy, Paths: paths.withDefaults()}
}

// Decide evaluates the gate for a visitor attempting to reach loc.
// Evaluation order: loading, public, authentication, any-authenticated, role membership.
// Anything left over, malformed policies included, is denied.
func (g RouteGate) Decide(s Session, loc Location) Decision {
	if s.IsLoading {
		return pending()
	}
	if g.Policy.IsPublic() {
		return granted()
	}

	paths := g.Paths.withDefaults()
	if !s.IsAuthenticated {
		target := g.RedirectPath
		if target == "" {
			target = paths.Login
		}
		from := loc
		return redirect(StateDeniedToLogin, target, &from)
	}
	if g.Policy.IsAll() {
		return granted()
	}
	if g.Policy.Permits(s.Role()) {
		return granted()
	}
	return redirect(StateDeniedToUnauthorized, paths.Unauthorized, nil)
}

// AuthGate guards the session bootstrap pages (login, register, password reset), which only
// unauthenticated visitors may see.
type AuthGate struct {
	Paths Paths
	// RedirectTo, when set, replaces the role-dependent landing path.
	RedirectTo string
}

// NewAuthGate returns a bootstrap gate sending authenticated visitors to their landing page.
func NewAuthGate(paths Paths) AuthGate {
	return AuthGate{Paths: paths.withDefaults()}
}

// Decide evaluates the gate. from is the location carried over from an earlier login redirect;
// when present and local it wins over the landing path.
func (g AuthGate) Decide(s Session, from *Location) Decision {
	if s.IsLoading {
		return pending()
	}
	if !s.IsAuthenticated {
		return granted()
	}

	if from != nil && from.Path != "" && from.IsLocal() {
		return redirect(StateDeniedAlreadyAuthenticated, from.String(), nil)
	}
	if g.RedirectTo != "" {
		return redirect(StateDeniedAlreadyAuthenticated, g.RedirectTo, nil)
	}
	return redirect(StateDeniedAlreadyAuthenticated, g.Paths.withDefaults().Landing(s.Role()), nil)
}

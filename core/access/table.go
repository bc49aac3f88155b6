package access

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	appfs "github.com/coursepalette/coursepalette/fs"
)

// GateKind selects which gate guards a route.
type GateKind string

const (
	// GateRoute applies the route's access policy.
	GateRoute GateKind = "route"
	// GateAuth guards session bootstrap pages.
	GateAuth GateKind = "auth"
)

// Route is one entry of the route table.
type Route struct {
	Path     string   `json:"path"`
	Gate     GateKind `json:"gate"`
	Policy   Policy   `json:"access"`
	Page     string   `json:"page"`
	Redirect string   `json:"redirect,omitempty"`

	segments []string
}

// MarshalJSON omits the policy of bootstrap routes, which the auth gate ignores.
func (r Route) MarshalJSON() ([]byte, error) {
	type route Route
	if r.Gate == GateAuth {
		return json.Marshal(struct {
			route
			Policy *Policy `json:"access,omitempty"`
		}{route: route(r)})
	}
	return json.Marshal(route(r))
}

// Table is the static mapping from page path to gate, policy and page.
type Table struct {
	Paths  Paths   `json:"paths"`
	Routes []Route `json:"routes"`
}

type policyField struct {
	tokens []string
	set    bool
}

func (f *policyField) UnmarshalYAML(node *yaml.Node) error {
	f.set = true
	switch node.Kind {
	case yaml.ScalarNode:
		f.tokens = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		return node.Decode(&f.tokens)
	default:
		return errors.Errorf("line %d: access must be a string or a list of roles", node.Line)
	}
}

type rawRoute struct {
	Path     string      `yaml:"path"`
	Gate     string      `yaml:"gate"`
	Access   policyField `yaml:"access"`
	Page     string      `yaml:"page"`
	Redirect string      `yaml:"redirect"`
}

type rawTable struct {
	Paths  Paths      `yaml:"paths"`
	Routes []rawRoute `yaml:"routes"`
}

// LoadTable reads a route table in YAML from r.
// Unknown gates or policy tokens, invalid paths and duplicate routes are errors.
func LoadTable(r io.Reader) (*Table, error) {
	var raw rawTable
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decoding route table")
	}

	t := &Table{Paths: raw.Paths.withDefaults()}
	seen := make(map[string]string, len(raw.Routes))

	for i, rr := range raw.Routes {
		route, err := buildRoute(rr)
		if err != nil {
			return nil, errors.Wrapf(err, "route #%d (%s)", i+1, rr.Path)
		}
		key := patternKey(route.segments)
		if prev, dup := seen[key]; dup {
			return nil, errors.Errorf("route #%d: %s conflicts with %s", i+1, route.Path, prev)
		}
		seen[key] = route.Path
		t.Routes = append(t.Routes, route)
	}

	for name, p := range map[string]string{
		"login":          t.Paths.Login,
		"unauthorized":   t.Paths.Unauthorized,
		"studentLanding": t.Paths.StudentLanding,
		"adminLanding":   t.Paths.AdminLanding,
	} {
		if !strings.HasPrefix(p, "/") {
			return nil, errors.Errorf("paths.%s: %q is not an absolute path", name, p)
		}
	}
	return t, nil
}

// LoadTableFile reads the route table at filename, or the embedded one when filename is empty.
func LoadTableFile(filename string) (*Table, error) {
	var (
		f   fs.File
		err error
	)
	if filename == "" {
		f, err = appfs.FS.Open(appfs.RoutesFile)
	} else {
		f, err = os.Open(filename)
	}
	if err != nil {
		return nil, errors.Wrap(err, "opening route table")
	}
	defer f.Close()
	return LoadTable(f)
}

func buildRoute(rr rawRoute) (Route, error) {
	route := Route{Path: rr.Path, Page: rr.Page, Redirect: rr.Redirect}
	if !strings.HasPrefix(rr.Path, "/") {
		return route, errors.New("path must start with /")
	}
	route.segments = splitPath(rr.Path)
	for _, seg := range route.segments {
		if seg == ":" {
			return route, errors.New("unnamed path parameter")
		}
	}
	if route.Page == "" {
		return route, errors.New("page is required")
	}
	if route.Redirect != "" && !strings.HasPrefix(route.Redirect, "/") {
		return route, errors.New("redirect must be an absolute path")
	}

	switch GateKind(strings.ToLower(rr.Gate)) {
	case GateAuth:
		if rr.Access.set {
			return route, errors.New("bootstrap routes take no access policy")
		}
		route.Gate = GateAuth
		return route, nil
	case "", GateRoute:
		route.Gate = GateRoute
	default:
		return route, errors.Errorf("unknown gate %q", rr.Gate)
	}

	if !rr.Access.set {
		return route, errors.New("access is required")
	}
	policy, err := ParsePolicy(rr.Access.tokens...)
	if err != nil {
		return route, err
	}
	route.Policy = policy
	return route, nil
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func isParam(seg string) bool { return strings.HasPrefix(seg, ":") }

func patternKey(segments []string) string {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		if isParam(seg) {
			parts[i] = ":"
		} else {
			parts[i] = seg
		}
	}
	return "/" + strings.Join(parts, "/")
}

// Match finds the route serving requestPath, a percent-encoded path, and extracts its decoded
// path parameters. Static segments take precedence over parameters, leftmost first.
func (t *Table) Match(requestPath string) (Route, map[string]string, bool) {
	segments := splitPath(requestPath)
	for i, seg := range segments {
		dec, err := url.PathUnescape(seg)
		if err != nil {
			return Route{}, nil, false
		}
		segments[i] = dec
	}

	best := -1
	var bestRank []bool
	for i := range t.Routes {
		rank, ok := matchSegments(t.Routes[i].segments, segments)
		if !ok {
			continue
		}
		if best == -1 || betterRank(rank, bestRank) {
			best, bestRank = i, rank
		}
	}
	if best == -1 {
		return Route{}, nil, false
	}

	route := t.Routes[best]
	params := make(map[string]string)
	for i, seg := range route.segments {
		if isParam(seg) {
			params[seg[1:]] = segments[i]
		}
	}
	return route, params, true
}

// matchSegments reports whether pattern matches segments; rank[i] is true for param matches.
func matchSegments(pattern, segments []string) ([]bool, bool) {
	if len(pattern) != len(segments) {
		return nil, false
	}
	rank := make([]bool, len(pattern))
	for i, seg := range pattern {
		switch {
		case isParam(seg):
			if segments[i] == "" {
				return nil, false
			}
			rank[i] = true
		case seg != segments[i]:
			return nil, false
		}
	}
	return rank, true
}

func betterRank(a, b []bool) bool {
	for i := range a {
		if a[i] != b[i] {
			return !a[i]
		}
	}
	return false
}

// Decide runs the gate guarding route. from only matters to bootstrap routes.
func (t *Table) Decide(route Route, s Session, loc Location, from *Location) Decision {
	if route.Gate == GateAuth {
		return NewAuthGate(t.Paths).Decide(s, from)
	}
	gate := NewRouteGate(route.Policy, t.Paths)
	gate.RedirectPath = route.Redirect
	return gate.Decide(s, loc)
}

// Evaluate matches loc against the table and decides it for s.
// ok is false when no route serves loc.Path.
func (t *Table) Evaluate(s Session, loc Location, from *Location) (route Route, params map[string]string, d Decision, ok bool) {
	route, params, ok = t.Match(loc.Path)
	if !ok {
		return route, nil, Decision{}, false
	}
	return route, params, t.Decide(route, s, loc, from), true
}

// Check verifies the table's fixed destinations are served by routes visitors can reach.
// It returns one message per problem found.
func (t *Table) Check() []string {
	var problems []string
	expect := func(name, p string, ok func(Route) bool, want string) {
		route, _, found := t.Match(p)
		switch {
		case !found:
			problems = append(problems, fmt.Sprintf("paths.%s: no route serves %s", name, p))
		case !ok(route):
			problems = append(problems, fmt.Sprintf("paths.%s: route %s must be %s", name, route.Path, want))
		}
	}
	expect("login", t.Paths.Login, func(r Route) bool { return r.Gate == GateAuth || r.Policy.IsPublic() }, "a bootstrap or PUBLIC route")
	expect("unauthorized", t.Paths.Unauthorized, func(r Route) bool { return r.Gate == GateRoute && r.Policy.IsPublic() }, "PUBLIC")
	expect("studentLanding", t.Paths.StudentLanding, func(r Route) bool {
		return r.Gate == GateRoute && (r.Policy.IsPublic() || r.Policy.IsAll() || r.Policy.Permits(RoleStudent))
	}, "reachable by students")
	expect("adminLanding", t.Paths.AdminLanding, func(r Route) bool {
		return r.Gate == GateRoute && (r.Policy.IsPublic() || r.Policy.IsAll() || (r.Policy.Permits(RoleAdmin) && r.Policy.Permits(RoleTeacher)))
	}, "reachable by teachers and admins")
	return problems
}

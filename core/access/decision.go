package access

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Outcome is what the gate tells the navigation layer to do.
type Outcome uint8

const (
	// Pending: render the loading indicator, nothing else.
	Pending Outcome = iota + 1
	// Render: render the protected page.
	Render
	// Redirect: replace the current location with Decision.Path.
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// State names the gate state a Decision was taken in.
type State string

const (
	StateResolving                  State = "RESOLVING"
	StateGranted                    State = "GRANTED"
	StateDeniedToLogin              State = "DENIED_TO_LOGIN"
	StateDeniedToUnauthorized       State = "DENIED_TO_UNAUTHORIZED"
	StateDeniedAlreadyAuthenticated State = "DENIED_ALREADY_AUTHENTICATED"
)

// Location is the navigation location a visitor attempted before being sent to the login page.
// Path is kept percent-encoded, as in the request URI.
type Location struct {
	Path   string `json:"path"`
	Search string `json:"search,omitempty"`
}

// ParseLocation parses a request URI on this site ("/x?y"). ok is false for anything else,
// including scheme-relative ("//host") and absolute ("https://host") URLs.
func ParseLocation(uri string) (loc Location, ok bool) {
	if !isLocalPath(uri) {
		return Location{}, false
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, false
	}
	loc = Location{Path: u.EscapedPath(), Search: u.RawQuery}
	return loc, loc.IsLocal()
}

// IsLocal reports whether l stays on this site once rendered as a request URI.
func (l Location) IsLocal() bool { return isLocalPath(l.String()) }

func isLocalPath(p string) bool {
	if p == "" || p[0] != '/' || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// String returns the location as a request URI.
func (l Location) String() string {
	if l.Search == "" {
		return l.Path
	}
	if l.Search[0] == '?' {
		return l.Path + l.Search
	}
	return l.Path + "?" + l.Search
}

// Decision is the result of evaluating a gate.
//
// For Redirect outcomes Path is the target location. From is set only when sending an
// unauthenticated visitor to the login page.
// Redirects always replace the current history entry.
type Decision struct {
	Outcome Outcome   `json:"outcome"`
	State   State     `json:"state"`
	Path    string    `json:"path,omitempty"`
	From    *Location `json:"from,omitempty"`
}

func (d Decision) IsPending() bool  { return d.Outcome == Pending }
func (d Decision) IsRender() bool   { return d.Outcome == Render }
func (d Decision) IsRedirect() bool { return d.Outcome == Redirect }

// Replace is true for every redirect: gate redirects never push a history entry.
func (d Decision) Replace() bool { return d.Outcome == Redirect }

func (d Decision) MarshalJSON() ([]byte, error) {
	type decision Decision
	return json.Marshal(struct {
		decision
		Replace bool `json:"replace"`
	}{decision(d), d.Replace()})
}

func pending() Decision { return Decision{Outcome: Pending, State: StateResolving} }
func granted() Decision { return Decision{Outcome: Render, State: StateGranted} }

func redirect(state State, path string, from *Location) Decision {
	return Decision{Outcome: Redirect, State: state, Path: path, From: from}
}

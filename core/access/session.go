package access

// Principal is the authenticated visitor as seen by the gates.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

// Session is a read-only snapshot of the visitor's authentication state.
//
// While IsLoading is true, IsAuthenticated and User are not meaningful.
// User is set only when IsAuthenticated is true.
type Session struct {
	IsLoading       bool       `json:"isLoading"`
	IsAuthenticated bool       `json:"isAuthenticated"`
	User            *Principal `json:"user,omitempty"`
}

// LoadingSession is the snapshot observed while the visitor's session is being resolved.
func LoadingSession() Session { return Session{IsLoading: true} }

// AnonymousSession is the resolved snapshot of a visitor without a session.
func AnonymousSession() Session { return Session{} }

// AuthenticatedSession is the resolved snapshot of visitor p.
func AuthenticatedSession(p Principal) Session {
	return Session{IsAuthenticated: true, User: &p}
}

// Role returns the role of the authenticated visitor, or "" when there is none.
func (s Session) Role() Role {
	if !s.IsAuthenticated || s.User == nil {
		return ""
	}
	return s.User.Role
}

package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coursepalette/coursepalette/core"
	"github.com/coursepalette/coursepalette/core/access"
	"github.com/coursepalette/coursepalette/core/session"
	"github.com/coursepalette/coursepalette/core/user"
)

var (
	claimsContextKey  = "userToken"
	contextUserKey    = "user"
	contextSessionKey = "session"
)

// authenticator bundles what the handlers need to tell who the visitor is.
type authenticator struct {
	conf     *core.Config
	signer   *session.Signer
	sessions *session.Provider
	usrSvc   *user.Service
}

// requestToken returns the bearer token of the request, falling back to the session cookie.
func (a authenticator) requestToken(ctx echo.Context) string {
	if h := ctx.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	if c, err := ctx.Cookie(a.conf.Session.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// session resolves the visitor's session once per request.
func (a authenticator) session(ctx echo.Context) access.Session {
	if s, ok := ctx.Get(contextSessionKey).(access.Session); ok {
		return s
	}
	s := a.sessions.Resolve(ctx.Request().Context(), a.requestToken(ctx))
	if !s.IsLoading {
		ctx.Set(contextSessionKey, s)
	}
	return s
}

func (a authenticator) authenticate(ctx echo.Context, uname, pwd string) (user.User, error) {
	reqCtx := ctx.Request().Context()
	usr, err := a.usrSvc.GetByUsernameOrEmail(reqCtx, uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	usr, err = a.usrSvc.SetLastLogin(reqCtx, usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

func (a authenticator) setTokenCookie(ctx echo.Context, token string, expires time.Time) {
	ctx.SetCookie(&http.Cookie{
		Name:     a.conf.Session.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   !(a.conf.Debug || a.conf.TestMode),
		SameSite: http.SameSiteLaxMode,
	})
}

func (a authenticator) clearTokenCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     a.conf.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func getContextClaims(ctx echo.Context) (session.Claims, error) {
	if token, ok := ctx.Get(claimsContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*session.Claims); ok {
			return *claims, nil
		}
	}
	return session.Claims{}, errUnauthorized
}

// getContextUser loads the user of the request's JWT from the store, not from the claims:
// roles and activation may have changed since the token was issued.
func (a authenticator) getContextUser(ctx echo.Context, clms ...session.Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims session.Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := a.usrSvc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func (a authenticator) refreshToken(ctx echo.Context) (string, *session.Claims, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", nil, errors.Wrap(err, "getting context claims")
	}

	usr, err := a.getContextUser(ctx, claims)
	if err != nil {
		return "", nil, errors.Wrap(err, "getting context user")
	}

	token, err := a.signer.Refresh(&claims, usr)
	if err != nil {
		if err == session.ErrRefreshExpired {
			return "", nil, errRefreshExpired
		}
		return "", nil, errors.Wrap(err, "generating token")
	}
	newClaims, err := a.signer.ParseToken(token)
	return token, newClaims, errors.Wrap(err, "parsing refreshed token")
}

// adminMiddleware lets through active users holding one of roles (ADMIN when none are given).
func adminMiddleware(a authenticator, roles ...access.Role) echo.MiddlewareFunc {
	policy := access.AnyRole(access.RoleAdmin)
	if len(roles) > 0 {
		policy = access.AnyRole(roles...)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := a.getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if policy.Permits(usr.Role) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

package echoapi

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/coursepalette/coursepalette/core"
	"github.com/coursepalette/coursepalette/core/access"
	appfs "github.com/coursepalette/coursepalette/fs"
)

const (
	pagesTemplatesDir = "templates/pages"
	fromParam         = "from"
	retryAfterSeconds = 1
)

type pageRenderer struct {
	tmpl *template.Template
}

var _ echo.Renderer = (*pageRenderer)(nil)

func newPageRenderer() *pageRenderer {
	return &pageRenderer{
		tmpl: template.Must(template.ParseFS(appfs.FS, path.Join(pagesTemplatesDir, "*.gohtml"))),
	}
}

func (r *pageRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}

type pageData struct {
	AppName    string
	Page       string
	Path       string
	Params     map[string]string
	User       *access.Principal
	RetryAfter int
}

type pageHandler struct {
	auth    authenticator
	routes  *access.Table
	logger  core.Logger
	debug   bool
	appName string
}

func registerPages(e *echo.Echo, auth authenticator, routes *access.Table, logger core.Logger, conf *core.Config) {
	h := pageHandler{auth: auth, routes: routes, logger: logger, debug: conf.Debug, appName: conf.AppName}
	e.GET("/", h.serve)
	e.GET("/*", h.serve)
}

// serve guards every page of the route table.
func (h pageHandler) serve(ctx echo.Context) error {
	req := ctx.Request()
	loc := access.Location{Path: req.URL.EscapedPath(), Search: req.URL.RawQuery}

	s := h.auth.session(ctx)
	route, params, d, ok := h.routes.Evaluate(s, loc, fromLocation(ctx.QueryParam(fromParam)))
	if !ok {
		return errHttpNotFound
	}

	ctx.Response().Header().Set("Cache-Control", "no-store")
	switch d.Outcome {
	case access.Pending:
		ctx.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		return ctx.Render(http.StatusOK, "loading", pageData{AppName: h.appName, RetryAfter: retryAfterSeconds})
	case access.Redirect:
		if h.debug {
			h.logger.Debug(fmt.Sprintf("%s %s: %s -> %s", route.Page, loc, d.State, d.Path), s.User)
		}
		return ctx.Redirect(http.StatusFound, redirectURL(d))
	}
	return ctx.Render(http.StatusOK, "shell", pageData{
		AppName: h.appName,
		Page:    route.Page,
		Path:    loc.Path,
		Params:  params,
		User:    s.User,
	})
}

// fromLocation parses the `from` query parameter; anything but a local path is ignored.
func fromLocation(from string) *access.Location {
	loc, ok := access.ParseLocation(from)
	if !ok {
		return nil
	}
	return &loc
}

// redirectURL is the Location header of a redirect decision; the attempted location rides along as `from`.
func redirectURL(d access.Decision) string {
	if d.From == nil {
		return d.Path
	}
	q := url.Values{}
	q.Set(fromParam, d.From.String())
	return d.Path + "?" + q.Encode()
}

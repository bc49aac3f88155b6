package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/coursepalette/coursepalette/core/access"
)

type accessApi struct {
	auth   authenticator
	routes *access.Table
}

func registerAccessAPI(g *echo.Group, auth authenticator, routes *access.Table) {
	api := accessApi{auth: auth, routes: routes}

	g.GET("/session", api.session)
	g.GET("/access/decide", api.decide)
	g.GET("/routes", api.listRoutes)
}

// session reports the visitor's session the way the page gates see it.
func (api *accessApi) session(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.auth.session(ctx))
}

// decide evaluates `?path=` for the visitor, without navigating; `?from=` feeds bootstrap routes.
func (api *accessApi) decide(ctx echo.Context) error {
	loc, ok := access.ParseLocation(ctx.QueryParam("path"))
	if !ok {
		return errBadPath
	}

	s := api.auth.session(ctx)
	route, params, d, ok := api.routes.Evaluate(s, loc, fromLocation(ctx.QueryParam(fromParam)))
	if !ok {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, DecideResponse{
		Route:    route,
		Params:   params,
		Session:  s,
		Decision: d,
	})
}

func (api *accessApi) listRoutes(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.routes)
}

type DecideResponse struct {
	Route    access.Route      `json:"route"`
	Params   map[string]string `json:"params"`
	Session  access.Session    `json:"session"`
	Decision access.Decision   `json:"decision"`
}

package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coursepalette/coursepalette/core"
	"github.com/coursepalette/coursepalette/core/user"
)

var (
	orderingParam    = "ordering"
	createdFromParam = "created_from"
	createdToParam   = "created_to"

	timeLayouts = []string{time.RFC3339, "2006-01-02"}
)

// bindOrdering reads `?ordering=name,-created_at`, keeping allowed fields only.
func bindOrdering(ctx echo.Context, allowed ...string) []core.DBOrdering {
	return core.ParseOrdering(ctx.QueryParam(orderingParam), allowed...)
}

func bindTimeRange(ctx echo.Context, filter *user.QueryFilter) error {
	var err error
	if filter.CreatedFrom, err = parseTimeParam(ctx.QueryParam(createdFromParam)); err != nil {
		return errors.Wrap(err, createdFromParam)
	}
	if filter.CreatedTo, err = parseTimeParam(ctx.QueryParam(createdToParam)); err != nil {
		return errors.Wrap(err, createdToParam)
	}
	return nil
}

func parseTimeParam(val string) (time.Time, error) {
	if val == "" {
		return time.Time{}, nil
	}
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, val); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

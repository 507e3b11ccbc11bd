package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quantumqp/portal/core/search"
	"github.com/quantumqp/portal/core/user"
)

type searchApi struct {
	svc    search.Service
	usrSvc user.Service
}

func registerSearchAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc search.Service,
	usrSvc user.Service,
) {
	api := searchApi{svc: svc, usrSvc: usrSvc}

	sg := g.Group("/searches", jwt, activeUserMiddleware(usrSvc))
	sg.POST("", api.create)
	sg.GET("/most-searched", api.mostSearched)
}

func (api *searchApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data search.NewSearch
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSearch")
	}
	s, err := api.svc.Record(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "recording search")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *searchApi) mostSearched(ctx echo.Context) error {
	counts, err := api.svc.MostSearched(ctx.Request().Context(), search.DefaultLimit)
	if err != nil {
		return errors.Wrap(err, "querying most searched")
	}
	return ctx.JSON(http.StatusOK, counts)
}

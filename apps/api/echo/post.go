package echoapi

import (
	"net/http"
	"net/url"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/post"
	"github.com/quantumqp/portal/core/user"
)

type postApi struct {
	svc        post.Service
	usrSvc     user.Service
	conf       *core.Config
	validate   *validator.Validate
	translator ut.Translator
}

func registerPostAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc post.Service,
	usrSvc user.Service,
	conf *core.Config,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := postApi{
		svc:        svc,
		usrSvc:     usrSvc,
		conf:       conf,
		validate:   validate,
		translator: translator,
	}

	pg := g.Group("/posts", jwt, activeUserMiddleware(usrSvc))
	pg.POST("", api.create)
	pg.GET("", api.query)
	pg.GET("/mine", api.queryOwn)

	// detail endpoints
	dg := pg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.PUT("/status", api.setStatus, adminMiddleware())
	dg.PUT("/like", api.like)
	dg.GET("/download", api.download)
}

// Handlers

func (api *postApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data post.NewPost
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPost")
	}
	upload, closeUpload, err := bindUpload(ctx)
	if err != nil {
		return err
	}
	defer closeUpload()

	p, err := api.svc.Create(ctx.Request().Context(), usr, data, upload)
	if err != nil {
		return errors.Wrap(err, "creating post")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *postApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	posts, err := api.svc.List(ctx.Request().Context(), usr, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying posts")
	}
	return ctx.JSON(http.StatusOK, posts)
}

func (api *postApi) queryOwn(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	posts, err := api.svc.ListOwn(ctx.Request().Context(), usr, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying own posts")
	}
	return ctx.JSON(http.StatusOK, posts)
}

func (api *postApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	p, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving post")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *postApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	data, err := bindUpdatePost(ctx)
	if err != nil {
		return err
	}
	upload, closeUpload, err := bindUpload(ctx)
	if err != nil {
		return err
	}
	defer closeUpload()

	p, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data, upload)
	if err != nil {
		return errors.Wrap(err, "updating post")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *postApi) setStatus(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data StatusRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return core.TranslateErrors(err, api.translator)
	}

	p, err := api.svc.SetStatus(ctx.Request().Context(), usr, ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "setting post status")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *postApi) like(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data LikeRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LikeRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return core.TranslateErrors(err, api.translator)
	}

	p, err := api.svc.Like(ctx.Request().Context(), usr, ctx.Param("id"), *data.Like)
	if err != nil {
		return errors.Wrap(err, "liking post")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *postApi) download(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	p, err := api.svc.Download(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "downloading post file")
	}
	location := strings.TrimRight(api.conf.Server.UploadsURL, "/") + "/" + url.PathEscape(p.File)
	return ctx.Redirect(http.StatusFound, location)
}

func (api *postApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting post")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "post deleted"})
}

type (
	StatusRequest struct {
		Status post.Status `json:"status" validate:"required"`
	}

	LikeRequest struct {
		Like *bool `json:"like" validate:"required"`
	}
)

package echoapi

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/post"
)

var (
	orderingParam = "ordering"
	fileField     = "file"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func isMultipart(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// bindUpload returns the uploaded file of a multipart request, or nil when none was sent.
// The caller must call the returned close func.
func bindUpload(ctx echo.Context) (*post.Upload, func(), error) {
	noop := func() {}
	if !isMultipart(ctx) {
		return nil, noop, nil
	}
	fh, err := ctx.FormFile(fileField)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, noop, nil
		}
		return nil, noop, errors.Wrap(err, "reading multipart file")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, errors.Wrap(err, "opening multipart file")
	}
	return &post.Upload{Filename: fh.Filename, Content: f}, func() { _ = f.Close() }, nil
}

// bindUpdatePost reads a partial update from a JSON or multipart body. Absent fields stay nil.
func bindUpdatePost(ctx echo.Context) (post.UpdatePost, error) {
	var up post.UpdatePost
	if !isMultipart(ctx) {
		if ctx.Request().ContentLength == 0 {
			return up, nil
		}
		if err := ctx.Bind(&up); err != nil {
			return up, errors.Wrap(err, "binding to UpdatePost")
		}
		return up, nil
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return up, errors.Wrap(err, "parsing multipart form")
	}
	up.Title = formValue(form, "title")
	up.Content = formValue(form, "content")
	if cat := formValue(form, "category"); cat != nil {
		c := post.Category(*cat)
		up.Category = &c
	}
	up.Link = formValue(form, "link")
	return up, nil
}

func formValue(form *multipart.Form, key string) *string {
	vals, ok := form.Value[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	v := vals[0]
	return &v
}

package post

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("post")
	ErrNoFile   = core.NewNotFoundError("file")
)

type (
	Repository interface {
		CreatePost(ctx context.Context, p Post) (Post, error)
		GetPost(ctx context.Context, id string) (Post, error)
		// QueryPosts applies an AND of the set QueryFilter fields. Default order: newest first.
		QueryPosts(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Post, error)
		// UpdatePost saves the content fields, the status and UpdatedAt.
		UpdatePost(ctx context.Context, p Post) (Post, error)
		// AddLikes atomically adds delta to the like count, flooring the result at zero.
		AddLikes(ctx context.Context, id string, delta int) (Post, error)
		DeletePost(ctx context.Context, id string) error
	}

	// FileStore persists uploaded files and returns the key to reference them by.
	FileStore interface {
		Save(filename string, r io.Reader) (string, error)
	}

	Service interface {
		Create(ctx context.Context, actor user.User, np NewPost, upload *Upload) (Post, error)
		Get(ctx context.Context, actor user.User, id string) (Post, error)
		List(ctx context.Context, actor user.User, ordering []core.DBOrdering) ([]Post, error)
		ListOwn(ctx context.Context, actor user.User, ordering []core.DBOrdering) ([]Post, error)
		Update(ctx context.Context, actor user.User, id string, up UpdatePost, upload *Upload) (Post, error)
		SetStatus(ctx context.Context, actor user.User, id string, status Status) (Post, error)
		Like(ctx context.Context, actor user.User, id string, like bool) (Post, error)
		Delete(ctx context.Context, actor user.User, id string) error
		Download(ctx context.Context, actor user.User, id string) (Post, error)
	}

	ServiceDeps struct {
		Repo       Repository
		Files      FileStore
		Events     EventSink
		MailSvc    core.EmailService
		Validate   *validator.Validate
		Translator ut.Translator
	}

	service struct {
		ServiceDeps
	}
)

func NewService(deps ServiceDeps) Service {
	if deps.Events == nil {
		deps.Events = NopSink{}
	}
	return &service{ServiceDeps: deps}
}

func (svc *service) validate(np NewPost) error {
	if err := svc.Validate.Struct(np); err != nil {
		return core.TranslateErrors(err, svc.Translator)
	}
	return nil
}

func (svc *service) validateUpdate(up UpdatePost) error {
	var flds []core.FieldError
	if up.Title != nil && len(*up.Title) > 200 {
		flds = append(flds, core.FieldError{Field: "title", Error: "title must be a maximum of 200 characters in length"})
	}
	if up.Category != nil && !up.Category.IsValid() {
		flds = append(flds, core.FieldError{Field: "category", Error: categoryText})
	}
	if up.Link != nil && *up.Link != "" {
		if err := svc.Validate.Var(*up.Link, "url"); err != nil {
			flds = append(flds, core.FieldError{Field: "link", Error: "link must be a valid URL"})
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func (svc *service) saveUpload(upload *Upload) (string, error) {
	if upload == nil {
		return "", nil
	}
	key, err := svc.Files.Save(upload.Filename, upload.Content)
	if err != nil {
		return "", core.NewPersistenceError("saving upload", err)
	}
	return key, nil
}

func (svc *service) Create(ctx context.Context, actor user.User, np NewPost, upload *Upload) (Post, error) {
	np.Clean()
	if Authorize(actor, ActionCreateWithStatus, Post{}) != nil {
		np.Status = "" // ignored for non-admins
	}
	if err := svc.validate(np); err != nil {
		return Post{}, err
	}
	status, err := initialStatus(actor, np.Status)
	if err != nil {
		return Post{}, err
	}

	key, err := svc.saveUpload(upload)
	if err != nil {
		return Post{}, err
	}

	now := time.Now().UTC()
	p, err := svc.Repo.CreatePost(ctx, Post{
		ID:        uuid.NewString(),
		Title:     np.Title,
		Content:   np.Content,
		Category:  np.Category,
		User:      OwnerOf(actor),
		File:      key,
		Link:      np.Link,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Post{}, errors.Wrap(err, "creating post")
	}
	return ViewFor(actor, p), nil
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (Post, error) {
	p, err := svc.Repo.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if !(IsVisibleTo(actor, p) || p.IsOwnedBy(actor)) {
		return Post{}, ErrNotFound
	}
	return ViewFor(actor, p), nil
}

func (svc *service) List(ctx context.Context, actor user.User, ordering []core.DBOrdering) ([]Post, error) {
	posts, err := svc.Repo.QueryPosts(ctx, listFilterFor(actor), ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying posts")
	}
	return filterVisible(actor, posts), nil
}

func (svc *service) ListOwn(ctx context.Context, actor user.User, ordering []core.DBOrdering) ([]Post, error) {
	posts, err := svc.Repo.QueryPosts(ctx, QueryFilter{UserID: actor.ID}, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying own posts")
	}
	for i := range posts {
		posts[i] = ViewFor(actor, posts[i])
	}
	return posts, nil
}

func (svc *service) Update(ctx context.Context, actor user.User, id string, up UpdatePost, upload *Upload) (Post, error) {
	p, err := svc.Repo.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if err = Authorize(actor, ActionUpdate, p); err != nil {
		return Post{}, err
	}

	up.Clean()
	if err = svc.validateUpdate(up); err != nil {
		return Post{}, err
	}

	// the previous file stays on disk
	key, err := svc.saveUpload(upload)
	if err != nil {
		return Post{}, err
	}
	if key != "" {
		p.File = key
	}
	up.apply(&p)
	p.UpdatedAt = time.Now().UTC()

	p, err = svc.Repo.UpdatePost(ctx, p)
	if err != nil {
		return Post{}, errors.Wrap(err, "updating post")
	}
	svc.Events.PostUpdated(ViewFor(user.User{}, p))
	return ViewFor(actor, p), nil
}

func (svc *service) SetStatus(ctx context.Context, actor user.User, id string, status Status) (Post, error) {
	if err := Authorize(actor, ActionSetStatus, Post{}); err != nil {
		return Post{}, err
	}
	if !status.IsValid() {
		return Post{}, errInvalidStatus
	}

	p, err := svc.Repo.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	prev := p.Status
	if err = transition(actor, &p, status); err != nil {
		return Post{}, err
	}
	p.UpdatedAt = time.Now().UTC()

	p, err = svc.Repo.UpdatePost(ctx, p)
	if err != nil {
		return Post{}, errors.Wrap(err, "updating post status")
	}
	svc.Events.PostUpdated(p)

	if prev != p.Status && CanInteract(p) {
		svc.notifyOwner(p)
	}
	return p, nil
}

func (svc *service) Like(ctx context.Context, actor user.User, id string, like bool) (Post, error) {
	p, err := svc.Repo.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if err = Authorize(actor, ActionLike, p); err != nil {
		return Post{}, err
	}

	delta := 1
	if !like {
		delta = -1
	}
	p, err = svc.Repo.AddLikes(ctx, id, delta)
	if err != nil {
		return Post{}, errors.Wrap(err, "updating likes")
	}
	svc.Events.PostUpdated(ViewFor(user.User{}, p))
	return ViewFor(actor, p), nil
}

func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	p, err := svc.Repo.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if err = Authorize(actor, ActionDelete, p); err != nil {
		return err
	}
	if err = svc.Repo.DeletePost(ctx, id); err != nil {
		return errors.Wrap(err, "deleting post")
	}
	svc.Events.PostDeleted(id)
	return nil
}

func (svc *service) Download(ctx context.Context, actor user.User, id string) (Post, error) {
	p, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Post{}, err
	}
	if !CanInteract(p) {
		return Post{}, ErrNotInteractive
	}
	if p.File == "" {
		return Post{}, ErrNoFile
	}
	return p, nil
}

type statusMailData struct {
	Name   string
	Title  string
	Status string
}

func (svc *service) notifyOwner(p Post) {
	if svc.MailSvc == nil || p.User.Email == "" {
		return
	}
	status := "approved"
	if p.Status == StatusComingSoon {
		status = "coming soon"
	}
	svc.MailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: p.User.Name, Address: p.User.Email}},
		Subject:      fmt.Sprintf("Your post %q is %s", p.Title, status),
		TemplateName: "post_status",
		TemplateData: statusMailData{Name: p.User.Name, Title: p.Title, Status: status},
	})
}

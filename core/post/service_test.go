package post_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/post"
	"github.com/quantumqp/portal/core/user"
	emailsvc "github.com/quantumqp/portal/services/email"
	"github.com/quantumqp/portal/services/filestore"
	"github.com/quantumqp/portal/storage/database/inmem"
	"github.com/quantumqp/portal/tests"
)

type recordingSink struct {
	mu      sync.Mutex
	updated []post.Post
	deleted []string
}

func (s *recordingSink) PostUpdated(p post.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, p)
}

func (s *recordingSink) PostDeleted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updated) + len(s.deleted)
}

// failingRepo fails every write once the post exists.
type failingRepo struct {
	post.Repository
}

var errStoreDown = errors.New("store down")

func (failingRepo) UpdatePost(context.Context, post.Post) (post.Post, error) {
	return post.Post{}, core.NewPersistenceError("update post", errStoreDown)
}

func (failingRepo) AddLikes(context.Context, string, int) (post.Post, error) {
	return post.Post{}, core.NewPersistenceError("add likes", errStoreDown)
}

func (failingRepo) DeletePost(context.Context, string) error {
	return core.NewPersistenceError("delete post", errStoreDown)
}

type fixture struct {
	svc      post.Service
	repo     post.Repository
	usrRepo  user.Repository
	files    *filestore.DiskStore
	sink     *recordingSink
	admin    user.User
	owner    user.User
	other    user.User
	mailConf *core.Config
}

func setup(t *testing.T) *fixture {
	db := inmemdb.Open()
	conf := core.NewTestConfig()
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidator()
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ResetSentMessages()

	files, err := filestore.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		repo:     inmemdb.NewPostRepository(db),
		usrRepo:  inmemdb.NewUserRepository(db),
		files:    files,
		sink:     &recordingSink{},
		mailConf: conf,
	}
	f.svc = post.NewService(post.ServiceDeps{
		Repo:       f.repo,
		Files:      files,
		Events:     f.sink,
		MailSvc:    emailsvc.NewConsoleServiceMock(conf, logger),
		Validate:   validate,
		Translator: translator,
	})
	f.admin = testutil.CreateUser(t, f.usrRepo, "Admin", "admin@quantum.test", "", user.RoleAdmin, true)
	f.owner = testutil.CreateUser(t, f.usrRepo, "Olu", "olu@quantum.test", "", user.RoleUser, true)
	f.other = testutil.CreateUser(t, f.usrRepo, "Ivy", "ivy@quantum.test", "", user.RoleUser, true)
	return f
}

func ids(posts []post.Post) []string {
	res := make([]string, 0, len(posts))
	for _, p := range posts {
		res = append(res, p.ID)
	}
	return res
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		actor      user.User
		np         post.NewPost
		wantStatus post.Status
		wantFields []string
	}{
		{
			name:       "user post defaults to pending",
			actor:      f.owner,
			np:         post.NewPost{Title: " Algo Notes ", Content: "...", Category: "BTech"},
			wantStatus: post.StatusPending,
		},
		{
			name:       "user status ignored",
			actor:      f.owner,
			np:         post.NewPost{Title: "Sorting", Content: "...", Category: "bca", Status: "approved"},
			wantStatus: post.StatusPending,
		},
		{
			name:       "admin sets status",
			actor:      f.admin,
			np:         post.NewPost{Title: "Syllabus", Content: "...", Category: "mba", Status: "coming_soon"},
			wantStatus: post.StatusComingSoon,
		},
		{
			name:       "missing fields",
			actor:      f.owner,
			np:         post.NewPost{Link: "not a url"},
			wantFields: []string{"title", "content", "category", "link"},
		},
		{
			name:       "invalid category",
			actor:      f.owner,
			np:         post.NewPost{Title: "x", Content: "y", Category: "law"},
			wantFields: []string{"category"},
		},
		{
			name:       "admin invalid status",
			actor:      f.admin,
			np:         post.NewPost{Title: "x", Content: "y", Category: "other", Status: "archived"},
			wantFields: []string{"status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.svc.Create(ctx, tt.actor, tt.np, nil)
			if len(tt.wantFields) > 0 {
				var vErr *core.ValidationError
				require.True(t, errors.As(err, &vErr), "err = %v", err)
				got := make([]string, 0, len(vErr.Fields))
				for _, fe := range vErr.Fields {
					got = append(got, fe.Field)
				}
				assert.ElementsMatch(t, tt.wantFields, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.actor.ID, p.User.ID)
			assert.Zero(t, p.Likes)
		})
	}

	assert.Zero(t, f.sink.count(), "create does not broadcast")
}

func TestService_CreateWithUpload(t *testing.T) {
	f := setup(t)

	p, err := f.svc.Create(context.Background(), f.owner,
		post.NewPost{Title: "PYQ 2020", Content: "paper", Category: "mca"},
		&post.Upload{Filename: "../paper.pdf", Content: strings.NewReader("%PDF")},
	)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.File, "-paper.pdf"), p.File)

	data, err := os.ReadFile(filepath.Join(f.files.Dir(), p.File))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
}

// scenario A & B
func TestService_ModerationFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.owner, post.NewPost{Title: "Algo Notes", Content: "...", Category: "btech"}, nil)
	require.NoError(t, err)
	assert.Equal(t, post.StatusPending, p.Status)

	own, err := f.svc.ListOwn(ctx, f.owner, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, ids(own))

	listed, err := f.svc.List(ctx, f.other, nil)
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = f.svc.Get(ctx, f.other, p.ID)
	assert.True(t, core.IsNotFound(err))
	_, err = f.svc.Get(ctx, f.owner, p.ID)
	assert.NoError(t, err, "owners can read their pending posts")

	all, err := f.svc.List(ctx, f.admin, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, ids(all))
	assert.Equal(t, user.RoleUser, all[0].User.Role)

	approved, err := f.svc.SetStatus(ctx, f.admin, p.ID, post.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, post.StatusApproved, approved.Status)

	listed, err = f.svc.List(ctx, f.other, nil)
	require.NoError(t, err)
	if assert.Equal(t, []string{p.ID}, ids(listed)) {
		assert.Empty(t, listed[0].User.Role)
		assert.Equal(t, "olu@quantum.test", listed[0].User.Email)
	}

	require.Len(t, f.sink.updated, 1)
	assert.Equal(t, post.StatusApproved, f.sink.updated[0].Status)
	assert.Equal(t, user.RoleUser, f.sink.updated[0].User.Role)

	msgs := emailsvc.GetSentMessages()
	if assert.Len(t, msgs, 1) {
		assert.Equal(t, "olu@quantum.test", msgs[0].To[0].Address)
		assert.Contains(t, msgs[0].TextContent, "Algo Notes")
		assert.Contains(t, msgs[0].TextContent, "approved")
	}

	// moving back to pending hides the post again and sends no mail
	_, err = f.svc.SetStatus(ctx, f.admin, p.ID, post.StatusPending)
	require.NoError(t, err)
	listed, err = f.svc.List(ctx, f.other, nil)
	require.NoError(t, err)
	assert.Empty(t, listed)
	assert.Len(t, emailsvc.GetSentMessages(), 1)
}

func TestService_SetStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := testutil.CreatePost(t, f.repo, f.owner, "Graphs", post.StatusPending)

	tests := []struct {
		name    string
		actor   user.User
		id      string
		status  post.Status
		wantErr func(error) bool
	}{
		{"owner forbidden", f.owner, p.ID, post.StatusApproved, core.IsAuthorizationError},
		{"forbidden before validation", f.other, p.ID, "archived", core.IsAuthorizationError},
		{"forbidden before lookup", f.other, "missing", post.StatusApproved, core.IsAuthorizationError},
		{"invalid status", f.admin, p.ID, "archived", isValidationError},
		{"invalid before lookup", f.admin, "missing", "archived", isValidationError},
		{"missing post", f.admin, "missing", post.StatusApproved, core.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SetStatus(ctx, tt.actor, tt.id, tt.status)
			if !tt.wantErr(err) {
				t.Errorf("failed! err = %v", err)
			}
		})
	}

	stored, err := f.repo.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, post.StatusPending, stored.Status)
	assert.Zero(t, f.sink.count())
}

func isValidationError(err error) bool {
	var vErr *core.ValidationError
	return errors.As(err, &vErr)
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := testutil.CreatePost(t, f.repo, f.owner, "Graphs", post.StatusApproved)
	str := func(s string) *string { return &s }

	_, err := f.svc.Update(ctx, f.other, p.ID, post.UpdatePost{Title: str("Hijack")}, nil)
	assert.True(t, core.IsAuthorizationError(err), "err = %v", err)

	_, err = f.svc.Update(ctx, f.owner, "missing", post.UpdatePost{Title: str("x")}, nil)
	assert.True(t, core.IsNotFound(err), "err = %v", err)

	_, err = f.svc.Update(ctx, f.owner, p.ID, post.UpdatePost{Link: str("nope")}, nil)
	assert.True(t, isValidationError(err), "err = %v", err)
	assert.Zero(t, f.sink.count())

	updated, err := f.svc.Update(ctx, f.owner, p.ID, post.UpdatePost{Title: str("Trees"), Link: str("https://quantum.test/trees")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Trees", updated.Title)
	assert.Equal(t, p.Content, updated.Content, "untouched fields are kept")
	assert.Equal(t, post.StatusApproved, updated.Status)

	// admins may edit content too
	updated, err = f.svc.Update(ctx, f.admin, p.ID, post.UpdatePost{Link: str("")}, nil)
	require.NoError(t, err)
	assert.Empty(t, updated.Link)
	assert.Equal(t, user.RoleUser, updated.User.Role)

	require.Len(t, f.sink.updated, 2)
	assert.Equal(t, "Trees", f.sink.updated[1].Title)
	assert.Empty(t, f.sink.updated[1].User.Role, "broadcasts never carry the owner's role")
}

// scenario D
func TestService_UpdateReplacesFile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.owner, post.NewPost{Title: "Notes", Content: "v1", Category: "bca"},
		&post.Upload{Filename: "notes.pdf", Content: strings.NewReader("v1")})
	require.NoError(t, err)
	oldKey := p.File

	updated, err := f.svc.Update(ctx, f.owner, p.ID, post.UpdatePost{},
		&post.Upload{Filename: "notes.pdf", Content: strings.NewReader("v2")})
	require.NoError(t, err)

	assert.NotEqual(t, oldKey, updated.File)
	data, err := os.ReadFile(filepath.Join(f.files.Dir(), updated.File))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
	_, err = os.Stat(filepath.Join(f.files.Dir(), oldKey))
	assert.NoError(t, err, "previous file stays on disk")
}

func TestService_Like(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := testutil.CreatePost(t, f.repo, f.owner, "Graphs", post.StatusComingSoon)
	pending := testutil.CreatePost(t, f.repo, f.owner, "Draft", post.StatusPending)

	liked, err := f.svc.Like(ctx, f.other, p.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, liked.Likes)

	unliked, err := f.svc.Like(ctx, f.other, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, unliked.Likes)

	floored, err := f.svc.Like(ctx, f.other, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, floored.Likes, "likes never go negative")

	require.Len(t, f.sink.updated, 3)
	assert.Equal(t, 1, f.sink.updated[0].Likes)

	_, err = f.svc.Like(ctx, f.admin, pending.ID, true)
	assert.Equal(t, post.ErrNotInteractive, errors.Cause(err))

	_, err = f.svc.Like(ctx, f.other, "missing", true)
	assert.True(t, core.IsNotFound(err))
	assert.Len(t, f.sink.updated, 3)
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p1 := testutil.CreatePost(t, f.repo, f.owner, "One", post.StatusApproved)
	p2 := testutil.CreatePost(t, f.repo, f.owner, "Two", post.StatusPending)

	assert.True(t, core.IsAuthorizationError(f.svc.Delete(ctx, f.other, p1.ID)))
	assert.True(t, core.IsNotFound(f.svc.Delete(ctx, f.owner, "missing")))

	require.NoError(t, f.svc.Delete(ctx, f.owner, p1.ID))
	require.NoError(t, f.svc.Delete(ctx, f.admin, p2.ID))
	assert.Equal(t, []string{p1.ID, p2.ID}, f.sink.deleted)

	assert.True(t, core.IsNotFound(f.svc.Delete(ctx, f.owner, p1.ID)))
	assert.Len(t, f.sink.deleted, 2)
}

func TestService_Download(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	withFile := testutil.AttachFile(t, f.repo, testutil.CreatePost(t, f.repo, f.owner, "PYQ", post.StatusApproved), "1-pyq.pdf")
	noFile := testutil.CreatePost(t, f.repo, f.owner, "Link only", post.StatusApproved)
	pending := testutil.AttachFile(t, f.repo, testutil.CreatePost(t, f.repo, f.owner, "Draft", post.StatusPending), "2-draft.pdf")

	p, err := f.svc.Download(ctx, f.other, withFile.ID)
	require.NoError(t, err)
	assert.Equal(t, "1-pyq.pdf", p.File)

	_, err = f.svc.Download(ctx, f.other, noFile.ID)
	assert.Equal(t, post.ErrNoFile, err)

	_, err = f.svc.Download(ctx, f.admin, pending.ID)
	assert.Equal(t, post.ErrNotInteractive, err)

	_, err = f.svc.Download(ctx, f.other, pending.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_NoEventOnPersistenceFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := testutil.CreatePost(t, f.repo, f.owner, "Graphs", post.StatusApproved)

	validate, translator := testutil.NewValidator()
	svc := post.NewService(post.ServiceDeps{
		Repo:       failingRepo{Repository: f.repo},
		Files:      f.files,
		Events:     f.sink,
		Validate:   validate,
		Translator: translator,
	})
	title := "New"

	_, err := svc.Update(ctx, f.owner, p.ID, post.UpdatePost{Title: &title}, nil)
	assert.Equal(t, errStoreDown, errors.Unwrap(errors.Cause(err)))
	_, err = svc.SetStatus(ctx, f.admin, p.ID, post.StatusPending)
	assert.Error(t, err)
	_, err = svc.Like(ctx, f.other, p.ID, true)
	assert.Error(t, err)
	assert.Error(t, svc.Delete(ctx, f.owner, p.ID))

	assert.Zero(t, f.sink.count())
	assert.Empty(t, emailsvc.GetSentMessages())
}

func TestService_ListOrdering(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := testutil.CreatePost(t, f.repo, f.owner, "Alpha", post.StatusApproved)
	b := testutil.CreatePost(t, f.repo, f.other, "Beta", post.StatusApproved)
	c := testutil.CreatePost(t, f.repo, f.other, "Gamma", post.StatusPending)

	_, err := f.repo.AddLikes(ctx, a.ID, 3)
	require.NoError(t, err)

	byLikes, err := f.svc.List(ctx, f.admin, []core.DBOrdering{{Field: "likes"}, {Field: "title", Ascending: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, ids(byLikes))

	own, err := f.svc.ListOwn(ctx, f.other, []core.DBOrdering{{Field: "title"}})
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID, b.ID}, ids(own))
	for _, p := range own {
		assert.Empty(t, p.User.Role)
	}
}

package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/post"
	"github.com/quantumqp/portal/core/user"
	logsvc "github.com/quantumqp/portal/services/logger"
)

// NewLogger returns a silent core.Logger.
func NewLogger() core.Logger {
	logger := logsvc.NewRollbarLogger(zap.NewNop(), core.NewTestConfig())
	logger.Enable(false)
	return logger
}

// NewValidator returns a validator and translator with every domain validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	post.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if role == "" {
		role = user.RoleUser
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreatePost(
	t *testing.T,
	repo post.Repository,
	owner user.User,
	title string,
	status post.Status,
	createdAt ...time.Time,
) post.Post {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	p, err := repo.CreatePost(context.Background(), post.Post{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   title + " notes",
		Category:  post.CategoryBTech,
		User:      post.OwnerOf(owner),
		Status:    status,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("createPost() failed: %v", err)
	}
	return p
}

// AttachFile sets the file key of p directly in the repository.
func AttachFile(t *testing.T, repo post.Repository, p post.Post, key string) post.Post {
	p.File = key
	p, err := repo.UpdatePost(context.Background(), p)
	if err != nil {
		t.Fatalf("attachFile() failed: %v", err)
	}
	return p
}

package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/quantumqp/portal/apps/api/echo"
	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/post"
	"github.com/quantumqp/portal/core/search"
	"github.com/quantumqp/portal/core/user"
	emailsvc "github.com/quantumqp/portal/services/email"
	"github.com/quantumqp/portal/services/filestore"
	"github.com/quantumqp/portal/services/realtime"
	"github.com/quantumqp/portal/storage/database/inmem"
	"github.com/quantumqp/portal/tests"
)

var (
	conf     *core.Config
	usrRepo  user.Repository
	postRepo post.Repository
	hub      *realtime.Hub

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

// setup builds a fresh server on an empty in-memory database.
func setup(t *testing.T, configure ...func(*core.Config)) *echoapi.Server {
	conf = core.NewTestConfig()
	conf.Server.UploadsDir = t.TempDir()
	for _, fn := range configure {
		fn(conf)
	}
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidator()
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ResetSentMessages()

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	postRepo = inmemdb.NewPostRepository(db)

	files, err := filestore.NewDiskStore(conf.Server.UploadsDir)
	if err != nil {
		t.Fatalf("NewDiskStore() failed: %v", err)
	}

	hub = realtime.NewHub(logger, conf.Realtime.QueueSize, conf.Realtime.SessionBuffer)
	stopHub := hub.Start()
	t.Cleanup(func() { _ = stopHub(context.Background()) })

	// set up services
	usrSvc := user.NewService(usrRepo, validate, translator)
	postSvc := post.NewService(post.ServiceDeps{
		Repo:       postRepo,
		Files:      files,
		Events:     hub,
		MailSvc:    emailsvc.NewConsoleServiceMock(conf, logger),
		Validate:   validate,
		Translator: translator,
	})
	searchSvc := search.NewService(inmemdb.NewSearchRepository(db), validate, translator)

	// set up server
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		PostSvc:    postSvc,
		SearchSvc:  searchSvc,
		Hub:        hub,
		Validate:   validate,
		Translator: translator,
	})
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name        string
	method      string
	path        string
	body        []byte
	contentType string
	token       string
	wantCode    int
	wantData    []byte
	extra       interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// multipartBody encodes fields and an optional file (name -> content) as multipart/form-data.
func multipartBody(t *testing.T, fields map[string]string, files map[string]string) ([]byte, string) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("multipartBody() failed: %v", err)
		}
	}
	for name, content := range files {
		fw, err := w.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("multipartBody() failed: %v", err)
		}
		if _, err = fw.Write([]byte(content)); err != nil {
			t.Fatalf("multipartBody() failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipartBody() failed: %v", err)
	}
	return buf.Bytes(), w.FormDataContentType()
}

func serve(app http.Handler, tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	if tt.contentType != "" {
		req.Header.Set("Content-Type", tt.contentType)
	}
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	claims := echoapi.GetUserClaims(usr, conf)
	token, err := echoapi.GenerateToken(claims, conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

// view returns p the way actor reads it over HTTP.
func view(actor user.User, p post.Post) post.Post {
	return post.ViewFor(actor, p)
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

package dig_container

import (
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/quantumqp/portal/apps/api/echo"
	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/post"
	"github.com/quantumqp/portal/core/search"
	"github.com/quantumqp/portal/core/user"
	emailsvc "github.com/quantumqp/portal/services/email"
	"github.com/quantumqp/portal/services/filestore"
	logsvc "github.com/quantumqp/portal/services/logger"
	"github.com/quantumqp/portal/services/realtime"
	"github.com/quantumqp/portal/storage/database"
	inmemdb "github.com/quantumqp/portal/storage/database/inmem"
	sqlxrepos "github.com/quantumqp/portal/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories groups the storage of the selected database engine.
// DB is nil for the in-memory engine.
type Repositories struct {
	dig.Out
	DB       *sqlx.DB
	Users    user.Repository
	Posts    post.Repository
	Searches search.Repository
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZapLogger("api", conf), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZapLogger("db", conf), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	if conf.Database.Engine == "inmem" {
		loggerParam.Logger.Warn("using the in-memory database: data is lost on restart")
		db := inmemdb.Open()
		return Repositories{
			Users:    inmemdb.NewUserRepository(db),
			Posts:    inmemdb.NewPostRepository(db),
			Searches: inmemdb.NewSearchRepository(db),
		}
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Repositories{
		DB:       db,
		Users:    sqlxrepos.NewUserRepository(db),
		Posts:    sqlxrepos.NewPostRepository(db),
		Searches: sqlxrepos.NewSearchRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newFileStore(conf *core.Config) (*filestore.DiskStore, error) {
	return filestore.NewDiskStore(conf.Server.UploadsDir)
}

func newHub(conf *core.Config, logger core.Logger) *realtime.Hub {
	return realtime.NewHub(logger, conf.Realtime.QueueSize, conf.Realtime.SessionBuffer)
}

// newRelay returns nil when no Redis URL is configured.
func newRelay(conf *core.Config, hub *realtime.Hub, logger core.Logger) (*realtime.RedisRelay, error) {
	if conf.RedisURL == "" {
		return nil, nil
	}
	client, err := realtime.NewRedisClient(conf.RedisURL)
	if err != nil {
		return nil, err
	}
	return realtime.NewRedisRelay(client, hub, logger, conf.Realtime.QueueSize), nil
}

func newEventSink(hub *realtime.Hub, relay *realtime.RedisRelay) post.EventSink {
	if relay == nil {
		return hub
	}
	return relay
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type postServiceParams struct {
	dig.In
	Repo       post.Repository
	Files      *filestore.DiskStore
	Events     post.EventSink
	MailSvc    core.EmailService
	Validate   *validator.Validate
	Translator ut.Translator
}

func newPostService(p postServiceParams) post.Service {
	return post.NewService(post.ServiceDeps{
		Repo:       p.Repo,
		Files:      p.Files,
		Events:     p.Events,
		MailSvc:    p.MailSvc,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

type serverParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	UserSvc    user.Service
	PostSvc    post.Service
	SearchSvc  search.Service
	Hub        *realtime.Hub
	Validate   *validator.Validate
	Translator ut.Translator
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		UserSvc:    p.UserSvc,
		PostSvc:    p.PostSvc,
		SearchSvc:  p.SearchSvc,
		Hub:        p.Hub,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newFileStore))
	must(c.Provide(newHub))
	must(c.Provide(newRelay))
	must(c.Provide(newEventSink))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(newPostService))
	must(c.Provide(search.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

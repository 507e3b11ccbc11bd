package main

import (
	"fmt"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/user"
	logsvc "github.com/quantumqp/portal/services/logger"
	"github.com/quantumqp/portal/storage/database"
	inmemdb "github.com/quantumqp/portal/storage/database/inmem"
	sqlxrepos "github.com/quantumqp/portal/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewZapLogger("admin", conf), conf)
	logger.Enable(!conf.Debug)
	defer logger.Sync()

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up DB
	var (
		db      *sqlx.DB
		usrRepo user.Repository
	)
	if conf.Database.Engine == "inmem" {
		usrRepo = inmemdb.NewUserRepository(inmemdb.Open())
	} else {
		var err error
		if db, err = database.Open(conf); err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer db.Close()
		if err = db.Ping(); err != nil {
			logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
		}
		usrRepo = sqlxrepos.NewUserRepository(db)
	}

	// start CLI
	cli := commandLine{
		db:      db,
		usrSvc:  user.NewService(usrRepo, validate, translator),
		usrRepo: usrRepo,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/dig"

	dig_container "github.com/quantumqp/portal/apps/api/di/dig"
	echoapi "github.com/quantumqp/portal/apps/api/echo"
	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/post"
	"github.com/quantumqp/portal/core/user"
	"github.com/quantumqp/portal/services/realtime"
)

type appParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	DBLogger   core.Logger `name:"dbLogger"`
	DB         *sqlx.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Hub        *realtime.Hub
	Relay      *realtime.RedisRelay
	Server     *echoapi.Server
}

func main() {
	c := dig_container.New()
	must(c.Invoke(run))
}

func run(p appParams) {
	conf, logger, server := p.Conf, p.Logger, p.Server

	// =========================================================================
	// Initialize App

	if err := conf.Check(); err != nil {
		log.Fatal(err)
	}
	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

	core.InitValidators(p.Validate, p.Translator)
	user.InitValidators(p.Validate, p.Translator)
	post.InitValidators(p.Validate, p.Translator)

	core.ParseEmailTemplates(conf, logger)

	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.Publish("active_users", expvar.Func(func() interface{} { return p.Hub.ActiveUsers() }))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Realtime Service

	stopHub := p.Hub.Start()
	stopRelay := func(context.Context) error { return nil }
	if p.Relay != nil {
		var err error
		if stopRelay, err = p.Relay.Start(context.Background()); err != nil {
			logger.Fatal(fmt.Sprintf("starting redis relay: %v", err), err)
		}
	}

	// =========================================================================
	// Start API Service

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}

	// events still queued are delivered before viewers are disconnected
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	if err := stopRelay(ctx); err != nil {
		logger.Error(fmt.Sprintf("stopping redis relay: %v", err), err)
	}
	if err := stopHub(ctx); err != nil {
		logger.Error(fmt.Sprintf("stopping realtime hub: %v", err), err)
	}

	if p.DB != nil { // nil with the in-memory engine
		if err := p.DB.Close(); err != nil {
			p.DBLogger.Error(fmt.Sprintf("failed to close database: %v", err), err)
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

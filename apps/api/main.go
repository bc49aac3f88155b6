package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"strings"

	echoapi "github.com/coursepalette/coursepalette/apps/api/echo"
	"github.com/coursepalette/coursepalette/apps/shared"
	"github.com/coursepalette/coursepalette/core"
	"github.com/coursepalette/coursepalette/core/access"
	"github.com/coursepalette/coursepalette/core/session"
	"github.com/coursepalette/coursepalette/core/user"
)

// TODO:
// - CSRF protection of the cookie authenticated endpoints
// - rate limit the login & password reset endpoints
func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := shared.NewLogger("API", conf)
	defer logger.Close()

	// set up storage
	ctx := context.Background()
	store, err := shared.OpenStorage(ctx, conf, true /* migrate */)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	defer func() {
		if err = store.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing storage: %v", err), err)
		}
	}()

	// set up route table
	routes, err := access.LoadTableFile(conf.RoutesFile)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading route table: %v", err), err)
	}
	if problems := routes.Check(); len(problems) > 0 {
		logger.Fatal("invalid route table:\n  " + strings.Join(problems, "\n  "))
	}

	// set up services
	mailSvc := shared.NewEmailService(conf, logger)
	usrSvc := user.NewServiceFromConfig(conf, store.Users, mailSvc)
	signer := session.NewSigner(conf)
	sessions := session.NewProvider(signer, usrSvc, logger, session.OptionsFromConfig(conf.Session))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := shared.NewValidator()

	core.ParseEmailTemplates(logger, false)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("storage").Set(conf.Storage)
	expvar.NewInt("routes").Set(int64(len(routes.Routes)))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.Deps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		Signer:     signer,
		Sessions:   sessions,
		Routes:     routes,
		Validate:   validate,
		Translator: translator,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

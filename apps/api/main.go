package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/zenabi/tuzo/apps/api/echo"
	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/badge"
	"github.com/zenabi/tuzo/core/catalog"
	"github.com/zenabi/tuzo/core/chat"
	"github.com/zenabi/tuzo/core/ledger"
	"github.com/zenabi/tuzo/core/submission"
	"github.com/zenabi/tuzo/core/user"
	emailsvc "github.com/zenabi/tuzo/services/email"
	logsvc "github.com/zenabi/tuzo/services/logger"
	"github.com/zenabi/tuzo/storage/database"
	sqlxrepos "github.com/zenabi/tuzo/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("failed to close DB", err)
		}
	}()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	catRepo := sqlxrepos.NewCatalogRepository(db)
	subRepo := sqlxrepos.NewSubmissionRepository(db)
	txnRepo := sqlxrepos.NewTransactionRepository(db)
	chatRepo := sqlxrepos.NewChatRepository(db)

	usrSvc := user.NewService(usrRepo)
	catSvc := catalog.NewService(catRepo)
	subSvc := submission.NewService(subRepo, catRepo, usrRepo, mailSvc, conf)
	ledgerSvc := ledger.NewService(txnRepo, usrRepo, mailSvc, conf)
	badgeSvc := badge.NewService(subRepo, txnRepo, usrRepo)
	hub := chat.NewHub(chatRepo, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator, conf)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddr, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		UserSvc:       usrSvc,
		CatalogSvc:    catSvc,
		SubmissionSvc: subSvc,
		LedgerSvc:     ledgerSvc,
		BadgeSvc:      badgeSvc,
		ChatHub:       hub,
		Validate:      validate,
		Translator:    translator,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// Package shared wires the dependencies both app binaries run on.
package shared

import (
	"context"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/coursepalette/coursepalette/core"
	"github.com/coursepalette/coursepalette/core/user"
	emailsvc "github.com/coursepalette/coursepalette/services/email"
	logsvc "github.com/coursepalette/coursepalette/services/logger"
	"github.com/coursepalette/coursepalette/storage/database"
	inmemdb "github.com/coursepalette/coursepalette/storage/database/inmem"
	sqlxrepos "github.com/coursepalette/coursepalette/storage/database/sqlx"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// NewLogger returns a rollbar logger writing its lines to stdout under prefix.
func NewLogger(prefix string, conf *core.Config) *logsvc.RollbarLogger {
	return logsvc.NewRollbarLogger(
		log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
}

// NewValidator returns a validator with every app validator registered, and its translator.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// NewEmailService prints emails in DEV mode and sends them through sendgrid otherwise.
func NewEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(log.New(os.Stdout, "EMAIL : ", 0), logger, conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
}

// Storage is the user store selected by conf.Storage. DB is nil for in-memory storage.
type Storage struct {
	Users user.Repository
	DB    *sqlx.DB
}

func (s Storage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStorage opens the configured storage. Postgres databases are created if missing,
// and migrated up when migrate is set.
func OpenStorage(ctx context.Context, conf *core.Config, migrate bool) (Storage, error) {
	switch conf.Storage {
	case StorageMemory, "":
		return Storage{Users: inmemdb.NewUserRepository(inmemdb.Open())}, nil
	case StoragePostgres:
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return Storage{}, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(ctx, conf)
		if err != nil {
			return Storage{}, err
		}
		if migrate {
			if err = database.Migrate(db, "up"); err != nil {
				_ = db.Close()
				return Storage{}, errors.Wrap(err, "migrating database")
			}
		}
		return Storage{Users: sqlxrepos.NewUserRepository(db), DB: db}, nil
	default:
		return Storage{}, errors.Errorf("unknown storage %q", conf.Storage)
	}
}

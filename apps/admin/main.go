package main

import (
	"context"
	"fmt"
	"os"

	"github.com/coursepalette/coursepalette/apps/shared"
	"github.com/coursepalette/coursepalette/core"
	"github.com/coursepalette/coursepalette/core/user"
)

func main() {
	conf := core.NewConfig()
	logger := shared.NewLogger("ADMIN", conf)

	store, err := shared.OpenStorage(context.Background(), conf, false /* migrate */)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}

	core.ParseEmailTemplates(logger, false)

	cli := commandLine{
		conf:   conf,
		usrSvc: user.NewServiceFromConfig(conf, store.Users, shared.NewEmailService(conf, logger)),
		db:     store.DB,
		out:    os.Stdout,
	}
	err = cli.run(os.Args)
	_ = store.Close()
	logger.Close()
	if err != nil {
		if err != errHelp {
			_, _ = fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

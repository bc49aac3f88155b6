// Package appfs embeds the static assets shipped with the binaries.
package appfs

import "embed"

//go:embed migrations all:templates routes.yaml common-passwords.txt
var FS embed.FS

const (
	MigrationsDir       = "migrations"
	RoutesFile          = "routes.yaml"
	CommonPasswordsFile = "common-passwords.txt"
)

package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coursepalette/coursepalette/core"
)

func TestDSN(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Database = core.DatabaseConfig{
		Engine:        "postgres",
		Host:          "db",
		Port:          "5432",
		User:          "app",
		Password:      "p@ss word",
		AdminUser:     "postgres",
		AdminPassword: "root",
	}

	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/coursepalette?sslmode=require&timezone=utc", DSN("coursepalette", false, conf))
	assert.Equal(t, "postgres://postgres:root@db:5432/postgres?sslmode=require&timezone=utc", DSN("postgres", true, conf))

	conf.Database.AdminUser = ""
	conf.Database.DisableTLS = true
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/postgres?sslmode=disable&timezone=utc", DSN("postgres", true, conf))
}

// Command migrate applies the database migrations and seeds the bootstrap admin.
package main

import (
	"context"

	"github.com/morf1ng/105site/config"
	"github.com/morf1ng/105site/dao/migrate"
	"github.com/morf1ng/105site/dao/query"
	"github.com/morf1ng/105site/logutils"
)

func main() {
	cfg := config.GetConfig()
	logutils.Setup(cfg.Log.Level, cfg.Log.Format)

	if err := query.InitDB(cfg); err != nil {
		logutils.Log.Fatalf("connect to postgres: %v", err)
	}
	if err := migrate.Run(query.DB); err != nil {
		logutils.Log.Fatal(err)
	}
	err := migrate.Seed(context.Background(), query.DB, migrate.Bootstrap{
		Email:    cfg.Bootstrap.AdminEmail,
		Password: cfg.Bootstrap.AdminPassword,
		Fullname: cfg.Bootstrap.AdminFullname,
	})
	if err != nil {
		logutils.Log.Fatalf("seed: %v", err)
	}
	logutils.Log.Info("migration finished")
}

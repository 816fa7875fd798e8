package main

import (
	"context"
	"time"

	"github.com/morf1ng/105site/cache"
	"github.com/morf1ng/105site/config"
	"github.com/morf1ng/105site/dao/migrate"
	"github.com/morf1ng/105site/dao/query"
	"github.com/morf1ng/105site/logutils"
	"github.com/morf1ng/105site/service"
	"github.com/morf1ng/105site/storage"
	"github.com/morf1ng/105site/util"

	"github.com/gin-gonic/gin"
)

const (
	serviceName = "105site-api"
	version     = "1.0.0"
)

func main() {
	cfg := config.GetConfig()
	logutils.Setup(cfg.Log.Level, cfg.Log.Format)
	gin.SetMode(cfg.Server.Mode)

	if cfg.Auth.AccessTokenSecret == "" {
		logutils.Log.Fatal("auth.accessTokenSecret (SECRET_KEY) is not set")
	}

	if err := query.InitDB(cfg); err != nil {
		logutils.Log.Fatal("init db: ", err)
	}
	db := query.DB
	if err := migrate.Run(db); err != nil {
		logutils.Log.Fatal("migrate: ", err)
	}
	err := migrate.Seed(context.Background(), db, migrate.Bootstrap{
		Email:    cfg.Bootstrap.AdminEmail,
		Password: cfg.Bootstrap.AdminPassword,
		Fullname: cfg.Bootstrap.AdminFullname,
	})
	if err != nil {
		logutils.Log.Fatal("seed: ", err)
	}

	uploads, err := storage.NewUploads(cfg.Uploads.Dir)
	if err != nil {
		logutils.Log.Fatal("init uploads: ", err)
	}
	if cfg.Uploads.SweepCron != "" {
		sweeper := storage.NewSweeper(uploads, db, time.Duration(cfg.Uploads.SweepGraceHour)*time.Hour)
		cr, err := sweeper.Start(cfg.Uploads.SweepCron)
		if err != nil {
			logutils.Log.Fatal("start upload sweeper: ", err)
		}
		defer cr.Stop()
	}

	r := service.NewRouter(service.Deps{
		DB:          db,
		Tokens:      util.NewTokenManager(util.NewTokenConf(cfg)),
		Uploads:     uploads,
		Cache:       cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, time.Duration(cfg.Redis.TTLSeconds)*time.Second),
		Config:      cfg,
		ServiceName: serviceName,
		Version:     version,
	})
	logutils.Log.Info("listening on ", cfg.Server.Addr)
	if err := r.Run(cfg.Server.Addr); err != nil {
		logutils.Log.Fatal(err)
	}
}

// Command titanhfe runs the hash field expiration engine as a standalone
// RESP server: one TCP port muxed between the wire protocol and the
// status/metrics endpoint, backed by an in-memory keyspace and an
// append-log persistence sink.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	titan "github.com/distributedio/titanhfe"
	"github.com/distributedio/titanhfe/command"
	"github.com/distributedio/titanhfe/conf"
	titancontext "github.com/distributedio/titanhfe/context"
	"github.com/distributedio/titanhfe/db"
	"go.uber.org/zap"
)

func main() {
	confPath := flag.String("conf", "", "path to a toml config file, falls back to built-in defaults")
	flag.Parse()

	cfg, err := conf.LoadFile(*confPath)
	if err != nil {
		panic(err)
	}

	logger, err := titan.InitLogger(&cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	sink, err := db.OpenAppLog(cfg.AppLog.Path)
	if err != nil {
		logger.Fatal("open applog failed", zap.String("path", cfg.AppLog.Path), zap.Error(err))
	}
	defer sink.Close()

	database := db.NewDB(0, &cfg.Hash, sink)

	scheduler := db.NewScheduler(database)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("start active expire scheduler failed", zap.Error(err))
	}
	defer scheduler.Stop()

	exec := command.NewExecutor(database)
	servCtx := &titancontext.ServerContext{DB: database}
	srv := titan.NewServer(&cfg.Server, exec, servCtx)

	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe(cfg.Server.Listen)
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigc:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		if err := srv.Stop(); err != nil {
			logger.Error("server stop failed", zap.Error(err))
		}
	case err := <-done:
		if err != nil {
			logger.Error("server exited", zap.Error(err))
		}
	}
}

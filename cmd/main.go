package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/transcript-workbench/internal/client"
	"github.com/airenas/transcript-workbench/internal/db"
	"github.com/airenas/transcript-workbench/internal/handlers"
	"github.com/airenas/transcript-workbench/internal/service"
	"github.com/airenas/transcript-workbench/internal/session"
	"github.com/labstack/gommon/color"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	apiClient, err := client.NewClient(cfg.GetString("api.url"), cfg.GetDuration("api.timeout"),
		cfg.GetDuration("api.longTimeout"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init API client")
	}

	hList, err := handlers.NewListHandler()
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init list handler")
	}
	hList.Add(handlers.NewPlaceholderFilter())
	hList.Add(handlers.NewCleaner())

	ttl := cfg.GetDuration("session.ttl")
	var store session.Store
	if redisURL := cfg.GetString("redis.url"); redisURL != "" {
		rStore, err := db.NewRedisDataManager(redisURL, cfg.GetString("redis.key"), ttl)
		if err != nil {
			goapp.Log.Fatal().Err(err).Msg("can't init redis")
		}
		defer rStore.Close()
		store = rStore
	} else {
		goapp.Log.Warn().Msg("no redis.url, sessions kept in memory")
		store = db.NewMemoryDataManager()
	}

	sCfg := session.Config{
		PollInterval:   cfg.GetDuration("poll.interval"),
		SaveFeedback:   cfg.GetDuration("save.feedback"),
		MaxUploadBytes: cfg.GetInt64("upload.maxMB") * 1024 * 1024,
		Cleaner:        hList,
	}
	manager, err := session.NewManager(ctx, apiClient, store, sCfg, ttl)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init session manager")
	}
	defer manager.Close()
	cleanerDone := manager.StartCleaner(ctx, time.Minute)

	data := &service.Data{}
	data.Ctx = ctx
	data.Port = cfg.GetInt("port")
	data.Manager = manager
	if mb := cfg.GetInt("upload.maxMB"); mb > 0 {
		data.BodyLimit = strconv.Itoa(mb+1) + "M"
	}

	doneCh, err := service.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}

	/////////////////////// Waiting for terminate
	waitCh := make(chan os.Signal, 2)
	signal.Notify(waitCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-waitCh:
		goapp.Log.Info().Msg("Got exit signal")
	case <-doneCh:
		goapp.Log.Info().Msg("Service exit")
	}
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}
	<-cleanerDone
}

var (
	version = "DEV"
)

func printBanner() {
	banner :=
		`
    TRANSCRIPT WORKBENCH v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/transcript-workbench"))
}

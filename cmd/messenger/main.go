package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/pr-messenger/internal/app"
	"github.com/npezzotti/pr-messenger/internal/call"
	"github.com/npezzotti/pr-messenger/internal/config"
	"github.com/npezzotti/pr-messenger/internal/stats"
	"github.com/npezzotti/pr-messenger/internal/store"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	storePath    string
	storeBackend string
	pollInterval time.Duration
	debugAddr    string
	stunServers  stringSliceFlag
)

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "rooms.json"
	}
	return filepath.Join(home, ".pr-messenger", "rooms.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Optional .env in the working directory; flags still win.
	godotenv.Load()

	flag.StringVar(&storePath, "store", envOr("MESSENGER_STORE", defaultStorePath()), "room store location")
	flag.StringVar(&storeBackend, "store-backend", envOr("MESSENGER_STORE_BACKEND", config.BackendFile), "room store backend (file or sqlite)")
	flag.DurationVar(&pollInterval, "poll-interval", time.Second, "sync poll interval")
	flag.StringVar(&debugAddr, "debug-addr", os.Getenv("MESSENGER_DEBUG_ADDR"), "address for the expvar debug listener (disabled when empty)")
	flag.Var(&stunServers, "stun-server", "comma-separated STUN server URLs")
	flag.Parse()

	logger := log.New(os.Stderr, "[messenger] ", log.LstdFlags)

	cfg, err := config.NewConfig(storePath, storeBackend, pollInterval, debugAddr, stunServers)
	if err != nil {
		logger.Fatal("config:", err)
	}

	roomStore, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal("store:", err)
	}

	var mux *http.ServeMux
	if cfg.DebugAddr != "" {
		mux = http.NewServeMux()
	}
	statsUpdater := stats.NewStatsUpdater(mux)
	if mux != nil {
		go func() {
			if err := http.ListenAndServe(cfg.DebugAddr, mux); err != nil {
				logger.Println("debug listener:", err)
			}
		}()
	}

	renderer := newConsoleRenderer(os.Stdout)
	messenger := app.NewMessenger(cfg, roomStore, call.NewSyntheticDevices(), statsUpdater, renderer, logger)
	messenger.Recorder.OnTick = renderer.ShowRecordingTime
	messenger.Calls.OnElapsed = renderer.ShowCallTime

	messenger.Start()
	defer func() {
		messenger.Close()
		statsUpdater.Stop()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		runConsole(messenger, renderer, os.Stdin)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		logger.Println("received shutdown signal")
	case <-done:
	}
}

func newStore(cfg *config.Config, logger *log.Logger) (store.RoomStore, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		return store.NewSQLiteStore(cfg.StorePath, logger)
	default:
		fs, err := store.NewFileStore(cfg.StorePath, logger)
		if err != nil {
			return nil, err
		}
		if err := fs.Watch(); err != nil {
			// Change events are an optimization; the poll still
			// catches external writes.
			logger.Println("store watch unavailable:", err)
		}
		return fs, nil
	}
}

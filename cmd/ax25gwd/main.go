// Command ax25gwd is a reference AX.25/APRS gateway daemon: it loads a
// YAML configuration describing one or more KISS interfaces, runs the
// CSMA-scheduled AX.25 layer and APRS application layer over each,
// optionally digipeats UI traffic back out the interface it arrived on,
// and serves a small JSON status page.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/handlers"
	"github.com/spf13/pflag"

	"github.com/madpsy/ax25aprs/config"
	"github.com/madpsy/ax25aprs/gateway"
	"github.com/madpsy/ax25aprs/internal/logging"
)

func main() {
	fs := pflag.NewFlagSet("ax25gwd", pflag.ExitOnError)
	flags := config.RegisterFlags(fs)
	help := fs.BoolP("help", "h", false, "Display help text.")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "ax25gwd - AX.25/APRS gateway daemon.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: ax25gwd [options]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if *help {
		fs.Usage()
		return
	}

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ax25gwd: %v\n", err)
		os.Exit(1)
	}
	cfg = config.Apply(cfg, fs, flags)

	log := logging.Default("ax25gwd")
	log.SetLevel(cfg.LogLevel)

	station, err := gateway.New(cfg, log)
	if err != nil {
		log.Errorf("startup: %v", err)
		os.Exit(1)
	}
	defer station.Close()

	if flags.ConfigFile != "" {
		go watchConfig(flags.ConfigFile, station, log)
	}

	mux := http.NewServeMux()
	mux.Handle("/status", station.StatusHandler())

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handlers.CombinedLoggingHandler(os.Stdout, mux),
	}
	go func() {
		log.Infof("HTTP status endpoint listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("HTTP server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Infof("shutting down")
	srv.Close()
}

// watchConfig hot-reloads the digipeater alias set whenever the
// configuration file changes on disk, the way the teacher's sender.go
// watches an inbox directory with the same fsnotify library.
func watchConfig(path string, station *gateway.Station, log *logging.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warnf("config watcher: %v", err)
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		log.Warnf("config watcher: watch %s: %v", dir, err)
		return
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloadAliases(path, station, log)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher error: %v", err)
		}
	}
}

func reloadAliases(path string, station *gateway.Station, log *logging.Logger) {
	cfg, err := config.Load(path)
	if err != nil {
		log.Warnf("config reload: %v", err)
		return
	}
	aliases := cfg.Digipeater.AliasCallsigns()
	station.SetDigipeaterAliases(aliases)
	names := make([]string, len(aliases))
	for i, c := range aliases {
		names[i] = c.String()
	}
	log.Infof("reloaded digipeater aliases: %s", strings.Join(names, ", "))
}

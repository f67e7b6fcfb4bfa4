package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Leantar/pathwatch/modules/config"
	"github.com/Leantar/pathwatch/monitor"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	configPath = flag.String("config", "config.yaml", "Specify a path to load the config from")
	debug      = flag.Bool("debug", false, "Log queued and dropped events")
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Parse command line arguments
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var conf monitor.Config
	err := config.FromYamlFile(*configPath, &conf)
	if err != nil {
		log.Fatal().Caller().Err(err).Msg("failed to read config")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	m := monitor.New(conf, log.Logger)

	go func() {
		err := m.Run()
		if err != nil {
			log.Fatal().Caller().Err(err).Msg("failed to run monitor")
		}
	}()

	<-quit

	err = m.Stop()
	if err != nil {
		log.Fatal().Caller().Err(err).Msg("failed to stop monitor")
	}
}

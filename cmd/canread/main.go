package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/farouk15160/canread/internal/config"
	"github.com/farouk15160/canread/internal/poller"
	"github.com/farouk15160/canread/internal/sink"
	"github.com/farouk15160/canread/internal/source"
	"github.com/farouk15160/canread/internal/web"
)

func main() {
	flag.Parse()

	// 1) Defaults, config file, environment, then command-line flags
	cfg, err := config.Load(*config.ConfigFileFlag)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	config.ApplyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Error in config: %v", err)
	}
	printConfig(cfg)

	// 2) Sinks
	sinks := sink.Multi{}
	var closers []func() error
	if cfg.Debug || (cfg.MQTT.Broker == "" && cfg.HTTPListen == "" && cfg.CaptureFile == "") {
		sinks = append(sinks, sink.Log{})
	}
	if cfg.MQTT.Broker != "" {
		mqttClient := sink.NewMQTT(cfg.MQTT, cfg.InterfaceName, cfg.Debug)
		sinks = append(sinks, mqttClient)
		closers = append(closers, mqttClient.Close)
	}
	if cfg.CaptureFile != "" {
		capture, err := sink.OpenCapture(cfg.CaptureFile)
		if err != nil {
			log.Fatalf("Error opening capture file: %v", err)
		}
		sinks = append(sinks, capture)
		closers = append(closers, capture.Close)
	}
	var hub *sink.Hub
	if cfg.HTTPListen != "" {
		hub = sink.NewHub()
		sinks = append(sinks, hub)
		closers = append(closers, hub.Close)
	}

	// 3) Frame source, owned by the poller from here on
	src, err := source.Open(cfg.InterfaceName, cfg.Source)
	if err != nil {
		closeAll(closers)
		log.Fatalf("Failed to open frame source: %v", err)
	}
	p := poller.New(src, sinks, poller.Options{
		Period: time.Duration(cfg.PollPeriodMs) * time.Millisecond,
		Debug:  cfg.Debug,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		waitForSignal()
		log.Println("Shutting down gracefully...")
		cancel()
	}()

	// 4) Optional status/websocket server
	var srv *web.Server
	if cfg.HTTPListen != "" {
		srv = web.NewServer(cfg.HTTPListen, p, hub)
		srv.App = config.AppName
		srv.Interface = cfg.InterfaceName
		srv.Period = p.Period()
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				log.Printf("Web: server failed: %v", err)
			}
		}()
	}

	// 5) Poll until a signal or a fatal source error
	runErr := p.Run(ctx)

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Web: shutdown: %v", err)
		}
		done()
	}
	closeAll(closers)

	if runErr != nil {
		log.Printf("Exiting: %v", runErr)
		os.Exit(1)
	}
	log.Println("Reader stopped.")
}

func printConfig(cfg *config.Config) {
	fmt.Printf("--- %s ---\n", config.AppName)
	fmt.Println("  CAN Interface:", cfg.InterfaceName)
	fmt.Println("  Source Mode:  ", cfg.Source.Mode)
	fmt.Printf("  Poll Period:   %dms\n", cfg.PollPeriodMs)
	if cfg.MQTT.Broker != "" {
		fmt.Println("  MQTT Topic:   ", cfg.MQTT.Topic)
	}
	if cfg.HTTPListen != "" {
		fmt.Println("  HTTP Listen:  ", cfg.HTTPListen)
	}
	if cfg.CaptureFile != "" {
		fmt.Println("  Capture File: ", cfg.CaptureFile)
	}
	fmt.Printf("  Debug Mode:    %t\n", cfg.Debug)
	fmt.Println("-------------------------")
}

func closeAll(closers []func() error) {
	for _, c := range closers {
		if err := c(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}
}

// waitForSignal blocks until an OS signal is received for termination.
func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}

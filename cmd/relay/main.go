package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/campusgrid/campusgrid/pkg/log"
	"github.com/campusgrid/campusgrid/pkg/relay"
	"github.com/campusgrid/campusgrid/pkg/version"
)

func main() {
	port := flag.Int("port", 8888, "Port to listen on")
	tlsCert := flag.String("tls-cert", "", "Path to TLS certificate")
	tlsKey := flag.String("tls-key", "", "Path to TLS key")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting relay server version %s", version.Get())
	ctx := context.Background()

	var tlsConfig *relay.TLSConfig
	if *tlsCert != "" && *tlsKey != "" {
		tlsConfig = &relay.TLSConfig{
			CertFile: *tlsCert,
			KeyFile:  *tlsKey,
		}
	}

	server := relay.NewServer(relay.NewServerOptions{
		Port: *port,
		TLS:  tlsConfig,
	})
	if err := server.Start(ctx); err != nil {
		panic(fmt.Sprintf("Failed to start relay server: %v", err))
	}
}

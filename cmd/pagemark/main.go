// Pagemark annotation editor server
// Hosts editor sessions over HTTP in front of a document processing service
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pagemark/pagemark/internal/docservice"
	"github.com/pagemark/pagemark/internal/logger"
	"github.com/pagemark/pagemark/internal/metrics"
	"github.com/pagemark/pagemark/internal/server"
)

var (
	addr          = flag.String("addr", getenv("PAGEMARK_ADDR", ":8080"), "HTTP listen address")
	docServiceURL = flag.String("docservice", getenv("PAGEMARK_DOCSERVICE_URL", "http://localhost:9090"), "Document service base URL")
	dpi           = flag.Float64("dpi", 150, "Default render resolution")
	logLevel      = flag.String("log-level", getenv("PAGEMARK_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	logPretty     = flag.Bool("log-pretty", false, "Pretty-print logs for development")
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	flag.Parse()

	log := logger.New(logger.Config{
		Level:  *logLevel,
		Pretty: *logPretty,
	})

	m := metrics.New(prometheus.DefaultRegisterer)
	docs := docservice.NewClient(*docServiceURL, log)
	srv := server.NewServer(docs, m, log, *dpi)

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.LogServerShutdown(log)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown did not complete cleanly")
		}
	}()

	logger.LogServerStart(log, *addr, *docServiceURL)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}

/*
This command provides an executable version of the origin proxy: a
reverse proxy that load balances, circuit breaks and admission-filters
requests across a fixed pool of origin servers.

For the list of command line options, run:

	originproxy -help
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/originproxy/originproxy/backend"
	"github.com/originproxy/originproxy/config"
	"github.com/originproxy/originproxy/loadbalancer"
	"github.com/originproxy/originproxy/logging"
	"github.com/originproxy/originproxy/metrics"
	pnet "github.com/originproxy/originproxy/net"
	"github.com/originproxy/originproxy/proxy"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	logging.Init(logging.Options{})

	reg, err := backend.NewRegistry(cfg.Backends)
	if err != nil {
		return err
	}

	lb, err := loadbalancer.New(cfg.Balancer.Strategy, reg)
	if err != nil {
		return err
	}

	m := metrics.NewPrometheus()

	server, err := proxy.New(cfg, reg, lb, m)
	if err != nil {
		return err
	}
	defer server.Close()

	mainSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: logging.NewHandler(server),
		ConnContext: func(ctx context.Context, c net.Conn) context.Context {
			return context.WithValue(ctx, pnet.LocalAddrContextKey, c.LocalAddr().String())
		},
	}
	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: server.MetricsHandler(),
	}

	errc := make(chan error, 2)
	go func() { errc <- listenAndServe(mainSrv, "request") }()
	go func() { errc <- listenAndServe(metricsSrv, "metrics") }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errc:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	var shutdownErr error
	if err := mainSrv.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("request listener shutdown: %w", err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("metrics listener shutdown: %w", err))
	}
	return shutdownErr
}

func listenAndServe(srv *http.Server, name string) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s listener: %w", name, err)
	}
	return nil
}

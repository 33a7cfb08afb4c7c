// Command oracle-simulator registers a fleet of oracle identities with the
// flightsurety chaincode and answers its flight status requests.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flightsurety/config"
	"flightsurety/oracle"

	"github.com/hyperledger/fabric/common/flogging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var logger = flogging.MustGetLogger("flightsurety.simulator")

func main() {
	if err := run(); err != nil {
		logger.Errorf("oracle simulator stopped: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := flogging.Global.ActivateSpec(cfg.Log.Spec); err != nil {
		return fmt.Errorf("activating log spec: %w", err)
	}
	if err := cfg.Oracle.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := oracle.NewMetrics(prometheus.DefaultRegisterer)
	srv := newMetricsServer(cfg.Oracle.MetricsAddress)
	go func() {
		logger.Infof("Serving metrics on %s", cfg.Oracle.MetricsAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warningf("metrics server shutdown: %v", err)
		}
	}()

	conn, err := oracle.DialGateway(cfg.Oracle.Gateway)
	if err != nil {
		return err
	}
	defer conn.Close()
	ledger := oracle.NewGatewayLedger(conn, cfg.Oracle.Gateway)
	defer ledger.Close()

	sim := oracle.New(ledger, oracle.OptionsFromConfig(cfg.Oracle, metrics))
	if err := sim.Register(ctx); err != nil {
		return fmt.Errorf("registering oracles: %w", err)
	}
	events, err := ledger.Events(ctx, sim.OracleName(0))
	if err != nil {
		return err
	}
	logger.Infof("Listening for requests from %s on %s", cfg.Oracle.Gateway.Chaincode, cfg.Oracle.Gateway.Channel)

	return waitResult(ctx, sim.Run(ctx, events))
}

// waitResult maps the end of Run to the process result: a signal is a clean stop, a
// closed event stream is not.
func waitResult(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		logger.Infof("Shutting down")
		return nil
	case err != nil:
		return err
	default:
		return errors.New("chaincode event stream closed")
	}
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

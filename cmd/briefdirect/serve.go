// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/lukasdietrich/briefdirect/internal/database"
	"github.com/lukasdietrich/briefdirect/internal/exchange"
	"github.com/lukasdietrich/briefdirect/internal/log"
	"github.com/lukasdietrich/briefdirect/internal/metrics"
	"github.com/lukasdietrich/briefdirect/internal/transport"
)

type serveMetricsCommand struct {
	Options    metrics.Options
	Registry   *prometheus.Registry
	Conn       database.Conn
	Transports *exchange.Transports
	Receiver   *exchange.Receiver
	Cleaner    *exchange.Cleaner
}

func (s *serveMetricsCommand) run(ctx context.Context, args []string) error {
	defer s.Conn.Close()

	var (
		address  string
		interval time.Duration
		ack      bool
	)

	flags := pflag.NewFlagSet("serve-metrics", pflag.ContinueOnError)
	flags.StringVar(&address, "address", s.Options.Address, "Listen address of the metrics endpoint")
	flags.DurationVar(&interval, "poll", 0, "Receive messages at this interval, 0 disables polling")
	flags.BoolVar(&ack, "ack", true, "Acknowledge polled messages after they are archived")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if address == "" {
		return errors.New("serve-metrics: metrics.address is empty")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry}))
	mux.HandleFunc("/health", s.serveHealth)

	srv := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.InfoContext(ctx).Str("address", address).Msg("serving metrics")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.FatalContext(ctx).Err(err).Msg("metrics server failed")
		}
	}()

	if interval > 0 {
		if _, err := s.Cleaner.Clean(ctx); err != nil {
			log.WarnContext(ctx).Err(err).Msg("could not clean the archive")
		}

		s.poll(ctx, interval, ack)
	} else {
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func (s *serveMetricsCommand) poll(ctx context.Context, interval time.Duration, ack bool) {
	opts := exchange.ReceiveOptions{
		Mode:        transport.ModePeek,
		Persist:     true,
		Acknowledge: ack,
	}

	ctx = log.WithOrigin(ctx, "poll")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		received, err := s.Receiver.Receive(ctx, opts)
		if err != nil {
			log.ErrorContext(ctx).
				Err(err).
				Bool("retryable", transport.IsRetryable(err)).
				Msg("poll failed")
		}

		log.InfoContext(ctx).Int("received", len(received)).Msg("poll finished")

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *serveMetricsCommand) serveHealth(w http.ResponseWriter, r *http.Request) {
	health := s.Transports.Receiver.Health(r.Context())

	w.Header().Set("Content-Type", "application/json")

	if health.Status == transport.Unhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	encoder := json.NewEncoder(w)
	if err := encoder.Encode(health); err != nil {
		log.ErrorContext(r.Context()).Err(err).Msg("could not write health")
	}
}

// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vechain/statecache/delegate"
	"github.com/vechain/statecache/metrics"
)

const shutdownTimeout = 5 * time.Second

// newStatsRouter routes the prometheus meters at /metrics and the read cache
// statistics of c at /stats/cache.
func newStatsRouter(c *delegate.Cache) http.Handler {
	router := mux.NewRouter()
	router.PathPrefix("/metrics").Handler(metrics.HTTPHandler())
	router.Path("/stats/cache").
		Methods(http.MethodGet).
		HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			if err := json.NewEncoder(w).Encode(c.ReadStats()); err != nil {
				logger.Debug("failed to write cache stats", "err", err)
			}
		})
	return handlers.CompressHandler(router)
}

// startMetricsServer serves the stats router of c on addr. It returns the base
// url and the func that shuts the server down, which reports any serve error.
func startMetricsServer(addr string, c *delegate.Cache) (string, func() error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen metrics addr [%v]", addr)
	}

	srv := &http.Server{
		Handler:           newStatsRouter(c),
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
	}
	var g errgroup.Group
	g.Go(func() error {
		if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve metrics")
		}
		return nil
	})

	shutdown := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return errors.Wrap(err, "shutdown metrics server")
		}
		return g.Wait()
	}
	return "http://" + listener.Addr().String(), shutdown, nil
}

// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/statecache/delegate"
	"github.com/vechain/statecache/log"
	"github.com/vechain/statecache/lvldb"
	"github.com/vechain/statecache/metrics"
	"github.com/vechain/statecache/oplog"
)

func initLogger(ctx *cli.Context) {
	fd := os.Stderr.Fd()
	useColor := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	log.SetDefault(log.NewTerminalHandler(os.Stderr, ctx.Int(verbosityFlag.Name), useColor))
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

func defaultDataDir() string {
	if home := homeDir(); home != "" {
		return filepath.Join(home, ".statecache")
	}
	return ""
}

// session is an opened database with the root delegate cache over it.
type session struct {
	db    *lvldb.LevelDB
	cache *delegate.Cache
	cfg   config

	// log records the writes of the command, committed to the journal
	log *oplog.Log

	closers []func()
}

// openSession opens the database and the root delegate cache over it, and
// starts the metrics server if enabled.
func openSession(ctx *cli.Context) (*session, error) {
	initLogger(ctx)

	cfg, err := loadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return nil, errors.New("data dir not specified")
	}

	s := &session{cfg: cfg, log: oplog.New()}
	if s.db, err = lvldb.New(dataDir, cfg.Store); err != nil {
		return nil, err
	}
	logger.Debug("database opened", "dir", dataDir)
	s.closers = append(s.closers, func() {
		logger.Debug("closing database...")
		if err := s.db.Close(); err != nil {
			logger.Warn("failed to close database", "err", err)
		}
	})

	if s.cache, err = delegate.New(s.db, cfg.Cache); err != nil {
		s.Close()
		return nil, err
	}
	s.cache.SetLog(s.log)

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
		url, shutdown, err := startMetricsServer(ctx.String(metricsAddrFlag.Name), s.cache)
		if err != nil {
			s.Close()
			return nil, err
		}
		logger.Info("metrics server started", "url", url)
		s.closers = append(s.closers, func() {
			logger.Info("stopping metrics server...")
			if err := shutdown(); err != nil {
				logger.Warn("metrics server", "err", err)
			}
		})
	}
	return s, nil
}

// commit flushes the cache to the database and journals the undo log of the command.
func (s *session) commit() error {
	if err := s.cache.Flush(); err != nil {
		return err
	}
	if err := pushJournal(s.db, s.log); err != nil {
		return errors.WithMessage(err, "journal")
	}
	return nil
}

// Close releases everything opened, in reverse order.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func requireArgs(ctx *cli.Context, n int) error {
	if ctx.NArg() != n {
		return errors.Errorf("%s: expected %d arguments, got %d", ctx.Command.Name, n, ctx.NArg())
	}
	return nil
}

func printDelegates(w io.Writer, ds []delegate.VoteDelegate) {
	if len(ds) == 0 {
		fmt.Fprintln(w, "no delegates")
		return
	}
	for i, d := range ds {
		fmt.Fprintf(w, "%3d  %-16v %d\n", i+1, d.RegID, d.Votes)
	}
}

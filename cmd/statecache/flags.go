// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/statecache/log"
)

var (
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory of the state database",
	}
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to the yaml config file",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: log.LegacyLevelInfo,
		Usage: "log verbosity (0-5)",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Value: "localhost:2112",
		Usage: "metrics service listening address",
	}
	topNFlag = cli.IntFlag{
		Name:  "n",
		Usage: "number of delegates, defaults to the configured max delegates",
	}
	heightFlag = cli.Uint64Flag{
		Name:  "height",
		Usage: "vote height the election is counted at, defaults to the last vote height",
	}
)

var commonFlags = []cli.Flag{
	dataDirFlag,
	configFlag,
	verbosityFlag,
	enableMetricsFlag,
	metricsAddrFlag,
}

func withCommonFlags(flags ...cli.Flag) []cli.Flag {
	return append(append([]cli.Flag(nil), commonFlags...), flags...)
}

// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"os"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/statecache/log"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "statecache")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fullVersion()
	app.Name = "statecache"
	app.Usage = "Inspect and edit the delegate vote cache of a state database"
	app.Copyright = "2024 VeChain Foundation <https://vechain.org/>"
	app.Commands = []cli.Command{
		{
			Name:   "top",
			Usage:  "print the most voted delegates",
			Flags:  withCommonFlags(topNFlag),
			Action: topAction,
		},
		{
			Name:      "votes",
			Usage:     "print the received votes of a delegate",
			ArgsUsage: "<reg-id>",
			Flags:     withCommonFlags(),
			Action:    votesAction,
		},
		{
			Name:      "set",
			Usage:     "set the received votes of a delegate",
			ArgsUsage: "<reg-id> <votes>",
			Flags:     withCommonFlags(),
			Action:    setAction,
		},
		{
			Name:      "import",
			Usage:     "set the received votes of delegates listed in a yaml file",
			ArgsUsage: "<file.yaml>",
			Flags:     withCommonFlags(),
			Action:    importAction,
		},
		{
			Name:   "active",
			Usage:  "print the active delegates",
			Flags:  withCommonFlags(),
			Action: activeAction,
		},
		{
			Name:   "elect",
			Usage:  "activate the most voted delegates",
			Flags:  withCommonFlags(topNFlag, heightFlag),
			Action: electAction,
		},
		{
			Name:   "revert",
			Usage:  "undo the last command that changed the cache",
			Flags:  withCommonFlags(),
			Action: revertAction,
		},
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

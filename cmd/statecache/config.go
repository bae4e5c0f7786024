// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vechain/statecache/delegate"
	"github.com/vechain/statecache/kvcache"
	"github.com/vechain/statecache/lvldb"
)

type config struct {
	Store lvldb.Options    `yaml:"store"`
	Cache delegate.Options `yaml:"cache"`
}

func defaultConfig() config {
	return config{
		Store: lvldb.Options{
			CacheSize:              128,
			OpenFilesCacheCapacity: 64,
		},
		Cache: delegate.Options{
			Options:      kvcache.Options{ReadCacheSize: 4096},
			MaxDelegates: delegate.DefaultMaxDelegates,
		},
	}
}

// loadConfig reads the config file over the defaults. An empty path returns the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return config{}, errors.Wrap(err, "open config")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return config{}, errors.Wrapf(err, "decode config %v", path)
	}
	return cfg, nil
}

// voteEntry is an item of the votes file consumed by the import command.
type voteEntry struct {
	ID    string `yaml:"id"`
	Votes uint64 `yaml:"votes"`
}

func readVotesFile(path string) ([]voteEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read votes file")
	}
	var entries []voteEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "decode votes file %v", path)
	}
	return entries, nil
}

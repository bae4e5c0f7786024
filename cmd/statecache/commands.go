// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/statecache/delegate"
	"github.com/vechain/statecache/metrics"
	"github.com/vechain/statecache/oplog"
)

func topN(ctx *cli.Context, cfg config) int {
	if n := ctx.Int(topNFlag.Name); n > 0 {
		return n
	}
	return cfg.Cache.MaxDelegates
}

func topAction(ctx *cli.Context) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	ds, err := s.cache.GetTopVoteDelegates(topN(ctx, s.cfg))
	if err != nil {
		return err
	}
	printDelegates(ctx.App.Writer, ds)
	return nil
}

func votesAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	id, err := delegate.ParseRegID(ctx.Args().Get(0))
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	votes, found, err := s.cache.GetDelegateVotes(id)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(ctx.App.Writer, "%v has no votes\n", id)
		return nil
	}
	fmt.Fprintf(ctx.App.Writer, "%v %d\n", id, votes)
	return nil
}

func setAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 2); err != nil {
		return err
	}
	id, err := delegate.ParseRegID(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	votes, err := strconv.ParseUint(ctx.Args().Get(1), 10, 64)
	if err != nil {
		return errors.Wrap(err, "invalid votes")
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.cache.SetDelegateVotes(id, votes); err != nil {
		return err
	}
	if err := s.commit(); err != nil {
		return err
	}
	logger.Info("votes set", "id", id, "votes", votes)
	return nil
}

func importAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1); err != nil {
		return err
	}
	entries, err := readVotesFile(ctx.Args().Get(0))
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	bar := pb.New(len(entries)).SetMaxWidth(90)
	bar.Output = ctx.App.Writer
	bar.Start()
	defer func() { bar.NotPrint = true }()

	for i, e := range entries {
		id, err := delegate.ParseRegID(e.ID)
		if err != nil {
			return errors.WithMessagef(err, "entry %d", i)
		}
		if err := s.cache.SetDelegateVotes(id, e.Votes); err != nil {
			return errors.WithMessagef(err, "entry %d", i)
		}
		bar.Increment()
	}
	bar.Finish()

	size := s.cache.Size()
	if err := s.commit(); err != nil {
		return err
	}
	logger.Info("votes imported", "entries", len(entries), "size", metrics.StorageSize(size))
	return nil
}

func activeAction(ctx *cli.Context) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	ds, err := s.cache.GetActiveDelegates()
	if err != nil {
		return err
	}
	h, err := s.cache.GetLastVoteHeight()
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "last vote height %d\n", h)
	printDelegates(ctx.App.Writer, ds)
	return nil
}

// electAction activates the top delegates. All writes go to a child cache,
// which is discarded if any of them fails. The height defaults to the last
// vote height.
func electAction(ctx *cli.Context) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var height uint32
	if ctx.IsSet(heightFlag.Name) {
		h := ctx.Uint64(heightFlag.Name)
		if h > math.MaxUint32 {
			return errors.Errorf("height %d out of range", h)
		}
		height = uint32(h)
	} else if height, err = s.cache.GetLastVoteHeight(); err != nil {
		return err
	}

	c := delegate.NewChild(s.cache)
	log := oplog.New()
	c.SetLog(log)

	top, err := c.GetTopVoteDelegates(topN(ctx, s.cfg))
	if err != nil {
		return err
	}
	if err := c.SetLastVoteHeight(height); err != nil {
		return err
	}
	pending := delegate.PendingDelegates{
		State:             delegate.PendingActivated,
		CountedVoteHeight: height,
		TopVoteDelegates:  top,
	}
	if err := c.SetPendingDelegates(pending); err != nil {
		return err
	}
	if err := c.SetActiveDelegates(top); err != nil {
		return err
	}

	if err := c.Flush(); err != nil {
		return err
	}
	s.log.Extend(log)
	if err := s.commit(); err != nil {
		return err
	}
	logger.Info("delegates elected", "height", height, "count", len(top))
	printDelegates(ctx.App.Writer, top)
	return nil
}

// revertAction undoes the newest journaled command.
func revertAction(ctx *cli.Context) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	seq, log, found, err := lastJournal(s.db)
	if err != nil {
		return err
	}
	if !found {
		return errors.New("nothing to revert")
	}
	n := log.Len()
	if err := s.cache.Undo(log); err != nil {
		return err
	}
	if err := s.cache.Flush(); err != nil {
		return err
	}
	if err := dropJournal(s.db, seq); err != nil {
		return err
	}
	logger.Info("command reverted", "seq", seq, "entries", n)
	fmt.Fprintf(ctx.App.Writer, "reverted #%d\n", seq)
	return nil
}

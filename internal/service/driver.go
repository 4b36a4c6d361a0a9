package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Dorschm/stellar-sub001/internal/repository"
)

// Driver polls active games and invokes the tick processor on each at its
// configured rate. A short-lived cache lock keeps multiple driver instances
// from piling ticks onto the same game; the processor itself stays safe
// without it.
type Driver struct {
	ticker *TickService
	games  repository.GameRepository
	cache  repository.LiveCache
	log    zerolog.Logger

	poll time.Duration
	stop chan struct{}
	done chan struct{}
}

// NewDriver creates a driver polling at the given interval. cache may be nil
// for single-instance deployments.
func NewDriver(ticker *TickService, games repository.GameRepository, cache repository.LiveCache, poll time.Duration, log zerolog.Logger) *Driver {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &Driver{
		ticker: ticker,
		games:  games,
		cache:  cache,
		log:    log,
		poll:   poll,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the polling loop.
func (d *Driver) Start() {
	go d.run()
}

// Stop halts the loop and waits for the in-flight pass to finish.
func (d *Driver) Stop() {
	close(d.stop)
	<-d.done
}

func (d *Driver) run() {
	defer close(d.done)
	t := time.NewTicker(d.poll)
	defer t.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-t.C:
			d.pass()
		}
	}
}

func (d *Driver) pass() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	games, err := d.games.ListActive(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("list active games failed")
		return
	}
	for i := range games {
		g := &games[i]
		if d.cache != nil {
			ttl := time.Duration(g.TickRateMs) * time.Millisecond
			ok, err := d.cache.TryTickLock(ctx, g.ID, ttl)
			if err != nil {
				d.log.Warn().Err(err).Str("game_id", g.ID).Msg("tick lock failed")
			}
			if !ok {
				continue
			}
		}
		if _, err := d.ticker.ProcessTick(ctx, g.ID); err != nil {
			d.log.Error().Err(err).Str("game_id", g.ID).Msg("tick failed")
		}
	}
}

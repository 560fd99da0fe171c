//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

// Package archive sweeps inactive planning sessions into the archived state.
// The Sweeper owns no schedule: callers invoke Sweep from whatever cron or
// loop fits their deployment.
package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/planloop/planloop-go/log"
	"github.com/planloop/planloop-go/planning"
)

// defaultPoolSize bounds how many sessions are archived concurrently.
const defaultPoolSize = 8

// Coordinator is the slice of the planning coordinator the sweeper drives.
type Coordinator interface {
	// InactiveSessions lists candidate session IDs last updated before
	// cutoff.
	InactiveSessions(ctx context.Context, cutoff time.Time) ([]string, error)
	// ArchiveSession archives one session if it is still inactive at
	// cutoff and reports whether this call archived it.
	ArchiveSession(ctx context.Context, sessionID string, cutoff time.Time) (bool, error)
}

// options is the configuration for the sweeper.
type options struct {
	poolSize int
	clock    planning.Clock
}

// Option is the option for the sweeper.
type Option func(*options)

var defaultOptions = options{
	poolSize: defaultPoolSize,
}

// WithPoolSize sets how many archive jobs run concurrently.
func WithPoolSize(size int) Option {
	return func(opts *options) {
		if size > 0 {
			opts.poolSize = size
		}
	}
}

// WithClock sets the time source used to compute sweep cutoffs.
func WithClock(clock planning.Clock) Option {
	return func(opts *options) {
		if clock != nil {
			opts.clock = clock
		}
	}
}

// archiveParam carries one archive job through the worker pool.
type archiveParam struct {
	ctx       context.Context
	sessionID string
	cutoff    time.Time
	sweeper   *Sweeper
	archived  *atomic.Int64
	wg        *sync.WaitGroup
}

func (p *archiveParam) reset() {
	p.ctx = nil
	p.sessionID = ""
	p.cutoff = time.Time{}
	p.sweeper = nil
	p.archived = nil
	p.wg = nil
}

var archiveParamPool = &sync.Pool{
	New: func() any { return new(archiveParam) },
}

// Sweeper archives inactive sessions through a bounded worker pool. Listing
// is advisory: each candidate is re-checked under its session lock by the
// coordinator, so sessions that saw activity after listing are left alone.
type Sweeper struct {
	coordinator Coordinator
	opts        options
	pool        *ants.PoolWithFunc
	closeOnce   sync.Once
}

// NewSweeper creates a sweeper over the given coordinator.
func NewSweeper(coordinator Coordinator, options ...Option) (*Sweeper, error) {
	if coordinator == nil {
		return nil, errors.New("archive sweeper requires a coordinator")
	}
	opts := defaultOptions
	for _, option := range options {
		option(&opts)
	}
	if opts.clock == nil {
		opts.clock = planning.SystemClock()
	}
	s := &Sweeper{
		coordinator: coordinator,
		opts:        opts,
	}
	pool, err := ants.NewPoolWithFunc(opts.poolSize, func(args any) {
		param, ok := args.(*archiveParam)
		if !ok {
			panic("archive pool args type error")
		}
		wg := param.wg
		defer func() {
			wg.Done()
			param.reset()
			archiveParamPool.Put(param)
		}()
		archived, err := param.sweeper.coordinator.ArchiveSession(param.ctx, param.sessionID, param.cutoff)
		if err != nil {
			log.Errorf("Archive session %s: %v", param.sessionID, err)
			return
		}
		if archived {
			param.archived.Add(1)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create archive pool: %w", err)
	}
	s.pool = pool
	return s, nil
}

// Sweep archives every session untouched for longer than cutoffAge and
// returns how many this run archived. Already-archived sessions do not
// count, so a second sweep over the same state returns zero.
func (s *Sweeper) Sweep(ctx context.Context, cutoffAge time.Duration) (int, error) {
	cutoff := s.opts.clock.Now().Add(-cutoffAge)
	ids, err := s.coordinator.InactiveSessions(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	var archived atomic.Int64
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		param := archiveParamPool.Get().(*archiveParam)
		param.ctx = ctx
		param.sessionID = id
		param.cutoff = cutoff
		param.sweeper = s
		param.archived = &archived
		param.wg = &wg
		if err := s.pool.Invoke(param); err != nil {
			wg.Done()
			param.reset()
			archiveParamPool.Put(param)
			log.Errorf("Submit archive job for session %s: %v", id, err)
		}
	}
	wg.Wait()
	count := int(archived.Load())
	if count > 0 {
		log.Infof("Sweeper archived %d inactive sessions", count)
	}
	return count, nil
}

// Close releases the worker pool. Safe to call more than once.
func (s *Sweeper) Close() {
	s.closeOnce.Do(func() {
		s.pool.Release()
	})
}

// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package parallel runs tasks with a bounded number of goroutines.
//
// A Manager owns the concurrency limit and may be shared by several batches;
// a Waiter tracks one batch and collects the errors its tasks return:
//
//	pm := parallel.New(8)
//	defer pm.Close()
//
//	waiter := parallel.NewWaiter()
//	for _, key := range keys {
//		pm.Run(func() error { return sign(key) }, waiter)
//	}
//	waiter.Wait()
//	for err := range waiter.Err() {
//		...
//	}
//
// The error channel is buffered; tasks that may fail in large numbers should
// record failures themselves and return nil.
package parallel

import (
	"runtime"
	"sync"
)

const (
	minNumWorkers    = 2
	errChannelBuffer = 100
)

// Task is one unit of work.
type Task func() error

// Manager limits how many tasks run at once.
type Manager struct {
	wg        *sync.WaitGroup
	semaphore chan struct{}
}

// New creates a Manager running at most workercount tasks at once. A negative
// count is multiplied by the number of CPUs. Counts below two are raised to two.
func New(workercount int) *Manager {
	if workercount < 0 {
		workercount = runtime.NumCPU() * -workercount
	}

	if workercount < minNumWorkers {
		workercount = minNumWorkers
	}

	return &Manager{
		wg:        &sync.WaitGroup{},
		semaphore: make(chan struct{}, workercount),
	}
}

// Size returns the concurrency limit.
func (p *Manager) Size() int {
	return cap(p.semaphore)
}

func (p *Manager) acquire() {
	p.semaphore <- struct{}{}
	p.wg.Add(1)
}

func (p *Manager) release() {
	p.wg.Done()
	<-p.semaphore
}

// Run starts fn once a slot is free and registers it with waiter. Run blocks
// while the Manager is saturated.
func (p *Manager) Run(fn Task, waiter *Waiter) {
	waiter.wg.Add(1)
	p.acquire()
	go func() {
		defer waiter.wg.Done()
		defer p.release()

		if err := fn(); err != nil {
			waiter.errch <- err
		}
	}()
}

// Close waits for every task to finish. The Manager cannot be reused.
func (p *Manager) Close() {
	p.wg.Wait()
	close(p.semaphore)
}

// Waiter tracks a batch of tasks.
type Waiter struct {
	wg    sync.WaitGroup
	errch chan error
}

// NewWaiter creates a Waiter.
func NewWaiter() *Waiter {
	return &Waiter{
		errch: make(chan error, errChannelBuffer),
	}
}

// Wait blocks until every task of the batch returned, then closes the error
// channel.
func (w *Waiter) Wait() {
	w.wg.Wait()
	close(w.errch)
}

// Err returns the errors reported by the batch. Read it after Wait.
func (w *Waiter) Err() <-chan error {
	return w.errch
}

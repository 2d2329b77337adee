// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package healthz is a registry of named health checks served on /healthz.
//
// Components register a check during startup; the endpoint runs every check,
// in name order, on each request and fails on the first error:
//
//	healthz.Register("bucket", store.Ping)
//	mux.Get("/", healthz.NewHealthz().EndpointHandler())
package healthz

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds each check run by the endpoint.
const DefaultTimeout = 3 * time.Second

// HealthCheck returns nil when the component is healthy.
type HealthCheck func(ctx context.Context) error

// HealthChecker serves the registered checks over HTTP.
type HealthChecker interface {
	// EndpointHandler replies 200 "ok" when every check passes, otherwise
	// 500 "<name> failed: <error>" for the first failing check.
	EndpointHandler() http.HandlerFunc
}

// Register adds a named check to the global registry, replacing any check
// already registered under the same name.
func Register(name string, fn HealthCheck) {
	chkr, success := NewHealthz().(*checker)
	if !success {
		panic("unexpected type mismatch")
	}
	chkr.add(name, fn)
}

var (
	h    *checker
	once sync.Once
)

type checker struct {
	mu      sync.Mutex
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthz returns the global registry.
func NewHealthz() HealthChecker {
	once.Do(func() {
		h = newChecker(DefaultTimeout)
	})
	return h
}

// NewRegistry returns an independent registry, for servers that do not share
// the global one.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{checker: newChecker(timeout)}
}

// Registry is a non-global HealthChecker.
type Registry struct {
	*checker
}

// Register adds a named check.
func (r *Registry) Register(name string, fn HealthCheck) {
	r.add(name, fn)
}

func newChecker(timeout time.Duration) *checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &checker{checks: make(map[string]HealthCheck), timeout: timeout}
}

func (x *checker) add(name string, fn HealthCheck) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.checks[name] = fn
}

func (x *checker) snapshot() ([]string, map[string]HealthCheck) {
	x.mu.Lock()
	defer x.mu.Unlock()
	names := make([]string, 0, len(x.checks))
	checks := make(map[string]HealthCheck, len(x.checks))
	for name, fn := range x.checks {
		names = append(names, name)
		checks[name] = fn
	}
	sort.Strings(names)
	return names, checks
}

func (x *checker) EndpointHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, checks := x.snapshot()
		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), x.timeout)
			err := checks[name](ctx)
			cancel()
			if err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Str("check", name).Msg("health check failed")
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(name + " failed: " + err.Error()))
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package tlsconfig serves a certificate pair from disk and swaps it in place
// when the process receives a reload signal, so rotated certificates take
// effect without dropping the listener.
package tlsconfig

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// Reloader holds the current certificate pair.
type Reloader struct {
	certFile string
	keyFile  string

	mu   sync.RWMutex
	cert *tls.Certificate
}

// NewReloader loads the pair once and fails if it is unusable.
func NewReloader(certFile, keyFile string) (*Reloader, error) {
	r := &Reloader{certFile: certFile, keyFile: keyFile}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload reads the pair from disk. A failed reload keeps the previous pair.
func (r *Reloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate pair %s, %s: %w", r.certFile, r.keyFile, err)
	}
	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()
	return nil
}

// GetCertificate satisfies tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

// TLSConfig returns a server configuration backed by the reloader.
func (r *Reloader) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: r.GetCertificate,
	}
}

// Watch reloads the pair on every value received from sigc until ctx is done
// or sigc is closed. onReload, when set, runs after each successful reload.
func (r *Reloader) Watch(ctx context.Context, sigc <-chan os.Signal, onReload func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sigc:
			if !ok {
				return
			}
			if err := r.Reload(); err != nil {
				log.Ctx(ctx).Err(err).Msg("certificate reload failed, keeping previous pair")
				continue
			}
			log.Ctx(ctx).Info().Str("cert", r.certFile).Msg("certificate reloaded")
			if onReload != nil {
				onReload()
			}
		}
	}
}

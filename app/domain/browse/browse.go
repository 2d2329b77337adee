// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package browse implements the read side of the gateway: navigation
// listings, download views and presigned download links.
package browse

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/krkn-chaos/krkn-telemetry/app/domain/keypath"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/listing"
	"github.com/krkn-chaos/krkn-telemetry/app/types"
	"github.com/krkn-chaos/krkn-telemetry/app/utils/parallel"
)

// Config holds the retrieval settings.
type Config struct {
	// LinkExpiration is the lifetime of presigned download links.
	LinkExpiration time.Duration
	// PageSize bounds a file manager page.
	PageSize int
	// PresignWorkers bounds concurrent presign calls for a download view.
	// Negative values scale with the CPU count.
	PresignWorkers int
}

// Service serves listings and download links.
type Service struct {
	store  types.ObjectStore
	ledger types.Ledger
	cfg    Config
	clock  func() time.Time
}

// NewService creates a browse service. ledger may be nil.
func NewService(store types.ObjectStore, ledger types.Ledger, cfg Config) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = listing.FileManagerPageSize
	}
	if cfg.PresignWorkers == 0 {
		cfg.PresignWorkers = min(runtime.NumCPU(), 10)
	}
	return &Service{
		store:  store,
		ledger: ledger,
		cfg:    cfg,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// PresignDownload returns a download link for an existing object.
func (s *Service) PresignDownload(ctx context.Context, c keypath.Components) (*types.PresignedLink, error) {
	if err := s.checkBucket(); err != nil {
		return nil, err
	}
	key := c.Key()
	if _, err := s.store.Stat(ctx, key); err != nil {
		return nil, err
	}
	now := s.clock()
	u, err := s.store.PresignGet(ctx, key, s.cfg.LinkExpiration)
	if err != nil {
		return nil, fmt.Errorf("failed to generate download link for %s: %w", key, err)
	}
	return &types.PresignedLink{URL: u.String(), ExpiresAt: now.Add(s.cfg.LinkExpiration)}, nil
}

// Navigate lists one level below the folder described by c, in storage order.
func (s *Service) Navigate(ctx context.Context, c keypath.Components) ([]types.ObjectRef, error) {
	if err := s.checkBucket(); err != nil {
		return nil, err
	}
	l, err := s.store.List(ctx, c.Prefix(), types.ListOptions{})
	if err != nil {
		return nil, err
	}
	return listing.Build(l), nil
}

// Folders returns the top level folders sorted by name.
func (s *Service) Folders(ctx context.Context) ([]types.ObjectRef, error) {
	if err := s.checkBucket(); err != nil {
		return nil, err
	}
	l, err := s.store.List(ctx, "", types.ListOptions{})
	if err != nil {
		return nil, err
	}
	folders := listing.Folders(listing.Build(l))
	listing.SortByKey(folders)
	return folders, nil
}

// Download is one file of a request download view.
type Download struct {
	types.ObjectRef
	// Path is the key relative to the request folder.
	Path string
	Link string
}

// DownloadView lists every object stored for a request.
type DownloadView struct {
	RequestID       string
	Files           []Download
	ExpiresAt       time.Time
	PrometheusFiles int
}

// Empty reports whether the request has no stored objects.
func (v *DownloadView) Empty() bool {
	return v == nil || len(v.Files) == 0
}

// Downloads lists the objects under the request folder recursively and signs
// a download link for each.
func (s *Service) Downloads(ctx context.Context, c keypath.Components) (*DownloadView, error) {
	if err := s.checkBucket(); err != nil {
		return nil, err
	}
	prefix := c.Prefix()
	l, err := s.store.List(ctx, prefix, types.ListOptions{Recursive: true})
	if err != nil {
		return nil, err
	}
	refs := listing.Build(l)

	view := &DownloadView{
		RequestID: c.Key(),
		Files:     make([]Download, len(refs)),
		ExpiresAt: s.clock().Add(s.cfg.LinkExpiration),
	}
	if len(refs) == 0 {
		return view, nil
	}

	pm := parallel.New(s.cfg.PresignWorkers)
	defer pm.Close()

	var (
		mu       sync.Mutex
		firstErr error
	)
	waiter := parallel.NewWaiter()
	for i, ref := range refs {
		fn := func() error {
			u, err := s.store.PresignGet(ctx, ref.Key, s.cfg.LinkExpiration)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Ctx(ctx).Err(err).Str("key", ref.Key).Msg("failed to sign download link")
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to sign %s: %w", ref.Key, err)
				}
				return nil
			}
			view.Files[i] = Download{
				ObjectRef: ref,
				Path:      listing.RelativeName(prefix, ref.Key),
				Link:      u.String(),
			}
			return nil
		}
		pm.Run(fn, waiter)
	}
	waiter.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	view.PrometheusFiles = listing.CountPrometheusFiles(prefix, refs)
	return view, nil
}

// Browse returns one file manager page below the folder described by c,
// continuing after cursor.
func (s *Service) Browse(ctx context.Context, c keypath.Components, cursor string) (*listing.Page, error) {
	if err := s.checkBucket(); err != nil {
		return nil, err
	}
	l, err := s.store.List(ctx, c.Prefix(), types.ListOptions{
		StartAfter: cursor,
		Limit:      s.cfg.PageSize,
	})
	if err != nil {
		return nil, err
	}
	page := listing.NewPage(l)
	return &page, nil
}

// History returns the ledger entries recorded for a request id.
func (s *Service) History(ctx context.Context, requestID string) ([]types.UploadEvent, error) {
	if s.ledger == nil {
		return []types.UploadEvent{}, nil
	}
	events, err := s.ledger.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []types.UploadEvent{}
	}
	return events, nil
}

func (s *Service) checkBucket() error {
	if s.store == nil || s.store.Bucket() == "" {
		return fmt.Errorf("%w: BUCKET_NAME env variable not set", types.ErrMissingConfiguration)
	}
	return nil
}

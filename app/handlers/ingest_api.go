// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-obvious/server"
	"github.com/go-obvious/server/api"
	"github.com/rs/zerolog/log"

	"github.com/krkn-chaos/krkn-telemetry/app/domain/keypath"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/upload"
	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

// Query parameters accepted by the write routes.
const (
	ParamRequestID      = "request_id"
	ParamCategory       = "telemetry_category"
	ParamGroup          = "telemetry_group"
	ParamRun            = "telemetry_run"
	ParamRemoteFilename = "remote_filename"

	// HeaderLinkExpires carries the expiration instant of an issued link.
	HeaderLinkExpires = "X-Link-Expires"
)

// IngestAPI accepts telemetry documents and raw files.
type IngestAPI struct {
	api.Service
	uploads      *upload.Service
	maxBodyBytes int64
}

func NewIngestAPI(base string, uploads *upload.Service, maxBodyBytes int64) *IngestAPI {
	a := &IngestAPI{
		uploads:      uploads,
		maxBodyBytes: maxBodyBytes,
		Service: api.Service{
			APIName: "ingest",
			Mounts:  map[string]*chi.Mux{},
		},
	}
	a.Service.Mounts[base] = a.Routes()
	return a
}

func (a *IngestAPI) Register(app server.Server) error {
	if err := a.Service.Register(app); err != nil {
		return err
	}
	return nil
}

func (a *IngestAPI) Routes() *chi.Mux {
	r := chi.NewRouter()
	a.AddRoutes(r)
	return r
}

// AddRoutes registers the ingest routes on r.
func (a *IngestAPI) AddRoutes(r chi.Router) {
	r.Post("/telemetry", a.PostTelemetry)
	r.Get("/presigned-url", a.GetPresignedURL)
	r.Post("/prometheus", a.PostPrometheus)
}

// componentsFromQuery reads the key components of the write routes. The
// category may be given as telemetry_category or telemetry_group.
func componentsFromQuery(r *http.Request) (keypath.Components, error) {
	q := r.URL.Query()
	var (
		c   keypath.Components
		err error
	)
	if c.RequestID, err = segment(ParamRequestID, q.Get(ParamRequestID)); err != nil {
		return c, err
	}
	category := q.Get(ParamCategory)
	if category == "" {
		category = q.Get(ParamGroup)
	}
	if c.Category, err = optionalSegment(ParamCategory, category); err != nil {
		return c, err
	}
	if c.Run, err = optionalSegment(ParamRun, q.Get(ParamRun)); err != nil {
		return c, err
	}
	return c, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

// PostTelemetry validates a telemetry document and stores it as
// <prefix>/telemetry.json.
func (a *IngestAPI) PostTelemetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !isJSON(r.Header.Get("Content-Type")) {
		replyError(w, r, types.ErrUnsupportedMediaType)
		return
	}

	c, err := componentsFromQuery(r)
	if err != nil {
		replyError(w, r, err)
		return
	}

	var body io.Reader = r.Body
	if a.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, a.maxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		replyError(w, r, err)
		return
	}

	receipt, err := a.uploads.StoreTelemetry(ctx, c, data)
	if err != nil {
		replyError(w, r, err)
		return
	}

	log.Ctx(ctx).Info().
		Str("key", receipt.Key).
		Int("scenarios", receipt.Scenarios).
		Int64("size", receipt.Size).
		Msg("telemetry stored")
	replyText(w, http.StatusOK, sanitize(fmt.Sprintf("record %s created", receipt.Key)))
}

// GetPresignedURL returns, as plain text, a URL the client can PUT the named
// file to directly.
func (a *IngestAPI) GetPresignedURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := componentsFromQuery(r)
	if err != nil {
		replyError(w, r, err)
		return
	}
	if c.Filename, err = segment(ParamRemoteFilename, r.URL.Query().Get(ParamRemoteFilename)); err != nil {
		replyError(w, r, err)
		return
	}

	link, err := a.uploads.PresignUpload(ctx, c)
	if err != nil {
		replyError(w, r, err)
		return
	}

	log.Ctx(ctx).Debug().Str("key", c.Key()).Time("expires", link.ExpiresAt).Msg("upload link issued")
	w.Header().Set(HeaderLinkExpires, link.ExpiresAt.Format(time.RFC3339))
	replyText(w, http.StatusOK, link.URL)
}

// PostPrometheus stores the request body as a file. The body may be
// compressed as declared by Content-Encoding.
func (a *IngestAPI) PostPrometheus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := componentsFromQuery(r)
	if err != nil {
		replyError(w, r, err)
		return
	}
	if c.Filename, err = optionalSegment(ParamRemoteFilename, r.URL.Query().Get(ParamRemoteFilename)); err != nil {
		replyError(w, r, err)
		return
	}

	var body io.Reader = r.Body
	if a.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, a.maxBodyBytes)
	}
	receipt, err := a.uploads.StoreFile(ctx, c, body, r.Header.Get("Content-Encoding"))
	if err != nil {
		replyError(w, r, err)
		return
	}

	log.Ctx(ctx).Info().Str("key", receipt.Key).Int64("size", receipt.Size).Msg("file stored")
	replyText(w, http.StatusOK, sanitize(fmt.Sprintf("file %s uploaded", receipt.Key)))
}

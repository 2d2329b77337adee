// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-obvious/server"
	"github.com/go-obvious/server/api"

	"github.com/krkn-chaos/krkn-telemetry/app/domain/browse"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/upload"
)

// GatewayAPI serves the ingest and retrieval routes from a single mount, so
// both can live at the server root.
type GatewayAPI struct {
	api.Service
	ingest    *IngestAPI
	retrieval *RetrievalAPI
}

func NewGatewayAPI(base string, uploads *upload.Service, browser *browse.Service, maxBodyBytes int64) *GatewayAPI {
	a := &GatewayAPI{
		ingest:    &IngestAPI{uploads: uploads, maxBodyBytes: maxBodyBytes},
		retrieval: &RetrievalAPI{browser: browser},
		Service: api.Service{
			APIName: "gateway",
			Mounts:  map[string]*chi.Mux{},
		},
	}
	a.Service.Mounts[base] = a.Routes()
	return a
}

func (a *GatewayAPI) Register(app server.Server) error {
	if err := a.Service.Register(app); err != nil {
		return err
	}
	return nil
}

func (a *GatewayAPI) Routes() *chi.Mux {
	r := chi.NewRouter()
	a.ingest.AddRoutes(r)
	a.retrieval.AddRoutes(r)
	return r
}

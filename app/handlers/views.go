// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/krkn-chaos/krkn-telemetry/app/domain/browse"
	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

// Template names.
const (
	viewDataNotFound      = "data_not_found"
	viewTelemetryFolders  = "telemetry_folders"
	viewTelemetryNotFound = "telemetry_not_found"
	viewDownloads         = "downloads"
	viewFiles             = "files"
)

//go:embed templates/*.html
var templateFS embed.FS

var views = template.Must(template.New("views").Funcs(template.FuncMap{
	"humanSize":  func(n int64) string { return humanize.IBytes(uint64(max(n, 0))) },
	"formatTime": formatTime,
}).ParseFS(templateFS, "templates/*.html"))

func formatTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC1123)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format(time.RFC1123)
	default:
		return ""
	}
}

type folderLink struct {
	Name string
	Link string
}

type foldersView struct {
	Folders []folderLink
}

type notFoundView struct {
	RequestID string
	HomeURL   string
}

type downloadsView struct {
	*browse.DownloadView
	HomeURL string
}

type fileEntry struct {
	types.ObjectRef
	Link string
}

// crumb links one ancestor folder of the current file manager page.
type crumb struct {
	Name string
	Link string
}

type filesView struct {
	Prefix    string
	Crumbs    []crumb
	ParentURL string
	Entries   []fileEntry
	NextURL   string
}

// breadcrumbs links every folder from the root down to prefix.
func breadcrumbs(prefix string) []crumb {
	segments := types.ObjectRef{Key: prefix, Kind: types.KindFolder}.Segments()
	crumbs := make([]crumb, 0, len(segments))
	path := ""
	for _, s := range segments {
		path += s + types.KeyDelimiter
		crumbs = append(crumbs, crumb{Name: s, Link: filesURL(path)})
	}
	return crumbs
}

// render executes a template into a buffer first so a failing template
// never leaves a half written page.
func render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := views.ExecuteTemplate(&buf, name, data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("view", name).Msg("failed to render view")
		replyText(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

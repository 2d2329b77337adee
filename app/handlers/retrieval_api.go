// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-obvious/server"
	"github.com/go-obvious/server/api"
	"github.com/go-obvious/server/request"
	"github.com/rs/zerolog/log"

	"github.com/krkn-chaos/krkn-telemetry/app/domain/browse"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/keypath"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/listing"
	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

// ParamAfter is the file manager continuation cursor.
const ParamAfter = "after"

// RetrievalAPI serves listings and download links.
type RetrievalAPI struct {
	api.Service
	browser *browse.Service
}

func NewRetrievalAPI(base string, browser *browse.Service) *RetrievalAPI {
	a := &RetrievalAPI{
		browser: browser,
		Service: api.Service{
			APIName: "retrieval",
			Mounts:  map[string]*chi.Mux{},
		},
	}
	a.Service.Mounts[base] = a.Routes()
	return a
}

func (a *RetrievalAPI) Register(app server.Server) error {
	if err := a.Service.Register(app); err != nil {
		return err
	}
	return nil
}

func (a *RetrievalAPI) Routes() *chi.Mux {
	r := chi.NewRouter()
	a.AddRoutes(r)
	return r
}

// AddRoutes registers the retrieval routes on r.
func (a *RetrievalAPI) AddRoutes(r chi.Router) {
	r.Get("/download-url/{filename}", a.GetDownloadURL)
	r.Get("/download-url/{group}/{filename}", a.GetDownloadURL)
	r.Get("/download-url/{group}/{run}/{filename}", a.GetDownloadURL)

	r.Get("/navigate", a.GetNavigate)
	r.Get("/navigate/{group}", a.GetNavigate)
	r.Get("/navigate/{group}/{run}", a.GetNavigate)

	r.Get("/download", a.GetFolders)
	r.Get("/download/", a.GetFolders)
	r.Get("/download/{request_id}", a.GetDownloads)

	r.Get("/files", a.GetFiles)
	r.Get("/files/*", a.GetFiles)
	r.Get("/fetch/*", a.GetFetch)

	r.Get("/ledger/{request_id}", a.GetLedger)
}

// componentsFromRoute reads the group, run and filename route parameters.
func componentsFromRoute(r *http.Request) (keypath.Components, error) {
	var (
		c   keypath.Components
		err error
	)
	if c.Category, err = optionalSegment("group", chi.URLParam(r, "group")); err != nil {
		return c, err
	}
	if c.Run, err = optionalSegment("run", chi.URLParam(r, "run")); err != nil {
		return c, err
	}
	if c.Filename, err = optionalSegment("filename", chi.URLParam(r, "filename")); err != nil {
		return c, err
	}
	return c, nil
}

// componentsFromPath maps the segments of a wildcard path onto the key
// components in resolution order. Segments past the request id stay in the
// filename, so any key can be addressed.
func componentsFromPath(p string) (keypath.Components, error) {
	var segs []string
	for _, s := range strings.Split(p, types.KeyDelimiter) {
		if s == "" {
			continue
		}
		if _, err := segment("path", s); err != nil {
			return keypath.Components{}, err
		}
		segs = append(segs, s)
	}

	var c keypath.Components
	fields := []*string{&c.Category, &c.Run, &c.RequestID}
	for i, s := range segs {
		if i < len(fields) {
			*fields[i] = s
			continue
		}
		c.Filename = strings.Join(segs[i:], types.KeyDelimiter)
		break
	}
	return c, nil
}

// GetDownloadURL replies {"download_link": <url>} for an existing object.
func (a *RetrievalAPI) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	c, err := componentsFromRoute(r)
	if err != nil {
		replyJSONError(w, r, err)
		return
	}

	link, err := a.browser.PresignDownload(r.Context(), c)
	if err != nil {
		replyJSONError(w, r, err)
		return
	}
	request.Reply(r, w, map[string]string{"download_link": link.URL}, http.StatusOK)
}

// GetNavigate replies with one level of the hierarchy as JSON.
func (a *RetrievalAPI) GetNavigate(w http.ResponseWriter, r *http.Request) {
	c, err := componentsFromRoute(r)
	if err != nil {
		replyJSONError(w, r, err)
		return
	}

	refs, err := a.browser.Navigate(r.Context(), c)
	if err != nil {
		replyJSONError(w, r, err)
		return
	}
	if refs == nil {
		refs = []types.ObjectRef{}
	}
	request.Reply(r, w, refs, http.StatusOK)
}

// GetFolders renders the request folders at the bucket root.
func (a *RetrievalAPI) GetFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := a.browser.Folders(r.Context())
	if err != nil {
		replyError(w, r, err)
		return
	}
	if len(folders) == 0 {
		render(w, r, viewDataNotFound, nil)
		return
	}

	view := foldersView{Folders: make([]folderLink, 0, len(folders))}
	for _, f := range folders {
		view.Folders = append(view.Folders, folderLink{
			Name: f.Name,
			Link: "/download/" + url.PathEscape(f.Name),
		})
	}
	render(w, r, viewTelemetryFolders, view)
}

// GetDownloads renders every object stored for a request with a download
// link each.
func (a *RetrievalAPI) GetDownloads(w http.ResponseWriter, r *http.Request) {
	requestID, err := segment(ParamRequestID, chi.URLParam(r, "request_id"))
	if err != nil {
		replyError(w, r, err)
		return
	}

	dv, err := a.browser.Downloads(r.Context(), keypath.Components{RequestID: requestID})
	if err != nil {
		replyError(w, r, err)
		return
	}
	if dv.Empty() {
		render(w, r, viewTelemetryNotFound, notFoundView{RequestID: requestID, HomeURL: "/download"})
		return
	}
	render(w, r, viewDownloads, downloadsView{DownloadView: dv, HomeURL: "/download"})
}

// GetFiles renders one file manager page. ?after= continues a listing.
func (a *RetrievalAPI) GetFiles(w http.ResponseWriter, r *http.Request) {
	c, err := componentsFromPath(chi.URLParam(r, "*"))
	if err != nil {
		replyError(w, r, err)
		return
	}

	page, err := a.browser.Browse(r.Context(), c, r.URL.Query().Get(ParamAfter))
	if err != nil {
		replyError(w, r, err)
		return
	}

	view := filesView{
		Prefix:    page.Prefix,
		Crumbs:    breadcrumbs(page.Prefix),
		ParentURL: filesURL(listing.Parent(page.Prefix)),
		Entries:   make([]fileEntry, 0, len(page.Entries)),
	}
	for _, e := range page.Entries {
		link := "/fetch/" + escapeKey(e.Key)
		if e.IsFolder() {
			link = filesURL(e.Key)
		}
		view.Entries = append(view.Entries, fileEntry{ObjectRef: e, Link: link})
	}
	if page.More {
		view.NextURL = filesURL(page.Prefix) + "?" + url.Values{ParamAfter: {page.Cursor}}.Encode()
	}

	log.Ctx(r.Context()).Debug().Str("prefix", page.Prefix).Int("entries", len(page.Entries)).Bool("more", page.More).Msg("file manager page")
	render(w, r, viewFiles, view)
}

// GetFetch redirects to a presigned download link for any stored object.
func (a *RetrievalAPI) GetFetch(w http.ResponseWriter, r *http.Request) {
	c, err := componentsFromPath(chi.URLParam(r, "*"))
	if err != nil {
		replyError(w, r, err)
		return
	}
	if c.Key() == "" {
		replyError(w, r, types.NewMissingParameterError("path"))
		return
	}

	link, err := a.browser.PresignDownload(r.Context(), c)
	if err != nil {
		replyError(w, r, err)
		return
	}
	http.Redirect(w, r, link.URL, http.StatusFound)
}

// GetLedger replies with the upload events recorded for a request id.
func (a *RetrievalAPI) GetLedger(w http.ResponseWriter, r *http.Request) {
	requestID, err := segment(ParamRequestID, chi.URLParam(r, "request_id"))
	if err != nil {
		replyJSONError(w, r, err)
		return
	}

	events, err := a.browser.History(r.Context(), requestID)
	if err != nil {
		replyJSONError(w, r, err)
		return
	}
	request.Reply(r, w, events, http.StatusOK)
}

func filesURL(prefix string) string {
	if prefix == "" {
		return "/files/"
	}
	return "/files/" + escapeKey(prefix)
}

// escapeKey escapes each segment of a key, keeping the delimiters.
func escapeKey(key string) string {
	parts := strings.Split(key, types.KeyDelimiter)
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, types.KeyDelimiter)
}

// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-obvious/server/request"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"

	"github.com/krkn-chaos/krkn-telemetry/app/domain/keypath"
	"github.com/krkn-chaos/krkn-telemetry/app/domain/telemetry"
	"github.com/krkn-chaos/krkn-telemetry/app/types"
)

const badRequestPrefix = "[bad request]: "

// echoPolicy strips markup from client supplied text before it is echoed.
var echoPolicy = bluemonday.StrictPolicy()

func sanitize(s string) string {
	return echoPolicy.Sanitize(s)
}

// replyText writes a plain text body.
func replyText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// statusFor maps a handler error to its status code and plain text body.
func statusFor(err error) (int, string) {
	var missing *types.MissingParameterError
	var invalid *telemetry.InvalidFieldError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &missing):
		return http.StatusBadRequest, badRequestPrefix + missing.Error()
	case errors.Is(err, types.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, types.ErrUnsupportedMediaType.Error()
	case errors.Is(err, types.ErrMissingConfiguration):
		return http.StatusInternalServerError, strings.TrimPrefix(err.Error(), types.ErrMissingConfiguration.Error()+": ")
	case errors.As(err, &invalid):
		return http.StatusBadRequest, badRequestPrefix + invalid.Error()
	case errors.As(err, &tooLarge), errors.Is(err, types.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, types.ErrPayloadTooLarge.Error()
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, types.ErrNotFound.Error()
	default:
		return http.StatusBadRequest, badRequestPrefix + err.Error()
	}
}

// replyError is the single place where handler errors become responses.
func replyError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := statusFor(err)
	event := log.Ctx(r.Context()).Debug()
	if code >= http.StatusInternalServerError {
		event = log.Ctx(r.Context()).Error()
	}
	event.Err(err).Int("status", code).Str("route", r.URL.Path).Msg("request failed")
	replyText(w, code, sanitize(body))
}

// replyJSONError is used by the JSON routes.
func replyJSONError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := statusFor(err)
	log.Ctx(r.Context()).Debug().Err(err).Int("status", code).Str("route", r.URL.Path).Msg("request failed")
	request.Reply(r, w, map[string]string{"error": body}, code)
}

// segment returns a path or query value after checking it is a usable key
// component.
func segment(name, value string) (string, error) {
	if value == "" {
		return "", types.NewMissingParameterError(name)
	}
	if !keypath.ValidSegment(value) {
		return "", fmt.Errorf("invalid %s param", name)
	}
	return value, nil
}

// optionalSegment is segment for parameters that may be absent.
func optionalSegment(name, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return segment(name, value)
}

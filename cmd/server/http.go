// Copyright 2025 PIR2Motion Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/livekit/protocol/logger"

	"github.com/pir2motion/pir2motion/pkg/errors"
	"github.com/pir2motion/pir2motion/pkg/pprof"
	"github.com/pir2motion/pir2motion/pkg/server"
)

const pprofPrefix = "/debug/pprof/"

func newHealthHandler(svc *server.Server) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", &httpHandler{svc: svc})
	mux.Handle(pprofPrefix, &pprofHandler{})
	return mux
}

type httpHandler struct {
	svc *server.Server
}

func (h *httpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	info, err := h.svc.Status()
	if err != nil {
		logger.Errorw("failed to read status", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(info)
}

// pprofHandler serves /debug/pprof/<profile>?seconds=<n>&debug=<n>
type pprofHandler struct{}

func (p *pprofHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, pprofPrefix)
	seconds, _ := strconv.Atoi(r.URL.Query().Get("seconds"))
	debug, _ := strconv.Atoi(r.URL.Query().Get("debug"))

	b, err := pprof.GetProfileData(r.Context(), name, time.Duration(seconds)*time.Second, debug)
	switch {
	case errors.Is(err, errors.ErrProfileNotFound):
		w.WriteHeader(http.StatusNotFound)
		return
	case err != nil:
		logger.Warnw("failed to collect profile", err, "profile", name)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(b)
}

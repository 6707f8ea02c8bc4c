/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/storage"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

// MaxBody limits the size of request bodies.
var MaxBody int64 = 1 << 20

// StatusOf picks the HTTP status for an error.
func StatusOf(err error) int {
	var (
		ia *core.InvalidAnswer
		sc *core.SessionClosed
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrUnknownSession), errors.Is(err, core.ErrUnknownKB), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ia):
		return http.StatusBadRequest
	case errors.As(err, &sc):
		return http.StatusConflict
	case core.IsFatal(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON for an error without a Snapshot.
type errorBody struct {
	Error string `json:"error"`
}

func (s *Service) reply(w http.ResponseWriter, x interface{}, err error) {
	status := StatusOf(err)
	if err != nil {
		if snap, is := x.(*Snapshot); !is || snap == nil {
			x = &errorBody{Error: err.Error()}
		}
	}
	js, merr := json.Marshal(x)
	if merr != nil {
		status = http.StatusInternalServerError
		js, _ = json.Marshal(&errorBody{Error: merr.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, werr := w.Write(append(js, '\n')); werr != nil {
		s.log().Warn("http write", zap.Error(werr))
	}
}

func readJSON(r *http.Request, x interface{}) error {
	js, err := io.ReadAll(io.LimitReader(r.Body, MaxBody))
	if err != nil {
		return err
	}
	if len(js) == 0 {
		return nil
	}
	return json.Unmarshal(js, x)
}

func (s *Service) badRequest(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	js, _ := json.Marshal(&errorBody{Error: err.Error()})
	w.Write(append(js, '\n'))
}

// Handler returns the HTTP API.
//
//	GET    /api/kbs
//	POST   /api/sessions                  {"kb":"rpg"}
//	GET    /api/sessions/{id}
//	POST   /api/sessions/{id}/answer      {"question":"q1","selected":["Y"]}
//	POST   /api/sessions/{id}/restart
//	DELETE /api/sessions/{id}
//	GET    /api/history/{kb}?limit=N
//	POST   /api/op                        an Op
//	GET    /ws                            WebSocket of Ops
//	GET    /                              HTML front end
//	GET    /kb/{name}                     KB documentation
func (s *Service) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/kbs", func(w http.ResponseWriter, r *http.Request) {
		s.reply(w, map[string]interface{}{"kbs": s.Library.Names()}, nil)
	})

	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			KB string `json:"kb"`
		}
		if err := readJSON(r, &req); err != nil {
			s.badRequest(w, err)
			return
		}
		snap, err := s.Open(r.Context(), req.KB)
		s.reply(w, snap, err)
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.View(r.Context(), r.PathValue("id"))
		s.reply(w, snap, err)
	})

	mux.HandleFunc("POST /api/sessions/{id}/answer", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question string   `json:"question"`
			Selected []string `json:"selected"`
		}
		if err := readJSON(r, &req); err != nil {
			s.badRequest(w, err)
			return
		}
		snap, err := s.Submit(r.Context(), r.PathValue("id"), req.Question, req.Selected)
		s.reply(w, snap, err)
	})

	mux.HandleFunc("POST /api/sessions/{id}/restart", func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.Restart(r.Context(), r.PathValue("id"))
		s.reply(w, snap, err)
	})

	mux.HandleFunc("DELETE /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := s.Close(r.Context(), r.PathValue("id")); err != nil {
			s.reply(w, nil, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/history/{kb}", func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 0 {
				s.badRequest(w, fmt.Errorf("bad limit %q", l))
				return
			}
			limit = n
		}
		rs, err := s.History(r.Context(), r.PathValue("kb"), limit)
		if rs == nil {
			rs = []*storage.Record{}
		}
		s.reply(w, map[string]interface{}{"history": rs}, err)
	})

	mux.HandleFunc("POST /api/op", func(w http.ResponseWriter, r *http.Request) {
		var op Op
		if err := readJSON(r, &op); err != nil {
			s.badRequest(w, err)
			return
		}
		err := op.Do(r.Context(), s)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(StatusOf(err))
		js, _ := json.Marshal(&op)
		w.Write(append(js, '\n'))
	})

	mux.HandleFunc("GET /ws", s.websocketHandler(ctx))

	s.htmlRoutes(mux)

	return mux
}

// Serve runs the HTTP server until the context is done.  MaxConns
// limits simultaneous connections (zero means no limit).
func (s *Service) Serve(ctx context.Context, addr string, maxConns int) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, l, maxConns)
}

// ServeListener is Serve with a given net.Listener.
func (s *Service) ServeListener(ctx context.Context, l net.Listener, maxConns int) error {
	if 0 < maxConns {
		l = netutil.LimitListener(l, maxConns)
	}

	srv := &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log().Info("http listening", zap.String("addr", l.Addr().String()), zap.Int("max_conns", maxConns))

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Serve(l)
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		s.log().Warn("http shutdown", zap.Error(err))
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

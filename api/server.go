// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/plasmalabs/exitgame/protocol"
	"github.com/plasmalabs/exitgame/store"
)

var apiVersion = "/api/v1"

type Server struct {
	srv        *http.Server
	router     *mux.Router
	registered bool
	exits      store.Store
	framework  protocol.Framework
}

func New(addr string, exits store.Store, framework protocol.Framework) (*Server, error) {
	if addr == "" {
		addr = ":8080"
	}
	r := mux.NewRouter()

	s := &Server{
		exits:     exits,
		framework: framework,
		srv: &http.Server{
			Handler:           r,
			Addr:              addr,
			WriteTimeout:      15 * time.Second,
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 30 * time.Second,
		},
		router: r,
	}
	if err := s.registerMethods(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	return s.srv.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) registerMethods() error {
	if s.registered {
		return errors.New("API server methods already registered")
	}

	r := s.router.PathPrefix(apiVersion).Subrouter()
	r.HandleFunc("/healthz", s.Healthz).Methods("GET")
	r.HandleFunc("/exits/{exit-id}", s.ExitByID).Methods("GET")
	r.HandleFunc("/positions/{encoded}", s.DecodePosition).Methods("GET")
	s.registered = true
	return nil
}

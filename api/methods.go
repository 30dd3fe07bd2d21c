// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/plasmalabs/exitgame/position"
	"github.com/plasmalabs/exitgame/protocol"
	"github.com/plasmalabs/exitgame/store"
)

var contentType = "application/json"

// Healthz checks if the API server is ready to serve queries. Returns 200 if it is ready.
//
// method:
// - GET
// - /api/v1/healthz
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ExitByID fetches an in-flight exit record by its identifier.
//
// method:
// - GET
// - /api/v1/exits/{exit-id}
//
// request params:
//   - exit-id: the 0x-prefixed keccak hash of the exiting transaction
//
// response:
// - *JsonInFlightExit
func (s *Server) ExitByID(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	raw, ok := vars["exit-id"]
	if !ok {
		http.Error(w, "No exit id specified", http.StatusBadRequest)
		return
	}
	if len(raw) != 66 || raw[:2] != "0x" {
		http.Error(w, fmt.Sprintf("Could not parse exit id %s: must be a 0x-prefixed 32-byte hash", raw), http.StatusBadRequest)
		return
	}
	id := protocol.ExitID(common.HexToHash(raw))
	exit, err := s.exits.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, fmt.Sprintf("No exit found with id %s", raw), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not get exit from store: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, jsonExit(id, exit, s.framework.ChildBlockInterval()))
}

// DecodePosition decomposes an encoded transaction-output position.
//
// method:
// - GET
// - /api/v1/positions/{encoded}
//
// request params:
//   - encoded: the position as a decimal uint64
//
// response:
// - *JsonPosition
func (s *Server) DecodePosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	raw, ok := vars["encoded"]
	if !ok {
		http.Error(w, "No position specified", http.StatusBadRequest)
		return
	}
	encoded, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not parse position %s: %v", raw, err), http.StatusBadRequest)
		return
	}
	pos := position.Position(encoded)
	if pos != position.NonInclusion && pos.BlockNum() == 0 {
		http.Error(w, fmt.Sprintf("Position %d has a zero block number", encoded), http.StatusBadRequest)
		return
	}
	writeJSONResponse(w, jsonPosition(pos, s.framework.ChildBlockInterval()))
}

func writeJSONResponse(w http.ResponseWriter, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, fmt.Sprintf("Could not write response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(body)
	if err != nil {
		log.Error("could not write response body", "err", err, "status", http.StatusInternalServerError)
		return
	}
}

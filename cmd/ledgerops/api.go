package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonwraymond/ledgerops/auth"
	"github.com/jonwraymond/ledgerops/fault"
	"github.com/jonwraymond/ledgerops/ledger"
	"github.com/jonwraymond/ledgerops/observe"
	"github.com/jonwraymond/ledgerops/workflow"
)

type createRequest struct {
	ID string `json:"id"`
}

type transitionRequest struct {
	From workflow.State `json:"from"`
	To   workflow.State `json:"to"`
}

// registerRecordHandlers mounts the records API behind protect.
// The caller's organization comes from its credentials, never the body.
func (a *app) registerRecordHandlers(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("POST /records", protect(http.HandlerFunc(a.createRecord)))
	mux.Handle("GET /records/{id}", protect(http.HandlerFunc(a.showRecord)))
	mux.Handle("POST /records/{id}/transitions", protect(http.HandlerFunc(a.transitionRecord)))
	mux.Handle("GET /records/{id}/history", protect(http.HandlerFunc(a.recordHistory)))
}

func (a *app) createRecord(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	org := auth.OrgFromContext(r.Context())
	if !a.authority.Allows(org, workflow.StateDraft) {
		writeAPIError(w, http.StatusForbidden, fmt.Errorf("%w: organization %q may not create records", workflow.ErrUnauthorizedTransition, org))
		return
	}

	receipt, err := a.client.Create(r.Context(), body.ID)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusCreated, receipt)
}

func (a *app) showRecord(w http.ResponseWriter, r *http.Request) {
	view, err := a.client.View(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, view)
}

func (a *app) transitionRecord(w http.ResponseWriter, r *http.Request) {
	var body transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	receipt, err := a.client.Transition(r.Context(), ledger.TransitionRequest{
		RecordID: r.PathValue("id"),
		From:     body.From,
		To:       body.To,
		Org:      auth.OrgFromContext(r.Context()),
	})
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, receipt)
}

func (a *app) recordHistory(w http.ResponseWriter, r *http.Request) {
	receipts, err := a.store.History(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	if receipts == nil {
		receipts = []ledger.Receipt{}
	}
	writeAPIJSON(w, http.StatusOK, receipts)
}

func (a *app) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	code := apiStatus(err)
	if code >= http.StatusInternalServerError {
		a.logger.Error(r.Context(), "ledger request failed",
			observe.Field{Key: "path", Value: r.URL.Path},
			observe.Field{Key: "org", Value: string(auth.OrgFromContext(r.Context()))},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
	writeAPIError(w, code, err)
}

// apiStatus maps a ledger or resilience failure to an HTTP status.
func apiStatus(err error) int {
	var conflict *ledger.ConflictError
	switch {
	case errors.Is(err, workflow.ErrUnauthorizedTransition):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrRecordExists),
		errors.Is(err, ledger.ErrAlreadyApplied),
		errors.As(err, &conflict):
		return http.StatusConflict
	}

	switch fault.KindOf(err) {
	case fault.KindValidation:
		return http.StatusBadRequest
	case fault.KindBreakerOpen, fault.KindTransient:
		return http.StatusServiceUnavailable
	case fault.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeAPIJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, code int, err error) {
	writeAPIJSON(w, code, map[string]string{"error": err.Error()})
}

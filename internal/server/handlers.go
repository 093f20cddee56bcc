package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/roach88/loadmix/internal/compose"
	"github.com/roach88/loadmix/internal/export"
	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/store"
)

// Response headers carrying run metadata next to the CSV body.
const (
	headerRunID       = "X-Run-Id"
	headerFingerprint = "X-Request-Fingerprint"
	headerDiagnostics = "X-Diagnostics-Count"
)

// OutputFilename is the download name of a composed table.
const OutputFilename = "custom_output.csv"

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	req, decodeDiags, err := request.DecodeJSON(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.opts.Metrics.Composition(&compose.Error{Code: compose.ErrCodeInvalidRequest, Err: err}, nil)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, d := range decodeDiags {
		s.Log.Warn("request entry dropped", "code", d.Code, "field", d.Field, "message", d.Message)
	}

	res, err := s.composer.Compose(r.Context(), req)
	s.recordRun(r, req, res, err)
	if err != nil {
		s.opts.Metrics.Composition(err, decodeDiags)
		status := statusFor(err)
		if status >= 500 {
			s.Log.Error("composition failed", "error", err)
		} else {
			s.Log.Info("composition rejected", "error", err)
		}
		writeError(w, status, err.Error())
		return
	}

	diags := append(append(request.Diagnostics{}, decodeDiags...), res.Diagnostics...)
	s.opts.Metrics.Composition(nil, diags)

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, res.Table); err != nil {
		s.Log.Error("export failed", "run_id", res.RunID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to write output")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/csv")
	h.Set("Content-Disposition", `attachment; filename="`+OutputFilename+`"`)
	h.Set(headerRunID, res.RunID)
	h.Set(headerFingerprint, res.Fingerprint)
	h.Set(headerDiagnostics, strconv.Itoa(len(diags)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.Log.Warn("write response failed", "run_id", res.RunID, "error", err)
	}
}

// recordRun writes the run log entry. A failure to record never fails the
// request.
func (s *Server) recordRun(r *http.Request, req *request.CompositionRequest, res *compose.Result, cerr error) {
	if s.opts.RunLog == nil {
		return
	}
	run, err := store.NewRun(req, res, cerr, s.failIDs, s.opts.Now())
	if err == nil {
		err = s.opts.RunLog.RecordRun(r.Context(), run)
	}
	if err != nil {
		s.Log.Warn("run not recorded", "error", err)
	}
}

// statusFor maps composition errors onto HTTP status codes.
func statusFor(err error) int {
	switch compose.CodeOf(err) {
	case compose.ErrCodeNotFound, compose.ErrCodeEmptyWeatherYear:
		return http.StatusNotFound
	case compose.ErrCodeInvalidRequest, compose.ErrCodeAlignmentMismatch:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dygy/gape-select/internal/effect"
	apperrors "github.com/dygy/gape-select/internal/errors"
)

const maxBodySize = 64 * 1024

// encodeRequest is the JSON body of /encode and /submit
type encodeRequest struct {
	Effect string            `json:"effect"`
	Preset string            `json:"preset"`
	Fields map[string]string `json:"fields"`
}

type fieldView struct {
	Name  string  `json:"name"`
	Label string  `json:"label"`
	Unit  string  `json:"unit,omitempty"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

type effectView struct {
	Effect  effect.Effect   `json:"effect"`
	Tag     int             `json:"tag"`
	Fields  []fieldView     `json:"fields"`
	Presets []effect.Preset `json:"presets"`
}

// handleIndex serves the selection form
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, "index.html", map[string]any{
		"Effects": s.effectViews(),
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleEffects lists effects with their fields and presets
func (s *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.effectViews())
}

// handleEncode validates and encodes without dispatching
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	preset, out, err := s.pipeline.Encode(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"effect": req.Effect,
		"preset": preset.Number,
		"output": out,
	})
}

// handleSubmit encodes and dispatches downstream
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeRequest(w, r)
	if err != nil {
		s.submissions.Add(rejected(req, err))
		s.writeError(w, r, err)
		return
	}

	res, err := s.pipeline.Submit(r.Context(), req)
	if err != nil {
		sub := rejected(req, err)
		if !errors.Is(err, apperrors.ErrInvalidParameter) {
			sub.Status = StatusFailed
		}
		s.submissions.Add(sub)
		s.writeError(w, r, err)
		return
	}

	out := res.Output
	sub := s.submissions.Add(&Submission{
		Status: StatusDispatched,
		Effect: req.Effect.String(),
		Preset: res.Preset.Name,
		Output: &out,
	})
	s.logger.Info("effect submitted", slog.String("id", sub.ID), slog.String("output", out.String()))

	if isForm(r) {
		s.render(w, "result.html", sub)
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

// handleClear blanks the display and stops downstream programs
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.Clear(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleSubmissions lists recent submissions, newest first
func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.submissions.List())
}

// handleSubmission returns one submission
func (s *Server) handleSubmission(w http.ResponseWriter, r *http.Request) {
	sub := s.submissions.Get(chi.URLParam(r, "id"))
	if sub == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "submission not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

// decodeRequest reads a JSON body or a posted form into an encoder request
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (effect.Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var body encodeRequest
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			return effect.Request{}, apperrors.NewValidationError("body", "", "malformed form: "+err.Error())
		}
		body.Effect = r.PostForm.Get("effect")
		body.Preset = r.PostForm.Get("preset")
		body.Fields = make(map[string]string)
		for key := range r.PostForm {
			if key != "effect" && key != "preset" {
				body.Fields[key] = r.PostForm.Get(key)
			}
		}
	} else if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return effect.Request{}, apperrors.NewValidationError("body", "", "malformed JSON: "+err.Error())
	}

	e, err := effect.ParseEffect(body.Effect)
	if err != nil {
		return effect.Request{}, err
	}
	return effect.NewRequest(e, body.Preset, body.Fields), nil
}

func (s *Server) effectViews() []effectView {
	catalog := s.pipeline.Catalog()

	var views []effectView
	for _, e := range effect.Effects() {
		v := effectView{Effect: e, Tag: int(e), Presets: catalog.Presets(e)}
		for _, f := range e.Fields() {
			v.Fields = append(v.Fields, fieldView{Name: f.Name, Label: f.Label, Unit: f.Unit, Min: f.Min, Max: f.Max})
		}
		views = append(views, v)
	}
	return views
}

// writeError maps validation failures to 422 and downstream failures to 502
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	body := map[string]string{"error": err.Error()}

	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		status = http.StatusUnprocessableEntity
		body["field"] = verr.Field
	} else {
		s.logger.Error("submission failed", slog.Any("error", err))
	}

	if isForm(r) {
		s.renderError(w, err.Error(), status)
		return
	}
	s.writeJSON(w, status, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", slog.Any("error", err))
	}
}

// render renders a template
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template error", "template", name, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// renderError renders an error message
func (s *Server) renderError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	s.templates.ExecuteTemplate(w, "error.html", map[string]any{
		"Error": message,
	})
}

func rejected(req effect.Request, err error) *Submission {
	sub := &Submission{
		Status: StatusRejected,
		Preset: req.Preset,
		Error:  err.Error(),
	}
	if req.Effect.Valid() {
		sub.Effect = req.Effect.String()
	}
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		sub.Field = verr.Field
	}
	return sub
}

func isForm(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "application/x-www-form-urlencoded"
}

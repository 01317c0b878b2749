package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"

	"cycle-dashboard/internal/features"
	"cycle-dashboard/internal/gateway"
	"cycle-dashboard/internal/present"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Error kinds reported by the JSON API.
const (
	KindSchema           = "schema"
	KindModelUnavailable = "model_unavailable"
	KindInference        = "inference"
	KindBadRequest       = "bad_request"
)

const maxBodyBytes = 64 << 10

type classifyRequest struct {
	Observation features.Observation `json:"observation"`
}

type advisoryRequest struct {
	Question string `json:"question"`
}

// APIError is the body of every non-2xx API response.
type APIError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// classifyError maps a gateway error onto its HTTP status and API body.
func classifyError(err error) (int, APIError) {
	switch {
	case errors.Is(err, features.ErrSchema):
		return http.StatusUnprocessableEntity, APIError{Kind: KindSchema, Message: err.Error(), Field: features.FieldName(err)}
	case errors.Is(err, gateway.ErrModelUnavailable):
		return http.StatusServiceUnavailable, APIError{Kind: KindModelUnavailable, Message: err.Error()}
	case errors.Is(err, present.ErrUnknownPurpose):
		return http.StatusBadRequest, APIError{Kind: KindBadRequest, Message: err.Error()}
	default:
		// ml.ErrInference and anything unexpected from the classifier
		return http.StatusInternalServerError, APIError{Kind: KindInference, Message: err.Error()}
	}
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	const route = "classify"

	purpose, err := present.ParsePurpose(mux.Vars(r)["purpose"])
	if err != nil {
		s.writeError(w, route, http.StatusBadRequest, APIError{Kind: KindBadRequest, Message: err.Error()})
		return
	}

	var req classifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, route, http.StatusBadRequest, APIError{Kind: KindBadRequest, Message: "invalid JSON body: " + err.Error()})
		return
	}
	if req.Observation == nil {
		s.writeError(w, route, http.StatusBadRequest, APIError{Kind: KindBadRequest, Message: "observation is required"})
		return
	}

	res, err := s.predictor.Classify(r.Context(), purpose, req.Observation)
	if err != nil {
		status, body := classifyError(err)
		s.writeError(w, route, status, body)
		return
	}
	s.writeJSON(w, route, http.StatusOK, res)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, "models", http.StatusOK, map[string]interface{}{
		"models":   s.predictor.Status(),
		"advisory": s.advisor.Enabled(),
	})
}

// handleAdvisory answers one question. Service failures are part of the
// exchange, so the status is 200 whenever the request itself was valid.
func (s *Server) handleAdvisory(w http.ResponseWriter, r *http.Request) {
	const route = "advisory"

	var req advisoryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, route, http.StatusBadRequest, APIError{Kind: KindBadRequest, Message: "invalid JSON body: " + err.Error()})
		return
	}

	s.writeJSON(w, route, http.StatusOK, s.advisor.Ask(r.Context(), req.Question))
}

func (s *Server) writeError(w http.ResponseWriter, route string, status int, body APIError) {
	s.writeJSON(w, route, status, errorResponse{Error: body})
}

func (s *Server) writeJSON(w http.ResponseWriter, route string, status int, v interface{}) {
	s.metrics.HTTPRequestsInc(route, status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Str("route", route).Msg("Failed to encode response")
	}
}

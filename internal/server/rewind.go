package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"rift-rewind/internal/queue"
	"rift-rewind/internal/regions"
	"rift-rewind/internal/repository"
	"rift-rewind/internal/riot"
	"rift-rewind/internal/service"

	"github.com/rs/zerolog"
)

// RewindServer exposes the status gate over HTTP. The contract is
// status-code driven: 200 carries the stored aggregate verbatim, 202
// means the pipeline is still running, 4xx is a user input error.
type RewindServer struct {
	gate   *service.StatusGate
	queues *queue.Queues
	logger zerolog.Logger
}

func NewRewindServer(gate *service.StatusGate, queues *queue.Queues, logger zerolog.Logger) *RewindServer {
	return &RewindServer{gate: gate, queues: queues, logger: logger}
}

type rewindRequest struct {
	Summoner string `json:"summoner"`
	Region   string `json:"region"`
}

type reprocessRequest struct {
	PUUID string `json:"puuid"`
}

func (s *RewindServer) Rewind(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRewind(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.gate.Check(r.Context(), req.Summoner, req.Region)
	if err != nil {
		s.writeGateError(w, r, err)
		return
	}

	if result.State == service.StateDone {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(result.Aggregate)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "processing",
		"message": "your rewind is still being prepared, check back shortly",
	})
}

func (s *RewindServer) Reprocess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req reprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PUUID == "" {
		writeError(w, http.StatusBadRequest, "puuid is required")
		return
	}

	if err := s.gate.Reprocess(r.Context(), req.PUUID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "player not found")
			return
		}
		s.logger.Error().Err(err).Str("puuid", req.PUUID).Msg("reprocess failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "processing",
		"message": "player queued for reprocessing",
	})
}

// Healthz reports liveness plus queue depths; a growing dead-letter
// count is the signal that jobs are failing past their retry budget.
func (s *RewindServer) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body := map[string]any{"status": "ok"}

	for name, q := range map[string]*queue.Queue{"user_queue": s.queues.User, "match_queue": s.queues.Match} {
		depth, err := q.Depth(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("queue depth check failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		dead, err := q.DeadLetterDepth(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("dead letter check failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		body[name] = map[string]int{"depth": depth, "dead_letters": dead}
	}

	writeJSON(w, http.StatusOK, body)
}

// parseRewind accepts either query parameters (GET) or a JSON body
// (POST); both carry summoner and region.
func (s *RewindServer) parseRewind(r *http.Request) (*rewindRequest, error) {
	var req rewindRequest
	switch r.Method {
	case http.MethodGet:
		req.Summoner = r.URL.Query().Get("summoner")
		req.Region = r.URL.Query().Get("region")
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.New("invalid request body")
		}
	default:
		return nil, errors.New("method not allowed")
	}

	if req.Summoner == "" {
		return nil, errors.New("summoner is required")
	}
	if req.Region == "" {
		return nil, errors.New("region is required")
	}
	return &req, nil
}

func (s *RewindServer) writeGateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidHandle):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, regions.ErrUnknownRegion):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, riot.ErrNotFound):
		writeError(w, http.StatusNotFound, "player not found")
	case errors.Is(err, riot.ErrRateLimited):
		writeError(w, http.StatusServiceUnavailable, "upstream rate limit, try again later")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("gate check failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

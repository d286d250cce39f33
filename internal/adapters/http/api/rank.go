package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	service "github.com/okian/feedrank/internal/app"
	"github.com/okian/feedrank/internal/domain/types"
	"github.com/okian/feedrank/pkg/logger"
	"github.com/okian/feedrank/pkg/metrics"
)

// RankHandler handles feed ranking requests.
type RankHandler struct {
	deps         Dependencies
	maxPosts     int
	maxBodyBytes int64
	logger       logger.Logger
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps Dependencies, maxPosts int, maxBodyBytes int64, log logger.Logger) *RankHandler {
	return &RankHandler{deps: deps, maxPosts: maxPosts, maxBodyBytes: maxBodyBytes, logger: log}
}

// HandleRankFeed handles POST /rank-feed requests.
func (h *RankHandler) HandleRankFeed(w http.ResponseWriter, r *http.Request) {
	const op = "api.rank_feed"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	var req types.RankRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		h.writeDecodeError(w, op, err)
		return
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after the request object")
		}
		h.writeDecodeError(w, op, err)
		return
	}
	if err := req.Validate(h.maxPosts); err != nil {
		metrics.RecordErrorByComponent("api", "validation")
		resp := errorResponse{Code: "unprocessable", Message: WrapKind(op, ErrUnprocessable, err).Error()}
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			resp.Details = verr.Fields
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	userID, posts, profile := req.Domain()
	res, err := h.deps.RankFeed(r.Context(), userID, posts, profile)
	if err != nil {
		h.writeRankError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewRankResponse(res))
}

func (h *RankHandler) writeDecodeError(w http.ResponseWriter, op string, err error) {
	var sizeErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &sizeErr):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind(op, ErrTooLarge, err))
	case errors.As(err, &typeErr):
		metrics.RecordErrorByComponent("api", "validation")
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code:    "unprocessable",
			Message: WrapKind(op, ErrUnprocessable, err).Error(),
			Details: []types.FieldError{{
				Loc:  typeErr.Field,
				Msg:  fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
				Type: "type_error",
			}},
		})
	default:
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	}
}

func (h *RankHandler) writeRankError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrTimeout):
		writeError(w, http.StatusServiceUnavailable, "timeout", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		h.logger.Error(r.Context(), "ranking failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", NewKind(op, ErrInternal))
	}
}

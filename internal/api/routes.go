package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bestof/clipper/internal/clips"
	"github.com/bestof/clipper/internal/entitlement"
	"github.com/bestof/clipper/internal/export"
	"github.com/bestof/clipper/internal/logging"
	"github.com/bestof/clipper/internal/planner"
	"github.com/bestof/clipper/internal/storage"
)

const (
	maxRequestBody  = 64 << 10
	defaultListSize = 50
	edlFrameRate    = 25
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist(cfg.CORSOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler(cfg))

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.APIToken, cfg.Logger))

			r.Post("/clips", createClipHandler(cfg))
			r.Get("/clips", listClipsHandler(cfg))
			r.Get("/clips/{id}", getClipHandler(cfg))
			r.Get("/clips/{id}/status", clipStatusHandler(cfg))
			r.Get("/clips/{id}/plan", clipPlanHandler(cfg))
			r.Get("/clips/{id}/download", downloadHandler(cfg))
			r.Delete("/clips/{id}/artifact", deleteArtifactHandler(cfg))
			r.Get("/storage", storageHandler(cfg))
			r.Get("/history", historyHandler(cfg))
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  statusSuccess,
			Message: "API is running",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		}
		if cfg.Doctor != nil {
			deps := cfg.Doctor.Get(r.Context())
			resp.Dependencies = &deps
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateClipRequest
		err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req)
		if err != nil || (req.URL == "" && req.Mode == nil && req.Transitions == nil) {
			WriteError(w, http.StatusBadRequest, "No data provided", "INVALID_REQUEST")
			return
		}

		if req.URL == "" {
			WriteError(w, http.StatusBadRequest, "URL is required", "INVALID_REQUEST")
			return
		}

		mode := planner.ModeShort
		if req.Mode != nil {
			mode, err = planner.ParseMode(*req.Mode)
			if err != nil {
				WriteError(w, http.StatusBadRequest, `Mode must be either "short" or "long"`, "INVALID_MODE")
				return
			}
		}

		transitions := true
		if req.Transitions != nil {
			transitions = *req.Transitions
		}

		id, err := cfg.Clips.Submit(r.Context(), clips.Submission{
			URL:         req.URL,
			Mode:        mode,
			Transitions: transitions,
			UserID:      r.Header.Get("X-User-ID"),
		})
		if err != nil {
			writeSubmitError(cfg, w, r, err)
			return
		}

		WriteJSON(w, http.StatusAccepted, CreateClipResponse{
			Status:  statusSuccess,
			Message: "Clip generation started",
			ClipID:  id,
		})
	}
}

func writeSubmitError(cfg ServerConfig, w http.ResponseWriter, r *http.Request, err error) {
	requestID, _ := r.Context().Value(RequestIDKey).(string)
	logger := logging.WithRequestID(cfg.Logger, requestID)

	switch {
	case errors.Is(err, planner.ErrInvalidMode):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_MODE")
	case errors.Is(err, entitlement.ErrDenied):
		logger.Info("clip request denied", "error", err)
		WriteError(w, http.StatusForbidden, err.Error(), "FORBIDDEN")
	case clips.IsQueueError(err):
		logger.Warn("clip request rejected", "error", err)
		WriteError(w, http.StatusServiceUnavailable, err.Error(), "QUEUE_FULL")
	default:
		logger.Error("clip submission failed", "error", err)
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

func listClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryLimit(r, defaultListSize)
		jobs := cfg.Clips.List(limit)

		resp := ClipsEnvelope{Status: statusSuccess, Clips: make([]ClipResponse, 0, len(jobs))}
		for _, j := range jobs {
			info, err := cfg.Clips.Info(j.ID)
			if err != nil {
				continue
			}
			resp.Clips = append(resp.Clips, ClipToResponse(info, cfg.PublicBaseURL))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, ok := lookupClip(cfg, w, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, ClipEnvelope{Status: statusSuccess, Clip: ClipToResponse(info, cfg.PublicBaseURL)})
	}
}

func clipStatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := cfg.Clips.Status(chi.URLParam(r, "id"))
		if err != nil {
			writeLookupError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ClipStatusEnvelope{Status: statusSuccess, ClipStatus: StatusToResponse(st)})
	}
}

func clipPlanHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, ok := lookupClip(cfg, w, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		done, isDone := info.Job.State.(clips.Completed)
		if !isDone {
			WriteError(w, http.StatusConflict, "clip is not completed", "NOT_READY")
			return
		}

		if r.URL.Query().Get("format") == "edl" {
			edl := export.PlanEDL(done.Plan, info.Job.Source.Title, filepath.Base(done.ArtifactPath), edlFrameRate)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="`+info.Job.ID+`.edl"`)
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, edl)
			return
		}

		WriteJSON(w, http.StatusOK, PlanResponse{
			Status:         statusSuccess,
			ID:             info.Job.ID,
			Mode:           info.Job.Mode,
			SourceDuration: done.SourceDuration,
			TotalDuration:  done.Plan.TotalDuration(),
			Segments:       done.Plan,
		})
	}
}

func downloadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, ok := lookupClip(cfg, w, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		if info.Job.Status() != clips.StatusCompleted {
			WriteError(w, http.StatusNotFound, "Clip is not ready", "NOT_FOUND")
			return
		}

		path, err := cfg.Store.Resolve(info.Job.ID, filepath.Base(info.Job.ArtifactPath()))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				WriteError(w, http.StatusNotFound, "Clip file not found", "NOT_FOUND")
				return
			}
			WriteError(w, http.StatusInternalServerError, "failed to resolve clip file", "INTERNAL_ERROR")
			return
		}

		name := export.DownloadName(info.Job.Source.Title, path)
		if err := cfg.PlaybackServer.ServeArtifact(w, r, path, name); err != nil {
			cfg.Logger.Error("failed to serve clip", "clip_id", info.Job.ID, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to serve clip", "INTERNAL_ERROR")
		}
	}
}

func deleteArtifactHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		removed, err := cfg.Store.Delete(id)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidJobID) {
				WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
				return
			}
			WriteError(w, http.StatusInternalServerError, "failed to delete clip files", "INTERNAL_ERROR")
			return
		}
		if !removed {
			WriteError(w, http.StatusNotFound, "No stored files for clip", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, MessageResponse{Status: statusSuccess, Message: "Clip files deleted"})
	}
}

func storageHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := cfg.Store.Stats()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to read storage", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, StorageResponse{Status: statusSuccess, Storage: stats})
	}
}

func historyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.History == nil {
			WriteJSON(w, http.StatusOK, HistoryResponse{Status: statusSuccess, Clips: []*clips.HistoryEntry{}})
			return
		}
		entries, err := cfg.History.ListClips(r.Context(), queryLimit(r, defaultListSize))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list history", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, HistoryResponse{Status: statusSuccess, Clips: entries})
	}
}

func lookupClip(cfg ServerConfig, w http.ResponseWriter, id string) (*clips.Info, bool) {
	info, err := cfg.Clips.Info(id)
	if err != nil {
		writeLookupError(w, err)
		return nil, false
	}
	return info, true
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, clips.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Clip not found", "NOT_FOUND")
		return
	}
	WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
}

func queryLimit(r *http.Request, def int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// Package httpapi serves the unit's local read-only status API.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/door"
	"github.com/BrandonDHaskell/Portunus/unit/internal/mode"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

// Doors is the read side of the unit controller.
type Doors interface {
	DoorIDs() []int
	DoorState(id int) (door.State, bool)
	IsDoorOpen(id int) bool
	Protocol() types.Protocol
}

type Dependencies struct {
	Logger  *zap.Logger
	Addr    string
	UnitID  string
	Version string
	Machine mode.Observer
	Doors   Doors
}

type StatusResponse struct {
	UnitID      string         `json:"unit_id"`
	Version     string         `json:"version"`
	Mode        string         `json:"mode"`
	OnlineReady bool           `json:"online_ready"`
	ModeSince   time.Time      `json:"mode_since"`
	Protocol    string         `json:"protocol"`
	Doors       []DoorResponse `json:"doors"`
}

type DoorResponse struct {
	ID               int       `json:"id"`
	Opening          bool      `json:"opening"`
	PermanentOpen    bool      `json:"permanent_open"`
	DoorOpen         bool      `json:"door_open"`
	ExtraTimeCount   int       `json:"extra_time_count"`
	OpeningStartedAt time.Time `json:"opening_started_at,omitzero"`
}

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	deps       Dependencies
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()
	logger := d.Logger.Named("httpapi")

	s := &Server{
		logger: logger,
		mux:    mux,
		deps:   d,
	}

	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/doors/{id}", s.handleDoor)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           loggingMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) door(id int) (DoorResponse, bool) {
	st, ok := s.deps.Doors.DoorState(id)
	if !ok {
		return DoorResponse{}, false
	}
	return DoorResponse{
		ID:               id,
		Opening:          st.Opening,
		PermanentOpen:    st.PermanentOpen,
		DoorOpen:         s.deps.Doors.IsDoorOpen(id),
		ExtraTimeCount:   st.ExtraTimeCount,
		OpeningStartedAt: st.OpeningStartedAt,
	}, true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Machine.Snapshot()
	resp := StatusResponse{
		UnitID:      s.deps.UnitID,
		Version:     s.deps.Version,
		Mode:        snap.Mode.String(),
		OnlineReady: snap.OnlineReady,
		ModeSince:   snap.Since,
		Protocol:    string(s.deps.Doors.Protocol()),
		Doors:       []DoorResponse{},
	}
	for _, id := range s.deps.Doors.DoorIDs() {
		if d, ok := s.door(id); ok {
			resp.Doors = append(resp.Doors, d)
		}
	}

	if wantsProtobuf(r) {
		msg, err := statusToProto(resp)
		if err != nil {
			s.logger.Error("status to proto", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDoor(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_door_id", "door id must be an integer")
		return
	}
	d, ok := s.door(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_door", "no door with id "+strconv.Itoa(id))
		return
	}

	if wantsProtobuf(r) {
		msg, err := doorToProto(d)
		if err != nil {
			s.logger.Error("door to proto", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ABOUTME: HTTP handlers for the bot command surface: CRUD, lifecycle, chat relay.
// ABOUTME: Ownership is enforced here; the fleet manager enforces fleet invariants.

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wardenlabs/minefleet/internal/auth"
	"github.com/wardenlabs/minefleet/internal/fleet"
)

type createBotRequest struct {
	Name    string `json:"name"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Edition string `json:"edition"`
	Version string `json:"version"`
}

type botView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Host        string     `json:"host"`
	Port        int        `json:"port"`
	Edition     string     `json:"edition"`
	Version     string     `json:"version"`
	Status      string     `json:"status"`
	Connected   bool       `json:"connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	UptimeSec   int        `json:"uptime_seconds,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func viewOf(info *fleet.BotInfo) botView {
	v := botView{
		ID:        info.Bot.ID,
		Name:      info.Bot.Name,
		Host:      info.Bot.Host,
		Port:      info.Bot.Port,
		Edition:   info.Bot.Edition,
		Version:   info.Bot.Version,
		Status:    info.Bot.Status,
		Connected: info.Connected,
		CreatedAt: info.Bot.CreatedAt,
	}
	if info.Connected {
		t := info.Runtime.ConnectedAt
		v.ConnectedAt = &t
		v.UptimeSec = int(info.Runtime.Uptime.Seconds())
	}
	return v
}

func (s *Server) handleCreateBot(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	var req createBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bot, err := s.fleet.CreateBot(r.Context(), id.UserID, fleet.CreateParams{
		Name:    req.Name,
		Host:    req.Host,
		Port:    req.Port,
		Edition: req.Edition,
		Version: req.Version,
	})
	if err != nil {
		writeFleetError(w, err)
		return
	}

	info, err := s.fleet.BotInfo(r.Context(), bot.ID)
	if err != nil {
		writeFleetError(w, err)
		return
	}
	writeValue(w, http.StatusCreated, viewOf(info))
}

func (s *Server) handleListBots(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())

	infos, err := s.fleet.ListBots(r.Context(), id.UserID)
	if err != nil {
		writeFleetError(w, err)
		return
	}

	views := make([]botView, 0, len(infos))
	for _, info := range infos {
		views = append(views, viewOf(info))
	}
	writeValue(w, http.StatusOK, views)
}

// ownedBot loads the bot and enforces ownership. Non-owners get not-found
// rather than forbidden so bot ids are not probeable.
func (s *Server) ownedBot(w http.ResponseWriter, r *http.Request) (*fleet.BotInfo, bool) {
	id := auth.MustFromContext(r.Context())
	botID := chi.URLParam(r, "id")

	info, err := s.fleet.BotInfo(r.Context(), botID)
	if err != nil {
		writeFleetError(w, err)
		return nil, false
	}
	if info.Bot.OwnerID != id.UserID && !id.IsAdmin {
		writeError(w, http.StatusNotFound, fleet.ErrBotNotFound.Error())
		return nil, false
	}
	return info, true
}

func (s *Server) handleGetBot(w http.ResponseWriter, r *http.Request) {
	info, ok := s.ownedBot(w, r)
	if !ok {
		return
	}
	writeValue(w, http.StatusOK, viewOf(info))
}

func (s *Server) handleDeleteBot(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	botID := chi.URLParam(r, "id")

	if err := s.fleet.DeleteBot(r.Context(), botID, id.UserID); err != nil {
		writeFleetError(w, err)
		return
	}
	writeValue(w, http.StatusOK, map[string]string{"deleted": botID})
}

func (s *Server) handleStartBot(w http.ResponseWriter, r *http.Request) {
	info, ok := s.ownedBot(w, r)
	if !ok {
		return
	}
	if err := s.fleet.StartBot(r.Context(), info.Bot.ID); err != nil {
		writeFleetError(w, err)
		return
	}
	writeValue(w, http.StatusOK, map[string]string{"started": info.Bot.ID})
}

func (s *Server) handleStopBot(w http.ResponseWriter, r *http.Request) {
	info, ok := s.ownedBot(w, r)
	if !ok {
		return
	}
	if err := s.fleet.StopBot(r.Context(), info.Bot.ID); err != nil {
		writeFleetError(w, err)
		return
	}
	writeValue(w, http.StatusOK, map[string]string{"stopped": info.Bot.ID})
}

func (s *Server) handleRenameBot(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	botID := chi.URLParam(r, "id")

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.fleet.RenameBot(r.Context(), botID, id.UserID, req.Name); err != nil {
		writeFleetError(w, err)
		return
	}
	writeValue(w, http.StatusOK, map[string]string{"renamed": botID, "name": req.Name})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	info, ok := s.ownedBot(w, r)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	if err := s.fleet.SendMessage(r.Context(), info.Bot.ID, req.Text); err != nil {
		writeFleetError(w, err)
		return
	}
	writeValue(w, http.StatusOK, map[string]string{"sent": req.Text})
}

func (s *Server) handleExecuteCommand(w http.ResponseWriter, r *http.Request) {
	info, ok := s.ownedBot(w, r)
	if !ok {
		return
	}

	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	if err := s.fleet.ExecuteCommand(r.Context(), info.Bot.ID, req.Command); err != nil {
		writeFleetError(w, err)
		return
	}
	writeValue(w, http.StatusOK, map[string]string{"executed": req.Command})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	if !id.IsAdmin {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	stats, err := s.fleet.Stats(r.Context())
	if err != nil {
		writeFleetError(w, err)
		return
	}
	writeValue(w, http.StatusOK, map[string]int{
		"total_users":      stats.TotalUsers,
		"total_bots":       stats.TotalBots,
		"running_bots":     stats.RunningBots,
		"total_runtime_m":  stats.TotalRuntimeMin,
		"active_instances": stats.ActiveInstanceCnt,
	})
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	writeValue(w, http.StatusOK, s.versions)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeValue(w, http.StatusOK, map[string]string{"status": "ok"})
}

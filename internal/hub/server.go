// Package hub is the team-side server: the HTTP endpoint every scouting
// device syncs against. It stores opaque checkout payloads with monotonic
// sync versions and serves versioned team metadata (event, form, UI).
package hub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/widavies/RobluScouter/internal/transport"
)

// Server wires the hub API over a Store.
type Server struct {
	store    *Store
	teamCode string
}

// NewServer creates a hub server. teamCode gates every /api route.
func NewServer(st *Store, teamCode string) *Server {
	return &Server{store: st, teamCode: teamCode}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api", s.requireTeamCode)
	{
		api.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong"})
		})
		api.POST("/register", s.handleRegister)
		api.GET("/event/active", s.handleEventActive)
		api.GET("/team", s.handleTeam)
		api.POST("/checkouts/push", s.handlePush)
		api.POST("/checkouts/pull", s.handlePull)
		api.POST("/admin/event", s.handleSetEvent)
	}
	return r
}

// Run serves the API on addr until the listener fails.
func (s *Server) Run(addr string) error {
	slog.Info("hub listening", "addr", addr)
	return s.Router().Run(addr)
}

func (s *Server) requireTeamCode(c *gin.Context) {
	if c.GetHeader("X-Team-Code") != s.teamCode {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid team code"})
		return
	}
	c.Next()
}

type registerRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := s.store.RegisterDevice(req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": d.Token, "name": d.Name})
}

func (s *Server) handleEventActive(c *gin.Context) {
	e, err := s.store.Event()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": e.Active})
}

func (s *Server) handleTeam(c *gin.Context) {
	var since int64
	if v := c.Query("since"); v != "" {
		since, _ = strconv.ParseInt(v, 10, 64)
	}
	e, err := s.store.Event()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if e.SyncVersion <= since {
		c.Status(http.StatusNotModified)
		return
	}
	info := transport.TeamInfo{
		Number:      e.TeamNumber,
		EventName:   e.Name,
		SyncVersion: e.SyncVersion,
	}
	if e.Form != "" {
		info.Form = json.RawMessage(e.Form)
	}
	if e.UI != "" {
		info.UI = json.RawMessage(e.UI)
	}
	c.JSON(http.StatusOK, info)
}

type pushRequest struct {
	Device    string                     `json:"device"`
	Checkouts []transport.RemoteCheckout `json:"checkouts" binding:"required"`
}

func (s *Server) handlePush(c *gin.Context) {
	var req pushRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	records := make([]CheckoutRecord, 0, len(req.Checkouts))
	for _, item := range req.Checkouts {
		records = append(records, CheckoutRecord{
			CheckoutID: item.ID,
			Content:    string(item.Content),
		})
	}
	if err := s.store.UpsertCheckouts(req.Device, records); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	slog.Info("checkouts pushed", "device", req.Device, "count", len(records))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type pullRequest struct {
	Versions map[int]int64 `json:"versions"`
}

type pullResponse struct {
	Checkouts []transport.RemoteCheckout `json:"checkouts"`
}

func (s *Server) handlePull(c *gin.Context) {
	var req pullRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	records, err := s.store.CheckoutsSince(req.Versions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := pullResponse{Checkouts: make([]transport.RemoteCheckout, 0, len(records))}
	for _, rec := range records {
		out.Checkouts = append(out.Checkouts, transport.RemoteCheckout{
			ID:          rec.CheckoutID,
			Content:     json.RawMessage(rec.Content),
			SyncVersion: rec.SyncVersion,
		})
	}
	c.JSON(http.StatusOK, out)
}

type setEventRequest struct {
	TeamNumber int             `json:"team_number"`
	Name       string          `json:"name" binding:"required"`
	Active     bool            `json:"active"`
	Form       json.RawMessage `json:"form"`
	UI         json.RawMessage `json:"ui"`
}

func (s *Server) handleSetEvent(c *gin.Context) {
	var req setEventRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := s.store.SetEvent(EventState{
		TeamNumber: req.TeamNumber,
		Name:       req.Name,
		Active:     req.Active,
		Form:       string(req.Form),
		UI:         string(req.UI),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	slog.Info("event updated", "name", e.Name, "active", e.Active, "version", e.SyncVersion)
	c.JSON(http.StatusOK, gin.H{"sync_version": e.SyncVersion})
}

package server

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
)

// buildRouter serves the hook websocket and the read only state API.
func (s *flymapServer) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(s.requestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/hook", gin.WrapF(s.handleHook))

	api := router.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/entities", s.handleEntities)
	api.GET("/diagnostics", s.handleDiagnostics)
	api.GET("/sessions", s.handleSessions)
	api.GET("/sessions/:id", s.handleSession)
	api.GET("/tags", s.handleTags)

	return router
}

func (s *flymapServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("api request")
	}
}

func (s *flymapServer) handleHealth(c *gin.Context) {
	h := gin.H{
		"status":      "ok",
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"frames":      s.stats.frames.Load(),
		"packets":     s.stats.packets.Load(),
		"events":      s.stats.events.Load(),
		"dropped":     s.stats.dropped.Load(),
		"diagnostics": s.diag.Total(),
		"clients":     s.stream.ClientCount(),
		"sessions":    len(s.sMgr.Sessions()),
	}

	if hi, err := host.Info(); err == nil {
		h["host"] = gin.H{
			"hostname": hi.Hostname,
			"platform": hi.Platform,
			"version":  hi.PlatformVersion,
			"uptime":   hi.Uptime,
		}
	}

	if s.rec != nil {
		if counts, err := s.rec.Counts(); err == nil {
			h["recorded"] = counts
		}
	}

	c.JSON(http.StatusOK, h)
}

func (s *flymapServer) handleEntities(c *gin.Context) {
	snap, err := s.watch.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, snap)
}

func (s *flymapServer) handleDiagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"total":   s.diag.Total(),
		"entries": s.diag.Recent(),
	})
}

func (s *flymapServer) handleSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions": s.sMgr.Sessions(),
	})
}

func (s *flymapServer) handleSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	ses, err := s.sMgr.SessionById(id)
	if errors.Is(err, ErrUnknownSession) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ses.Info())
}

type tagRow struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
	Type string `json:"type"`
}

func (s *flymapServer) handleTags(c *gin.Context) {
	tags := s.cfg.Tags.Tags()

	rows := make([]tagRow, 0, len(tags))
	for name, t := range tags {
		rows = append(rows, tagRow{
			Name: name,
			Tag:  t.String(),
			Type: s.dec.TypeOf(t).String(),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	c.JSON(http.StatusOK, gin.H{"tags": rows})
}

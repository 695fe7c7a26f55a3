package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pickup/internal/auth"
	"pickup/internal/config"
	"pickup/internal/export"
	"pickup/internal/metrics"
	"pickup/internal/notion"
	"pickup/internal/roster"
	"pickup/internal/vehicles"
)

type server struct {
	cfg     config.App
	log     *zap.Logger
	svc     *roster.Service
	repo    *roster.Repository
	tracker *vehicles.Tracker
	notion  *notion.Client
}

func (s *server) routes(r *gin.Engine) {
	api := r.Group("/api")

	api.POST("/drivers/register", s.registerDriver)

	api.GET("/students", s.listStudents)
	api.POST("/students", s.createStudent)
	api.PATCH("/students/:id", s.updateStudent)
	api.DELETE("/students/:id", s.deleteStudent)
	api.POST("/students/:id/toggle", s.toggleStatus)
	api.GET("/students/export", s.exportRoster)

	api.GET("/class-info", s.classInfo)
	api.PUT("/class-info", s.updateClassInfo)

	api.GET("/notion", s.notionRoster)
	// Legacy route kept for the old tablet build; same semantics as toggle.
	api.POST("/update-status", s.updateStatus)

	driverOnly := api.Group("/vehicles", auth.DriverAuth(s.cfg.JWTSigningKey, s.cfg.JWTIssuer))
	driverOnly.POST("/:vehicleId/location", s.reportVehicle)
	api.GET("/vehicles/:vehicleId/location", s.vehicleLocation)
	// gin cannot hold a static /vehicles/locations next to /vehicles/:vehicleId,
	// so the collection view rides the param route.
	api.GET("/vehicles/:vehicleId", s.vehicleLocations)
}

func (s *server) registerDriver(c *gin.Context) {
	var req struct {
		DriverID  string `json:"driverId" binding:"required"`
		VehicleID string `json:"vehicleId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tokens, err := auth.Issue(req.DriverID, auth.RoleDriver, s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.AccessTTL, s.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
		"expiresAt":    tokens.AccessExp.Unix(),
	})
}

// listStudents answers the roster view. When the store is unreachable the
// screens must stay populated, so it degrades to the sample roster with an
// error field instead of failing.
func (s *server) listStudents(c *gin.Context) {
	f := roster.Filter{
		Weekday:         c.Query("weekday"),
		ClassTime:       c.Query("classTime"),
		IncludeInactive: c.Query("includeInactive") == "true",
	}
	if date := c.Query("date"); date != "" {
		d, err := time.ParseInLocation("2006-01-02", date, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		f.Weekday = roster.WeekdayLabel(d)
	}

	students, err := s.svc.Roster(c.Request.Context(), f)
	if err != nil {
		s.log.Error("roster query failed, serving fallback", zap.Error(err))
		metrics.FallbackServes.Inc()
		c.JSON(http.StatusOK, gin.H{
			"students": roster.SampleStudents(),
			"fallback": true,
			"error":    "roster store unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students, "fallback": false})
}

func (s *server) createStudent(c *gin.Context) {
	var st roster.Student
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := s.svc.AddStudent(c.Request.Context(), st)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *server) updateStudent(c *gin.Context) {
	var patch roster.StudentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := s.svc.UpdateStudent(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *server) deleteStudent(c *gin.Context) {
	if err := s.svc.DeleteStudent(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) toggleStatus(c *gin.Context) {
	var req struct {
		Type string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, ok := roster.ParseStatusKind(req.Type)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be arrival or departure"})
		return
	}
	st, err := s.svc.Toggle(c.Request.Context(), c.Param("id"), kind)
	if err != nil {
		s.writeError(c, err)
		return
	}
	metrics.StatusToggles.WithLabelValues(string(kind)).Inc()
	c.JSON(http.StatusOK, st)
}

// updateStatus is the pre-rework endpoint addressing students by Notion page
// id. It writes the checkbox straight to Notion and mirrors the flag onto the
// local row when one carries that page id.
func (s *server) updateStatus(c *gin.Context) {
	var req struct {
		PageID   string `json:"pageId" binding:"required"`
		Property string `json:"property" binding:"required"`
		Status   bool   `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.notion.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notion not configured"})
		return
	}
	if err := s.notion.UpdateCheckbox(c.Request.Context(), req.PageID, req.Property, req.Status); err != nil {
		s.log.Error("notion checkbox update failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "notion unavailable"})
		return
	}

	var kind roster.StatusKind
	switch req.Property {
	case notion.PropArrivalStatus:
		kind = roster.KindArrival
	case notion.PropDepartureStatus:
		kind = roster.KindDeparture
	default:
		c.JSON(http.StatusOK, gin.H{"updated": true})
		return
	}
	if s.repo != nil {
		st, err := s.repo.GetStudentByNotionPageID(c.Request.Context(), req.PageID)
		if err == nil {
			if err := s.repo.SetStatus(c.Request.Context(), st.ID, kind, req.Status); err != nil {
				s.log.Warn("local status mirror failed", zap.String("student", st.ID), zap.Error(err))
			}
		} else if !errors.Is(err, roster.ErrNotFound) {
			s.log.Warn("page id lookup failed", zap.String("page", req.PageID), zap.Error(err))
		}
	}
	metrics.StatusToggles.WithLabelValues(string(kind)).Inc()
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (s *server) exportRoster(c *gin.Context) {
	students, err := s.svc.AllStudents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	roster.SortByArrival(students)
	payload, err := export.RosterXLSX(students)
	if err != nil {
		s.log.Error("roster export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	name := "roster-" + time.Now().Format("2006-01-02") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", payload)
}

func (s *server) classInfo(c *gin.Context) {
	slots, err := s.svc.ClassInfo(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, slots)
}

func (s *server) updateClassInfo(c *gin.Context) {
	var slots map[string]roster.ClassSlot
	if err := c.ShouldBindJSON(&slots); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.svc.UpdateClassInfo(c.Request.Context(), slots); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// notionRoster reads the roster straight from Notion, bypassing Postgres.
// The office staff use it to eyeball mirror drift.
func (s *server) notionRoster(c *gin.Context) {
	if !s.notion.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notion not configured"})
		return
	}
	pages, err := s.notion.QueryDatabase(c.Request.Context(), s.cfg.NotionDatabaseID)
	if err != nil {
		s.log.Error("notion query failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "notion unavailable"})
		return
	}
	students := make([]roster.Student, 0, len(pages))
	for _, p := range pages {
		students = append(students, notion.StudentFromPage(p))
	}
	roster.SortByArrival(students)
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (s *server) reportVehicle(c *gin.Context) {
	var req struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	loc, err := s.tracker.Report(c.Request.Context(), c.Param("vehicleId"), req.Latitude, req.Longitude)
	if err != nil {
		s.writeError(c, err)
		return
	}
	metrics.VehicleReports.Inc()
	c.JSON(http.StatusOK, loc)
}

// vehicleLocation serves one vehicle's latest position.
func (s *server) vehicleLocation(c *gin.Context) {
	loc, err := s.tracker.Get(c.Request.Context(), c.Param("vehicleId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loc)
}

// vehicleLocations serves every known vehicle position. Only the reserved
// "locations" segment is valid here.
func (s *server) vehicleLocations(c *gin.Context) {
	if c.Param("vehicleId") != "locations" {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	all, err := s.tracker.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": all})
}

func (s *server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, roster.ErrNotFound), errors.Is(err, vehicles.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, roster.ErrToggleInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, roster.ErrInvalid), errors.Is(err, vehicles.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// corsMiddleware allows the browser front end to call the API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// securityHeaders sets the usual response hardening headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

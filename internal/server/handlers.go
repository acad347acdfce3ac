package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikepage/dns-monitor/internal/history"
	"github.com/mikepage/dns-monitor/internal/scanner"
	"github.com/mikepage/dns-monitor/internal/version"
)

// scanResponse wraps a scan result with the success flag expected by
// clients.
type scanResponse struct {
	Success bool `json:"success"`
	*scanner.Result
}

// healthCheck returns server health status
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// getVersion returns version information
func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":   version.Version,
		"commit":    version.Commit,
		"buildDate": version.BuildDate,
	})
}

// handleScan runs one synchronous scan for the domain query parameter.
// A missing domain is the only input rejected up front; per-query
// failures degrade into the successful response's data.
func (s *Server) handleScan(c *gin.Context) {
	domain := c.Query("domain")
	opts := scanner.Options{
		Resolver: c.DefaultQuery("resolver", "google"),
		DNSSEC:   c.Query("dnssec") == "true",
		CT:       c.Query("ct") == "true",
	}

	start := time.Now()
	result, err := s.scanner.Scan(c.Request.Context(), domain, opts)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scanner.ErrDomainRequired) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	s.recordScan(result, start)

	c.JSON(http.StatusOK, scanResponse{Success: true, Result: result})
}

// recordScan persists a scan summary, best-effort.
func (s *Server) recordScan(result *scanner.Result, start time.Time) {
	if s.history == nil {
		return
	}
	rec := history.ScanRecord{
		Domain:       result.Domain,
		Resolver:     result.Resolver,
		TotalRecords: result.TotalRecords,
		Wildcard:     result.Wildcard != nil && result.Wildcard.Detected,
		ElapsedMs:    result.QueryTime,
		StartedAt:    start,
	}
	if _, err := s.history.Insert(rec); err != nil {
		s.log.Debugf("failed to record scan history: %v", err)
	}
}

// handleHistory lists recent scans, newest first.
func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"scans":   []history.ScanRecord{},
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	scans, err := s.history.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load scan history: " + err.Error(),
		})
		return
	}
	if scans == nil {
		scans = []history.ScanRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"scans":   scans,
	})
}

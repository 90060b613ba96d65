package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/handiism/albumpdf/internal/download"
	"github.com/handiism/albumpdf/internal/model"
	"github.com/handiism/albumpdf/internal/store"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

type generateRequest struct {
	AlbumID    string `json:"album_id" binding:"required"`
	RetryCount *int   `json:"retry_count"`
	Force      bool   `json:"force"`
}

type downloadRequest struct {
	ID string `json:"id" binding:"required"`
}

type successResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type documentData struct {
	DocumentPath string `json:"document_path"`
	DownloadURL  string `json:"download_url"`
	Pages        int    `json:"pages"`
	Cached       bool   `json:"cached"`
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: album_id is required")
		return
	}

	opts := download.ProduceOptions{Force: req.Force}
	if req.RetryCount != nil {
		if *req.RetryCount < 1 || *req.RetryCount > s.settings.MaxRetryCount {
			badRequest(c, fmt.Sprintf("retry_count must be between 1 and %d", s.settings.MaxRetryCount))
			return
		}
		opts.MaxAttempts = *req.RetryCount
	}
	s.produce(c, req.AlbumID, opts)
}

func (s *Server) handleDownloadAlias(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: id is required")
		return
	}
	s.produce(c, req.ID, download.ProduceOptions{})
}

func (s *Server) produce(c *gin.Context, albumID string, opts download.ProduceOptions) {
	albumID = strings.TrimSpace(albumID)
	if err := model.ValidateAlbumID(albumID); err != nil {
		badRequest(c, err.Error())
		return
	}

	doc, err := s.service.Produce(c.Request.Context(), albumID, opts)
	if err != nil {
		writeError(c, err)
		return
	}

	message := "PDF generated"
	if doc.Cached {
		message = "PDF already exists"
	}
	c.JSON(http.StatusOK, successResponse{
		Status:  statusSuccess,
		Message: message,
		Data: documentData{
			DocumentPath: doc.Path,
			DownloadURL:  s.downloadURL(c, doc.FileName),
			Pages:        doc.Pages,
			Cached:       doc.Cached,
		},
	})
}

// downloadURL prefers the configured public URL and falls back to the
// scheme and host the request came in on.
func (s *Server) downloadURL(c *gin.Context, fileName string) string {
	base := strings.TrimRight(s.settings.Server.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/download/" + fileName
}

func (s *Server) handleDownloadFile(c *gin.Context) {
	fileName := c.Param("filename")
	path, ok := s.service.DocumentFile(fileName)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{
			Status:    statusError,
			ErrorCode: codeNotFound,
			Message:   "file not found",
		})
		return
	}
	c.FileAttachment(path, fileName)
}

func (s *Server) handleStatus(c *gin.Context) {
	albumID := c.Param("album_id")
	if err := model.ValidateAlbumID(albumID); err != nil {
		badRequest(c, err.Error())
		return
	}

	rec, err := s.service.Status(albumID)
	if errors.Is(err, store.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{
			Status:    statusError,
			ErrorCode: codeNotFound,
			Message:   "no job recorded for album " + albumID,
		})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse{
		Status:  statusSuccess,
		Message: string(rec.Status),
		Data:    rec,
	})
}

func (s *Server) handleJobs(c *gin.Context) {
	records, err := s.service.Jobs()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{
		Status:  statusSuccess,
		Message: fmt.Sprintf("%d jobs", len(records)),
		Data:    records,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
}

// Package api provides HTTP handlers and routes for the stream module.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/mantonx/streamctl/internal/database"
	"github.com/mantonx/streamctl/internal/logger"
	serrors "github.com/mantonx/streamctl/internal/modules/streammodule/errors"
	"github.com/mantonx/streamctl/internal/modules/streammodule/profile"
	"github.com/mantonx/streamctl/internal/modules/streammodule/types"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// RunRequest is the optional body of /run. Missing fields use configured defaults.
type RunRequest struct {
	Source   string   `json:"source" form:"source"`
	Tiers    []string `json:"tiers" form:"tiers"`
	Output   string   `json:"output" form:"output"`
	Protocol string   `json:"protocol" form:"protocol"`
}

// StopRequest is the optional body of /stop
type StopRequest struct {
	Output   string `json:"output" form:"output"`
	Protocol string `json:"protocol" form:"protocol"`
}

// DispatchView is the API form of a dispatch record with its tiers decoded
type DispatchView struct {
	*database.DispatchRecord
	Tiers []string `json:"tiers"`
}

func newDispatchView(record *database.DispatchRecord) DispatchView {
	tiers, err := record.GetTiers()
	if err != nil {
		logger.Warn("Stored tiers are not valid JSON", "id", record.ID, "error", err)
	}
	if tiers == nil {
		tiers = []string{}
	}
	return DispatchView{DispatchRecord: record, Tiers: tiers}
}

// APIHandler handles HTTP requests for the stream module
type APIHandler struct {
	controller  StreamController
	processes   ProcessLister
	history     DispatchHistory
	sampleVideo string
}

// NewAPIHandler creates a new API handler. processes and history may be nil.
func NewAPIHandler(controller StreamController, processes ProcessLister, history DispatchHistory, sampleVideo string) *APIHandler {
	return &APIHandler{
		controller:  controller,
		processes:   processes,
		history:     history,
		sampleVideo: sampleVideo,
	}
}

// Index handles GET /
func (h *APIHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"input_video": h.sampleVideo,
	})
}

// Run handles GET|POST /run
//
// Optional request body (query parameters work too):
//
//	{
//	  "source": "string",     // Input locator, defaults to stream.source_url
//	  "tiers": ["480p"],      // Catalog tiers, defaults to stream.default_tiers
//	  "output": "string",     // Manifest path under stream.output_dir
//	  "protocol": "dash|hls"  // Defaults to stream.start_protocol
//	}
//
// Responds 200 with an empty body once the engine accepted the request.
func (h *APIHandler) Run(c *gin.Context) {
	var req RunRequest
	if err := bindOptional(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	job := types.StreamJob{
		Source:     req.Source,
		Tiers:      req.Tiers,
		OutputPath: req.Output,
		Protocol:   types.Protocol(req.Protocol),
	}

	engineReq, err := h.controller.Start(c.Request.Context(), job)
	if err != nil {
		respondError(c, "Failed to start stream", err)
		return
	}

	c.Header("X-Stream-Request-ID", engineReq.ID)
	c.Status(http.StatusOK)
}

// Stop handles GET|POST /stop
func (h *APIHandler) Stop(c *gin.Context) {
	var req StopRequest
	if err := bindOptional(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	body, err := h.controller.Stop(c.Request.Context(), req.Output, types.Protocol(req.Protocol))
	if err != nil {
		respondError(c, "Failed to stop stream", err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body))
}

// ListProfiles handles GET /api/v1/stream/profiles
func (h *APIHandler) ListProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"profiles": profile.Ladder(),
	})
}

// ListProcesses handles GET /api/v1/stream/processes
func (h *APIHandler) ListProcesses(c *gin.Context) {
	if h.processes == nil {
		c.JSON(http.StatusOK, gin.H{"processes": []interface{}{}, "count": 0})
		return
	}

	procs := h.processes.Processes()
	c.JSON(http.StatusOK, gin.H{
		"processes": procs,
		"count":     len(procs),
	})
}

// ListDispatches handles GET /api/v1/stream/dispatches?limit=N&output=path
//
// With output set, every request issued for that output path is returned
// oldest first and limit is ignored.
func (h *APIHandler) ListDispatches(c *gin.Context) {
	if !h.historyEnabled(c) {
		return
	}

	var (
		records []*database.DispatchRecord
		err     error
	)
	if raw := c.Query("output"); raw != "" {
		output, rerr := h.controller.ResolveOutput(raw)
		if rerr != nil {
			respondError(c, "Invalid output", rerr)
			return
		}
		records, err = h.history.ListByOutput(c.Request.Context(), output)
	} else {
		limit := defaultHistoryLimit
		if raw := c.Query("limit"); raw != "" {
			n, perr := strconv.Atoi(raw)
			if perr != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "Invalid limit",
					"details": raw,
				})
				return
			}
			limit = min(n, maxHistoryLimit)
		}
		records, err = h.history.ListRecent(c.Request.Context(), limit)
	}

	if err != nil {
		logger.Error("Failed to list dispatches", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list dispatches",
			"details": err.Error(),
		})
		return
	}

	views := make([]DispatchView, len(records))
	for i, record := range records {
		views[i] = newDispatchView(record)
	}

	c.JSON(http.StatusOK, gin.H{
		"dispatches": views,
		"count":      len(views),
	})
}

// GetDispatch handles GET /api/v1/stream/dispatches/:id
func (h *APIHandler) GetDispatch(c *gin.Context) {
	if !h.historyEnabled(c) {
		return
	}

	id := c.Param("id")
	record, err := h.history.GetByID(c.Request.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Dispatch not found",
			"details": id,
		})
		return
	}
	if err != nil {
		logger.Error("Failed to get dispatch", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get dispatch",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, newDispatchView(record))
}

func (h *APIHandler) historyEnabled(c *gin.Context) bool {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Dispatch log is disabled",
		})
		return false
	}
	return true
}

// bindOptional binds query parameters, then the body if one was sent.
// Form bodies bind as forms and anything else is read as JSON.
func bindOptional(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		return err
	}
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}

	switch c.ContentType() {
	case binding.MIMEPOSTForm, binding.MIMEMultipartPOSTForm:
		return c.ShouldBind(obj)
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func respondError(c *gin.Context, message string, err error) {
	status := serrors.HTTPStatus(err)
	args := []interface{}{"error", err}
	if details := serrors.GetDetails(err); details != nil {
		args = append(args, "details", details)
	}
	if status >= http.StatusInternalServerError {
		logger.Error(message, args...)
	} else {
		logger.Warn(message, args...)
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

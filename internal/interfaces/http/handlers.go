package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-desk/internal/application/service"
	"github.com/garyjia/travel-desk/internal/domain"
	"github.com/garyjia/travel-desk/internal/domain/entity"
	"github.com/garyjia/travel-desk/internal/domain/workflow"
)

const (
	maxUploadSize   = 20 << 20
	maxCallbackSize = 1 << 20
)

// Partner callback headers
const (
	HeaderPartnerTimestamp = "X-Partner-Timestamp"
	HeaderPartnerSignature = "X-Partner-Signature"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateTripRequest is the body of POST /trips
type CreateTripRequest struct {
	Name                string                 `json:"name" binding:"required"`
	TravelType          string                 `json:"travelType" binding:"required,oneof=domestic international"`
	DestinationCountry  string                 `json:"destinationCountry"`
	VisaRequired        bool                   `json:"visaRequired"`
	BusinessPurpose     string                 `json:"businessPurpose"`
	IsVisaRequest       bool                   `json:"isVisaRequest"`
	DeferredBooking     bool                   `json:"deferredBooking"`
	ExpectedJourneyDate string                 `json:"expectedJourneyDate"`
	Segments            []service.SegmentInput `json:"segments"`
}

// SelectOptionRequest is the body of POST /trips/:id/options/select
type SelectOptionRequest struct {
	OptionText string                 `json:"optionText" binding:"required"`
	Cost       *int64                 `json:"cost"`
	Payload    map[string]interface{} `json:"payload"`
}

// ChooseOptionRequest is the body of POST /trips/:id/options/choose
type ChooseOptionRequest struct {
	OptionText string `json:"optionText" binding:"required"`
}

// CostRequest carries an amount for booking, visa and cancellation fees
type CostRequest struct {
	Cost int64 `json:"cost" binding:"min=0"`
}

// CancellationRequest is the body of POST /trips/:id/cancellation
type CancellationRequest struct {
	Reason string `json:"reason"`
}

// RescheduleRequest is the body of POST /trips/:id/reschedule
type RescheduleRequest struct {
	Segments []service.SegmentChange `json:"segments" binding:"required,min=1"`
}

// DecisionRequest is the body of POST /approvals/:id/decision
type DecisionRequest struct {
	Action   entity.Decision `json:"action" binding:"required"`
	Comments string          `json:"comments"`
}

// PartnerCallbackRequest is the option the booking partner reports back
type PartnerCallbackRequest struct {
	ReferenceCode string                 `json:"referenceCode"`
	OptionText    string                 `json:"optionText"`
	Cost          *int64                 `json:"cost"`
	Payload       map[string]interface{} `json:"payload"`
}

// ListRequest represents pagination query parameters
type ListRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// StatusResponse reports the status a trip ended up in
type StatusResponse struct {
	Status workflow.State `json:"status"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	if h.services.Health != nil {
		if err := h.services.Health.Health(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			response.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, Response{
				Success: false,
				Data:    response,
				Error:   err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateTrip handles POST /api/v1/trips
func (h *Handlers) CreateTrip(c *gin.Context) {
	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	input := service.CreateTripInput{
		RequesterID:        callerID(c),
		Name:               req.Name,
		TravelType:         req.TravelType,
		DestinationCountry: req.DestinationCountry,
		VisaRequired:       req.VisaRequired,
		BusinessPurpose:    req.BusinessPurpose,
		IsVisaRequest:      req.IsVisaRequest,
		DeferredBooking:    req.DeferredBooking,
		Segments:           req.Segments,
	}
	if req.ExpectedJourneyDate != "" {
		d, err := time.Parse("2006-01-02", req.ExpectedJourneyDate)
		if err != nil {
			badRequest(c, "expectedJourneyDate must be YYYY-MM-DD")
			return
		}
		input.ExpectedJourneyDate = &d
	}

	result, err := h.services.Trips.Create(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, "create trip", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// ListTrips handles GET /api/v1/trips for the caller's own trips
func (h *Handlers) ListTrips(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	trips, err := h.services.Trips.ListTrips(c.Request.Context(), callerID(c), req.Limit, req.Offset)
	if err != nil {
		h.respondError(c, "list trips", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: trips})
}

// GetTrip handles GET /api/v1/trips/:id
func (h *Handlers) GetTrip(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	detail, err := h.services.Trips.GetTrip(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "get trip", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: detail})
}

// SelectOption handles POST /api/v1/trips/:id/options/select
func (h *Handlers) SelectOption(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req SelectOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	status, err := h.services.Trips.SelectOption(c.Request.Context(), service.SelectOptionInput{
		TripID:     id,
		ActorID:    callerID(c),
		OptionText: req.OptionText,
		Cost:       req.Cost,
		Payload:    req.Payload,
	})
	h.respondStatus(c, "select option", status, err)
}

// ChooseOption handles POST /api/v1/trips/:id/options/choose
func (h *Handlers) ChooseOption(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ChooseOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	status, err := h.services.Trips.ChooseOption(c.Request.Context(), id, callerID(c), req.OptionText)
	h.respondStatus(c, "choose option", status, err)
}

// MarkOptionsUploaded handles POST /api/v1/trips/:id/options-uploaded
func (h *Handlers) MarkOptionsUploaded(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	status, err := h.services.Trips.MarkOptionsUploaded(c.Request.Context(), id, callerID(c))
	h.respondStatus(c, "mark options uploaded", status, err)
}

// RecordBooking handles POST /api/v1/trips/:id/booking
func (h *Handlers) RecordBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req CostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	status, err := h.services.Trips.RecordBooking(c.Request.Context(), id, callerID(c), req.Cost)
	h.respondStatus(c, "record booking", status, err)
}

// RecordVisaUpload handles POST /api/v1/trips/:id/visa
func (h *Handlers) RecordVisaUpload(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req CostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	status, err := h.services.Trips.RecordVisaUpload(c.Request.Context(), id, callerID(c), req.Cost)
	h.respondStatus(c, "record visa upload", status, err)
}

// CloseTrip handles POST /api/v1/trips/:id/close
func (h *Handlers) CloseTrip(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	status, err := h.services.Trips.Close(c.Request.Context(), id, callerID(c))
	h.respondStatus(c, "close trip", status, err)
}

// RequestCancellation handles POST /api/v1/trips/:id/cancellation
func (h *Handlers) RequestCancellation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req CancellationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	status, err := h.services.Cancellations.Request(c.Request.Context(), id, callerID(c), req.Reason)
	h.respondStatus(c, "request cancellation", status, err)
}

// ConfirmCancellation handles POST /api/v1/trips/:id/cancellation/confirm
func (h *Handlers) ConfirmCancellation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req CostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	status, err := h.services.Cancellations.Confirm(c.Request.Context(), id, callerID(c), req.Cost)
	h.respondStatus(c, "confirm cancellation", status, err)
}

// Reschedule handles POST /api/v1/trips/:id/reschedule
func (h *Handlers) Reschedule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	status, err := h.services.Reschedules.Reschedule(c.Request.Context(), service.RescheduleInput{
		TripID:   id,
		ActorID:  callerID(c),
		Segments: req.Segments,
	})
	h.respondStatus(c, "reschedule", status, err)
}

// AttachFile handles multipart POST /api/v1/trips/:id/files
func (h *Handlers) AttachFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize+1<<20)
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	f, err := header.Open()
	if err != nil {
		badRequest(c, "cannot read uploaded file")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		badRequest(c, "cannot read uploaded file")
		return
	}

	file, err := h.services.Documents.AttachFile(c.Request.Context(), service.AttachFileInput{
		TripID:      id,
		ActorID:     callerID(c),
		Kind:        c.PostForm("kind"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		h.respondError(c, "attach file", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: file})
}

// ListFiles handles GET /api/v1/trips/:id/files?kind=receipt
func (h *Handlers) ListFiles(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	files, err := h.services.Documents.ListFiles(c.Request.Context(), id, c.QueryArray("kind")...)
	if err != nil {
		h.respondError(c, "list files", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: files})
}

// ListPendingApprovals handles GET /api/v1/approvals
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	approvals, err := h.services.Trips.ListPendingApprovals(c.Request.Context(), callerID(c))
	if err != nil {
		h.respondError(c, "list approvals", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: approvals})
}

// Decide handles POST /api/v1/approvals/:id/decision
func (h *Handlers) Decide(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.services.Trips.Decide(c.Request.Context(), service.DecideInput{
		ApprovalID: id,
		ActorID:    callerID(c),
		Action:     req.Action,
		Comments:   req.Comments,
	})
	if err != nil {
		h.respondError(c, "decide", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// RunAutoClose handles POST /api/v1/admin/auto-close
func (h *Handlers) RunAutoClose(c *gin.Context) {
	actor, err := h.services.Directory.GetByID(c.Request.Context(), callerID(c))
	if err != nil || !actor.IsAdmin() {
		h.respondError(c, "auto close", fmt.Errorf("%w: travel admin required", domain.ErrForbidden))
		return
	}

	result, err := h.services.AutoClose.Sweep(c.Request.Context(), time.Now())
	if err != nil {
		h.respondError(c, "auto close", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// PartnerCallback handles POST /api/v1/partner/callback. The signature
// covers the raw body, so it is verified before the body is parsed.
func (h *Handlers) PartnerCallback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackSize))
	if err != nil {
		badRequest(c, "cannot read request body")
		return
	}

	if h.services.Verifier == nil {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "partner callbacks are not configured"})
		return
	}
	if err := h.services.Verifier.Verify(
		c.GetHeader(HeaderPartnerTimestamp),
		c.GetHeader(HeaderPartnerSignature),
		body,
	); err != nil {
		h.logger.Warn("Rejected partner callback", "error", err, "client_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: err.Error()})
		return
	}

	var req PartnerCallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.ReferenceCode == "" {
		badRequest(c, "referenceCode is required")
		return
	}

	trip, err := h.services.Trips.GetTripByReference(c.Request.Context(), req.ReferenceCode)
	if err != nil {
		h.respondError(c, "partner callback", err)
		return
	}

	status, err := h.services.Trips.SelectOption(c.Request.Context(), service.SelectOptionInput{
		TripID:     trip.ID,
		OptionText: req.OptionText,
		Cost:       req.Cost,
		Payload:    req.Payload,
	})
	h.respondStatus(c, "partner callback", status, err)
}

// respondStatus writes the resulting trip status or the error
func (h *Handlers) respondStatus(c *gin.Context, op string, status workflow.State, err error) {
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: StatusResponse{Status: status}})
}

// pathID parses the :id parameter, writing a 400 when it is malformed
func pathID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id "+strconv.Quote(idStr))
		return 0, false
	}
	return id, true
}

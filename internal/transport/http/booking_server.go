package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"slotline/internal/domain"
	"slotline/internal/service/booking"
	"slotline/internal/store"
)

type BookingServer struct {
	svc                bookingService
	log                *slog.Logger
	defaultHorizon     time.Duration
	defaultGranularity time.Duration
}

type bookingService interface {
	Availability(ctx context.Context, in booking.AvailabilityInput) ([]domain.Slot, error)
	Reserve(ctx context.Context, in booking.ReserveInput) (domain.Reservation, error)
	ListReservations(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Reservation, error)
	UpdateStatus(ctx context.Context, providerID string, reservationID uuid.UUID, next domain.ReservationStatus) (domain.Reservation, error)
}

func NewBookingServer(svc bookingService, log *slog.Logger, defaultHorizon, defaultGranularity time.Duration) *BookingServer {
	if log == nil {
		log = slog.Default()
	}
	if defaultHorizon <= 0 {
		defaultHorizon = 14 * 24 * time.Hour
	}
	if defaultGranularity <= 0 {
		defaultGranularity = 30 * time.Minute
	}
	return &BookingServer{
		svc:                svc,
		log:                log.With(slog.String("component", "http.booking")),
		defaultHorizon:     defaultHorizon,
		defaultGranularity: defaultGranularity,
	}
}

func (s *BookingServer) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/providers/:provider_id/availability", s.availability)
	r.GET("/v1/providers/:provider_id/reservations", s.listReservations)
	r.POST("/v1/reservations", s.createReservation)
	r.POST("/v1/reservations/:reservation_id/status", s.updateStatus)
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, kind, message string) {
	c.JSON(status, gin.H{"error": errorBody{Kind: kind, Message: message}})
}

// writeServiceError maps the engine's error taxonomy onto HTTP. Conflicts and
// validation failures are always surfaced distinctly: the caller re-picks a
// slot on 409 and fixes input on 400.
func (s *BookingServer) writeServiceError(c *gin.Context, log *slog.Logger, err error) {
	var vErr *booking.ValidationError
	if errors.As(err, &vErr) {
		log.Warn("invalid request", slog.Any("err", err))
		writeError(c, http.StatusBadRequest, "validation", vErr.Error())
		return
	}
	if errors.Is(err, store.ErrConflict) {
		log.Info("conflict")
		writeError(c, http.StatusConflict, "conflict", "the requested time is no longer available")
		return
	}
	if errors.Is(err, store.ErrIdempotencyConflict) {
		log.Info("idempotency conflict")
		writeError(c, http.StatusConflict, "conflict", "this idempotency key was already used for a different reservation")
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		log.Info("not found")
		writeError(c, http.StatusNotFound, "not_found", "not found")
		return
	}
	var sErr *booking.StorageError
	if errors.As(err, &sErr) {
		log.Error("storage failure", slog.Any("err", err))
		writeError(c, http.StatusServiceUnavailable, "storage", "temporary storage failure, retry later")
		return
	}
	log.Error("request failed", slog.Any("err", err))
	writeError(c, http.StatusInternalServerError, "storage", "internal error")
}

type slotItem struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status string    `json:"status"`
}

func (s *BookingServer) availability(c *gin.Context) {
	log := s.log.With(slog.String("handler", "availability"))
	providerID := c.Param("provider_id")

	now := time.Now().UTC()
	from, ok := s.queryTime(c, "from", now)
	if !ok {
		return
	}
	to, ok := s.queryTime(c, "to", from.Add(s.defaultHorizon))
	if !ok {
		return
	}
	duration, ok := s.queryMinutes(c, "duration_minutes", 0)
	if !ok {
		return
	}
	granularity, ok := s.queryMinutes(c, "granularity_minutes", s.defaultGranularity)
	if !ok {
		return
	}

	slots, err := s.svc.Availability(c.Request.Context(), booking.AvailabilityInput{
		ProviderID:      providerID,
		HorizonStart:    from,
		HorizonEnd:      to,
		ServiceDuration: duration,
		Granularity:     granularity,
	})
	if err != nil {
		s.writeServiceError(c, log.With(slog.String("provider_id", providerID)), err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, slot := range slots {
		items = append(items, slotItem{Start: slot.Start, End: slot.End, Status: string(slot.Status)})
	}

	log.Debug(
		"availability computed",
		slog.String("provider_id", providerID),
		slog.Int("slots", len(items)),
		slog.Time("from", from),
		slog.Time("to", to),
	)
	c.JSON(http.StatusOK, gin.H{"provider_id": providerID, "slots": items})
}

type createReservationRequest struct {
	ProviderID    string    `json:"provider_id"`
	ServiceID     string    `json:"service_id"`
	ServiceName   string    `json:"service_name"`
	PriceYen      int       `json:"price_yen"`
	CustomerPhone string    `json:"customer_phone"`
	Memo          string    `json:"memo"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

func (s *BookingServer) createReservation(c *gin.Context) {
	log := s.log.With(slog.String("handler", "create_reservation"))

	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid request body", slog.Any("err", err))
		writeError(c, http.StatusBadRequest, "validation", "invalid json body")
		return
	}

	res, err := s.svc.Reserve(c.Request.Context(), booking.ReserveInput{
		ProviderID:     req.ProviderID,
		ServiceID:      req.ServiceID,
		ServiceName:    req.ServiceName,
		PriceYen:       req.PriceYen,
		CustomerPhone:  req.CustomerPhone,
		Memo:           req.Memo,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	})
	if err != nil {
		s.writeServiceError(c, log.With(slog.String("provider_id", req.ProviderID)), err)
		return
	}

	log.Info(
		"reservation created",
		slog.String("reservation_id", res.ID.String()),
		slog.String("provider_id", res.ProviderID),
		slog.Time("start_time", res.StartTime),
		slog.Time("end_time", res.EndTime),
	)
	c.JSON(http.StatusCreated, gin.H{"reservation": toReservationItem(res)})
}

func (s *BookingServer) listReservations(c *gin.Context) {
	log := s.log.With(slog.String("handler", "list_reservations"))
	providerID := c.Param("provider_id")

	now := time.Now().UTC()
	from, ok := s.queryTime(c, "from", now)
	if !ok {
		return
	}
	to, ok := s.queryTime(c, "to", from.Add(s.defaultHorizon))
	if !ok {
		return
	}

	rows, err := s.svc.ListReservations(c.Request.Context(), providerID, from, to)
	if err != nil {
		s.writeServiceError(c, log.With(slog.String("provider_id", providerID)), err)
		return
	}

	items := make([]reservationItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, toReservationItem(r))
	}

	log.Debug("reservations listed", slog.String("provider_id", providerID), slog.Int("count", len(items)))
	c.JSON(http.StatusOK, gin.H{"provider_id": providerID, "reservations": items})
}

type updateStatusRequest struct {
	ProviderID string `json:"provider_id"`
	Status     string `json:"status"`
}

func (s *BookingServer) updateStatus(c *gin.Context) {
	log := s.log.With(slog.String("handler", "update_status"))

	id, err := uuid.Parse(c.Param("reservation_id"))
	if err != nil {
		log.Warn("invalid reservation id")
		writeError(c, http.StatusBadRequest, "validation", "reservation_id must be a UUID")
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid request body", slog.Any("err", err))
		writeError(c, http.StatusBadRequest, "validation", "invalid json body")
		return
	}

	res, err := s.svc.UpdateStatus(c.Request.Context(), req.ProviderID, id, domain.ReservationStatus(req.Status))
	if err != nil {
		s.writeServiceError(c, log.With(slog.String("reservation_id", id.String())), err)
		return
	}

	log.Info(
		"reservation status updated",
		slog.String("reservation_id", res.ID.String()),
		slog.String("provider_id", res.ProviderID),
		slog.String("status", string(res.Status)),
	)
	c.JSON(http.StatusOK, gin.H{"reservation": toReservationItem(res)})
}

type reservationItem struct {
	ID            string    `json:"id"`
	ProviderID    string    `json:"provider_id"`
	ServiceID     string    `json:"service_id"`
	ServiceName   string    `json:"service_name,omitempty"`
	PriceYen      int       `json:"price_yen"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	Memo          string    `json:"memo,omitempty"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toReservationItem(r domain.Reservation) reservationItem {
	return reservationItem{
		ID:            r.ID.String(),
		ProviderID:    r.ProviderID,
		ServiceID:     r.ServiceID,
		ServiceName:   r.ServiceName,
		PriceYen:      r.PriceYen,
		CustomerPhone: r.CustomerPhone,
		Memo:          r.Memo,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
	}
}

func (s *BookingServer) queryTime(c *gin.Context, name string, fallback time.Time) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(c, http.StatusBadRequest, "validation", name+" must be RFC 3339")
		return time.Time{}, false
	}
	return t.UTC(), true
}

func (s *BookingServer) queryMinutes(c *gin.Context, name string, fallback time.Duration) (time.Duration, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(c, http.StatusBadRequest, "validation", name+" must be a positive integer")
		return 0, false
	}
	return time.Duration(n) * time.Minute, true
}

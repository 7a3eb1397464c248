package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/adapter/usage"
	"github.com/couchcryptid/order-geo-service/internal/domain"
)

const maxBodyBytes = 64 << 10

type geocodeRequest struct {
	Address string `json:"address"`
	City    string `json:"city"`
}

// geocodeResponse flattens the result next to the resolved flag; an
// unresolved address carries only {"resolved": false}.
type geocodeResponse struct {
	Resolved bool `json:"resolved"`
	*domain.GeocodeResult
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	var req geocodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "address is required")
		return
	}

	result, ok := s.deps.Geocoder.Geocode(r.Context(), req.Address, req.City)
	if !ok {
		writeJSON(w, http.StatusOK, geocodeResponse{Resolved: false})
		return
	}
	writeJSON(w, http.StatusOK, geocodeResponse{Resolved: true, GeocodeResult: &result})
}

type estimateRequest struct {
	Restaurant    *domain.Coordinate `json:"restaurant"`
	Customer      *domain.Coordinate `json:"customer"`
	OrderType     string             `json:"order_type"`
	CartItemCount int                `json:"cart_item_count"`
	Timestamp     *time.Time         `json:"timestamp"`
	Weather       string             `json:"weather"`
}

type estimateResponse struct {
	domain.DeliveryEstimate
	Display string `json:"display"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := req.toOrder()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	est := s.deps.Estimator.EstimateOrder(r.Context(), order)
	if s.deps.Metrics != nil {
		s.deps.Metrics.Estimates.WithLabelValues(string(order.OrderType), string(est.Confidence)).Inc()
	}
	writeJSON(w, http.StatusOK, estimateResponse{
		DeliveryEstimate: est,
		Display:          domain.FormatDeliveryEstimate(est),
	})
}

func (req estimateRequest) toOrder() (domain.Order, error) {
	orderType, ok := domain.ParseOrderType(req.OrderType)
	if !ok {
		return domain.Order{}, errors.New("order_type must be delivery or pickup")
	}
	if req.CartItemCount < 0 {
		return domain.Order{}, errors.New("cart_item_count must not be negative")
	}

	var weather domain.WeatherCondition
	if req.Weather != "" {
		if weather, ok = domain.ParseWeatherCondition(req.Weather); !ok {
			return domain.Order{}, errors.New("weather must be clear, rain or heavy_rain")
		}
	}

	order := domain.Order{
		OrderType:     orderType,
		CartItemCount: req.CartItemCount,
		Weather:       weather,
	}
	if req.Timestamp != nil {
		order.Timestamp = *req.Timestamp
	}

	if orderType == domain.OrderDelivery {
		if req.Restaurant == nil || req.Customer == nil {
			return domain.Order{}, errors.New("restaurant and customer are required for delivery")
		}
		if !validCoordinate(*req.Restaurant) || !validCoordinate(*req.Customer) {
			return domain.Order{}, errors.New("coordinates out of range")
		}
	}
	if req.Restaurant != nil {
		order.Restaurant = *req.Restaurant
	}
	if req.Customer != nil {
		order.Customer = *req.Customer
	}
	return order, nil
}

func validCoordinate(c domain.Coordinate) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

type usageResponse struct {
	Day       string                       `json:"day"`
	Providers []domain.ProviderUsageRecord `json:"providers"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Usage == nil {
		writeError(w, http.StatusNotImplemented, "usage_unavailable", "usage store is not readable")
		return
	}

	day := domain.CalendarDay(s.deps.Clock.Now().In(s.deps.Location))
	if v := r.URL.Query().Get("day"); v != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, v, s.deps.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "day must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	records, err := usage.Snapshot(r.Context(), s.deps.Usage, day, s.deps.Providers)
	if err != nil {
		s.logger.Error("read provider usage failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "usage_unavailable", "usage store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, usageResponse{Day: domain.DayKey(day), Providers: records})
}

// decodeBody reads a JSON request body into v, answering 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return false
	}
	return true
}

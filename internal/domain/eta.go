package domain

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// OrderType selects the pickup or delivery time model.
type OrderType string

const (
	OrderDelivery OrderType = "delivery"
	OrderPickup   OrderType = "pickup"
)

// ParseOrderType validates a wire value.
func ParseOrderType(s string) (OrderType, bool) {
	switch OrderType(strings.ToLower(strings.TrimSpace(s))) {
	case OrderDelivery:
		return OrderDelivery, true
	case OrderPickup:
		return OrderPickup, true
	default:
		return "", false
	}
}

// Confidence grades how tight an estimate is.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// downgrade lowers c by one level; low stays low.
func (c Confidence) downgrade() Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Model constants.
const (
	courierSpeedKmh     = 20.0
	arrivalBufferMin    = 3.0
	pickupRangeMinutes  = 5
	pickupRangeFloorMin = 10
	mediumDistanceKm    = 3.0
	farDistanceKm       = 5.0
)

// EstimationParams is the full input of Estimate.
type EstimationParams struct {
	Restaurant    Coordinate
	Customer      Coordinate
	OrderType     OrderType
	CartItemCount int
	Timestamp     time.Time
	DayOfWeek     time.Weekday
	Weather       WeatherCondition // zero value means clear
}

// TimeRange is an inclusive bracket in minutes.
type TimeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// DeliveryEstimate is the time estimate for an order.
type DeliveryEstimate struct {
	PrepTime   int        `json:"prep_time"`
	TravelTime int        `json:"travel_time"`
	TotalTime  int        `json:"total_time"`
	Confidence Confidence `json:"confidence"`
	Range      TimeRange  `json:"range"`
}

// Estimate computes the fulfilment time for an order. It is total over its
// input domain and has no side effects.
func Estimate(p EstimationParams) DeliveryEstimate {
	hour := p.Timestamp.Hour()
	prep := prepTime(p.CartItemCount, hour, p.DayOfWeek)

	if p.OrderType == OrderPickup {
		total := int(math.Round(prep))
		return DeliveryEstimate{
			PrepTime:   total,
			TotalTime:  total,
			Confidence: ConfidenceHigh,
			Range: TimeRange{
				Min: max(total-pickupRangeMinutes, pickupRangeFloorMin),
				Max: total + pickupRangeMinutes,
			},
		}
	}

	weather := p.Weather
	if weather == "" {
		weather = WeatherClear
	}

	distance := DistanceKm(p.Restaurant, p.Customer)
	travel := math.Round(distance/courierSpeedKmh*60*
		TrafficMultiplier(hour)*DayMultiplier(p.DayOfWeek)*WeatherMultiplier(weather) + arrivalBufferMin)
	total := int(math.Round(prep + travel))

	confidence := deliveryConfidence(distance, weather, hour)
	variance := rangeVariance(confidence)

	return DeliveryEstimate{
		PrepTime:   int(math.Round(prep)),
		TravelTime: int(travel),
		TotalTime:  total,
		Confidence: confidence,
		Range: TimeRange{
			Min: int(math.Round(float64(total) * (1 - variance))),
			Max: int(math.Round(float64(total) * (1 + variance))),
		},
	}
}

// prepTime is the kitchen time by cart size, scaled by the day multiplier
// during the [19,22) dinner rush for both order types.
func prepTime(items, hour int, day time.Weekday) float64 {
	var prep float64
	switch {
	case items <= 3:
		prep = 15
	case items <= 6:
		prep = 20
	case items <= 10:
		prep = 25
	default:
		prep = 30
	}
	if hour >= 19 && hour < 22 {
		prep *= DayMultiplier(day)
	}
	return prep
}

// deliveryConfidence applies the two discrete downgrade stages:
// distance/weather, then at most one peak-hour step.
func deliveryConfidence(distanceKm float64, weather WeatherCondition, hour int) Confidence {
	c := ConfidenceHigh
	if distanceKm > mediumDistanceKm || weather != WeatherClear {
		c = ConfidenceMedium
	}
	if distanceKm > farDistanceKm {
		c = ConfidenceLow
	}
	if IsPeakHour(hour) {
		c = c.downgrade()
	}
	return c
}

func rangeVariance(c Confidence) float64 {
	switch c {
	case ConfidenceHigh:
		return 0.10
	case ConfidenceMedium:
		return 0.15
	default:
		return 0.20
	}
}

// IsPeakHour reports whether hour falls in the lunch [12,14) or dinner [19,21) peak.
func IsPeakHour(hour int) bool {
	return (hour >= 12 && hour < 14) || (hour >= 19 && hour < 21)
}

// TrafficMultiplier scales travel time by time of day.
func TrafficMultiplier(hour int) float64 {
	switch {
	case IsPeakHour(hour):
		return 1.5
	case hour == 11, hour >= 14 && hour < 19, hour == 21:
		return 1.2
	default:
		return 1.0
	}
}

// DayMultiplier scales travel time, and dinner-rush prep time, by weekday.
func DayMultiplier(day time.Weekday) float64 {
	switch day {
	case time.Friday:
		return 1.2
	case time.Saturday, time.Sunday:
		return 1.1
	default:
		return 1.0
	}
}

// WeatherMultiplier scales travel time by condition.
func WeatherMultiplier(c WeatherCondition) float64 {
	switch c {
	case WeatherRain:
		return 1.4
	case WeatherHeavyRain:
		return 1.8
	default:
		return 1.0
	}
}

// FormatDeliveryEstimate renders the customer-facing ETA: "{total} min" for
// high confidence, "{min}-{max} min" otherwise.
func FormatDeliveryEstimate(e DeliveryEstimate) string {
	if e.Confidence == ConfidenceHigh {
		return fmt.Sprintf("%d min", e.TotalTime)
	}
	return fmt.Sprintf("%d-%d min", e.Range.Min, e.Range.Max)
}

// Order describes an order before time and weather are known.
type Order struct {
	Restaurant    Coordinate
	Customer      Coordinate
	OrderType     OrderType
	CartItemCount int
	Timestamp     time.Time        // zero means now
	Weather       WeatherCondition // empty means look it up for deliveries
}

// OrderEstimator fills in time, weekday and weather before calling Estimate.
type OrderEstimator struct {
	weather  WeatherProvider
	location *time.Location
}

// NewOrderEstimator creates an OrderEstimator. A nil weather provider assumes
// clear weather; timestamps are interpreted in loc (UTC when nil).
func NewOrderEstimator(weather WeatherProvider, loc *time.Location) *OrderEstimator {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderEstimator{weather: weather, location: loc}
}

// EstimateOrder returns the estimate for o, consulting the weather provider
// only for deliveries without an explicit condition.
func (e *OrderEstimator) EstimateOrder(ctx context.Context, o Order) DeliveryEstimate {
	ts := o.Timestamp
	if ts.IsZero() {
		ts = clock.Now()
	}
	ts = ts.In(e.location)

	weather := o.Weather
	if weather == "" {
		weather = WeatherClear
		if o.OrderType == OrderDelivery && e.weather != nil {
			weather = e.weather.CurrentCondition(ctx, o.Customer.Lat, o.Customer.Lng)
		}
	}

	return Estimate(EstimationParams{
		Restaurant:    o.Restaurant,
		Customer:      o.Customer,
		OrderType:     o.OrderType,
		CartItemCount: o.CartItemCount,
		Timestamp:     ts,
		DayOfWeek:     ts.Weekday(),
		Weather:       weather,
	})
}

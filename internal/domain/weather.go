package domain

import (
	"context"
	"strings"
)

// WeatherCondition is the coarse condition class that drives the ETA weather multiplier.
type WeatherCondition string

const (
	WeatherClear     WeatherCondition = "clear"
	WeatherRain      WeatherCondition = "rain"
	WeatherHeavyRain WeatherCondition = "heavy_rain"
)

// WeatherProvider reports current conditions. It never fails: missing
// configuration or a failed lookup reports WeatherClear.
type WeatherProvider interface {
	CurrentCondition(ctx context.Context, lat, lng float64) WeatherCondition
}

// ParseWeatherCondition maps a wire value to a condition. The empty string
// is clear; unknown values are rejected.
func ParseWeatherCondition(s string) (WeatherCondition, bool) {
	switch WeatherCondition(strings.ToLower(strings.TrimSpace(s))) {
	case "", WeatherClear:
		return WeatherClear, true
	case WeatherRain:
		return WeatherRain, true
	case WeatherHeavyRain:
		return WeatherHeavyRain, true
	default:
		return "", false
	}
}

// ClassifyWeather maps an OpenWeatherMap "weather[0].main" group to a condition.
func ClassifyWeather(main string) WeatherCondition {
	switch strings.ToLower(strings.TrimSpace(main)) {
	case "rain", "drizzle":
		return WeatherRain
	case "thunderstorm":
		return WeatherHeavyRain
	default:
		return WeatherClear
	}
}

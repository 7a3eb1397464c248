package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/domain"
	"github.com/spf13/cobra"
)

var estimateOptions struct {
	restaurant string
	customer   string
	orderType  string
	items      int
	at         string
	weather    string
	asJSON     bool
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the fulfilment time of an order",
	Example: `  geoctl estimate --restaurant 36.8065,10.1815 --customer 36.8245,10.1815 --items 2
  geoctl estimate --type pickup --items 12 --at 2024-04-26T20:00:00+01:00`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		order, err := buildOrder(estimateOptions.orderType, estimateOptions.restaurant, estimateOptions.customer,
			estimateOptions.items, estimateOptions.at, estimateOptions.weather)
		if err != nil {
			return err
		}

		est := env.svc.Estimator.EstimateOrder(contextOf(cmd), order)
		if estimateOptions.asJSON {
			return writeJSONLine(cmd.OutOrStdout(), est)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (prep %d, travel %d, confidence %s)\n",
			domain.FormatDeliveryEstimate(est), est.PrepTime, est.TravelTime, est.Confidence)
		return nil
	},
}

func init() {
	f := estimateCmd.Flags()
	f.StringVar(&estimateOptions.restaurant, "restaurant", "", "restaurant location as lat,lng")
	f.StringVar(&estimateOptions.customer, "customer", "", "customer location as lat,lng")
	f.StringVar(&estimateOptions.orderType, "type", string(domain.OrderDelivery), "delivery or pickup")
	f.IntVar(&estimateOptions.items, "items", 1, "number of items in the cart")
	f.StringVar(&estimateOptions.at, "at", "", "order time in RFC 3339 (defaults to now)")
	f.StringVar(&estimateOptions.weather, "weather", "", "clear, rain or heavy_rain (defaults to a live lookup)")
	f.BoolVar(&estimateOptions.asJSON, "json", false, "print the estimate as JSON")
}

func buildOrder(orderType, restaurant, customer string, items int, at, weather string) (domain.Order, error) {
	t, ok := domain.ParseOrderType(orderType)
	if !ok {
		return domain.Order{}, fmt.Errorf("unknown order type %q", orderType)
	}
	if items < 0 {
		return domain.Order{}, errors.New("--items must not be negative")
	}
	order := domain.Order{OrderType: t, CartItemCount: items}

	if weather != "" {
		if order.Weather, ok = domain.ParseWeatherCondition(weather); !ok {
			return domain.Order{}, fmt.Errorf("unknown weather %q", weather)
		}
	}
	if at != "" {
		ts, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return domain.Order{}, fmt.Errorf("--at: %w", err)
		}
		order.Timestamp = ts
	}

	if t == domain.OrderPickup {
		return order, nil
	}
	var err error
	if order.Restaurant, err = parseCoordinate(restaurant); err != nil {
		return domain.Order{}, fmt.Errorf("--restaurant: %w", err)
	}
	if order.Customer, err = parseCoordinate(customer); err != nil {
		return domain.Order{}, fmt.Errorf("--customer: %w", err)
	}
	return order, nil
}

// parseCoordinate reads "lat,lng".
func parseCoordinate(s string) (domain.Coordinate, error) {
	latStr, lngStr, found := strings.Cut(s, ",")
	if !found {
		return domain.Coordinate{}, fmt.Errorf("want lat,lng, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("longitude: %w", err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return domain.Coordinate{}, fmt.Errorf("%q is out of range", s)
	}
	return domain.Coordinate{Lat: lat, Lng: lng}, nil
}

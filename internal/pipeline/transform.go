package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/order-geo-service/internal/domain"
)

// Geocoder resolves a free-text address. domain.Resolver implements it.
type Geocoder interface {
	Geocode(ctx context.Context, address, city string) (domain.GeocodeResult, bool)
}

// GeocodeTransformer implements Transformer by running each address request
// through the provider cascade.
type GeocodeTransformer struct {
	geocoder Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a GeocodeTransformer.
func NewTransformer(geocoder Geocoder, logger *slog.Logger) *GeocodeTransformer {
	return &GeocodeTransformer{
		geocoder: geocoder,
		logger:   logger,
	}
}

// Transform parses raw and resolves it. An unresolved address is a valid
// result with Resolved false; only undecodable requests return an error.
func (t *GeocodeTransformer) Transform(ctx context.Context, raw domain.RawMessage) (domain.ResolvedAddress, error) {
	req, err := domain.ParseAddressRequest(raw)
	if err != nil {
		return domain.ResolvedAddress{}, err
	}

	result, ok := t.geocoder.Geocode(ctx, req.Address, req.City)
	if !ok {
		t.logger.Info("order address unresolved", "order_id", req.OrderID)
	}
	return domain.NewResolvedAddress(req, result, ok), nil
}

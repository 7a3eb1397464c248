package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawMessage is an unprocessed message from the source topic.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputMessage is the serialized form destined for the sink topic.
type OutputMessage struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// AddressRequest is published by the order subsystem when a customer submits
// a delivery address.
type AddressRequest struct {
	OrderID string `json:"order_id"`
	Address string `json:"address"`
	City    string `json:"city,omitempty"`
}

// ResolvedAddress is the outcome of geocoding an AddressRequest.
type ResolvedAddress struct {
	OrderID     string    `json:"order_id"`
	Address     string    `json:"address"`
	Resolved    bool      `json:"resolved"`
	Lat         float64   `json:"lat,omitempty"`
	Lng         float64   `json:"lng,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// ParseAddressRequest decodes and validates a source message.
func ParseAddressRequest(raw RawMessage) (AddressRequest, error) {
	var req AddressRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return AddressRequest{}, fmt.Errorf("parse address request: %w", err)
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.OrderID == "" {
		req.OrderID = string(raw.Key)
	}
	if req.OrderID == "" {
		return AddressRequest{}, fmt.Errorf("parse address request: missing order_id")
	}
	if strings.TrimSpace(req.Address) == "" {
		return AddressRequest{}, fmt.Errorf("parse address request %s: blank address", req.OrderID)
	}
	return req, nil
}

// NewResolvedAddress builds the outcome record for req.
func NewResolvedAddress(req AddressRequest, result GeocodeResult, ok bool) ResolvedAddress {
	out := ResolvedAddress{
		OrderID:    req.OrderID,
		Address:    req.Address,
		Resolved:   ok,
		ResolvedAt: clock.Now().UTC(),
	}
	if ok {
		out.Lat = result.Lat
		out.Lng = result.Lng
		out.DisplayName = result.DisplayName
		out.Confidence = result.Confidence
		out.Provider = result.Provider
	}
	return out
}

// SerializeResolvedAddress encodes a result for the sink topic, keyed by order.
func SerializeResolvedAddress(r ResolvedAddress) (OutputMessage, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return OutputMessage{}, fmt.Errorf("serialize resolved address: %w", err)
	}
	return OutputMessage{
		Key:   []byte(r.OrderID),
		Value: data,
		Headers: map[string]string{
			"resolved":    strconv.FormatBool(r.Resolved),
			"provider":    r.Provider,
			"resolved_at": r.ResolvedAt.Format(time.RFC3339),
		},
	}, nil
}

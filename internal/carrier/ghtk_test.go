package carrier

import (
	"context"
	"encoding/json"
	"fashion-backend/internal/errors"
	"fashion-backend/internal/model"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGHTKCreateShipment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/services/shipment/order", r.URL.Path)
		assert.Equal(t, "tk", r.Header.Get("Token"))

		var body ghtkCreateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ORD-2026-0100", body.Order.ID)
		assert.Equal(t, "Shop", body.Order.PickName)
		assert.Equal(t, int64(500), body.Order.Value)

		w.Write([]byte(`{"success":true,"order":{"label":"S1.A1.123"}}`))
	}))
	defer server.Close()

	ghtk := NewGHTK(GHTKConfig{BaseURL: server.URL, Token: "tk", RateLimit: 100, PickName: "Shop"})
	label, err := ghtk.CreateShipment(context.Background(), &model.Shipment{}, testOrder())

	assert.NoError(t, err)
	assert.Equal(t, "S1.A1.123", label)
}

func TestGHTKCreateShipmentRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"token invalid"}`))
	}))
	defer server.Close()

	ghtk := NewGHTK(GHTKConfig{BaseURL: server.URL, RateLimit: 100})
	_, err := ghtk.CreateShipment(context.Background(), &model.Shipment{}, testOrder())

	assert.True(t, errors.Is(err, errors.ErrExternal))
	assert.Contains(t, err.Error(), "token invalid")
}

func TestGHTKGetTrackingStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/shipment/v2/S1.A1.123", r.URL.Path)
		w.Write([]byte(`{"success":true,"order":{"label_id":"S1.A1.123","status":"5","status_text":"Đã giao hàng","modified":"2026-10-03 10:15:00","address":"1 Lê Lợi"}}`))
	}))
	defer server.Close()

	ghtk := NewGHTK(GHTKConfig{BaseURL: server.URL, RateLimit: 100})
	status, err := ghtk.GetTrackingStatus(context.Background(), "S1.A1.123")

	assert.NoError(t, err)
	assert.Equal(t, model.ShipmentStatusDelivered, status.Status)
	assert.Len(t, status.Events, 1)
	assert.Equal(t, "Đã giao hàng", status.Events[0].Description)
	assert.Equal(t, int64(1790997300), status.Events[0].OccurredAt.Unix())
}

func TestGHTKGetTrackingStatusUnknownLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"Không tìm thấy đơn hàng"}`))
	}))
	defer server.Close()

	ghtk := NewGHTK(GHTKConfig{BaseURL: server.URL, RateLimit: 100})
	_, err := ghtk.GetTrackingStatus(context.Background(), "missing")

	assert.True(t, errors.Is(err, errors.ErrShipmentNotFound))
}

func TestMapGHTKStatus(t *testing.T) {
	cases := map[string]string{
		"2":  model.ShipmentStatusConfirmed,
		"4":  model.ShipmentStatusShipped,
		"20": model.ShipmentStatusShipped,
		"21": model.ShipmentStatusReturned,
		"5":  model.ShipmentStatusDelivered,
		"-1": model.ShipmentStatusCancelled,
		"99": "",
	}
	for in, want := range cases {
		assert.Equal(t, want, mapGHTKStatus(in), in)
	}
}

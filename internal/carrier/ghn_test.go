package carrier

import (
	"context"
	"encoding/json"
	"fashion-backend/internal/common"
	"fashion-backend/internal/errors"
	"fashion-backend/internal/model"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testOrder() *model.Order {
	return &model.Order{
		ID:          100,
		OrderNumber: "ORD-2026-0100",
		Total:       decimal.NewFromInt(500),
		Items: []*model.OrderDetail{
			{ProductDetailID: 11, Quantity: 2, UnitPrice: decimal.NewFromInt(200)},
		},
		ShippingAddress: model.ShippingAddress{
			ReceiverName:  "Nguyen Van A",
			Phone:         "0900000000",
			Province:      "Hồ Chí Minh",
			District:      "Quận 1",
			Ward:          "Bến Nghé",
			DetailAddress: "1 Lê Lợi",
		},
	}
}

func TestGHNCreateShipment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shiip/public-api/v2/shipping-order/create", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Token"))
		assert.Equal(t, "885", r.Header.Get("ShopId"))

		var body ghnCreateOrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ORD-2026-0100", body.ClientOrderCode)
		assert.Equal(t, 600, body.Weight)
		assert.Len(t, body.Items, 1)

		w.Write([]byte(`{"code":200,"message":"Success","data":{"order_code":"GHN123"}}`))
	}))
	defer server.Close()

	ghn := NewGHN(GHNConfig{BaseURL: server.URL, Token: "secret", ShopID: "885", RateLimit: 100})
	code, err := ghn.CreateShipment(context.Background(), &model.Shipment{}, testOrder())

	assert.NoError(t, err)
	assert.Equal(t, "GHN123", code)
}

func TestGHNCreateShipmentRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":400,"message":"invalid district"}`))
	}))
	defer server.Close()

	ghn := NewGHN(GHNConfig{BaseURL: server.URL, RateLimit: 100})
	_, err := ghn.CreateShipment(context.Background(), &model.Shipment{}, testOrder())

	assert.True(t, errors.Is(err, errors.ErrExternal))
}

func TestGHNGetTrackingStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shiip/public-api/v2/shipping-order/detail", r.URL.Path)
		w.Write([]byte(`{"code":200,"message":"Success","data":{
			"order_code":"GHN123","status":"delivering","current_warehouse_name":"Kho Quận 1",
			"log":[
				{"status":"picked","updated_date":"2026-10-02T08:00:00Z"},
				{"status":"ready_to_pick","updated_date":"2026-10-01T08:00:00Z"}
			]}}`))
	}))
	defer server.Close()

	ghn := NewGHN(GHNConfig{BaseURL: server.URL, RateLimit: 100})
	status, err := ghn.GetTrackingStatus(context.Background(), "GHN123")

	assert.NoError(t, err)
	assert.Equal(t, model.ShipmentStatusShipped, status.Status)
	assert.Equal(t, "Kho Quận 1", status.Location)
	assert.Len(t, status.Events, 2)
	// 按时间升序
	assert.Equal(t, model.ShipmentStatusConfirmed, status.Events[0].Status)
	assert.Equal(t, time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC), status.Events[0].OccurredAt)
	assert.Equal(t, model.ShipmentStatusShipped, status.Events[1].Status)
}

func TestGHNGetTrackingStatusUnknownNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":400,"message":"order not found"}`))
	}))
	defer server.Close()

	ghn := NewGHN(GHNConfig{BaseURL: server.URL, RateLimit: 100})
	_, err := ghn.GetTrackingStatus(context.Background(), "NOPE")

	assert.True(t, errors.Is(err, errors.ErrShipmentNotFound))
}

func TestGHNGetTrackingStatusRetriesServerErrors(t *testing.T) {
	old := common.RetryDelay
	common.RetryDelay = time.Millisecond
	defer func() { common.RetryDelay = old }()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"code":200,"data":{"status":"delivered","log":[]}}`))
	}))
	defer server.Close()

	ghn := NewGHN(GHNConfig{BaseURL: server.URL, RateLimit: 100})
	status, err := ghn.GetTrackingStatus(context.Background(), "GHN123")

	assert.NoError(t, err)
	assert.Equal(t, model.ShipmentStatusDelivered, status.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestMapGHNStatus(t *testing.T) {
	cases := map[string]string{
		"ready_to_pick":       model.ShipmentStatusConfirmed,
		"picking":             model.ShipmentStatusProcessing,
		"transporting":        model.ShipmentStatusShipped,
		"delivered":           model.ShipmentStatusDelivered,
		"waiting_to_return":   model.ShipmentStatusShipped,
		"return_transporting": model.ShipmentStatusShipped,
		"return_fail":         model.ShipmentStatusShipped,
		"returned":            model.ShipmentStatusReturned,
		"cancel":              model.ShipmentStatusCancelled,
		"something_new":       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, mapGHNStatus(in), in)
	}
}

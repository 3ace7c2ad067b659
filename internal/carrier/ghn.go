package carrier

import (
	"context"
	stderrors "errors"
	"fashion-backend/internal/errors"
	"fashion-backend/internal/model"
	"fashion-backend/internal/util"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
)

const GHNName = "ghn"

// GHNConfig Giao Hàng Nhanh 接入配置
type GHNConfig struct {
	BaseURL   string
	Token     string
	ShopID    string
	RateLimit int
}

// GHN Giao Hàng Nhanh 承运商
type GHN struct {
	http *httpClient
}

func NewGHN(cfg GHNConfig) *GHN {
	return &GHN{
		http: newHTTPClient(cfg.BaseURL, map[string]string{
			"Token":  cfg.Token,
			"ShopId": cfg.ShopID,
		}, cfg.RateLimit),
	}
}

func (g *GHN) Name() string { return GHNName }

func (g *GHN) Aliases() []string { return []string{"giaohangnhanh"} }

func (g *GHN) Supports(carrierName string) bool {
	switch NormalizeName(carrierName) {
	case GHNName, "giaohangnhanh":
		return true
	}
	return false
}

type ghnResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type ghnItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
	Weight   int    `json:"weight"`
}

type ghnCreateOrderRequest struct {
	ClientOrderCode string    `json:"client_order_code"`
	ToName          string    `json:"to_name"`
	ToPhone         string    `json:"to_phone"`
	ToAddress       string    `json:"to_address"`
	ToWardName      string    `json:"to_ward_name"`
	ToDistrictName  string    `json:"to_district_name"`
	ToProvinceName  string    `json:"to_province_name"`
	Weight          int       `json:"weight"`
	ServiceTypeID   int       `json:"service_type_id"`
	PaymentTypeID   int       `json:"payment_type_id"`
	RequiredNote    string    `json:"required_note"`
	InsuranceValue  int64     `json:"insurance_value"`
	Items           []ghnItem `json:"items"`
}

type ghnCreateOrderData struct {
	OrderCode string `json:"order_code"`
}

type ghnLog struct {
	Status      string    `json:"status"`
	UpdatedDate time.Time `json:"updated_date"`
}

type ghnOrderDetail struct {
	OrderCode   string   `json:"order_code"`
	Status      string   `json:"status"`
	CurrentWard string   `json:"current_warehouse_name"`
	Log         []ghnLog `json:"log"`
}

func (g *GHN) CreateShipment(ctx context.Context, shipment *model.Shipment, order *model.Order) (string, error) {
	addr := order.ShippingAddress
	req := ghnCreateOrderRequest{
		ClientOrderCode: order.OrderNumber,
		ToName:          addr.ReceiverName,
		ToPhone:         addr.Phone,
		ToAddress:       addr.DetailAddress,
		ToWardName:      addr.Ward,
		ToDistrictName:  addr.District,
		ToProvinceName:  addr.Province,
		ServiceTypeID:   2,
		PaymentTypeID:   1, // 运费由商家支付
		RequiredNote:    "CHOXEMHANGKHONGTHU",
		InsuranceValue:  order.Total.IntPart(),
	}
	for _, item := range order.Items {
		req.Items = append(req.Items, ghnItem{
			Name:     "SKU-" + itoa(item.ProductDetailID),
			Quantity: item.Quantity,
			Price:    item.UnitPrice.IntPart(),
			Weight:   defaultItemWeightGrams,
		})
		req.Weight += defaultItemWeightGrams * item.Quantity
	}
	if req.Weight == 0 {
		req.Weight = defaultItemWeightGrams
	}

	var resp ghnResponse[ghnCreateOrderData]
	if err := g.http.do(ctx, http.MethodPost, "/shiip/public-api/v2/shipping-order/create", req, &resp); err != nil {
		util.Logger.Error("GHN 下单失败", zap.Error(err), zap.Int("order_id", order.ID))
		return "", errors.Wrap(errors.ErrExternal, "ghn create shipment failed", err)
	}
	if resp.Code != http.StatusOK || resp.Data.OrderCode == "" {
		return "", errors.New(errors.ErrExternal, "ghn create shipment rejected: "+resp.Message)
	}
	return resp.Data.OrderCode, nil
}

func (g *GHN) GetTrackingStatus(ctx context.Context, trackingNumber string) (*model.TrackingStatus, error) {
	var resp ghnResponse[ghnOrderDetail]
	err := g.http.doWithRetry(ctx, http.MethodPost, "/shiip/public-api/v2/shipping-order/detail",
		map[string]string{"order_code": trackingNumber}, &resp)
	if err != nil {
		var se *statusError
		if stderrors.As(err, &se) && se.StatusCode == http.StatusBadRequest {
			return nil, errors.Wrap(errors.ErrShipmentNotFound, "ghn tracking number not found", err)
		}
		return nil, errors.Wrap(errors.ErrExternal, "ghn tracking query failed", err)
	}
	if resp.Code != http.StatusOK {
		return nil, errors.New(errors.ErrShipmentNotFound, "ghn tracking number not found: "+resp.Message)
	}

	status := &model.TrackingStatus{
		Status:   mapGHNStatus(resp.Data.Status),
		Location: resp.Data.CurrentWard,
	}
	logs := resp.Data.Log
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].UpdatedDate.Before(logs[j].UpdatedDate) })
	for _, l := range logs {
		status.Events = append(status.Events, &model.TrackingEvent{
			Status:      eventStatus(mapGHNStatus(l.Status), l.Status),
			Description: l.Status,
			OccurredAt:  l.UpdatedDate,
		})
	}
	return status, nil
}

// mapGHNStatus 未知状态返回空串，刷新时保留原状态
func mapGHNStatus(s string) string {
	switch s {
	case "ready_to_pick":
		return model.ShipmentStatusConfirmed
	case "picking", "money_collect_picking":
		return model.ShipmentStatusProcessing
	case "picked", "storing", "transporting", "sorting", "delivering", "money_collect_delivering", "delivery_fail":
		return model.ShipmentStatusShipped
	// 退回途中仍需继续跟踪
	case "waiting_to_return", "return", "return_transporting", "return_sorting", "returning", "return_fail":
		return model.ShipmentStatusShipped
	case "delivered":
		return model.ShipmentStatusDelivered
	case "returned":
		return model.ShipmentStatusReturned
	case "cancel":
		return model.ShipmentStatusCancelled
	}
	return ""
}

package carrier

import (
	"context"
	"fashion-backend/internal/errors"
	"fashion-backend/internal/model"
	"fashion-backend/internal/util"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const GHTKName = "ghtk"

// GHTKConfig Giao Hàng Tiết Kiệm 接入配置，Pick* 为取件地址
type GHTKConfig struct {
	BaseURL      string
	Token        string
	RateLimit    int
	PickName     string
	PickTel      string
	PickAddress  string
	PickProvince string
	PickDistrict string
}

type GHTK struct {
	http *httpClient
	cfg  GHTKConfig
}

func NewGHTK(cfg GHTKConfig) *GHTK {
	return &GHTK{
		http: newHTTPClient(cfg.BaseURL, map[string]string{"Token": cfg.Token}, cfg.RateLimit),
		cfg:  cfg,
	}
}

func (g *GHTK) Name() string { return GHTKName }

func (g *GHTK) Aliases() []string { return []string{"giaohangtietkiem"} }

func (g *GHTK) Supports(carrierName string) bool {
	switch NormalizeName(carrierName) {
	case GHTKName, "giaohangtietkiem":
		return true
	}
	return false
}

type ghtkProduct struct {
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"` // 千克
	Quantity int     `json:"quantity"`
	Price    int64   `json:"price"`
}

type ghtkOrder struct {
	ID           string `json:"id"`
	PickName     string `json:"pick_name"`
	PickAddress  string `json:"pick_address"`
	PickProvince string `json:"pick_province"`
	PickDistrict string `json:"pick_district"`
	PickTel      string `json:"pick_tel"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	Province     string `json:"province"`
	District     string `json:"district"`
	Ward         string `json:"ward"`
	Hamlet       string `json:"hamlet"`
	Tel          string `json:"tel"`
	PickMoney    int64  `json:"pick_money"`
	Value        int64  `json:"value"`
}

type ghtkCreateRequest struct {
	Products []ghtkProduct `json:"products"`
	Order    ghtkOrder     `json:"order"`
}

type ghtkCreateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Order   struct {
		Label string `json:"label"`
	} `json:"order"`
}

type ghtkStatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Order   struct {
		LabelID    string `json:"label_id"`
		Status     string `json:"status"`
		StatusText string `json:"status_text"`
		Modified   string `json:"modified"`
		Address    string `json:"address"`
	} `json:"order"`
}

func (g *GHTK) CreateShipment(ctx context.Context, shipment *model.Shipment, order *model.Order) (string, error) {
	addr := order.ShippingAddress
	req := ghtkCreateRequest{
		Order: ghtkOrder{
			ID:           order.OrderNumber,
			PickName:     g.cfg.PickName,
			PickAddress:  g.cfg.PickAddress,
			PickProvince: g.cfg.PickProvince,
			PickDistrict: g.cfg.PickDistrict,
			PickTel:      g.cfg.PickTel,
			Name:         addr.ReceiverName,
			Address:      addr.DetailAddress,
			Province:     addr.Province,
			District:     addr.District,
			Ward:         addr.Ward,
			Hamlet:       "Khác",
			Tel:          addr.Phone,
			Value:        order.Total.IntPart(),
		},
	}
	for _, item := range order.Items {
		req.Products = append(req.Products, ghtkProduct{
			Name:     "SKU-" + itoa(item.ProductDetailID),
			Weight:   float64(defaultItemWeightGrams) / 1000,
			Quantity: item.Quantity,
			Price:    item.UnitPrice.IntPart(),
		})
	}

	var resp ghtkCreateResponse
	if err := g.http.do(ctx, http.MethodPost, "/services/shipment/order", req, &resp); err != nil {
		util.Logger.Error("GHTK 下单失败", zap.Error(err), zap.Int("order_id", order.ID))
		return "", errors.Wrap(errors.ErrExternal, "ghtk create shipment failed", err)
	}
	if !resp.Success || resp.Order.Label == "" {
		return "", errors.New(errors.ErrExternal, "ghtk create shipment rejected: "+resp.Message)
	}
	return resp.Order.Label, nil
}

func (g *GHTK) GetTrackingStatus(ctx context.Context, trackingNumber string) (*model.TrackingStatus, error) {
	var resp ghtkStatusResponse
	path := "/services/shipment/v2/" + url.PathEscape(trackingNumber)
	if err := g.http.doWithRetry(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, errors.Wrap(errors.ErrExternal, "ghtk tracking query failed", err)
	}
	if !resp.Success {
		return nil, errors.New(errors.ErrShipmentNotFound, "ghtk tracking number not found: "+resp.Message)
	}

	// GHTK 只返回当前状态，以当前状态生成一条轨迹
	status := mapGHTKStatus(resp.Order.Status)
	occurredAt, err := time.ParseInLocation("2006-01-02 15:04:05", resp.Order.Modified, vietnamTZ)
	if err != nil {
		occurredAt = time.Now()
	}
	return &model.TrackingStatus{
		Status:   status,
		Location: resp.Order.Address,
		Events: []*model.TrackingEvent{{
			Status:      eventStatus(status, resp.Order.StatusText),
			Location:    resp.Order.Address,
			Description: resp.Order.StatusText,
			OccurredAt:  occurredAt,
		}},
	}, nil
}

var vietnamTZ = time.FixedZone("ICT", 7*60*60)

// mapGHTKStatus 未知状态返回空串，刷新时保留原状态
func mapGHTKStatus(code string) string {
	switch code {
	case "-1":
		return model.ShipmentStatusCancelled
	case "1":
		return model.ShipmentStatusPending
	case "2", "7", "8", "12":
		return model.ShipmentStatusConfirmed
	case "3", "123":
		return model.ShipmentStatusProcessing
	case "4", "10", "9", "410":
		return model.ShipmentStatusShipped
	case "20":
		// 退回途中仍需继续跟踪
		return model.ShipmentStatusShipped
	case "5", "6", "45":
		return model.ShipmentStatusDelivered
	case "11", "13", "21", "49":
		return model.ShipmentStatusReturned
	}
	return ""
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

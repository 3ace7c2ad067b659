package carrier

import (
	"context"
	"fashion-backend/internal/model"
	"strings"
)

// Service 单个承运商的对接能力
type Service interface {
	// Name 注册到工厂时使用的承运商名称
	Name() string
	// Supports 纯判断，无副作用
	Supports(carrierName string) bool
	// CreateShipment 在承运商侧下单，返回运单号
	CreateShipment(ctx context.Context, shipment *model.Shipment, order *model.Order) (string, error)
	// GetTrackingStatus 返回承运商已知的当前状态、位置与完整轨迹
	GetTrackingStatus(ctx context.Context, trackingNumber string) (*model.TrackingStatus, error)
}

// NormalizeName 承运商名称统一为去空格小写
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// 默认单件重量（克），商品目录未提供重量时使用
const defaultItemWeightGrams = 300

// eventStatus 承运商新增的状态码无法映射时，轨迹记录原始状态
func eventStatus(mapped, raw string) string {
	if mapped == "" {
		return raw
	}
	return mapped
}

package service

import (
	"context"
	stderrors "errors"
	"fashion-backend/internal/carrier"
	"fashion-backend/internal/errors"
	"fashion-backend/internal/model"
	"fashion-backend/internal/repository/interfaces"
	"fashion-backend/internal/util"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CarrierResolver 按名称解析承运商
type CarrierResolver interface {
	Resolve(carrierName string) (carrier.Service, error)
}

// OrderItemRequest 下单明细
type OrderItemRequest struct {
	ProductDetailID int `json:"product_detail_id" binding:"required"`
	Quantity        int `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	Items           []OrderItemRequest    `json:"items" binding:"required,min=1,dive"`
	VoucherCode     string                `json:"voucher_code"`
	Carrier         string                `json:"carrier"`
	ShippingAddress model.ShippingAddress `json:"shipping_address" binding:"required"`
}

// OrderPricing 下单金额相关配置
type OrderPricing struct {
	Currency       string
	ShippingFee    decimal.Decimal
	DefaultCarrier string
}

type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, userID int, req *CreateOrderRequest) (*model.Order, error)
	GetOrder(ctx context.Context, userID, orderID int) (*model.Order, error)
	ListOrders(ctx context.Context, userID int) ([]*model.Order, error)
	CancelOrder(ctx context.Context, userID, orderID int) error
}

type OrderService struct {
	orderRepo   interfaces.OrderRepository
	catalogRepo interfaces.CatalogRepository
	carriers    CarrierResolver
	pricing     OrderPricing
	now         func() time.Time
}

func NewOrderService(orderRepo interfaces.OrderRepository, catalogRepo interfaces.CatalogRepository, carriers CarrierResolver, pricing OrderPricing) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		catalogRepo: catalogRepo,
		carriers:    carriers,
		pricing:     pricing,
		now:         time.Now,
	}
}

var _ OrderServiceInterface = (*OrderService)(nil)

// CreateOrder 以当前目录价格与促销生成订单快照
func (s *OrderService) CreateOrder(ctx context.Context, userID int, req *CreateOrderRequest) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, errors.New(errors.ErrValidation, "order must contain at least one item")
	}

	carrierName := strings.TrimSpace(req.Carrier)
	if carrierName == "" {
		carrierName = s.pricing.DefaultCarrier
	}
	svc, err := s.carriers.Resolve(carrierName)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		UserID:          userID,
		Currency:        s.pricing.Currency,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusUnpaid,
		Carrier:         svc.Name(),
		ShippingFee:     s.pricing.ShippingFee,
		ShippingAddress: req.ShippingAddress,
	}

	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, errors.New(errors.ErrValidation, "quantity must be positive")
		}
		detail, err := s.catalogRepo.GetProductDetail(ctx, item.ProductDetailID)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to load product", err)
		}
		if detail == nil {
			return nil, errors.New(errors.ErrResourceNotFound, fmt.Sprintf("product detail %d not found", item.ProductDetailID))
		}
		if detail.Stock < item.Quantity {
			return nil, errors.New(errors.ErrInvalidState, fmt.Sprintf("insufficient stock for product detail %d", item.ProductDetailID))
		}

		line := &model.OrderDetail{
			ProductDetailID: detail.ID,
			Quantity:        item.Quantity,
			UnitPrice:       detail.Price,
		}
		if detail.ActivePromotionID != nil && detail.ActivePromotionDiscount.IsPositive() {
			off := detail.Price.Mul(detail.ActivePromotionDiscount).Div(decimal.NewFromInt(100))
			line.UnitPrice = detail.Price.Sub(off).Round(2)
			line.PromotionID = detail.ActivePromotionID
		}
		order.Items = append(order.Items, line)
		order.Subtotal = order.Subtotal.Add(line.LineTotal())
	}

	if code := strings.TrimSpace(req.VoucherCode); code != "" {
		voucher, err := s.catalogRepo.GetVoucherByCode(ctx, code)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to load voucher", err)
		}
		if voucher == nil || !voucher.IsUsableAt(s.now()) {
			return nil, errors.New(errors.ErrVoucherInvalid, "voucher is invalid or expired")
		}
		if order.Subtotal.LessThan(voucher.MinOrderValue) {
			return nil, errors.New(errors.ErrVoucherInvalid, "order does not reach the voucher minimum value")
		}
		order.Discount = voucher.DiscountFor(order.Subtotal)
		order.VoucherID = &voucher.ID
	}

	order.ComputeTotal()

	if err := s.orderRepo.CreateOrder(ctx, order); err != nil {
		if stderrors.Is(err, interfaces.ErrVoucherExhausted) {
			return nil, errors.New(errors.ErrVoucherInvalid, "voucher usage limit reached")
		}
		if stderrors.Is(err, interfaces.ErrOutOfStock) {
			return nil, errors.New(errors.ErrInvalidState, "insufficient stock")
		}
		util.Logger.Error("创建订单失败", zap.Error(err), zap.Int("user_id", userID))
		return nil, errors.Wrap(errors.ErrDatabase, "failed to create order", err)
	}

	util.Logger.Info("订单创建成功",
		zap.Int("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.Total.String()))
	return order, nil
}

// GetOrder 只返回属于该用户的订单
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int) (*model.Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load order", err)
	}
	if order == nil || order.UserID != userID {
		return nil, errors.New(errors.ErrOrderNotFound, "order not found")
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID int) ([]*model.Order, error) {
	orders, err := s.orderRepo.GetOrdersByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list orders", err)
	}
	return orders, nil
}

// CancelOrder 仅允许取消未支付的待处理订单
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID int) error {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return err
	}
	if order.Status != model.OrderStatusPending || order.PaymentStatus == model.PaymentStatusPaid {
		return errors.New(errors.ErrInvalidState, fmt.Sprintf("order in status %s cannot be cancelled", order.Status))
	}

	ok, err := s.orderRepo.CancelOrder(ctx, orderID)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to cancel order", err)
	}
	if !ok {
		return errors.New(errors.ErrInvalidState, "order can no longer be cancelled")
	}

	util.Logger.Info("订单已取消", zap.Int("order_id", orderID), zap.Int("user_id", userID))
	return nil
}

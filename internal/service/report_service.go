package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fashion-backend/internal/model"
	"fashion-backend/internal/repository/interfaces"
	"fashion-backend/internal/util"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"
)

type ReportServiceInterface interface {
	SendDailyReport(ctx context.Context, email string) error
}

type ReportService struct {
	reportRepo interfaces.ReportRepository
	mailer     Mailer
	now        func() time.Time
}

func NewReportService(reportRepo interfaces.ReportRepository, mailer Mailer) *ReportService {
	return &ReportService{reportRepo: reportRepo, mailer: mailer, now: time.Now}
}

var _ ReportServiceInterface = (*ReportService)(nil)

var dailyReportTmpl = template.Must(template.New("daily_report").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: 'Segoe UI', Tahoma, sans-serif; color: #333;">
	<h2>Daily report {{.Day.Format "2006-01-02"}}</h2>
	<table cellpadding="6" border="1" style="border-collapse: collapse;">
		<tr><td>Orders placed</td><td>{{.TotalOrders}}</td></tr>
		<tr><td>Paid orders</td><td>{{.PaidOrders}}</td></tr>
		<tr><td>Cancelled orders</td><td>{{.CancelledOrders}}</td></tr>
		<tr><td>Revenue</td><td>{{.Revenue.StringFixed 2}}</td></tr>
		<tr><td>Refund requests</td><td>{{.RefundRequests}}</td></tr>
		<tr><td>Refunded amount</td><td>{{.RefundedAmount.StringFixed 2}}</td></tr>
		<tr><td>Delivered shipments</td><td>{{.DeliveredShipment}}</td></tr>
	</table>
	<p>The attached CSV lists every order placed today.</p>
</body>
</html>`))

// SendDailyReport 汇总当天（0 点至今）的订单数据并发送邮件，附带订单明细 CSV
func (s *ReportService) SendDailyReport(ctx context.Context, email string) error {
	now := s.now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	summary, err := s.reportRepo.GetDailySummary(ctx, from, now)
	if err != nil {
		util.Logger.Error("生成日报统计失败", zap.Error(err))
		return fmt.Errorf("failed to build daily summary: %w", err)
	}
	summary.Day = from

	orders, err := s.reportRepo.GetOrdersCreatedBetween(ctx, from, now)
	if err != nil {
		util.Logger.Error("查询当日订单失败", zap.Error(err))
		return fmt.Errorf("failed to load orders: %w", err)
	}

	var body bytes.Buffer
	if err := dailyReportTmpl.Execute(&body, summary); err != nil {
		return fmt.Errorf("failed to render daily report: %w", err)
	}
	attachment, err := ordersCSV(orders)
	if err != nil {
		return fmt.Errorf("failed to build report attachment: %w", err)
	}

	day := from.Format("2006-01-02")
	if err := s.mailer.Send(email, "Daily report "+day, body.String(), Attachment{
		Filename: "orders-" + day + ".csv",
		Data:     attachment,
	}); err != nil {
		return fmt.Errorf("failed to send daily report: %w", err)
	}

	util.Logger.Info("日报已发送", zap.String("to", email), zap.Int("orders", len(orders)))
	return nil
}

func ordersCSV(orders []*model.Order) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"order_number", "created_at", "status", "payment_status", "carrier", "subtotal", "discount", "shipping_fee", "total", "currency"}); err != nil {
		return nil, err
	}
	for _, o := range orders {
		if err := w.Write([]string{
			o.OrderNumber,
			o.CreatedAt.Format(time.RFC3339),
			o.Status,
			o.PaymentStatus,
			o.Carrier,
			o.Subtotal.StringFixed(2),
			o.Discount.StringFixed(2),
			o.ShippingFee.StringFixed(2),
			o.Total.StringFixed(2),
			o.Currency,
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

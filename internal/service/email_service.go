package service

import (
	"bytes"
	"crypto/tls"
	"fashion-backend/config"
	"fashion-backend/internal/model"
	"fashion-backend/internal/util"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

// Attachment 邮件附件
type Attachment struct {
	Filename string
	Data     []byte
}

// Mailer 发送 HTML 邮件
type Mailer interface {
	Send(to, subject, htmlBody string, attachments ...Attachment) error
}

type EmailService struct {
	smtpHost string
	smtpPort int
	username string
	password string
}

func NewEmailService() *EmailService {
	return &EmailService{
		smtpHost: config.AppConfig.SMTPHost,
		smtpPort: config.AppConfig.SMTPPort,
		username: config.AppConfig.SMTPUsername,
		password: config.AppConfig.SMTPPassword,
	}
}

var _ Mailer = (*EmailService)(nil)

func (s *EmailService) Send(to, subject, htmlBody string, attachments ...Attachment) error {
	util.Logger.Info("开始发送邮件",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("attachments", len(attachments)))

	m := mail.NewMessage()
	m.SetHeader("From", s.username)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	for _, a := range attachments {
		m.AttachReader(a.Filename, bytes.NewReader(a.Data))
	}

	d := mail.NewDialer(s.smtpHost, s.smtpPort, s.username, s.password)
	d.Timeout = 20 * time.Second
	d.SSL = s.smtpPort == 465
	d.TLSConfig = &tls.Config{ServerName: s.smtpHost}

	if err := d.DialAndSend(m); err != nil {
		util.Logger.Error("发送邮件失败", zap.Error(err), zap.String("to", to))
		return fmt.Errorf("发送邮件失败: %w", err)
	}

	util.Logger.Info("邮件发送成功", zap.String("to", to))
	return nil
}

// SendAsync 异步发送，失败只记录日志
func SendAsync(m Mailer, to, subject, htmlBody string) {
	go func() {
		if err := m.Send(to, subject, htmlBody); err != nil {
			util.Logger.Error("异步发送邮件失败", zap.Error(err), zap.String("to", to))
		}
	}()
}

var orderConfirmationTmpl = template.Must(template.New("order_confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: 'Segoe UI', Tahoma, sans-serif; color: #333;">
	<h2>Thank you for your order, {{.Username}}!</h2>
	<p>Your payment for order <strong>{{.Order.OrderNumber}}</strong> has been received.</p>
	<table cellpadding="6" style="border-collapse: collapse;">
		<tr><td>Subtotal</td><td>{{.Order.Subtotal.StringFixed 2}} {{.Currency}}</td></tr>
		<tr><td>Discount</td><td>-{{.Order.Discount.StringFixed 2}} {{.Currency}}</td></tr>
		<tr><td>Shipping</td><td>{{.Order.ShippingFee.StringFixed 2}} {{.Currency}}</td></tr>
		<tr><td><strong>Total</strong></td><td><strong>{{.Order.Total.StringFixed 2}} {{.Currency}}</strong></td></tr>
	</table>
	<p>Ship to: {{.Order.ShippingAddress.ReceiverName}}, {{.Order.ShippingAddress.DetailAddress}}, {{.Order.ShippingAddress.District}}, {{.Order.ShippingAddress.Province}}</p>
	<p>We will email you again when your parcel is on its way.</p>
</body>
</html>`))

// RenderOrderConfirmation 生成订单确认邮件正文
func RenderOrderConfirmation(user *model.User, order *model.Order) (string, error) {
	var buf bytes.Buffer
	err := orderConfirmationTmpl.Execute(&buf, map[string]interface{}{
		"Username": user.Username,
		"Order":    order,
		"Currency": order.Currency,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

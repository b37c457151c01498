package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"lms_backend/internal/config"

	razorpay "github.com/razorpay/razorpay-go"
)

// GatewayOrder 网关侧订单
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
}

// PaymentGateway 支付网关适配层。签名校验也在这一层，
// 业务代码只看到布尔结果。测试用假实现替换。
type PaymentGateway interface {
	// CreateOrder amount 为货币最小单位
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error)
	// VerifySignature 校验 capture 回调携带的签名
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
}

// RazorpayGateway Razorpay 实现
type RazorpayGateway struct {
	client    *razorpay.Client
	keySecret string
}

func NewRazorpayGateway(cfg *config.PaymentConfig) *RazorpayGateway {
	return &RazorpayGateway{
		client:    razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		keySecret: cfg.KeySecret,
	}
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error) {
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}

	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}

	id, ok := body["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("razorpay create order: missing order id in response")
	}

	return &GatewayOrder{ID: id, Amount: amount, Currency: currency}, nil
}

// VerifySignature Razorpay 签名规则：HMAC-SHA256(orderID + "|" + paymentID, keySecret)
func (g *RazorpayGateway) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.keySecret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

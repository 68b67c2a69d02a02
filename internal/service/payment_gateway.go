package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OrderHandle 网关返回的订单信息，原样交给前端拉起支付
type OrderHandle struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
	Status   string `json:"status,omitempty"`
}

// PaymentGateway 支付网关的下单与订单查询
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*OrderHandle, error)
	FetchOrder(ctx context.Context, orderID string) (*OrderHandle, error)
}

// OrderCache 暂存待支付订单的归属，用于验签时核对
type OrderCache interface {
	Put(ctx context.Context, order *model.PendingOrder) error
	Get(ctx context.Context, orderID string) (*model.PendingOrder, error)
	Delete(ctx context.Context, orderID string) error
}

// RazorpayGateway 通过 REST API 创建订单
type RazorpayGateway struct {
	client *resty.Client
}

func NewRazorpayGateway(cfg *config.PaymentConfig) *RazorpayGateway {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &RazorpayGateway{client: client}
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*OrderHandle, error) {
	var order OrderHandle
	var gatewayErr razorpayError

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"amount":   amount,
			"currency": currency,
			"receipt":  receipt,
		}).
		SetResult(&order).
		SetError(&gatewayErr).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("create order: status %d: %s %s", resp.StatusCode(), gatewayErr.Error.Code, gatewayErr.Error.Description)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("create order: empty order id in response")
	}
	return &order, nil
}

// FetchOrder 按 ID 读取网关侧订单，用于核对金额与 receipt 中的学生、课程
func (g *RazorpayGateway) FetchOrder(ctx context.Context, orderID string) (*OrderHandle, error) {
	var order OrderHandle
	var gatewayErr razorpayError

	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("id", orderID).
		SetResult(&order).
		SetError(&gatewayErr).
		Get("/orders/{id}")
	if err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch order %s: status %d: %s %s", orderID, resp.StatusCode(), gatewayErr.Error.Code, gatewayErr.Error.Description)
	}
	if order.ID != orderID {
		return nil, fmt.Errorf("fetch order %s: gateway returned %q", orderID, order.ID)
	}
	return &order, nil
}

// orderReceipt 把课程与学生写进 receipt，网关订单因此可以独立核对归属
func orderReceipt(courseID, studentID uint, at time.Time) string {
	return fmt.Sprintf("rcpt_%d_%d_%d", courseID, studentID, at.Unix())
}

// parseOrderReceipt 解析 orderReceipt 生成的 receipt
func parseOrderReceipt(receipt string) (courseID, studentID uint, ok bool) {
	parts := strings.Split(receipt, "_")
	if len(parts) != 4 || parts[0] != "rcpt" {
		return 0, 0, false
	}
	c, err1 := strconv.ParseUint(parts[1], 10, 64)
	st, err2 := strconv.ParseUint(parts[2], 10, 64)
	if err1 != nil || err2 != nil || c == 0 || st == 0 {
		return 0, 0, false
	}
	return uint(c), uint(st), true
}

// SignatureVerifier 校验网关回传的支付签名
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Sign 计算 HMAC_SHA256("{order_id}|{payment_id}")，十六进制小写
func (v *SignatureVerifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *SignatureVerifier) Verify(orderID, paymentID, signature string) bool {
	expected := v.Sign(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

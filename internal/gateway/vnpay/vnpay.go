// Package vnpay implements the VNPay wire protocol: the signed redirect URL
// built at checkout and the signature verification of the IPN callback.
// Both directions share one canonical-string function so they can never
// drift apart.
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Gateway response codes, returned to VNPay in the IPN acknowledgement.
const (
	RspSuccess          = "00"
	RspOrderNotFound    = "01"
	RspInvalidAmount    = "04"
	RspInvalidSignature = "97"
	RspUnknownError     = "99"
)

const (
	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"
	ParamTxnRef         = "vnp_TxnRef"
	ParamAmount         = "vnp_Amount"
	ParamResponseCode   = "vnp_ResponseCode"
	ParamTxnStatus      = "vnp_TransactionStatus"
	ParamTransactionNo  = "vnp_TransactionNo"
	ParamPrefix         = "vnp_"
)

const createDateLayout = "20060102150405"

type Config struct {
	TmnCode    string
	HashSecret string
	GatewayURL string
	ReturnURL  string
}

// PaymentRequest carries the order-specific fields of a redirect URL.
// AmountMinor is the settlement amount in the gateway's minor unit
// (VND x 100).
type PaymentRequest struct {
	AmountMinor int64
	OrderCode   string
	OrderInfo   string
	IPAddr      string
	CreateDate  time.Time
	Locale      string
}

// hashData builds the canonical string: keys sorted, each key and value
// URL-encoded, pairs joined with '&'. This matches the encoding the gateway
// applies on its side (application/x-www-form-urlencoded, space as '+').
func hashData(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// Sign computes the hex HMAC-SHA512 of the canonical string of params.
func Sign(params map[string]string, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(hashData(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the signature over every vnp_ parameter except
// the signature fields themselves and compares it to the provided one in
// constant time. Callers must invoke this before trusting any field.
func VerifySignature(params map[string]string, secret string) bool {
	provided, ok := params[ParamSecureHash]
	if !ok || provided == "" {
		return false
	}

	data := make(map[string]string, len(params))
	for k, v := range params {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		data[k] = v
	}

	expected := Sign(data, secret)
	return hmac.Equal([]byte(expected), []byte(provided))
}

// BuildPaymentURL assembles the signed redirect URL for the gateway.
func BuildPaymentURL(cfg Config, req PaymentRequest) string {
	locale := req.Locale
	if locale == "" {
		locale = "vn"
	}
	params := map[string]string{
		"vnp_Version":    "2.1.0",
		"vnp_Command":    "pay",
		"vnp_TmnCode":    cfg.TmnCode,
		"vnp_Amount":     fmt.Sprintf("%d", req.AmountMinor),
		"vnp_CreateDate": req.CreateDate.Format(createDateLayout),
		"vnp_CurrCode":   "VND",
		"vnp_IpAddr":     req.IPAddr,
		"vnp_Locale":     locale,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_OrderType":  "billpayment",
		"vnp_ReturnUrl":  cfg.ReturnURL,
		ParamTxnRef:      req.OrderCode,
	}

	query := hashData(params)
	signature := Sign(params, cfg.HashSecret)
	return cfg.GatewayURL + "?" + query + "&" + ParamSecureHash + "=" + signature
}

// CollectParams filters a flat key/value set down to the vnp_ fields the
// gateway actually sent, which is exactly the set the signature covers.
func CollectParams(values url.Values) map[string]string {
	params := make(map[string]string)
	for k := range values {
		if strings.HasPrefix(k, ParamPrefix) {
			params[k] = values.Get(k)
		}
	}
	return params
}

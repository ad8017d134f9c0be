package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"time"
)

// timeNowMillis is extracted for testing.
var timeNowMillis = func() int64 { return time.Now().UnixMilli() }

// SignParams 追加 timestamp（及 recvWindow）后按 key 排序编码，返回 query 与 HMAC-SHA256 签名。
func SignParams(params map[string]string, secret string, recvWindowMs int64) (string, string) {
	v := url.Values{}
	for k, val := range params {
		v.Set(k, val)
	}
	v.Set("timestamp", strconv.FormatInt(timeNowMillis(), 10))
	if recvWindowMs > 0 {
		v.Set("recvWindow", strconv.FormatInt(recvWindowMs, 10))
	}
	query := v.Encode()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query))
	return query, hex.EncodeToString(mac.Sum(nil))
}

package http

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/http.go -package=mocks . IClient
type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Body       interface{}
	Response   interface{}

	// RawResponse 非空时响应体原样拷入，不做 JSON 反序列化（图片等二进制负载用）
	RawResponse *[]byte

	Timeout time.Duration
}

// Package http はプロバイダAPI呼び出し用のHTTPクライアントを提供します。
package http

import (
	"net"
	"net/http"
	"time"
)

// DefaultTimeout は timeout に0以下が渡されたときのリクエスト全体のタイムアウトです。
const DefaultTimeout = 10 * time.Second

// NewHTTPClient はクォートプロバイダ呼び出し用に設定されたHTTPクライアントを作成します。
//
// 接続先は実質1ホストなので、ホストあたりのアイドル接続を多めに保持して
// 4つの時間足を逐次取得する間の再接続を避けます。
// ResponseHeaderTimeout は timeout を超えないよう制限します。
//
// http.DefaultClientにはタイムアウトがないため、常にこのクライアントを使用すること。
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	headerTimeout := 8 * time.Second
	if headerTimeout > timeout {
		headerTimeout = timeout
	}

	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}

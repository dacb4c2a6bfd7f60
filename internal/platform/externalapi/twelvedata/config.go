// Package twelvedata はTwelve Data市場データAPIのクライアントを提供します。
package twelvedata

import (
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL はTwelve Data APIの既定のベースURLです。
	DefaultBaseURL = "https://api.twelvedata.com"
	// PlaceholderAPIKey は設定ファイルの雛形に書かれる仮のキーです。未設定として扱います。
	PlaceholderAPIKey = "your_twelve_data_api_key"
	// ProbeSymbol は疎通確認に使う流動性の高い銘柄です。
	ProbeSymbol = "EUR/USD"
	// ProbeInterval は疎通確認で要求する最小の時間足です。
	ProbeInterval = "1min"
)

// Config はTwelve Data APIクライアントの設定を保持します。
type Config struct {
	APIKey  string        // 認証用APIキー
	BaseURL string        // APIのベースURL（例: "https://api.twelvedata.com"）
	Timeout time.Duration // HTTPリクエストタイムアウト
}

// Configured はAPIキーが設定済みかどうかを返します。空文字と雛形のキーは未設定です。
func (c Config) Configured() bool {
	k := strings.TrimSpace(c.APIKey)
	return k != "" && k != PlaceholderAPIKey
}

func (c Config) baseURL() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(c.BaseURL, "/")
}

// HTTPClient はリクエストを送信するクライアントです。*http.Client がこれを満たします。
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

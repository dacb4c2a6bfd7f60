package twelvedata

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestTwelveDataMarket_Ping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		err    error
		want   bool
	}{
		{"reachable", http.StatusOK, `{"values":[{"datetime":"2025-01-15 12:00:00","open":"1.085","high":"1.086","low":"1.084","close":"1.0855"}]}`, nil, true},
		{"price shape", http.StatusOK, `{"price":"1.085"}`, nil, true},
		{"provider error body", http.StatusOK, `{"code":401,"message":"invalid key","status":"error"}`, nil, false},
		{"non-2xx", http.StatusBadGateway, `bad gateway`, nil, false},
		{"unexpected shape", http.StatusOK, `{"hello":"world"}`, nil, false},
		{"transport error", 0, "", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			httpClient.EXPECT().
				Do(gomock.Any()).
				DoAndReturn(func(req *http.Request) (*http.Response, error) {
					q := req.URL.Query()
					assert.Equal(t, ProbeSymbol, q.Get("symbol"))
					assert.Equal(t, ProbeInterval, q.Get("interval"))
					assert.Equal(t, "1", q.Get("outputsize"))
					if tt.err != nil {
						return nil, tt.err
					}
					return jsonResponse(tt.status, tt.body), nil
				}).
				Times(1)

			market := NewTwelveDataMarket(Config{APIKey: "test-key", BaseURL: "http://provider.test"}, httpClient)

			assert.Equal(t, tt.want, market.Ping(context.Background()))
		})
	}
}

func TestTwelveDataMarket_Ping_PlaceholderKey(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Times(0)

	market := NewTwelveDataMarket(Config{APIKey: PlaceholderAPIKey}, httpClient)

	assert.False(t, market.Ping(context.Background()))
}

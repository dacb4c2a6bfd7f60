package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
	_ "time/tzdata" // コンテナにゾーン情報がなくても取引所のタイムゾーンを解決する

	"market_backend/internal/feature/snapshot/domain"
	"market_backend/internal/feature/snapshot/domain/entity"
	"market_backend/internal/feature/snapshot/usecase"
	"market_backend/internal/platform/externalapi/twelvedata/dto"
)

// maxBodyBytes は1レスポンスで読み込む最大バイト数です。outputsize=5000 でも十分な大きさです。
const maxBodyBytes = 8 << 20

// datetimeLayouts は日中足と日足の日時フォーマットです。
var datetimeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

// TwelveDataMarket はTwelve Data外部APIから時系列データを取得するMarketRepository実装です。
type TwelveDataMarket struct {
	cfg    Config
	client HTTPClient
	now    func() time.Time
}

// TwelveDataMarketがMarketRepositoryとConnectivityProberを実装していることをコンパイル時に検証します。
var (
	_ usecase.MarketRepository   = (*TwelveDataMarket)(nil)
	_ usecase.ConnectivityProber = (*TwelveDataMarket)(nil)
)

// NewTwelveDataMarket は指定された設定とHTTPクライアントでTwelveDataMarketの新しいインスタンスを生成します。
func NewTwelveDataMarket(cfg Config, client HTTPClient) *TwelveDataMarket {
	return &TwelveDataMarket{cfg: cfg, client: client, now: time.Now}
}

// Configured はAPIキーが設定済みかどうかを返します。
func (t *TwelveDataMarket) Configured() bool {
	return t.cfg.Configured()
}

// GetTimeSeries はTwelve Data APIから時系列データを取得し、昇順に並べ替えて検証した系列を返します。
//
// 不正な値が1つでも含まれていれば系列全体を domain.ErrMalformedData として拒否します。
// プロバイダのエラーは HTTP/プロバイダのコードから domain のセンチネルに分類されます。
func (t *TwelveDataMarket) GetTimeSeries(ctx context.Context, symbol, interval string, outputsize int) (entity.Series, error) {
	if !t.Configured() {
		return nil, domain.ErrConfiguration
	}

	status, raw, err := t.get(ctx, symbol, interval, outputsize)
	if err != nil {
		return nil, err
	}
	return t.parse(status, raw, outputsize)
}

// get は time_series エンドポイントを呼び出し、ステータスコードと本文を返します。
func (t *TwelveDataMarket) get(ctx context.Context, symbol, interval string, outputsize int) (int, []byte, error) {
	q := url.Values{}
	// クエリパラメータを追加
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("outputsize", strconv.Itoa(outputsize))
	q.Set("apikey", t.cfg.APIKey)
	q.Set("format", "json")

	u := fmt.Sprintf("%s/time_series?%s", t.cfg.baseURL(), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, &domain.ProviderError{Kind: domain.ErrTransport, Err: err}
	}

	res, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, &domain.ProviderError{Kind: domain.ErrTransport, Err: err}
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, &domain.ProviderError{Kind: domain.ErrTransport, Code: res.StatusCode, Err: err}
	}
	return res.StatusCode, raw, nil
}

// parse はレスポンス本文を3つの形（系列、エラー、単一価格）のいずれかとして解釈します。
func (t *TwelveDataMarket) parse(status int, raw []byte, outputsize int) (entity.Series, error) {
	ok := status >= 200 && status < 300

	var body dto.TimeSeriesResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		if !ok {
			return nil, classify(status, http.StatusText(status))
		}
		return nil, &domain.ProviderError{Kind: domain.ErrMalformedData, Err: err}
	}

	switch {
	case body.IsError():
		code := body.Code
		if code == 0 {
			code = status
		}
		return nil, classify(code, body.Message)
	case !ok:
		return nil, classify(status, body.Message)
	case body.Values != nil:
		return parseValues(body.Values, body.Meta.Location(), outputsize)
	case body.Price.Present():
		p, valid := body.Price.Float()
		if !valid {
			return nil, &domain.ProviderError{Kind: domain.ErrMalformedData, Message: fmt.Sprintf("parse price %q", body.Price.Raw)}
		}
		return entity.Series{{Time: t.now().UTC(), Open: p, High: p, Low: p, Close: p}}, nil
	default:
		return nil, &domain.ProviderError{Kind: domain.ErrMalformedData, Message: "unrecognized response shape"}
	}
}

// classify はプロバイダのコードをdomainのエラー分類に対応付けます。
func classify(code int, message string) error {
	kind := domain.ErrNoData
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = domain.ErrUnauthorized
	case code == http.StatusTooManyRequests:
		kind = domain.ErrRateLimited
	case code == http.StatusBadRequest || code == http.StatusNotFound:
		kind = domain.ErrBadSymbol
	case code >= 500:
		kind = domain.ErrTransport
	}
	return &domain.ProviderError{Kind: kind, Code: code, Message: message}
}

// parseValues は降順の系列を昇順のドメイン系列に変換します。1件でも不正なら全体を拒否します。
// datetime は取引所のタイムゾーン loc で解釈し、UTCに揃えます。
func parseValues(values []dto.TimeSeries, loc *time.Location, outputsize int) (entity.Series, error) {
	if len(values) == 0 {
		return nil, &domain.ProviderError{Kind: domain.ErrNoData, Message: "empty values"}
	}

	out := make(entity.Series, 0, len(values))
	for i, v := range values {
		c, err := toCandle(v, loc)
		if err != nil {
			return nil, &domain.ProviderError{Kind: domain.ErrMalformedData, Message: fmt.Sprintf("values[%d]", i), Err: err}
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	if !out.IsAscending() {
		return nil, &domain.ProviderError{Kind: domain.ErrMalformedData, Message: "duplicate datetime"}
	}

	if outputsize > 0 && len(out) > outputsize {
		out = out[len(out)-outputsize:]
	}
	return out, nil
}

func toCandle(v dto.TimeSeries, loc *time.Location) (entity.Candle, error) {
	tm, err := parseDatetime(v.Datetime, loc)
	if err != nil {
		return entity.Candle{}, err
	}

	c := entity.Candle{Time: tm}
	fields := [...]struct {
		name string
		n    dto.Number
		dst  *float64
	}{
		{"open", v.Open, &c.Open},
		{"high", v.High, &c.High},
		{"low", v.Low, &c.Low},
		{"close", v.Close, &c.Close},
	}
	for _, f := range fields {
		x, ok := f.n.Float()
		if !ok {
			return entity.Candle{}, fmt.Errorf("parse %s %q", f.name, f.n.Raw)
		}
		*f.dst = x
	}
	// 為替は出来高を返さないため、欠けている場合は0とする
	if v.Volume.Present() {
		x, ok := v.Volume.Float()
		if !ok {
			return entity.Candle{}, fmt.Errorf("parse volume %q", v.Volume.Raw)
		}
		c.Volume = x
	}

	if err := c.Validate(); err != nil {
		return entity.Candle{}, err
	}
	return c, nil
}

func parseDatetime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if tm, err := time.ParseInLocation(layout, s, loc); err == nil {
			return tm.UTC(), nil
		}
	}
	return time.Time{}, errors.New("parse time " + strconv.Quote(s))
}

package usecase

import (
	"strings"

	"market_backend/internal/feature/snapshot/domain/entity"
)

// defaultBasePrice はどの資産クラスにも当てはまらない銘柄の参照価格です。
const defaultBasePrice = 100.0

// defaultProviderSymbols はプラットフォーム内の銘柄コードからプロバイダのティッカーへの対応表です。
var defaultProviderSymbols = map[string]string{
	"EURUSD": "EUR/USD",
	"GBPUSD": "GBP/USD",
	"USDJPY": "USD/JPY",
	"AUDUSD": "AUD/USD",
	"NZDUSD": "NZD/USD",
	"USDCAD": "USD/CAD",
	"USDCHF": "USD/CHF",
	"EURJPY": "EUR/JPY",
	"GBPJPY": "GBP/JPY",
	"EURGBP": "EUR/GBP",
	"BTCUSD": "BTC/USD",
	"ETHUSD": "ETH/USD",
	"XAUUSD": "XAU/USD",
	"XAGUSD": "XAG/USD",
	"USOIL":  "WTI/USD",
	"US30":   "DJI",
	"NAS100": "NDX",
	"SPX500": "SPX",
}

// basePriceRules は部分文字列による資産クラス判定です。先に一致したルールが優先されます。
var basePriceRules = []struct {
	keys  []string
	price float64
}{
	{[]string{"BTC"}, 45000},
	{[]string{"ETH"}, 2500},
	{[]string{"XAU", "GOLD"}, 2000},
	{[]string{"XAG", "SILVER"}, 25},
	{[]string{"JPY"}, 150},
	{[]string{"US30", "DJI"}, 35000},
	{[]string{"NAS", "NDX"}, 15000},
	{[]string{"SPX", "US500"}, 4500},
	{[]string{"OIL", "WTI"}, 75},
	{[]string{"EUR", "GBP", "AUD", "NZD", "CHF", "CAD"}, 1.1},
}

// SymbolResolver はプラットフォームの銘柄コードをプロバイダのティッカーに変換し、
// 合成データの価格水準となる参照価格を提供します。
type SymbolResolver struct {
	table map[string]string
}

// NewSymbolResolver は既定の対応表に overrides を上書きしたリゾルバを生成します。
// キーは大文字小文字を区別しません。
func NewSymbolResolver(overrides map[string]string) *SymbolResolver {
	table := make(map[string]string, len(defaultProviderSymbols)+len(overrides))
	for k, v := range defaultProviderSymbols {
		table[k] = v
	}
	for k, v := range overrides {
		table[normalizeSymbol(k)] = v
	}
	return &SymbolResolver{table: table}
}

// Resolve はプロバイダのティッカーを返します。対応表にない銘柄はそのまま返します。
func (r *SymbolResolver) Resolve(platformSymbol string) string {
	if p, ok := r.table[normalizeSymbol(platformSymbol)]; ok {
		return p
	}
	return platformSymbol
}

// BasePrice は合成データ用の参照価格を返します。
func (r *SymbolResolver) BasePrice(platformSymbol string) float64 {
	s := normalizeSymbol(platformSymbol)
	for _, rule := range basePriceRules {
		for _, k := range rule.keys {
			if strings.Contains(s, k) {
				return rule.price
			}
		}
	}
	return defaultBasePrice
}

// Spec は銘柄の静的な参照情報をまとめて返します。
// PlatformCode は大文字に正規化され、保存・参照時の銘柄キーになります。
func (r *SymbolResolver) Spec(platformSymbol string) entity.SymbolSpec {
	return entity.SymbolSpec{
		PlatformCode: normalizeSymbol(platformSymbol),
		ProviderCode: r.Resolve(platformSymbol),
		BasePrice:    r.BasePrice(platformSymbol),
	}
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

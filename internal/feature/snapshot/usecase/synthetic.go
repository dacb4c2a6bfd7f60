package usecase

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"market_backend/internal/feature/snapshot/domain/entity"
)

const (
	// DefaultMockCount はモックスナップショットの1時間足あたりのローソク足本数です。
	DefaultMockCount = 100

	maxStepPct   = 0.02 // 1本あたりの終値変動幅（参照価格比）
	maxWickPct   = 0.01 // ヒゲの最大長（参照価格比）
	minVolume    = 1000
	volumeSpread = 99000 // 出来高は [minVolume, minVolume+volumeSpread)
	minPricePct  = 0.01  // 価格の下限（参照価格比）
)

// Generator はプロバイダのデータが得られない時間足を埋める合成ローソク足を生成します。
// 生成結果は実データと同じ不変条件を満たします。
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewGenerator は乱数源と時計を注入してGeneratorを生成します。
// src が nil の場合は時刻から種を作り、now が nil の場合は time.Now を使います。
func NewGenerator(src rand.Source, now func() time.Time) *Generator {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>1|1)
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{rnd: rand.New(src), now: now}
}

// Generate は basePrice を起点としたランダムウォークで count 本の系列を生成します。
// 最後の足は現在時刻を時間足の刻みで切り捨てた時刻に置かれ、系列は昇順です。
func (g *Generator) Generate(tf entity.Timeframe, count int, basePrice float64) entity.Series {
	if count <= 0 {
		return entity.Series{}
	}
	if basePrice <= 0 || math.IsNaN(basePrice) || math.IsInf(basePrice, 0) {
		basePrice = defaultBasePrice
	}

	cadence := tf.Cadence()
	end := g.now().UTC().Truncate(cadence)
	start := end.Add(-time.Duration(count-1) * cadence)
	floor := basePrice * minPricePct

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(entity.Series, count)
	prevClose := basePrice
	for i := range out {
		o := prevClose
		c := o + (g.rnd.Float64()*2-1)*maxStepPct*basePrice
		// 価格が負にならないよう下限を設ける
		c = math.Max(c, floor)
		h := math.Max(o, c) + g.rnd.Float64()*maxWickPct*basePrice
		l := math.Max(math.Min(o, c)-g.rnd.Float64()*maxWickPct*basePrice, 0)

		out[i] = entity.Candle{
			Time:   start.Add(time.Duration(i) * cadence),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: float64(minVolume + g.rnd.IntN(volumeSpread)),
		}
		prevClose = c
	}
	return out
}

// GenerateSnapshot は全時間足が合成データのスナップショットを生成します。
func (g *Generator) GenerateSnapshot(spec entity.SymbolSpec, count int) *entity.Snapshot {
	if count <= 0 {
		count = DefaultMockCount
	}
	tfs := make(map[entity.Timeframe]entity.Series, len(entity.Timeframes))
	degraded := make([]entity.Timeframe, 0, len(entity.Timeframes))
	for _, tf := range entity.Timeframes {
		tfs[tf] = g.Generate(tf, count, spec.BasePrice)
		degraded = append(degraded, tf)
	}
	return &entity.Snapshot{
		Symbol:         spec.PlatformCode,
		ProviderSymbol: spec.ProviderCode,
		Timeframes:     tfs,
		Degraded:       degraded,
		Source:         entity.SourceDemo,
		GeneratedAt:    g.now().UTC(),
	}
}

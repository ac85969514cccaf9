package trend

import (
	"math/rand/v2"
	"sync"

	"github.com/hitoshi/healthtrends/internal/model"
)

// Dedupe はリンクで重複を除去する。同じリンクが複数ある場合は最後の記事を採用し、
// 位置は最初の出現位置を保つ。
func Dedupe(articles []model.Article) []model.Article {
	index := make(map[string]int, len(articles))
	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if i, ok := index[a.Link]; ok {
			out[i] = a
			continue
		}
		index[a.Link] = len(out)
		out = append(out, a)
	}
	return out
}

// Sampler は記事の統合・シャッフル・件数調整を行う。
// 乱数源は差し替え可能で、並行に呼び出しても安全。
type Sampler struct {
	quota int
	pad   bool

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler はSamplerを生成する。
// padがtrueの場合、プールが出力件数に満たなければ既存記事を繰り返して埋める。
// rngがnilの場合はランダムなシードの乱数源を使用する。
func NewSampler(quota int, pad bool, rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{quota: quota, pad: pad, rng: rng}
}

// Sample は2つの記事列を統合して重複除去し、シャッフルしてから出力件数に揃える。
// プールが大きければ切り詰め、小さければpadの設定に従って埋めるか、そのまま返す。
// プールが空の場合は空スライスを返す。
func (s *Sampler) Sample(lifestyle, disease []model.Article) []model.Article {
	merged := make([]model.Article, 0, len(lifestyle)+len(disease))
	merged = append(merged, lifestyle...)
	merged = append(merged, disease...)

	pool := Dedupe(merged)
	s.shuffle(pool)

	if len(pool) >= s.quota {
		return pool[:s.quota]
	}
	if !s.pad || len(pool) == 0 {
		return pool
	}

	out := make([]model.Article, 0, s.quota)
	for i := 0; len(out) < s.quota; i++ {
		out = append(out, pool[i%len(pool)])
	}
	return out
}

// CapDisease は記事をランダムに最大limit件まで間引く。
// 入力スライスは変更しない。
func (s *Sampler) CapDisease(articles []model.Article, limit int) []model.Article {
	if limit <= 0 {
		return []model.Article{}
	}
	out := make([]model.Article, len(articles))
	copy(out, articles)
	s.shuffle(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Sampler) shuffle(articles []model.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(articles), func(i, j int) {
		articles[i], articles[j] = articles[j], articles[i]
	})
}

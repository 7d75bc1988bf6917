// Package index 构建文章内容的 TF-IDF 向量空间和两两余弦相似度矩阵。
package index

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/blogrec/core"
)

// Normalizer 把原始文本规范化成空格分隔的词序列。
type Normalizer interface {
	Normalize(text any) string
}

// Index 是构建完成后只读的相似度索引。
//
// 行号与文章 ID 的映射在构建时确定：去重后按文章 ID 升序排列。
// 相似度矩阵严格对称，对角线恰为 1，所有值在 [-1, 1] 内。
type Index struct {
	ids       []int64
	rows      map[int64]int
	sim       []float64 // n*n，行优先
	vocabSize int
}

type buildOptions struct {
	parallelism int
}

type BuildOption func(*buildOptions)

// WithParallelism 限制并行计算相似度行的 goroutine 数，默认 GOMAXPROCS。
func WithParallelism(n int) BuildOption {
	return func(o *buildOptions) { o.parallelism = n }
}

// Build 对文章正文做规范化和 TF-IDF 向量化，并计算完整的相似度矩阵。
// 语料为空或规范化后词表为空时返回 core.ErrIndexUnavailable。
func Build(ctx context.Context, posts []core.Post, pre Normalizer, opts ...BuildOption) (*Index, error) {
	o := buildOptions{parallelism: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}

	posts = core.DedupPosts(posts)
	if len(posts) == 0 {
		return nil, fmt.Errorf("empty corpus: %w", core.ErrIndexUnavailable)
	}
	sorted := make([]core.Post, len(posts))
	copy(sorted, posts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	docs := make([]string, len(sorted))
	for i, p := range sorted {
		docs[i] = pre.Normalize(p.Content)
	}
	model, vecs := fitTransform(docs)
	if len(model.vocab) == 0 {
		return nil, fmt.Errorf("empty vocabulary: %w", core.ErrIndexUnavailable)
	}

	n := len(sorted)
	idx := &Index{
		ids:       make([]int64, n),
		rows:      make(map[int64]int, n),
		sim:       make([]float64, n*n),
		vocabSize: len(model.vocab),
	}
	for i, p := range sorted {
		idx.ids[i] = p.ID
		idx.rows[p.ID] = i
	}

	// 每个 goroutine 只写 (i, j>i) 和其镜像 (j, i)，互不重叠
	eg, egctx := errgroup.WithContext(ctx)
	if o.parallelism > 0 {
		eg.SetLimit(o.parallelism)
	}
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			idx.sim[i*n+i] = 1
			for j := i + 1; j < n; j++ {
				s := clamp(vecs[i].dot(vecs[j]))
				idx.sim[i*n+j] = s
				idx.sim[j*n+i] = s
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("build similarity matrix: %w", err)
	}
	return idx, nil
}

// FromMatrix 用已知的相似度矩阵构建索引，ids[i] 对应第 i 行。
// 矩阵必须是方阵、对称、对角线为 1、值在 [-1, 1] 内。
func FromMatrix(ids []int64, sim [][]float64) (*Index, error) {
	n := len(ids)
	if len(sim) != n {
		return nil, fmt.Errorf("matrix has %d rows, want %d", len(sim), n)
	}
	idx := &Index{
		ids:  make([]int64, n),
		rows: make(map[int64]int, n),
		sim:  make([]float64, n*n),
	}
	copy(idx.ids, ids)
	for i, id := range ids {
		if _, dup := idx.rows[id]; dup {
			return nil, fmt.Errorf("duplicate id %d", id)
		}
		idx.rows[id] = i
	}
	for i := range sim {
		if len(sim[i]) != n {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(sim[i]), n)
		}
		if sim[i][i] != 1 {
			return nil, fmt.Errorf("diagonal at %d is %v, want 1", i, sim[i][i])
		}
		for j := range sim[i] {
			v := sim[i][j]
			if v < -1 || v > 1 || math.IsNaN(v) {
				return nil, fmt.Errorf("value at (%d,%d) out of range: %v", i, j, v)
			}
			if sim[j][i] != v {
				return nil, fmt.Errorf("matrix not symmetric at (%d,%d)", i, j)
			}
			idx.sim[i*n+j] = v
		}
	}
	return idx, nil
}

// Len 返回索引中的文章数。
func (x *Index) Len() int { return len(x.ids) }

// VocabularySize 返回词表大小。
func (x *Index) VocabularySize() int { return x.vocabSize }

// IDs 返回行号对应的文章 ID（升序）。
func (x *Index) IDs() []int64 {
	out := make([]int64, len(x.ids))
	copy(out, x.ids)
	return out
}

// Contains 判断文章是否在索引中。
func (x *Index) Contains(id int64) bool {
	_, ok := x.rows[id]
	return ok
}

// SimilarityRow 返回 id 对应行的拷贝，下标与 IDs() 对齐。
func (x *Index) SimilarityRow(id int64) ([]float64, error) {
	i, ok := x.rows[id]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, core.ErrItemNotIndexed)
	}
	n := len(x.ids)
	out := make([]float64, n)
	copy(out, x.sim[i*n:(i+1)*n])
	return out, nil
}

// Similarity 返回两篇文章的相似度。
func (x *Index) Similarity(a, b int64) (float64, error) {
	i, ok := x.rows[a]
	if !ok {
		return 0, fmt.Errorf("item %d: %w", a, core.ErrItemNotIndexed)
	}
	j, ok := x.rows[b]
	if !ok {
		return 0, fmt.Errorf("item %d: %w", b, core.ErrItemNotIndexed)
	}
	return x.sim[i*len(x.ids)+j], nil
}

// ItemsAboveThreshold 返回与 id 相似度严格大于 threshold 的文章（不含 id 自身），按行号顺序。
func (x *Index) ItemsAboveThreshold(id int64, threshold float64) ([]int64, error) {
	i, ok := x.rows[id]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, core.ErrItemNotIndexed)
	}
	n := len(x.ids)
	var out []int64
	for j, s := range x.sim[i*n : (i+1)*n] {
		if j != i && s > threshold {
			out = append(out, x.ids[j])
		}
	}
	return out, nil
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}

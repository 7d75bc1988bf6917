package recall

import (
	"context"
	"math"
	"sort"

	"github.com/rushteam/blogrec/core"
)

// UserBasedCF 是基于用户的协同过滤召回源（User-based Collaborative Filtering, User-CF）。
//
// 核心思想："兴趣相似的用户，喜欢相似的文章"
//
// 算法流程：
//  1. 用户 → 评分行向量（没评过记 0）
//  2. 以余弦距离找最近的 Neighbors 个其他用户（目标用户自身显式排除）
//  3. 对近邻按列求平均评分
//  4. 只保留目标用户没评过的列，按平均分降序取 TopK
//
// 目标用户在矩阵中没有行时返回 core.ErrNoCollaborativeSignal，
// 融合阶段把它当作"协同过滤没有贡献"。
type UserBasedCF struct {
	Matrix *UserItemMatrix

	// Neighbors 近邻数（不含自身），<=0 时使用默认 5
	Neighbors int

	// TopKItems 最终返回的物品数，<=0 时使用默认 5
	TopKItems int

	// StrictUnrated 为 true 时用评分掩码判断"没评过"，并丢弃近邻平均分为 0 的列；
	// 默认 false，与历史行为一致：评分值为 0 即视为没评过，平均分为 0 的列也参与排序。
	StrictUnrated bool

	Config core.RecallConfig
}

func (r *UserBasedCF) Name() string { return SourceCollaborative }

type neighbor struct {
	row      int
	distance float64
}

type scoredItem struct {
	id    int64
	score float64
}

func (r *UserBasedCF) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if rctx == nil || r.Matrix == nil {
		return nil, core.ErrNoCollaborativeSignal
	}
	m := r.Matrix
	target, ok := m.userRow[rctx.UserID]
	if !ok {
		return nil, core.ErrNoCollaborativeSignal
	}

	cfg := core.Defaults(r.Config)
	k := r.Neighbors
	if k <= 0 {
		k = cfg.DefaultNeighbors()
	}
	topK := r.TopKItems
	if topK <= 0 {
		topK = cfg.DefaultCollaborativeTopK()
	}

	targetVec := m.values[target]
	targetNorm := norm(targetVec)
	neighbors := make([]neighbor, 0, len(m.users)-1)
	for i, vec := range m.values {
		if i == target {
			continue
		}
		neighbors = append(neighbors, neighbor{row: i, distance: 1 - cosine(targetVec, targetNorm, vec)})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// 距离相同时行号小的在前
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].distance < neighbors[j].distance
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	if len(neighbors) == 0 {
		return nil, nil
	}

	candidates := make([]scoredItem, 0)
	for j, itemID := range m.items {
		if r.rated(target, j) {
			continue
		}
		var sum float64
		for _, nb := range neighbors {
			sum += m.values[nb.row][j]
		}
		mean := sum / float64(len(neighbors))
		// 严格模式下近邻都没给过分的列没有信号；默认保留，按平均分排在最后
		if r.StrictUnrated && mean <= 0 {
			continue
		}
		candidates = append(candidates, scoredItem{id: itemID, score: mean})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]*core.Item, 0, len(candidates))
	for _, c := range candidates {
		it := core.NewItem(c.id)
		it.Score = c.score
		out = append(out, it)
	}
	return out, nil
}

func (r *UserBasedCF) rated(row, col int) bool {
	if r.StrictUnrated {
		return r.Matrix.rated[row][col]
	}
	return r.Matrix.values[row][col] != 0
}

func norm(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

// cosine 计算余弦相似度；任一向量为零向量时返回 0。
func cosine(a []float64, aNorm float64, b []float64) float64 {
	bNorm := norm(b)
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (aNorm * bNorm)
}

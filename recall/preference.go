package recall

import (
	"context"
	"sort"
	"strings"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/pkg/logging"
)

// LabelToken 把偏好分类标签转成词表中的一个原子词：小写、去首尾空白、内部空白换成下划线。
// 例如 "Data Science" → "data_science"。
func LabelToken(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), "_")
}

// PreferenceSpace 是所有用户偏好标签的词频向量空间，构建后只读。
type PreferenceSpace struct {
	users   []int64 // 快照顺序
	vocab   map[string]int
	vectors [][]float64
	norms   []float64
}

// NewPreferenceSpace 以每个用户登记的分类为文档构建词频向量。
func NewPreferenceSpace(prefs []core.Preference) *PreferenceSpace {
	s := &PreferenceSpace{vocab: make(map[string]int)}
	tokens := make([][]string, len(prefs))
	for i, p := range prefs {
		for _, c := range p.Categories {
			tok := LabelToken(c)
			if tok == "" {
				continue
			}
			if _, ok := s.vocab[tok]; !ok {
				s.vocab[tok] = len(s.vocab)
			}
			tokens[i] = append(tokens[i], tok)
		}
	}
	for i, p := range prefs {
		s.users = append(s.users, p.UserID)
		vec, _ := s.vectorize(tokens[i])
		s.vectors = append(s.vectors, vec)
		s.norms = append(s.norms, norm(vec))
	}
	return s
}

// Empty 表示没有任何偏好词。
func (s *PreferenceSpace) Empty() bool { return s == nil || len(s.vocab) == 0 }

// Vectorize 把标签转成词频向量，词表里没有的标签原样返回在 unknown 中。
func (s *PreferenceSpace) Vectorize(labels []string) (vec []float64, unknown []string) {
	toks := make([]string, 0, len(labels))
	for _, l := range labels {
		if tok := LabelToken(l); tok != "" {
			toks = append(toks, tok)
		}
	}
	vec, unknownToks := s.vectorize(toks)
	return vec, unknownToks
}

func (s *PreferenceSpace) vectorize(tokens []string) ([]float64, []string) {
	vec := make([]float64, len(s.vocab))
	var unknown []string
	for _, tok := range tokens {
		j, ok := s.vocab[tok]
		if !ok {
			unknown = append(unknown, tok)
			continue
		}
		vec[j]++
	}
	return vec, unknown
}

// BestMatch 返回与 labels 余弦相似度最高的其他用户（排除 exclude）。
// 相似度必须大于 0；并列时取快照中靠前的用户。
func (s *PreferenceSpace) BestMatch(labels []string, exclude int64) (userID int64, similarity float64, ok bool) {
	if s.Empty() {
		return 0, 0, false
	}
	vec, _ := s.Vectorize(labels)
	vecNorm := norm(vec)
	if vecNorm == 0 {
		return 0, 0, false
	}
	best := -1
	bestSim := 0.0
	for i, u := range s.users {
		if u == exclude || s.norms[i] == 0 {
			continue
		}
		var dot float64
		for j := range vec {
			dot += vec[j] * s.vectors[i][j]
		}
		sim := dot / (vecNorm * s.norms[i])
		if sim > bestSim {
			best, bestSim = i, sim
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	return s.users[best], bestSim, true
}

// FirstOther 返回快照中第一个不是 exclude 的用户。
func (s *PreferenceSpace) FirstOther(exclude int64) (int64, bool) {
	if s == nil {
		return 0, false
	}
	for _, u := range s.users {
		if u != exclude {
			return u, true
		}
	}
	return 0, false
}

// PreferenceRecall 是基于偏好标签匹配的召回源。
//
// 用请求携带的偏好标签（没有时用用户登记的偏好）在偏好空间里找最相似的另一个用户，
// 返回该用户评过分的文章，按评分降序、文章 ID 升序。
// 词表中不存在的标签被跳过，不影响其余标签。
type PreferenceRecall struct {
	Space   *PreferenceSpace
	Ratings RatingSource
	// Profiles 提供用户登记的偏好，可为 nil
	Profiles interface {
		PreferenceOf(userID int64) (core.Preference, bool)
	}
	// ZeroMatch 为 true 时，标签里有已知词但与所有其他用户的相似度都是 0，
	// 仍取快照中第一个其他用户；为 false 时这种情况不贡献结果。
	ZeroMatch bool
}

func (r *PreferenceRecall) Name() string { return SourcePreference }

func (r *PreferenceRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if rctx == nil || r.Space.Empty() || r.Ratings == nil {
		return nil, nil
	}
	labels := rctx.Preferences
	if len(labels) == 0 && r.Profiles != nil {
		if p, ok := r.Profiles.PreferenceOf(rctx.UserID); ok {
			labels = p.Categories
		}
	}
	if len(labels) == 0 {
		return nil, nil
	}

	if _, unknown := r.Space.Vectorize(labels); len(unknown) > 0 {
		logging.FromContext(ctx).Debug().
			Strs("labels", unknown).
			Int64("user_id", rctx.UserID).
			Msg("skipping unknown preference labels")
	}

	match, sim, ok := r.Space.BestMatch(labels, rctx.UserID)
	if !ok && r.ZeroMatch {
		if vec, _ := r.Space.Vectorize(labels); norm(vec) > 0 {
			match, ok = r.Space.FirstOther(rctx.UserID)
		}
	}
	if !ok {
		return nil, nil
	}

	ratings := r.Ratings.UserRatings(match)
	sorted := make([]core.Rating, len(ratings))
	copy(sorted, ratings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].PostID < sorted[j].PostID
	})

	out := make([]*core.Item, 0, len(sorted))
	for _, rt := range sorted {
		it := core.NewItem(rt.PostID)
		it.Score = rt.Score
		it.Meta["matched_user"] = match
		it.Meta["match_similarity"] = sim
		out = append(out, it)
	}
	return out, nil
}

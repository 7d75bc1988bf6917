package core

import (
	"math"
	"strings"
	"time"
)

// 评分取值范围
const (
	MinScore = 0.0
	MaxScore = 5.0
)

// Post 是一篇博客文章，引擎只读。
type Post struct {
	ID        int64
	Title     string
	Content   string
	Category  string
	CreatedAt time.Time
}

// Rating 是用户对文章的一次评分，Score ∈ [0, 5]，精度 0.1。
type Rating struct {
	UserID int64
	PostID int64
	Score  float64
}

// Preference 是用户登记的偏好分类集合，无序，可以为空。
type Preference struct {
	UserID     int64
	Categories []string
}

// ClampScore 把评分截断到 [0, 5] 并四舍五入到一位小数。
// NaN 视为 0。
func ClampScore(score float64) float64 {
	if math.IsNaN(score) {
		return MinScore
	}
	score = math.Max(MinScore, math.Min(MaxScore, score))
	return math.Round(score*10) / 10
}

// NormalizeCategory 返回分类比较用的规范形式：去首尾空白并小写。
func NormalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

// DedupPosts 按 (Title, Content) 去重，先出现的保留；同一 ID 重复出现时也只保留第一条。
// 返回的切片保持输入顺序。
func DedupPosts(posts []Post) []Post {
	type key struct{ title, content string }
	seenText := make(map[key]struct{}, len(posts))
	seenID := make(map[int64]struct{}, len(posts))
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		k := key{p.Title, p.Content}
		if _, ok := seenText[k]; ok {
			continue
		}
		if _, ok := seenID[p.ID]; ok {
			continue
		}
		seenText[k] = struct{}{}
		seenID[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Dataset 是引擎一次计算所依赖的不可变快照：文章、评分、偏好三张表。
//
// NewDataset 负责把原始输入规范化：
//   - 文章按 (Title, Content) 去重
//   - 评分先截断到合法区间；指向不存在文章的评分被丢弃
//   - 同一 (user, post) 只保留一条，取最后一次的值，位置沿用第一次出现的位置
//   - 同一用户多条偏好记录时以最后一条为准，分类去空白、按规范形式去重
type Dataset struct {
	posts    []Post
	postByID map[int64]int

	ratings     []Rating
	userRatings map[int64][]int

	preferences []Preference
	prefByUser  map[int64]int
}

func NewDataset(posts []Post, ratings []Rating, prefs []Preference) *Dataset {
	d := &Dataset{
		posts:       DedupPosts(posts),
		userRatings: make(map[int64][]int),
		prefByUser:  make(map[int64]int),
	}
	d.postByID = make(map[int64]int, len(d.posts))
	for i, p := range d.posts {
		d.postByID[p.ID] = i
	}

	type pair struct{ user, post int64 }
	pos := make(map[pair]int, len(ratings))
	for _, r := range ratings {
		if _, ok := d.postByID[r.PostID]; !ok {
			continue
		}
		r.Score = ClampScore(r.Score)
		k := pair{r.UserID, r.PostID}
		if i, ok := pos[k]; ok {
			d.ratings[i].Score = r.Score
			continue
		}
		pos[k] = len(d.ratings)
		d.ratings = append(d.ratings, r)
	}
	for i, r := range d.ratings {
		d.userRatings[r.UserID] = append(d.userRatings[r.UserID], i)
	}

	for _, p := range prefs {
		p.Categories = cleanCategories(p.Categories)
		if i, ok := d.prefByUser[p.UserID]; ok {
			d.preferences[i] = p
			continue
		}
		d.prefByUser[p.UserID] = len(d.preferences)
		d.preferences = append(d.preferences, p)
	}
	return d
}

func cleanCategories(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		k := NormalizeCategory(c)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Posts 返回去重后的文章，保持输入顺序。调用方不得修改。
func (d *Dataset) Posts() []Post { return d.posts }

// Post 按 ID 查找文章。
func (d *Dataset) Post(id int64) (Post, bool) {
	i, ok := d.postByID[id]
	if !ok {
		return Post{}, false
	}
	return d.posts[i], true
}

// Ratings 返回规范化后的评分，保持首次出现的顺序。调用方不得修改。
func (d *Dataset) Ratings() []Rating { return d.ratings }

// UserRatings 返回某用户的评分，按快照顺序。
func (d *Dataset) UserRatings(userID int64) []Rating {
	idx := d.userRatings[userID]
	if len(idx) == 0 {
		return nil
	}
	out := make([]Rating, len(idx))
	for i, j := range idx {
		out[i] = d.ratings[j]
	}
	return out
}

// Preferences 返回偏好表，按用户首次出现顺序。调用方不得修改。
func (d *Dataset) Preferences() []Preference { return d.preferences }

// PreferenceOf 返回用户登记的偏好；没有记录时 ok 为 false。
func (d *Dataset) PreferenceOf(userID int64) (Preference, bool) {
	i, ok := d.prefByUser[userID]
	if !ok {
		return Preference{}, false
	}
	return d.preferences[i], true
}

// Empty 表示快照里没有任何文章。
func (d *Dataset) Empty() bool { return len(d.posts) == 0 }

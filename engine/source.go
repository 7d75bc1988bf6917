package engine

import (
	"context"
	"sync"

	"github.com/rushteam/blogrec/core"
)

// DataSource 提供构建快照所需的三张表。store.SQLStore 实现了它。
type DataSource interface {
	LoadDataset(ctx context.Context) (*core.Dataset, error)
}

// StaticSource 是内存中的数据源，用于测试和嵌入式使用。
// 修改后需要调用 Engine.Invalidate 才会进入下一个快照。
type StaticSource struct {
	mu          sync.RWMutex
	posts       []core.Post
	ratings     []core.Rating
	preferences []core.Preference
}

func NewStaticSource(posts []core.Post, ratings []core.Rating, prefs []core.Preference) *StaticSource {
	return &StaticSource{posts: posts, ratings: ratings, preferences: prefs}
}

func (s *StaticSource) LoadDataset(_ context.Context) (*core.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.NewDataset(s.posts, s.ratings, s.preferences), nil
}

// AddPosts 追加文章。
func (s *StaticSource) AddPosts(posts ...core.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, posts...)
}

// AddRatings 追加评分；同一 (用户, 文章) 以最后一条为准。
func (s *StaticSource) AddRatings(ratings ...core.Rating) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings = append(s.ratings, ratings...)
}

// SetPreferences 替换某用户登记的偏好。
func (s *StaticSource) SetPreferences(userID int64, categories []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences = append(s.preferences, core.Preference{UserID: userID, Categories: categories})
}

package recall

import (
	"sort"

	"github.com/rushteam/blogrec/core"
)

// UserItemMatrix 是稠密的 用户 × 文章 评分矩阵。
//
// 行按用户 ID 升序，列按文章 ID 升序。没有评分的格子值为 0，
// 同时用 rated 掩码区分"没评过"和"评了 0 分"。
type UserItemMatrix struct {
	users   []int64
	items   []int64
	userRow map[int64]int
	itemCol map[int64]int
	values  [][]float64
	rated   [][]bool
}

// NewUserItemMatrix 从（已截断到合法区间的）评分构建矩阵。
func NewUserItemMatrix(ratings []core.Rating) *UserItemMatrix {
	m := &UserItemMatrix{
		userRow: make(map[int64]int),
		itemCol: make(map[int64]int),
	}
	for _, r := range ratings {
		if _, ok := m.userRow[r.UserID]; !ok {
			m.userRow[r.UserID] = -1
			m.users = append(m.users, r.UserID)
		}
		if _, ok := m.itemCol[r.PostID]; !ok {
			m.itemCol[r.PostID] = -1
			m.items = append(m.items, r.PostID)
		}
	}
	sort.Slice(m.users, func(i, j int) bool { return m.users[i] < m.users[j] })
	sort.Slice(m.items, func(i, j int) bool { return m.items[i] < m.items[j] })
	for i, u := range m.users {
		m.userRow[u] = i
	}
	for j, it := range m.items {
		m.itemCol[it] = j
	}

	m.values = make([][]float64, len(m.users))
	m.rated = make([][]bool, len(m.users))
	for i := range m.users {
		m.values[i] = make([]float64, len(m.items))
		m.rated[i] = make([]bool, len(m.items))
	}
	for _, r := range ratings {
		i, j := m.userRow[r.UserID], m.itemCol[r.PostID]
		m.values[i][j] = core.ClampScore(r.Score)
		m.rated[i][j] = true
	}
	return m
}

// Users 返回行对应的用户 ID。
func (m *UserItemMatrix) Users() []int64 { return m.users }

// Items 返回列对应的文章 ID。
func (m *UserItemMatrix) Items() []int64 { return m.items }

// HasUser 判断用户在矩阵中是否有行。
func (m *UserItemMatrix) HasUser(userID int64) bool {
	_, ok := m.userRow[userID]
	return ok
}

// Value 返回 (user, item) 的评分以及是否真的评过。
func (m *UserItemMatrix) Value(userID, itemID int64) (float64, bool) {
	i, ok := m.userRow[userID]
	if !ok {
		return 0, false
	}
	j, ok := m.itemCol[itemID]
	if !ok {
		return 0, false
	}
	return m.values[i][j], m.rated[i][j]
}

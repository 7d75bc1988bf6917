package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rushteam/blogrec/core"
)

// SQLStore 把文章、评分、偏好持久化到 SQLite，是引擎快照的数据来源。
// 所有方法并发安全。写操作成功后依次调用 Subscribe 注册的回调（例如让快照失效）。
type SQLStore struct {
	db *sql.DB
	mu sync.RWMutex

	subMu sync.Mutex
	subs  []func()
}

// HistoryEntry 是用户评分历史中的一条。
type HistoryEntry struct {
	PostID   int64
	Title    string
	Category string
	Score    float64
}

// OpenSQL 打开（必要时创建）数据库。path 为 ":memory:" 时使用共享缓存的内存库。
func OpenSQL(ctx context.Context, path string) (*SQLStore, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &SQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS ratings (
		user_id INTEGER NOT NULL,
		post_id INTEGER NOT NULL,
		score REAL NOT NULL,
		PRIMARY KEY (user_id, post_id)
	);

	CREATE INDEX IF NOT EXISTS idx_ratings_post ON ratings(post_id);

	CREATE TABLE IF NOT EXISTS preferences (
		user_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		category TEXT NOT NULL,
		PRIMARY KEY (user_id, position)
	);

	CREATE TABLE IF NOT EXISTS preference_profiles (
		user_id INTEGER PRIMARY KEY
	);

	INSERT OR IGNORE INTO preference_profiles (user_id) SELECT DISTINCT user_id FROM preferences;
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Subscribe 注册写入后的回调。
func (s *SQLStore) Subscribe(fn func()) {
	if fn == nil {
		return
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *SQLStore) notify() {
	s.subMu.Lock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// Close 关闭数据库连接。
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// InsertPosts 写入文章，ID 已存在的跳过。返回新写入的条数。
func (s *SQLStore) InsertPosts(ctx context.Context, posts []core.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	n, err := s.insertPosts(ctx, posts)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.notify()
	}
	return n, nil
}

func (s *SQLStore) insertPosts(ctx context.Context, posts []core.Post) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO posts (id, title, content, category, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range posts {
		var created int64
		if !p.CreatedAt.IsZero() {
			created = p.CreatedAt.Unix()
		}
		res, err := stmt.ExecContext(ctx, p.ID, p.Title, p.Content, p.Category, created)
		if err != nil {
			return 0, fmt.Errorf("insert post %d: %w", p.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// AddRatings 批量写入评分（同一用户对同一文章重复评分时覆盖），指向不存在文章的评分被跳过。
// 返回写入条数和跳过条数。
func (s *SQLStore) AddRatings(ctx context.Context, ratings []core.Rating) (written, skipped int, err error) {
	if len(ratings) == 0 {
		return 0, 0, nil
	}
	s.mu.Lock()
	written, skipped, err = s.addRatings(ctx, ratings)
	s.mu.Unlock()
	if err != nil {
		return 0, 0, err
	}
	if written > 0 {
		s.notify()
	}
	return written, skipped, nil
}

func (s *SQLStore) addRatings(ctx context.Context, ratings []core.Rating) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	written, skipped := 0, 0
	for _, r := range ratings {
		ok, err := postExists(ctx, tx, r.PostID)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			skipped++
			continue
		}
		if err := upsertRating(ctx, tx, r); err != nil {
			return 0, 0, err
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return written, skipped, nil
}

// UpsertRating 写入一条评分（分数截断到 [0, 5]），返回该文章新的平均分。
// 文章不存在时返回 core.ErrPostNotFound。
func (s *SQLStore) UpsertRating(ctx context.Context, r core.Rating) (float64, error) {
	s.mu.Lock()
	mean, err := s.upsertAndMean(ctx, r)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	s.notify()
	return mean, nil
}

func (s *SQLStore) upsertAndMean(ctx context.Context, r core.Rating) (float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	ok, err := postExists(ctx, tx, r.PostID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("post %d: %w", r.PostID, core.ErrPostNotFound)
	}
	if err := upsertRating(ctx, tx, r); err != nil {
		return 0, err
	}
	var mean float64
	if err := tx.QueryRowContext(ctx,
		`SELECT AVG(score) FROM ratings WHERE post_id = ?`, r.PostID,
	).Scan(&mean); err != nil {
		return 0, fmt.Errorf("mean rating: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return mean, nil
}

func postExists(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup post %d: %w", id, err)
	}
	return true, nil
}

func upsertRating(ctx context.Context, tx *sql.Tx, r core.Rating) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ratings (user_id, post_id, score) VALUES (?, ?, ?)
		ON CONFLICT (user_id, post_id) DO UPDATE SET score = excluded.score
	`, r.UserID, r.PostID, core.ClampScore(r.Score))
	if err != nil {
		return fmt.Errorf("upsert rating (%d, %d): %w", r.UserID, r.PostID, err)
	}
	return nil
}

// SetPreferences 整体替换用户登记的偏好分类。
// categories 为空时仍然记录该用户登记过偏好，补足时不再回退到请求标签。
func (s *SQLStore) SetPreferences(ctx context.Context, userID int64, categories []string) error {
	s.mu.Lock()
	err := s.setPreferences(ctx, userID, categories)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *SQLStore) setPreferences(ctx context.Context, userID int64, categories []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM preferences WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear preferences: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO preference_profiles (user_id) VALUES (?)`, userID,
	); err != nil {
		return fmt.Errorf("record preference profile: %w", err)
	}
	for i, c := range categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO preferences (user_id, position, category) VALUES (?, ?, ?)`,
			userID, i, c,
		); err != nil {
			return fmt.Errorf("insert preference: %w", err)
		}
	}
	return tx.Commit()
}

// UserHistory 返回用户评过分的文章，按评分写入顺序。
func (s *SQLStore) UserHistory(ctx context.Context, userID int64) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.post_id, p.title, p.category, r.score
		FROM ratings r JOIN posts p ON p.id = r.post_id
		WHERE r.user_id = ?
		ORDER BY r.rowid
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.PostID, &h.Title, &h.Category, &h.Score); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// LoadDataset 读取全部数据并构造快照用的 core.Dataset。
func (s *SQLStore) LoadDataset(ctx context.Context) (*core.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts, err := s.loadPosts(ctx)
	if err != nil {
		return nil, err
	}
	ratings, err := s.loadRatings(ctx)
	if err != nil {
		return nil, err
	}
	prefs, err := s.loadPreferences(ctx)
	if err != nil {
		return nil, err
	}
	return core.NewDataset(posts, ratings, prefs), nil
}

func (s *SQLStore) loadPosts(ctx context.Context) ([]core.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, category, created_at FROM posts ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var out []core.Post
	for rows.Next() {
		var (
			p       core.Post
			created int64
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Category, &created); err != nil {
			return nil, err
		}
		if created > 0 {
			p.CreatedAt = time.Unix(created, 0).UTC()
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) loadRatings(ctx context.Context) ([]core.Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, post_id, score FROM ratings ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	var out []core.Rating
	for rows.Next() {
		var r core.Rating
		if err := rows.Scan(&r.UserID, &r.PostID, &r.Score); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) loadPreferences(ctx context.Context) ([]core.Preference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.user_id, f.category
		FROM preference_profiles p
		LEFT JOIN preferences f ON f.user_id = p.user_id
		ORDER BY p.user_id, f.position`)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	var out []core.Preference
	for rows.Next() {
		var (
			uid int64
			cat sql.NullString
		)
		if err := rows.Scan(&uid, &cat); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].UserID != uid {
			out = append(out, core.Preference{UserID: uid})
		}
		if cat.Valid {
			last := &out[len(out)-1]
			last.Categories = append(last.Categories, cat.String)
		}
	}
	return out, rows.Err()
}

// Package importer 从 CSV 导入文章、评分和用户偏好。
//
// 表头按名称匹配（大小写不敏感），列顺序随意：
//
//	posts:       id|blog_id, title, content, category|topic, [created_at]
//	ratings:     user_id|userid, post_id|blog_id, rating|ratings|score
//	preferences: user_id|userid, top_topics|categories
//
// top_topics 形如 ['Tech', 'Data Science']，也接受逗号分隔的纯文本。
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/blogrec/core"
)

// Skip 记录一条被跳过的行。
type Skip struct {
	Line   int
	Reason string
}

// Result 是一次导入解析的结果。
type Result[T any] struct {
	Rows    []T
	Skipped []Skip
}

func (r *Result[T]) skip(line int, format string, args ...any) {
	r.Skipped = append(r.Skipped, Skip{Line: line, Reason: fmt.Sprintf(format, args...)})
}

// PostOptions 控制文章导入。
type PostOptions struct {
	// AllowedCategories 非空时，分类不在其中的文章被跳过（比较忽略大小写）
	AllowedCategories []string
}

var (
	postColumns = map[string][]string{
		"id":         {"id", "blog_id", "post_id"},
		"title":      {"title", "blog_title"},
		"content":    {"content", "blog_content"},
		"category":   {"category", "topic"},
		"created_at": {"created_at"},
	}
	ratingColumns = map[string][]string{
		"user":  {"user_id", "userid"},
		"post":  {"post_id", "blog_id"},
		"score": {"rating", "ratings", "score"},
	}
	preferenceColumns = map[string][]string{
		"user":       {"user_id", "userid"},
		"categories": {"top_topics", "categories"},
	}
)

// ReadPosts 解析文章 CSV。
func ReadPosts(r io.Reader, opts PostOptions) (*Result[core.Post], error) {
	allowed := make(map[string]struct{}, len(opts.AllowedCategories))
	for _, c := range opts.AllowedCategories {
		allowed[core.NormalizeCategory(c)] = struct{}{}
	}

	res := &Result[core.Post]{}
	err := scan(r, postColumns, []string{"id", "title", "content", "category"}, func(line int, row record) {
		id, err := parseID(row.get("id"))
		if err != nil {
			res.skip(line, "post id: %v", err)
			return
		}
		p := core.Post{
			ID:       id,
			Title:    strings.TrimSpace(row.get("title")),
			Content:  row.get("content"),
			Category: strings.TrimSpace(row.get("category")),
		}
		if len(allowed) > 0 {
			if _, ok := allowed[core.NormalizeCategory(p.Category)]; !ok {
				res.skip(line, "category %q not allowed", p.Category)
				return
			}
		}
		if v := strings.TrimSpace(row.get("created_at")); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				res.skip(line, "created_at: %v", err)
				return
			}
			p.CreatedAt = ts
		}
		res.Rows = append(res.Rows, p)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReadRatings 解析评分 CSV。分数原样返回，截断在写入时进行。
func ReadRatings(r io.Reader) (*Result[core.Rating], error) {
	res := &Result[core.Rating]{}
	err := scan(r, ratingColumns, []string{"user", "post", "score"}, func(line int, row record) {
		uid, err := parseID(row.get("user"))
		if err != nil {
			res.skip(line, "user id: %v", err)
			return
		}
		pid, err := parseID(row.get("post"))
		if err != nil {
			res.skip(line, "post id: %v", err)
			return
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(row.get("score")), 64)
		if err != nil || math.IsNaN(score) {
			res.skip(line, "score %q is not a number", row.get("score"))
			return
		}
		res.Rows = append(res.Rows, core.Rating{UserID: uid, PostID: pid, Score: score})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReadPreferences 解析用户偏好 CSV。
func ReadPreferences(r io.Reader) (*Result[core.Preference], error) {
	res := &Result[core.Preference]{}
	err := scan(r, preferenceColumns, []string{"user", "categories"}, func(line int, row record) {
		uid, err := parseID(row.get("user"))
		if err != nil {
			res.skip(line, "user id: %v", err)
			return
		}
		cats, err := ParseTopicList(row.get("categories"))
		if err != nil {
			res.skip(line, "top_topics: %v", err)
			return
		}
		res.Rows = append(res.Rows, core.Preference{UserID: uid, Categories: cats})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ParseTopicList 解析列表单元格：先按 YAML flow 序列解析，失败时按逗号切分。
func ParseTopicList(cell string) ([]string, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell == "[]" {
		return nil, nil
	}
	if strings.HasPrefix(cell, "[") {
		var out []string
		if err := yaml.Unmarshal([]byte(cell), &out); err == nil {
			return trimAll(out), nil
		}
		if !strings.HasSuffix(cell, "]") {
			return nil, fmt.Errorf("unterminated list %q", cell)
		}
		cell = cell[1 : len(cell)-1]
	}
	parts := strings.Split(cell, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(p), `'"`)
	}
	return trimAll(parts), nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseID 接受整数或整数值的浮点（电子表格导出的 "12.0"）。
func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int64(f), nil
}

type record struct {
	cols   map[string]int
	fields []string
}

func (r record) get(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// scan 读取表头，把别名映射到逻辑列名，然后逐行回调。行号从 1 开始，包含表头。
func scan(r io.Reader, aliases map[string][]string, required []string, fn func(line int, row record)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty csv: missing header")
		}
		return fmt.Errorf("read header: %w", err)
	}
	lookup := make(map[string]string)
	for name, as := range aliases {
		for _, a := range as {
			lookup[a] = name
		}
	}
	cols := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name, ok := lookup[h]; ok {
			if _, dup := cols[name]; !dup {
				cols[name] = i
			}
		}
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return fmt.Errorf("missing column %q (accepted: %s)", name, strings.Join(aliases[name], ", "))
		}
	}

	line := 1
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		fn(line, record{cols: cols, fields: fields})
	}
}

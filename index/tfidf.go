package index

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// minTokenRunes 是进入词表的最短词长
const minTokenRunes = 2

// sparseVec 是按 idx 升序排列的稀疏向量。
type sparseVec struct {
	idx []int
	val []float64
}

// dot 计算两个稀疏向量的内积（归并）。
func (a sparseVec) dot(b sparseVec) float64 {
	var s float64
	i, j := 0, 0
	for i < len(a.idx) && j < len(b.idx) {
		switch {
		case a.idx[i] == b.idx[j]:
			s += a.val[i] * b.val[j]
			i++
			j++
		case a.idx[i] < b.idx[j]:
			i++
		default:
			j++
		}
	}
	return s
}

// tfidf 是拟合后的词表和 idf 权重。
type tfidf struct {
	vocab []string
	idf   []float64
}

// analyze 把规范化后的文本切成参与向量化的词。
func analyze(doc string) []string {
	fields := strings.Fields(doc)
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenRunes {
			out = append(out, f)
		}
	}
	return out
}

// fitTransform 在 docs 上拟合 TF-IDF 并返回每篇文档 L2 归一化后的向量。
//
//	tf  = 词在文档中的原始出现次数
//	idf = ln((1+n) / (1+df)) + 1
//
// 词表按字典序编号，空文档得到零向量。
func fitTransform(docs []string) (*tfidf, []sparseVec) {
	counts := make([]map[string]int, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		c := make(map[string]int)
		for _, tok := range analyze(doc) {
			c[tok]++
		}
		for tok := range c {
			df[tok]++
		}
		counts[i] = c
	}

	vocab := make([]string, 0, len(df))
	for tok := range df {
		vocab = append(vocab, tok)
	}
	sort.Strings(vocab)
	col := make(map[string]int, len(vocab))
	for i, tok := range vocab {
		col[tok] = i
	}

	n := float64(len(docs))
	idf := make([]float64, len(vocab))
	for i, tok := range vocab {
		idf[i] = math.Log((1+n)/(1+float64(df[tok]))) + 1
	}

	rows := make([]sparseVec, len(docs))
	for i, c := range counts {
		v := sparseVec{idx: make([]int, 0, len(c)), val: make([]float64, 0, len(c))}
		for tok := range c {
			v.idx = append(v.idx, col[tok])
		}
		sort.Ints(v.idx)
		var norm float64
		for _, j := range v.idx {
			w := float64(c[vocab[j]]) * idf[j]
			v.val = append(v.val, w)
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for k := range v.val {
				v.val[k] /= norm
			}
		}
		rows[i] = v
	}
	return &tfidf{vocab: vocab, idf: idf}, rows
}

// Package textproc 把原始文本规范化成适合向量化的词序列。
package textproc

import (
	"fmt"
	"strings"
	"unicode"
)

// maxReduce 限制单个词做词形还原/词干提取的迭代次数
const maxReduce = 4

// StopwordSet 判断一个（已小写的）词是否为停用词。
type StopwordSet interface {
	Contains(word string) bool
}

// Lemmatizer 把词还原为词典原形。
type Lemmatizer interface {
	Lemma(word string) string
}

// Stemmer 把词按规则截成词干。
type Stemmer interface {
	Stem(word string) string
}

// WordSet 是基于 map 的 StopwordSet。
type WordSet map[string]struct{}

// NewWordSet 以小写形式收录 words。
func NewWordSet(words ...string) WordSet {
	s := make(WordSet, len(words))
	for _, w := range words {
		s[strings.ToLower(w)] = struct{}{}
	}
	return s
}

func (s WordSet) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// Preprocessor 是纯函数式的文本规范化器。
// 停用词表、词形还原器、词干提取器都在构造时注入，之后只读，可被多个 goroutine 共享。
type Preprocessor struct {
	stopwords  StopwordSet
	lemmatizer Lemmatizer
	stemmer    Stemmer
}

type Option func(*Preprocessor)

// WithStopwords 启用停用词过滤；nil 表示不过滤。
func WithStopwords(s StopwordSet) Option {
	return func(p *Preprocessor) { p.stopwords = s }
}

// WithLemmatizer 启用词形还原；nil 表示关闭。
func WithLemmatizer(l Lemmatizer) Option {
	return func(p *Preprocessor) { p.lemmatizer = l }
}

// WithStemmer 启用词干提取；nil 表示关闭。
func WithStemmer(s Stemmer) Option {
	return func(p *Preprocessor) { p.stemmer = s }
}

// New 创建 Preprocessor；不传 Option 时只做小写、去标点、压缩空白。
func New(opts ...Option) *Preprocessor {
	p := &Preprocessor{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Normalize 规范化任意输入：
//  1. 非字符串输入先转成文本（nil 视为空串）
//  2. 小写、去首尾空白
//  3. 去掉字母、数字、下划线、空白以外的所有字符
//  4. 按空白切词，过滤停用词
//  5. 可选地做词形还原、词干提取，直到词不再变化
//  6. 用单个空格拼回
//
// 对任意 x 满足 Normalize(Normalize(x)) == Normalize(x)。
func (p *Preprocessor) Normalize(text any) string {
	tokens := p.Tokens(text)
	return strings.Join(tokens, " ")
}

// Tokens 返回 Normalize 拼接前的词序列。
func (p *Preprocessor) Tokens(text any) []string {
	fields := strings.Fields(clean(coerce(text)))
	out := make([]string, 0, len(fields))
	for _, tok := range fields {
		if p.isStopword(tok) {
			continue
		}
		for _, r := range p.reduce(tok) {
			if !p.isStopword(r) {
				out = append(out, r)
			}
		}
	}
	return out
}

func (p *Preprocessor) isStopword(tok string) bool {
	return p.stopwords != nil && p.stopwords.Contains(tok)
}

// reduce 反复做词形还原和词干提取直到不动点；结果可能被清洗成多个词或空。
func (p *Preprocessor) reduce(tok string) []string {
	if p.lemmatizer == nil && p.stemmer == nil {
		return []string{tok}
	}
	cur := tok
	for i := 0; i < maxReduce; i++ {
		next := cur
		if p.lemmatizer != nil {
			next = p.lemmatizer.Lemma(next)
		}
		if p.stemmer != nil {
			next = p.stemmer.Stem(next)
		}
		next = clean(next)
		if next == cur || strings.ContainsFunc(next, unicode.IsSpace) || next == "" {
			cur = next
			break
		}
		cur = next
	}
	return strings.Fields(cur)
}

func coerce(text any) string {
	switch v := text.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// clean 小写、去首尾空白，并去掉字母、数字、下划线、空白以外的字符。
func clean(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

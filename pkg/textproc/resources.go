package textproc

import (
	"fmt"
	"sync"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/kljensen/snowball/english"
)

// Resources 是进程级只读的语言资源：英文停用词、词形还原词典、Snowball 词干提取器。
type Resources struct {
	Stopwords  StopwordSet
	Lemmatizer Lemmatizer
	Stemmer    Stemmer
}

var (
	shared     *Resources
	sharedErr  error
	sharedOnce sync.Once
)

// SharedResources 返回进程内唯一的一份语言资源，首次调用时加载词典。
func SharedResources() (*Resources, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = loadResources()
	})
	return shared, sharedErr
}

func loadResources() (*Resources, error) {
	lem, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("load english lemmatizer: %w", err)
	}
	return &Resources{
		Stopwords:  snowballStopwords{},
		Lemmatizer: lem,
		Stemmer:    snowballStemmer{},
	}, nil
}

// Preprocessor 按开关组装一个 Preprocessor，资源从 r 注入。
func (r *Resources) Preprocessor(removeStopwords, lemmatize, stem bool) *Preprocessor {
	var opts []Option
	if removeStopwords {
		opts = append(opts, WithStopwords(r.Stopwords))
	}
	if lemmatize {
		opts = append(opts, WithLemmatizer(r.Lemmatizer))
	}
	if stem {
		opts = append(opts, WithStemmer(r.Stemmer))
	}
	return New(opts...)
}

// Default 返回线上默认姿态的 Preprocessor：过滤停用词、做词形还原、不做词干提取。
func Default() (*Preprocessor, error) {
	r, err := SharedResources()
	if err != nil {
		return nil, err
	}
	return r.Preprocessor(true, true, false), nil
}

// Normalize 使用共享资源按开关规范化 text。
// 词典加载失败时退化为不做词形还原。
func Normalize(text any, removeStopwords, lemmatize, stem bool) string {
	r, err := SharedResources()
	if err != nil {
		r = &Resources{Stopwords: snowballStopwords{}, Stemmer: snowballStemmer{}}
		lemmatize = false
	}
	return r.Preprocessor(removeStopwords, lemmatize, stem).Normalize(text)
}

type snowballStopwords struct{}

func (snowballStopwords) Contains(word string) bool { return english.IsStopWord(word) }

type snowballStemmer struct{}

func (snowballStemmer) Stem(word string) string { return english.Stem(word, false) }

// SnowballStopwords 返回 snowball 的英文停用词表，不依赖词典加载。
func SnowballStopwords() StopwordSet { return snowballStopwords{} }

// SnowballStemmer 返回 snowball 英文词干提取器。
func SnowballStemmer() Stemmer { return snowballStemmer{} }

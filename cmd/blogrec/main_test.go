package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("blogrec %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestCLI_ImportRateRecommend(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("BLOGREC_CONFIG", "")
	t.Setenv("BLOGREC_LOGGING_LEVEL", "disabled")

	posts := "blog_id,title,content,topic\n" +
		"1,Go interfaces,interfaces make go code flexible,Tech\n" +
		"2,Go channels,channels let goroutines talk,Tech\n" +
		"x,Broken row,no id here,Tech\n" +
		"4,Sourdough,bread needs patience and flour,Food\n"
	ratings := "userId,blog_id,ratings\n1,1,5\n2,1,4\n2,2,5\n3,4,3\n"
	prefs := "user_id,top_topics\n1,\"['Tech']\"\n"
	for name, body := range map[string]string{"posts.csv": posts, "ratings.csv": ratings, "prefs.csv": prefs} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	db := filepath.Join(dir, "blogrec.db")

	if out := run(t, "import", "posts", "posts.csv", "--db", db); !strings.Contains(out, "Imported 3 posts") {
		t.Errorf("import posts: %q", out)
	}
	if out := run(t, "import", "ratings", "ratings.csv", "--db", db); !strings.Contains(out, "Imported 4 ratings") {
		t.Errorf("import ratings: %q", out)
	}
	if out := run(t, "import", "preferences", "prefs.csv", "--db", db); !strings.Contains(out, "1 users") {
		t.Errorf("import preferences: %q", out)
	}

	if out := run(t, "rate", "--user", "3", "--post", "4", "--score", "7", "--db", db); !strings.Contains(out, "5.00") {
		t.Errorf("rate: %q", out)
	}
	if out := run(t, "popular", "--limit", "1", "--db", db); !strings.Contains(out, "Go channels") {
		t.Errorf("popular: %q", out)
	}
	if out := run(t, "history", "--user", "2", "--db", db); !strings.Contains(out, "Go interfaces") {
		t.Errorf("history: %q", out)
	}
	// 用户 1 只评过 1：近邻 2、3 的平均分让 2 和 4 都进入协同过滤结果
	out := run(t, "recommend", "--user", "1", "--db", db)
	for _, want := range []string{"Go channels", "Sourdough", "collaborative"} {
		if !strings.Contains(out, want) {
			t.Errorf("recommend: missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "No recommendations") {
		t.Errorf("recommend: %q", out)
	}
}

func TestCLI_Normalize(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"normalize", "--stopwords", "--lemmatize=false", "--stem=false", "The", "Cats!"}, want: "cats\n"},
		{args: []string{"normalize", "--stopwords", "--lemmatize=false", "--stem", "The running dogs"}, want: "run dog\n"},
		{args: []string{"normalize", "--stopwords=false", "--lemmatize=false", "--stem=false", "The Cats!"}, want: "the cats\n"},
	}
	for _, tt := range tests {
		if got := run(t, tt.args...); got != tt.want {
			t.Errorf("blogrec %s = %q, want %q", strings.Join(tt.args, " "), got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a much longer title", 10, "a much..."},
		{"分类分类分类分类", 6, "分类分..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

package recall

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/store"
)

func TestRankByMeanRating(t *testing.T) {
	ds := core.NewDataset(
		[]core.Post{{ID: 1, Title: "1"}, {ID: 2, Title: "2"}, {ID: 3, Title: "3"}, {ID: 4, Title: "4"}, {ID: 5, Title: "5"}},
		[]core.Rating{
			{UserID: 1, PostID: 3, Score: 4},
			{UserID: 2, PostID: 3, Score: 5},
			{UserID: 1, PostID: 1, Score: 4.5},
			{UserID: 1, PostID: 2, Score: 4.5},
			{UserID: 3, PostID: 5, Score: 1},
			{UserID: 3, PostID: 99, Score: 5}, // 不在语料中
		},
		nil,
	)
	got := RankByMeanRating(ds)
	want := []Ranked{
		{PostID: 1, Mean: 4.5, Count: 1},
		{PostID: 2, Mean: 4.5, Count: 1},
		{PostID: 3, Mean: 4.5, Count: 2},
		{PostID: 5, Mean: 1, Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RankByMeanRating = %+v, want %+v", got, want)
	}
	if got := RankByMeanRating(core.NewDataset(nil, nil, nil)); len(got) != 0 {
		t.Errorf("empty dataset: got %+v", got)
	}
}

func TestPopularity_Recall(t *testing.T) {
	ctx := context.Background()
	ranked := []Ranked{{PostID: 10, Mean: 5}, {PostID: 2, Mean: 4}, {PostID: 7, Mean: 4}}

	t.Run("from ranking", func(t *testing.T) {
		p := &Popularity{Ranked: ranked, Limit: 2}
		items, err := p.Recall(ctx, nil)
		if err != nil {
			t.Fatalf("Recall: %v", err)
		}
		if got, want := itemIDs(items), []int64{10, 2}; !reflect.DeepEqual(got, want) {
			t.Errorf("Recall = %v, want %v", got, want)
		}
	})

	t.Run("from published sorted set", func(t *testing.T) {
		kv := store.NewMemoryStore()
		defer kv.Close()
		if err := PublishPopularity(ctx, kv, "pop", ranked); err != nil {
			t.Fatalf("PublishPopularity: %v", err)
		}
		p := &Popularity{Store: kv, Key: "pop"}
		items, err := p.Recall(ctx, nil)
		if err != nil {
			t.Fatalf("Recall: %v", err)
		}
		if got, want := itemIDs(items), []int64{10, 2, 7}; !reflect.DeepEqual(got, want) {
			t.Errorf("Recall = %v, want %v", got, want)
		}

		// 再次发布会整体替换
		if err := PublishPopularity(ctx, kv, "pop", ranked[2:]); err != nil {
			t.Fatalf("PublishPopularity: %v", err)
		}
		items, _ = p.Recall(ctx, nil)
		if got, want := itemIDs(items), []int64{7}; !reflect.DeepEqual(got, want) {
			t.Errorf("after republish = %v, want %v", got, want)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		items, err := (&Popularity{}).Recall(ctx, nil)
		if err != nil || len(items) != 0 {
			t.Errorf("Recall = %v, %v; want empty", items, err)
		}
	})
}

// Package store 提供 core.Store / core.KeyValueStore 的实现，以及博客数据的持久化（SQLStore）。
//
// 注意：接口定义在 core 包。
//
//	var kv core.KeyValueStore = store.NewMemoryStore()
//	var db = store.OpenSQL(ctx, "blogrec.db")
package store

// PopularityKey 是热门榜单有序集合的默认 key。
const PopularityKey = "blogrec:popularity"

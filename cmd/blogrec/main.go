// Command blogrec 导入博客数据并给出混合推荐。
package main

func main() {
	Execute()
}

// Package tests 是 itemflow 的集成测试模块。
//
// 此包位于 internal/ 目录下, 外部项目无法导入。
//
// 测试内容：
//   - 工作流图的管理(标题唯一, 节点删除, 默认描述复制)
//   - item迁移(分配策略, 授权, 乐观并发, 引用计数, 历史)
//   - 批量迁移
//   - 过滤器(项目可见性, 取反, 收藏上限)
//
// 所有测试使用内存中的 SQLite, 在项目根目录运行：
//
//	go test ./internal/tests/...
package tests

// Package itemflow 提供item的工作流迁移和多维度过滤功能。
//
// 主要特性：
//   - 工作流图：每个项目一份工作流描述(节点和link), 没有时使用系统默认描述
//   - 迁移校验：link按item类型限定, 负责人必须被目标节点授权(直接授权或者通过用户组)
//   - 分配策略：creator / project_leader / user_selected
//   - 并发安全：管理操作通过本地锁或者Redis锁串行, item通过版本号乐观并发
//   - 过滤器：项目、状态、负责人、类型、节点五个维度, 每个维度可以取反, 支持文本和序号
//   - 数据持久化：基于 GORM, 默认使用 SQLite
//
// 基础使用示例:
//
//	package main
//
//	import (
//	    "context"
//
//	    "github.com/blingmoon/itemflow/filter"
//	    "github.com/blingmoon/itemflow/workflow"
//	    "gorm.io/driver/sqlite"
//	    "gorm.io/gorm"
//	)
//
//	func main() {
//	    ctx := context.Background()
//	    // 1. 初始化数据库
//	    db, _ := gorm.Open(sqlite.Open("itemflow.sqlite3"), &gorm.Config{})
//	    db.AutoMigrate(append(workflow.AllModels(), filter.AllModels()...)...)
//
//	    // 2. 创建服务
//	    lock := workflow.NewLocalWorkflowLock()
//	    workflowRepo := workflow.NewWorkflowRepo(db)
//	    graph := workflow.NewWorkflowGraphService(workflowRepo, lock)
//	    projects := workflow.NewProjectService(workflow.NewProjectRepo(db), workflow.NewPrincipalRepo(db), workflowRepo, lock)
//	    items := workflow.NewItemService(workflow.NewItemRepo(db), workflowRepo, workflow.NewProjectRepo(db), workflow.NewPrincipalRepo(db))
//
//	    // 3. 定义默认工作流
//	    open, _ := graph.AddNode(ctx, &workflow.AddNodeParams{Title: "Open", AuthorizedIDs: []string{"alice"}})
//	    graph.AddLink(ctx, &workflow.AddLinkParams{Title: "start", FinalNodeID: open.ID, ItemTypes: []string{"bug"}})
//
//	    // 4. 创建项目和item, 新项目会复制一份默认工作流
//	    project, _ := projects.SaveProject(ctx, &workflow.SaveProjectParams{
//	        Name: "demo", LeaderID: "alice", AssignmentStrategy: "creator", ItemTypes: []string{"bug"},
//	    })
//	    item, _ := items.CreateItem(ctx, &workflow.CreateItemParams{
//	        ProjectID: project.ID, Title: "crash on start", ItemType: "bug", CreatorID: "alice",
//	    })
//
//	    // 5. 迁移
//	    next, _ := items.FindNextNodes(ctx, item)
//	    items.MoveItem(ctx, &workflow.MoveItemParams{ItemID: item.ID, TargetNodeID: next[0].ID, ExpectedVersion: item.Version})
//
//	    // 6. 过滤
//	    engine := filter.NewEngine(items, projects)
//	    spec := &filter.Spec{State: filter.NewComponent(false, workflow.ItemStateOpen)}
//	    engine.Select(ctx, filter.AuthenticatedContext("alice"), &filter.SelectParams{Spec: spec})
//	}
//
// 迁移规则：
//
// item可以去的节点是从当前节点出发(CREATED的item从开始位置出发), 并且包含item类型的link的终点。
// 终点被删除的link不再可用; BLOCKED的item没有可以去的节点。
// 进入终止节点的item变为CLOSED, 不需要负责人。
//
// 过滤规则：
//
// 每个维度没有选择任何值时不限制, 即使标记了取反也不限制。
// 各个维度之间取AND, 结果总是限制在会话可以看到的项目之内。
package itemflow

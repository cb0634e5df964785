package tests

import (
	"context"
	"testing"

	"github.com/blingmoon/itemflow/filter"
	"github.com/blingmoon/itemflow/workflow"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db       *gorm.DB
	graph    workflow.WorkflowGraphService
	items    workflow.ItemService
	projects workflow.ProjectService
	filters  *filter.Service
	engine   *filter.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存数据库每个连接都是独立的库
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(append(workflow.AllModels(), filter.AllModels()...)...))

	lock := workflow.NewLocalWorkflowLock()
	workflowRepo := workflow.NewWorkflowRepo(db)
	projectRepo := workflow.NewProjectRepo(db)
	principalRepo := workflow.NewPrincipalRepo(db)
	env := &testEnv{
		db:       db,
		graph:    workflow.NewWorkflowGraphService(workflowRepo, lock),
		items:    workflow.NewItemService(workflow.NewItemRepo(db), workflowRepo, projectRepo, principalRepo),
		projects: workflow.NewProjectService(projectRepo, principalRepo, workflowRepo, lock),
		filters:  filter.NewService(filter.NewRepo(db), lock),
	}
	env.engine = filter.NewEngine(env.items, env.projects)
	return env
}

// seedDefault 默认工作流
//
//	start -> Open -> Review -> Done(final)
//	              \----------> Done
//
// Open 和 Review 授权给 devs 用户组和 alice
func (e *testEnv) seedDefault(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	e.savePrincipal(t, "alice", workflow.PrincipalKindUser)
	e.savePrincipal(t, "bob", workflow.PrincipalKindUser)
	e.savePrincipal(t, "carol", workflow.PrincipalKindUser)
	e.savePrincipal(t, "devs", workflow.PrincipalKindGroup)
	require.NoError(t, e.projects.AddGroupMember(ctx, "devs", "bob"))

	open, err := e.graph.AddNode(ctx, &workflow.AddNodeParams{Title: "Open", AuthorizedIDs: []string{"devs", "alice"}})
	require.NoError(t, err)
	review, err := e.graph.AddNode(ctx, &workflow.AddNodeParams{Title: "Review", AuthorizedIDs: []string{"devs", "alice"}})
	require.NoError(t, err)
	done, err := e.graph.AddNode(ctx, &workflow.AddNodeParams{Title: "Done", IsFinal: true})
	require.NoError(t, err)
	links := []*workflow.AddLinkParams{
		{Title: "start", FinalNodeID: open.ID, ItemTypes: []string{"bug", "task"}},
		{Title: "review", InitialNodeID: open.ID, FinalNodeID: review.ID, ItemTypes: []string{"bug", "task"}},
		{Title: "finish", InitialNodeID: review.ID, FinalNodeID: done.ID, ItemTypes: []string{"bug", "task"}},
		{Title: "wontfix", InitialNodeID: open.ID, FinalNodeID: done.ID, ItemTypes: []string{"bug"}},
	}
	for _, link := range links {
		_, err := e.graph.AddLink(ctx, link)
		require.NoError(t, err)
	}
}

func (e *testEnv) savePrincipal(t *testing.T, id string, kind workflow.PrincipalKind) {
	t.Helper()
	_, err := e.projects.SavePrincipal(context.Background(), &workflow.SavePrincipalParams{ID: id, Name: id, Kind: kind})
	require.NoError(t, err)
}

func (e *testEnv) saveProject(t *testing.T, name string, strategy workflow.AssignmentStrategy, isPublic bool, memberIDs ...string) *workflow.Project {
	t.Helper()
	project, err := e.projects.SaveProject(context.Background(), &workflow.SaveProjectParams{
		Name:               name,
		IsPublic:           isPublic,
		LeaderID:           "alice",
		AssignmentStrategy: string(strategy),
		ItemTypes:          []string{"bug", "task"},
		MemberIDs:          memberIDs,
	})
	require.NoError(t, err)
	return project
}

func (e *testEnv) createItem(t *testing.T, projectID string, title string, itemType string, creatorID string) *workflow.Item {
	t.Helper()
	item, err := e.items.CreateItem(context.Background(), &workflow.CreateItemParams{
		ProjectID: projectID,
		Title:     title,
		ItemType:  itemType,
		CreatorID: creatorID,
	})
	require.NoError(t, err)
	return item
}

// node 项目描述中按标题找节点, 项目的节点id和默认描述不同
func (e *testEnv) node(t *testing.T, projectID string, title string) *workflow.WorkflowNodeDescription {
	t.Helper()
	description, err := e.graph.FindWorkflowDescription(context.Background(), projectID)
	require.NoError(t, err)
	node, ok := description.FindNodeByTitle(title)
	require.True(t, ok, "node %s not found", title)
	return node
}

func (e *testEnv) move(t *testing.T, item *workflow.Item, title string, responsibleID string) *workflow.Item {
	t.Helper()
	moved, err := e.items.MoveItem(context.Background(), &workflow.MoveItemParams{
		ItemID:          item.ID,
		TargetNodeID:    e.node(t, item.ProjectID, title).ID,
		ResponsibleID:   responsibleID,
		ExpectedVersion: item.Version,
	})
	require.NoError(t, err)
	return moved
}

func nodeTitles(nodes []*workflow.WorkflowNodeDescription) []string {
	ret := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ret = append(ret, node.Title)
	}
	return ret
}

package tests

import (
	"context"
	"testing"

	"github.com/blingmoon/itemflow/filter"
	"github.com/blingmoon/itemflow/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemTitles(items []*workflow.Item) []string {
	ret := make([]string, 0, len(items))
	for _, item := range items {
		ret = append(ret, item.Title)
	}
	return ret
}

func TestFilterSelect(t *testing.T) {
	env := newTestEnv(t)
	env.seedDefault(t)
	ctx := context.Background()

	public := env.saveProject(t, "public", workflow.UserSelectedAssignment, true)
	private := env.saveProject(t, "private", workflow.UserSelectedAssignment, false, "devs")
	hidden := env.saveProject(t, "hidden", workflow.UserSelectedAssignment, false, "carol")

	env.createItem(t, public.ID, "Public bug", "bug", "carol")
	moved := env.move(t, env.createItem(t, public.ID, "Public task", "task", "carol"), "Open", "bob")
	env.createItem(t, private.ID, "Private BUG report", "bug", "carol")
	env.createItem(t, hidden.ID, "Hidden bug", "bug", "carol")

	selectAll := func(t *testing.T, session filter.SessionContext, spec *filter.Spec) []string {
		t.Helper()
		items, total, err := env.engine.Select(ctx, session, &filter.SelectParams{Spec: spec})
		require.NoError(t, err)
		assert.Equal(t, int64(len(items)), total)
		return itemTitles(items)
	}

	t.Run("匿名会话只能看到公开项目", func(t *testing.T) {
		assert.Equal(t, []string{"Public bug", "Public task"}, selectAll(t, filter.AnonymousContext(), &filter.Spec{}))
	})

	t.Run("通过用户组成为项目成员", func(t *testing.T) {
		titles := selectAll(t, filter.AuthenticatedContext("bob"), &filter.Spec{})
		assert.ElementsMatch(t, []string{"Public bug", "Public task", "Private BUG report"}, titles)
	})

	t.Run("取反的项目仍然限制在可见范围内", func(t *testing.T) {
		spec := &filter.Spec{Project: filter.NewComponent(true, public.ID)}
		assert.Equal(t, []string{"Private BUG report"}, selectAll(t, filter.AuthenticatedContext("bob"), spec))
	})

	t.Run("空集合取反不限制", func(t *testing.T) {
		spec := &filter.Spec{State: filter.NewComponent(true)}
		assert.Len(t, selectAll(t, filter.AuthenticatedContext("bob"), spec), 3)
	})

	t.Run("多个维度取AND", func(t *testing.T) {
		spec := &filter.Spec{
			ItemType: filter.NewComponent(false, "bug"),
			State:    filter.NewComponent(false, workflow.ItemStateCreated),
		}
		assert.ElementsMatch(t, []string{"Public bug", "Private BUG report"}, selectAll(t, filter.AuthenticatedContext("bob"), spec))
	})

	t.Run("节点和负责人", func(t *testing.T) {
		spec := &filter.Spec{
			Node:        filter.NewComponent(false, moved.CurrentNodeID),
			Responsible: filter.NewComponent(false, "bob"),
		}
		assert.Equal(t, []string{"Public task"}, selectAll(t, filter.AnonymousContext(), spec))
	})

	t.Run("文本不区分大小写", func(t *testing.T) {
		spec := &filter.Spec{Text: "bug"}
		assert.ElementsMatch(t, []string{"Public bug", "Private BUG report"}, selectAll(t, filter.AuthenticatedContext("bob"), spec))
	})

	t.Run("序号", func(t *testing.T) {
		spec := &filter.Spec{ItemSeq: 2}
		assert.Equal(t, []string{"Public task"}, selectAll(t, filter.AuthenticatedContext("bob"), spec))
	})

	t.Run("数据库和内存的结果一致", func(t *testing.T) {
		all, err := env.items.QueryItems(ctx, &workflow.QueryItemParams{})
		require.NoError(t, err)
		spec := &filter.Spec{
			ItemType: filter.NewComponent(true, "task"),
			Text:     "BUG",
		}
		criteria, err := env.engine.Criteria(ctx, filter.AuthenticatedContext("carol"), spec)
		require.NoError(t, err)
		fromDB, err := env.items.QueryItems(ctx, &workflow.QueryItemParams{Criteria: criteria})
		require.NoError(t, err)

		visible := make([]*workflow.Item, 0)
		for _, item := range filter.Filter(all, spec) {
			for _, projectID := range criteria.VisibleProjectIDs {
				if item.ProjectID == projectID {
					visible = append(visible, item)
				}
			}
		}
		assert.ElementsMatch(t, itemTitles(visible), itemTitles(fromDB))
		assert.ElementsMatch(t, []string{"Public bug", "Hidden bug"}, itemTitles(fromDB))
	})

	t.Run("分页和排序", func(t *testing.T) {
		asc := false
		items, total, err := env.engine.Select(ctx, filter.AuthenticatedContext("bob"), &filter.SelectParams{
			Spec:       &filter.Spec{},
			OrderBy:    "title",
			OrderByAsc: &asc,
			Page:       &workflow.Pager{Page: 1, Size: 2},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Equal(t, []string{"Public task", "Public bug"}, itemTitles(items))

		_, _, err = env.engine.Select(ctx, filter.AuthenticatedContext("bob"), &filter.SelectParams{OrderBy: "id; drop table item"})
		assert.ErrorIs(t, err, workflow.ErrParamInvalid)
	})

	t.Run("登录会话必须有用户", func(t *testing.T) {
		_, _, err := env.engine.Select(ctx, filter.SessionContext{Mode: filter.AuthenticatedMode}, &filter.SelectParams{})
		assert.ErrorIs(t, err, workflow.ErrParamInvalid)
	})
}

func TestFilterUnicodeText(t *testing.T) {
	env := newTestEnv(t)
	env.seedDefault(t)
	ctx := context.Background()
	project := env.saveProject(t, "unicode", workflow.UserSelectedAssignment, true)

	env.createItem(t, project.ID, "ÄRGER im Büro", "bug", "carol")
	moved := env.move(t, env.createItem(t, project.ID, "ΣΦΑΛΜΑ στη σύνδεση", "bug", "carol"), "Open", "bob")
	env.createItem(t, project.ID, "plain ascii", "task", "carol")

	all, err := env.items.QueryItems(ctx, &workflow.QueryItemParams{})
	require.NoError(t, err)
	for _, text := range []string{"ärger", "ÄRGER", "σφάλμα", "ΣΦΆΛΜΑ", "ΣΦΑΛΜΑ", "BÜRO", "ASCII"} {
		t.Run(text, func(t *testing.T) {
			spec := &filter.Spec{Text: text}
			items, total, err := env.engine.Select(ctx, filter.AnonymousContext(), &filter.SelectParams{Spec: spec})
			require.NoError(t, err)
			assert.Equal(t, int64(len(items)), total)
			assert.ElementsMatch(t, itemTitles(filter.Filter(all, spec)), itemTitles(items))
		})
	}

	t.Run("迁移后仍然可以按文本查到", func(t *testing.T) {
		items, _, err := env.engine.Select(ctx, filter.AnonymousContext(), &filter.SelectParams{Spec: &filter.Spec{Text: "σύνδεση"}})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, moved.ID, items[0].ID)
	})

	t.Run("大写的非ASCII文本也能查到", func(t *testing.T) {
		items, _, err := env.engine.Select(ctx, filter.AnonymousContext(), &filter.SelectParams{Spec: &filter.Spec{Text: "ärger"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"ÄRGER im Büro"}, itemTitles(items))
	})
}

func TestFilterService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := filter.AuthenticatedContext("alice")

	newSpec := func(name string, favorite bool) *filter.Spec {
		spec := session.NewSpec()
		spec.Name = name
		spec.Favorite = favorite
		spec.State = filter.NewComponent(false, workflow.ItemStateOpen)
		return spec
	}

	t.Run("保存后按owner查询", func(t *testing.T) {
		saved, err := env.filters.Save(ctx, newSpec("open items", false))
		require.NoError(t, err)
		assert.True(t, saved.IsSaved())
		assert.Equal(t, int64(1), saved.Version)

		found, err := env.filters.Find(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, saved.State, found.State)
		assert.Equal(t, "alice", found.OwnerID)
	})

	t.Run("同名过滤器", func(t *testing.T) {
		_, err := env.filters.Save(ctx, newSpec("open items", false))
		assert.ErrorIs(t, err, filter.ErrDuplicateFilterName)

		// 不同owner可以同名
		other := filter.AuthenticatedContext("bob").NewSpec()
		other.Name = "open items"
		_, err = env.filters.Save(ctx, other)
		assert.NoError(t, err)
	})

	t.Run("匿名过滤器不能保存", func(t *testing.T) {
		spec := filter.AnonymousContext().NewSpec()
		spec.Name = "anonymous"
		_, err := env.filters.Save(ctx, spec)
		assert.ErrorIs(t, err, workflow.ErrParamInvalid)
	})

	t.Run("收藏上限", func(t *testing.T) {
		ids := make([]string, 0)
		for _, name := range []string{"fav 1", "fav 2", "fav 3"} {
			saved, err := env.filters.Save(ctx, newSpec(name, true))
			require.NoError(t, err)
			ids = append(ids, saved.ID)
		}
		_, err := env.filters.Save(ctx, newSpec("fav 4", true))
		assert.ErrorIs(t, err, filter.ErrFavoriteLimitExceeded)

		plain, err := env.filters.Save(ctx, newSpec("plain", false))
		require.NoError(t, err)
		_, err = env.filters.SetFavorite(ctx, "alice", plain.ID, true)
		assert.ErrorIs(t, err, filter.ErrFavoriteLimitExceeded)

		favorites, err := env.filters.FindFavorites(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, favorites, env.filters.FavoriteLimit())

		// 已经是收藏的再次收藏不受上限影响
		_, err = env.filters.SetFavorite(ctx, "alice", ids[0], true)
		assert.NoError(t, err)

		_, err = env.filters.SetFavorite(ctx, "alice", ids[0], false)
		require.NoError(t, err)
		promoted, err := env.filters.SetFavorite(ctx, "alice", plain.ID, true)
		require.NoError(t, err)
		assert.True(t, promoted.Favorite)
	})

	t.Run("更新", func(t *testing.T) {
		spec, err := env.filters.Save(ctx, newSpec("to update", false))
		require.NoError(t, err)
		spec.Text = "crash"
		updated, err := env.filters.Update(ctx, spec)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)

		stale := updated.Clone()
		stale.Version = 1
		_, err = env.filters.Update(ctx, stale)
		assert.ErrorIs(t, err, workflow.ErrConcurrentModification)

		updated.Name = "open items"
		_, err = env.filters.Update(ctx, updated)
		assert.ErrorIs(t, err, filter.ErrDuplicateFilterName)
	})

	t.Run("删除", func(t *testing.T) {
		spec, err := env.filters.Save(ctx, newSpec("to delete", false))
		require.NoError(t, err)
		err = env.filters.Delete(ctx, "bob", spec.ID)
		assert.ErrorIs(t, err, workflow.ErrParamInvalid)
		require.NoError(t, env.filters.Delete(ctx, "alice", spec.ID))
		_, err = env.filters.Find(ctx, spec.ID)
		assert.ErrorIs(t, err, filter.ErrFilterNotFound)

		require.NoError(t, env.filters.DeleteOfOwner(ctx, "alice"))
		specs, err := env.filters.FindByOwner(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, specs)
		specs, err = env.filters.FindByOwner(ctx, "bob")
		require.NoError(t, err)
		assert.Len(t, specs, 1)
	})

	t.Run("token分享", func(t *testing.T) {
		spec := newSpec("shared", true)
		spec.Text = "Crash"
		spec.ItemSeq = 7
		token, err := filter.EncodeToken(spec)
		require.NoError(t, err)
		decoded, err := filter.DecodeToken(token)
		require.NoError(t, err)
		assert.False(t, decoded.IsSaved())
		assert.Empty(t, decoded.Name)
		assert.False(t, decoded.Favorite)
		assert.Equal(t, spec.State, decoded.State)
		assert.Equal(t, "Crash", decoded.Text)
		assert.Equal(t, int64(7), decoded.ItemSeq)
	})
}

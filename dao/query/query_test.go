package query_test

import (
	"context"
	"errors"
	"testing"

	"github.com/morf1ng/105site/dao/model"
	"github.com/morf1ng/105site/dao/query"
	"github.com/morf1ng/105site/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

func seedProject(t *testing.T, db *gorm.DB) *model.Project {
	t.Helper()
	p := &model.Project{
		Title:      "Shop",
		URL:        "https://shop.example.com",
		PreviewImg: strPtr("preview.png"),
		AboutCompany: &model.ProjectAboutCompany{
			Title:       "Acme",
			Description: "Makes things",
		},
		Stages: []model.ProjectStage{
			{Title: "one", Description: "first", Img: strPtr("stages/1.png")},
			{Title: "two", Description: "second"},
		},
		Result: &model.ProjectResult{
			Description: "done",
			Images: []model.ProjectResultImage{
				{Type: model.ResultImageTablet, Img: strPtr("results/tablet.png")},
				{Type: model.ResultImageSmartphone, Img: strPtr("results/phone.png")},
			},
		},
		Progresses: []model.ProjectProgress{{Digit: 40, Text: "faster"}},
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func TestFetchFullProject(t *testing.T) {
	db := testutil.NewDB(t)
	created := seedProject(t, db)

	p, err := query.FetchFullProject(context.Background(), db, created.ID)
	require.NoError(t, err)
	require.NotNil(t, p.AboutCompany)
	assert.Equal(t, "Acme", p.AboutCompany.Title)
	require.Len(t, p.Stages, 2)
	assert.Equal(t, "one", p.Stages[0].Title)
	assert.Nil(t, p.Stages[1].Img)
	require.NotNil(t, p.Result)
	require.Len(t, p.Result.Images, 2)
	assert.Equal(t, model.ResultImageTablet, p.Result.Images[0].Type)
	assert.Len(t, p.Progresses, 1)

	_, err = query.FetchFullProject(context.Background(), db, created.ID+100)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestDeleteProjectTree(t *testing.T) {
	db := testutil.NewDB(t)
	p := seedProject(t, db)
	other := seedProject(t, db)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return query.DeleteProjectTree(tx, p.ID)
	}))

	for _, m := range []any{
		&model.ProjectAboutCompany{}, &model.ProjectStage{}, &model.ProjectResult{}, &model.ProjectProgress{},
	} {
		var count int64
		require.NoError(t, db.Model(m).Where("project_id = ?", p.ID).Count(&count).Error)
		assert.Zero(t, count)
	}
	var images int64
	require.NoError(t, db.Model(&model.ProjectResultImage{}).Count(&images).Error)
	assert.Equal(t, int64(2), images, "only the other project's images remain")

	_, err := query.FetchFullProject(context.Background(), db, other.ID)
	assert.NoError(t, err)
}

func TestReferencedImages(t *testing.T) {
	db := testutil.NewDB(t)
	seedProject(t, db)

	refs, err := query.ReferencedImages(context.Background(), db)
	require.NoError(t, err)
	assert.Len(t, refs, 4)
	for _, p := range []string{"preview.png", "stages/1.png", "results/tablet.png", "results/phone.png"} {
		assert.Contains(t, refs, p)
	}
}

func TestRoleHolders_ExactMatch(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	var roles []*model.Role
	for i := 0; i < 12; i++ {
		roles = append(roles, testutil.CreateRole(t, db, "role"+string(rune('a'+i))))
	}
	target := roles[0]
	// a role whose id contains target's id as a substring
	var similar *model.Role
	for _, r := range roles {
		if r.ID != target.ID && r.ID%10 == target.ID%10 {
			similar = r
		}
	}
	require.NotNil(t, similar)

	holder := testutil.CreateUser(t, db, "a@example.com", "pw", target)
	testutil.CreateUser(t, db, "b@example.com", "pw", similar)

	holders, err := query.RoleHolders(ctx, db, target.ID)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, holder.ID, holders[0].ID)
}

func TestRoleNames(t *testing.T) {
	db := testutil.NewDB(t)
	editor := testutil.CreateRole(t, db, "editor")
	user := testutil.CreateUser(t, db, "a@example.com", "pw", testutil.AdminRole(t, db), editor)

	names, err := query.RoleNames(context.Background(), db, user)
	require.NoError(t, err)
	assert.Equal(t, []string{model.RoleAdmin, "editor"}, names)

	found, err := query.FindUserByEmail(context.Background(), db, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = query.FindUserByEmail(context.Background(), db, "nobody@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAdminRole(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	admin, err := query.AdminRole(ctx, db)
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, model.RoleAdmin, admin.Name)

	err = db.Transaction(func(tx *gorm.DB) error {
		locked, err := query.LockAdminRole(ctx, tx)
		require.NoError(t, err)
		require.NotNil(t, locked)
		assert.Equal(t, admin.ID, locked.ID)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, db.Where("name = ?", model.RoleAdmin).Delete(&model.Role{}).Error)
	admin, err = query.AdminRole(ctx, db)
	require.NoError(t, err)
	assert.Nil(t, admin)
}

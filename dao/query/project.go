package query

import (
	"context"
	"database/sql"

	"github.com/morf1ng/105site/dao/model"

	"gorm.io/gorm"
)

func byID(db *gorm.DB) *gorm.DB { return db.Order("id") }

// FetchFullProject loads a project with every child relation, children in
// insertion order. It returns gorm.ErrRecordNotFound for an unknown id.
func FetchFullProject(ctx context.Context, db *gorm.DB, id uint) (*model.Project, error) {
	var project model.Project
	err := db.WithContext(ctx).
		Preload("AboutCompany").
		Preload("Stages", byID).
		Preload("Result").
		Preload("Result.Images", byID).
		Preload("Progresses", byID).
		First(&project, id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects returns every project with its result, newest id last.
func ListProjects(ctx context.Context, db *gorm.DB) ([]model.Project, error) {
	var projects []model.Project
	err := db.WithContext(ctx).Preload("Result").Order("id").Find(&projects).Error
	return projects, err
}

// DeleteProjectChildren removes every child row of a project, keeping the
// project row itself. Result images go first since they hang off the result.
func DeleteProjectChildren(tx *gorm.DB, projectID uint) error {
	results := tx.Model(&model.ProjectResult{}).Select("id").Where("project_id = ?", projectID)
	if err := tx.Where("result_id IN (?)", results).Delete(&model.ProjectResultImage{}).Error; err != nil {
		return err
	}
	for _, child := range []any{
		&model.ProjectResult{},
		&model.ProjectStage{},
		&model.ProjectProgress{},
		&model.ProjectAboutCompany{},
	} {
		if err := tx.Where("project_id = ?", projectID).Delete(child).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeleteProjectTree removes a project and all of its children.
func DeleteProjectTree(tx *gorm.DB, projectID uint) error {
	if err := DeleteProjectChildren(tx, projectID); err != nil {
		return err
	}
	return tx.Delete(&model.Project{}, projectID).Error
}

// ReferencedImages returns every upload path stored on a project row.
func ReferencedImages(ctx context.Context, db *gorm.DB) (map[string]struct{}, error) {
	refs := make(map[string]struct{})
	add := func(paths []*string) {
		for _, p := range paths {
			if p != nil && *p != "" {
				refs[*p] = struct{}{}
			}
		}
	}

	var projects []model.Project
	if err := db.WithContext(ctx).Select("preview_img", "main_img", "notebook_img").Find(&projects).Error; err != nil {
		return nil, err
	}
	for _, p := range projects {
		add([]*string{p.PreviewImg, p.MainImg, p.NotebookImg})
	}

	for _, table := range []any{&model.ProjectStage{}, &model.ProjectResultImage{}} {
		var imgs []sql.NullString
		if err := db.WithContext(ctx).Model(table).Pluck("img", &imgs).Error; err != nil {
			return nil, err
		}
		for _, img := range imgs {
			if img.Valid && img.String != "" {
				refs[img.String] = struct{}{}
			}
		}
	}
	return refs, nil
}

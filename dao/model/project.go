package model

import "time"

// Project is a portfolio entry. Its children are removed together with it.
type Project struct {
	ID          uint    `gorm:"primaryKey"`
	Title       string  `gorm:"type:varchar(255);not null;comment:项目名"`
	URL         string  `gorm:"type:varchar(512);not null;comment:项目链接"`
	PreviewImg  *string `gorm:"type:text;comment:列表预览图"`
	MainImg     *string `gorm:"type:text;comment:主图"`
	NotebookImg *string `gorm:"type:text;comment:笔记本展示图"`
	Target      string  `gorm:"type:text"`
	Task        string  `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	AboutCompany *ProjectAboutCompany `gorm:"constraint:OnDelete:CASCADE"`
	Stages       []ProjectStage       `gorm:"constraint:OnDelete:CASCADE"`
	Result       *ProjectResult       `gorm:"constraint:OnDelete:CASCADE"`
	Progresses   []ProjectProgress    `gorm:"constraint:OnDelete:CASCADE"`
}

func (Project) TableName() string { return "project" }

type ProjectAboutCompany struct {
	ID          uint   `gorm:"primaryKey"`
	ProjectID   uint   `gorm:"uniqueIndex;not null"`
	Title       string `gorm:"type:varchar(255)"`
	Description string `gorm:"type:text"`
}

func (ProjectAboutCompany) TableName() string { return "project_about_company" }

type ProjectStage struct {
	ID          uint    `gorm:"primaryKey"`
	ProjectID   uint    `gorm:"index;not null"`
	Title       string  `gorm:"type:varchar(255)"`
	Description string  `gorm:"type:text"`
	Img         *string `gorm:"type:text"`
}

func (ProjectStage) TableName() string { return "project_stage" }

type ProjectResult struct {
	ID          uint   `gorm:"primaryKey"`
	ProjectID   uint   `gorm:"uniqueIndex;not null"`
	Description string `gorm:"type:text"`

	Images []ProjectResultImage `gorm:"foreignKey:ResultID;constraint:OnDelete:CASCADE"`
}

func (ProjectResult) TableName() string { return "project_result" }

type ProjectResultImage struct {
	ID       uint            `gorm:"primaryKey"`
	ResultID uint            `gorm:"index;not null"`
	Type     ResultImageType `gorm:"type:varchar(32)"`
	Img      *string         `gorm:"type:text"`
}

func (ProjectResultImage) TableName() string { return "project_result_image" }

type ProjectProgress struct {
	ID        uint   `gorm:"primaryKey"`
	ProjectID uint   `gorm:"index;not null"`
	Text      string `gorm:"type:varchar(255)"`
	Digit     int
}

func (ProjectProgress) TableName() string { return "project_progress" }

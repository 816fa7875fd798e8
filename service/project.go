package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/morf1ng/105site/cache"
	"github.com/morf1ng/105site/dao/model"
	"github.com/morf1ng/105site/dao/query"
	"github.com/morf1ng/105site/metrics"
	"github.com/morf1ng/105site/response"
	"github.com/morf1ng/105site/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type (
	aboutCompanyView struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	stageView struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Img         *string `json:"img"`
	}
	resultImageView struct {
		Type model.ResultImageType `json:"type"`
		Img  *string               `json:"img"`
	}
	resultView struct {
		Description string            `json:"description"`
		Images      []resultImageView `json:"images"`
	}
	progressView struct {
		Digit int    `json:"digit"`
		Text  string `json:"text"`
	}
)

// ProjectResp is a project with all of its sections.
type ProjectResp struct {
	ID           uint              `json:"id"`
	Title        string            `json:"title"`
	URL          string            `json:"url"`
	PreviewImg   *string           `json:"preview_img"`
	MainImg      *string           `json:"main_img"`
	NotebookImg  *string           `json:"notebook_img"`
	Target       string            `json:"target"`
	Task         string            `json:"task"`
	AboutCompany *aboutCompanyView `json:"about_company"`
	Stages       []stageView       `json:"stages"`
	Result       *resultView       `json:"result"`
	Progress     []progressView    `json:"progress"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ProjectListItem is the short form used by the project list.
type ProjectListItem struct {
	ID         uint    `json:"id"`
	Title      string  `json:"title"`
	PreviewImg *string `json:"preview_img"`
	Result     struct {
		Description *string `json:"description"`
	} `json:"result"`
}

func newProjectResp(p *model.Project) ProjectResp {
	resp := ProjectResp{
		ID:          p.ID,
		Title:       p.Title,
		URL:         p.URL,
		PreviewImg:  p.PreviewImg,
		MainImg:     p.MainImg,
		NotebookImg: p.NotebookImg,
		Target:      p.Target,
		Task:        p.Task,
		Stages:      make([]stageView, 0, len(p.Stages)),
		Progress:    make([]progressView, 0, len(p.Progresses)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.AboutCompany != nil {
		resp.AboutCompany = &aboutCompanyView{Title: p.AboutCompany.Title, Description: p.AboutCompany.Description}
	}
	for _, s := range p.Stages {
		resp.Stages = append(resp.Stages, stageView{Title: s.Title, Description: s.Description, Img: s.Img})
	}
	if p.Result != nil {
		resp.Result = &resultView{
			Description: p.Result.Description,
			Images:      make([]resultImageView, 0, len(p.Result.Images)),
		}
		for _, img := range p.Result.Images {
			resp.Result.Images = append(resp.Result.Images, resultImageView{Type: img.Type, Img: img.Img})
		}
	}
	for _, pr := range p.Progresses {
		resp.Progress = append(resp.Progress, progressView{Digit: pr.Digit, Text: pr.Text})
	}
	return resp
}

func newProjectListItem(p *model.Project) ProjectListItem {
	item := ProjectListItem{ID: p.ID, Title: p.Title, PreviewImg: p.PreviewImg}
	if p.Result != nil {
		desc := p.Result.Description
		item.Result.Description = &desc
	}
	return item
}

type ProjectHandler struct {
	db      *gorm.DB
	uploads *storage.Uploads
	cache   cache.Cache
}

func NewProjectHandler(db *gorm.DB, uploads *storage.Uploads, c cache.Cache) *ProjectHandler {
	if c == nil {
		c = cache.Noop{}
	}
	return &ProjectHandler{db: db, uploads: uploads, cache: c}
}

// serveCached answers from the cache, or builds the payload with load and
// stores it under the generation seen before loading.
func (h *ProjectHandler) serveCached(c *gin.Context, key func(gen int64) string, load func() (any, error)) {
	gen, cached := h.cache.Generation(c)
	if cached {
		if payload, ok := h.cache.Get(c, key(gen)); ok {
			c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
			return
		}
	}
	data, err := load()
	if err != nil {
		writeError(c, err)
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		writeError(c, err)
		return
	}
	if cached {
		h.cache.Set(c, key(gen), payload)
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

func (h *ProjectHandler) List(c *gin.Context) {
	h.serveCached(c, cache.ListKey, func() (any, error) {
		projects, err := query.ListProjects(c, h.db)
		if err != nil {
			return nil, err
		}
		items := make([]ProjectListItem, 0, len(projects))
		for i := range projects {
			items = append(items, newProjectListItem(&projects[i]))
		}
		return items, nil
	})
}

func projectID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		response.NotFoundError(c, "Not found")
		return
	}
	key := func(gen int64) string { return cache.ProjectKey(gen, id) }
	h.serveCached(c, key, func() (any, error) {
		project, err := query.FetchFullProject(c, h.db, id)
		if err != nil {
			return nil, notFoundIf(err, "Not found")
		}
		return newProjectResp(project), nil
	})
}

// Create stores a project built from a multipart form and returns it in
// full.
func (h *ProjectHandler) Create(c *gin.Context) {
	form, err := bindProjectForm(c)
	if err != nil {
		writeError(c, err)
		return
	}
	saved, err := form.save(c, h.uploads)
	if err != nil {
		writeError(c, err)
		return
	}

	project := model.Project{
		Title:        form.Title,
		URL:          form.URL,
		PreviewImg:   saved.PreviewImg,
		MainImg:      saved.MainImg,
		NotebookImg:  saved.NotebookImg,
		Target:       form.Target,
		Task:         form.Task,
		AboutCompany: buildAboutCompany(form.About),
		Stages:       buildStages(form.Stages, saved.Stages),
		Result:       buildResult(form.Result, saved.Results),
		Progresses:   buildProgress(form.Progress),
	}
	err = h.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		return recordOperation(tx, c, actionCreate, resourceProject, project.ID, map[string]any{"title": project.Title})
	})
	if err != nil {
		writeError(c, err)
		return
	}
	metrics.ProjectWrites.WithLabelValues(actionCreate).Inc()
	h.cache.Invalidate(c)

	full, err := query.FetchFullProject(c, h.db, project.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, newProjectResp(full))
}

// Update replaces a project's fields and child sections. Top-level images
// are only replaced by a newly uploaded file.
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		response.NotFoundError(c, "Not found")
		return
	}
	project, err := query.FetchFullProject(c, h.db, id)
	if err != nil {
		writeError(c, notFoundIf(err, "Not found"))
		return
	}
	form, err := bindProjectForm(c)
	if err != nil {
		writeError(c, err)
		return
	}
	saved, err := form.save(c, h.uploads)
	if err != nil {
		writeError(c, err)
		return
	}

	err = h.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		fields := map[string]any{
			"title":  form.Title,
			"url":    form.URL,
			"target": form.Target,
			"task":   form.Task,
		}
		if saved.PreviewImg != nil {
			fields["preview_img"] = *saved.PreviewImg
		}
		if saved.MainImg != nil {
			fields["main_img"] = *saved.MainImg
		}
		if saved.NotebookImg != nil {
			fields["notebook_img"] = *saved.NotebookImg
		}
		if err := tx.Model(&model.Project{ID: id}).Updates(fields).Error; err != nil {
			return err
		}

		if err := upsertAboutCompany(tx, id, project.AboutCompany, buildAboutCompany(form.About)); err != nil {
			return err
		}

		if err := replaceStages(tx, id, buildStages(form.Stages, saved.Stages)); err != nil {
			return err
		}
		if err := replaceResult(tx, id, project.Result, buildResult(form.Result, saved.Results)); err != nil {
			return err
		}
		if err := replaceProgress(tx, id, buildProgress(form.Progress)); err != nil {
			return err
		}
		return recordOperation(tx, c, actionUpdate, resourceProject, id, map[string]any{"title": form.Title})
	})
	if err != nil {
		writeError(c, err)
		return
	}
	metrics.ProjectWrites.WithLabelValues(actionUpdate).Inc()
	h.cache.Invalidate(c)
	response.Message(c, "Updated")
}

func upsertAboutCompany(tx *gorm.DB, projectID uint, current, next *model.ProjectAboutCompany) error {
	if current == nil {
		next.ProjectID = projectID
		return tx.Create(next).Error
	}
	return tx.Model(&model.ProjectAboutCompany{}).Where("id = ?", current.ID).
		Updates(map[string]any{"title": next.Title, "description": next.Description}).Error
}

func replaceStages(tx *gorm.DB, projectID uint, stages []model.ProjectStage) error {
	if err := tx.Where("project_id = ?", projectID).Delete(&model.ProjectStage{}).Error; err != nil {
		return err
	}
	if len(stages) == 0 {
		return nil
	}
	for i := range stages {
		stages[i].ProjectID = projectID
	}
	return tx.Create(&stages).Error
}

// replaceResult updates the existing result in place, or creates one. Its
// images are always replaced.
func replaceResult(tx *gorm.DB, projectID uint, current, next *model.ProjectResult) error {
	if current == nil {
		next.ProjectID = projectID
		return tx.Create(next).Error
	}
	if err := tx.Model(&model.ProjectResult{}).Where("id = ?", current.ID).
		Update("description", next.Description).Error; err != nil {
		return err
	}
	if err := tx.Where("result_id = ?", current.ID).Delete(&model.ProjectResultImage{}).Error; err != nil {
		return err
	}
	if len(next.Images) == 0 {
		return nil
	}
	for i := range next.Images {
		next.Images[i].ResultID = current.ID
	}
	return tx.Create(&next.Images).Error
}

func replaceProgress(tx *gorm.DB, projectID uint, progress []model.ProjectProgress) error {
	if err := tx.Where("project_id = ?", projectID).Delete(&model.ProjectProgress{}).Error; err != nil {
		return err
	}
	if len(progress) == 0 {
		return nil
	}
	for i := range progress {
		progress[i].ProjectID = projectID
	}
	return tx.Create(&progress).Error
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		response.NotFoundError(c, "Not found")
		return
	}
	err := h.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		var project model.Project
		if err := tx.First(&project, id).Error; err != nil {
			return notFoundIf(err, "Not found")
		}
		if err := query.DeleteProjectTree(tx, id); err != nil {
			return err
		}
		return recordOperation(tx, c, actionDelete, resourceProject, id, map[string]any{"title": project.Title})
	})
	if err != nil {
		writeError(c, err)
		return
	}
	metrics.ProjectWrites.WithLabelValues(actionDelete).Inc()
	h.cache.Invalidate(c)
	response.Message(c, "Deleted")
}

// Register mounts the public read routes on public and the write routes on
// admin, which must already enforce the admin role.
func (h *ProjectHandler) Register(public, admin *gin.RouterGroup) {
	public.GET("/projects", h.List)
	public.GET("/projects/:id", h.Get)
	admin.POST("/projects", h.Create)
	admin.PUT("/projects/:id", h.Update)
	admin.DELETE("/projects/:id", h.Delete)
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/morf1ng/105site/dao/model"
	"github.com/morf1ng/105site/response"
	"github.com/morf1ng/105site/storage"

	"github.com/gin-gonic/gin"
)

type aboutCompanyIn struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type stageIn struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Img         *string `json:"img"`
}

type resultImageIn struct {
	Img *string `json:"img"`
}

type resultIn struct {
	Description *string         `json:"description"`
	Images      []resultImageIn `json:"images"`
}

type progressIn struct {
	Digit flexInt `json:"digit"`
	Text  *string `json:"text"`
}

// flexInt accepts 42, 42.0 and "42".
type flexInt struct {
	Value int
	Set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("digit must be an integer, got %s", data)
		}
		f.Value, f.Set = n, true
		return nil
	}
	if n, err := strconv.Atoi(string(data)); err == nil {
		f.Value, f.Set = n, true
		return nil
	}
	// whole numbers written with a fraction or exponent
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return fmt.Errorf("digit must be an integer, got %s", data)
	}
	f.Value, f.Set = int(v), true
	return nil
}

// projectForm is the multipart body of project create and update.
type projectForm struct {
	Title  string
	URL    string
	Target string
	Task   string

	About    aboutCompanyIn
	Stages   []stageIn
	Result   resultIn
	Progress []progressIn

	PreviewImg  *multipart.FileHeader
	MainImg     *multipart.FileHeader
	NotebookImg *multipart.FileHeader
	StageImgs   []*multipart.FileHeader
	ResultImgs  []*multipart.FileHeader
}

// savedImages holds the upload paths of a projectForm's files. Stage and
// result paths keep the position of their file; "" marks a file that
// stored nothing.
type savedImages struct {
	PreviewImg  *string
	MainImg     *string
	NotebookImg *string
	Stages      []string
	Results     []string
}

func invalidJSON(err error) *Error {
	return &Error{Status: http.StatusBadRequest, Code: response.InvalidJSON, Detail: "Invalid JSON format: " + err.Error()}
}

// decodeObject decodes a JSON object field into dst. A blank field, or an
// object with no keys, reports false.
func decodeObject(raw string, dst any) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return false, invalidJSON(err)
	}
	if len(keys) == 0 {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, invalidJSON(err)
	}
	return true, nil
}

// decodeList decodes a JSON array field into dst. A blank field or null
// leaves dst untouched.
func decodeList(raw string, dst any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return invalidJSON(err)
	}
	return nil
}

func formFiles(form *multipart.Form, name string) []*multipart.FileHeader {
	if form == nil {
		return nil
	}
	return form.File[name]
}

func formFile(form *multipart.Form, name string) *multipart.FileHeader {
	files := formFiles(form, name)
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

func blankFile(fh *multipart.FileHeader) bool {
	return fh == nil || strings.TrimSpace(fh.Filename) == ""
}

// bindProjectForm reads and validates the request. Nothing is written to
// disk here, so a rejected request leaves no files behind.
func bindProjectForm(c *gin.Context) (*projectForm, error) {
	form, err := c.MultipartForm()
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, badRequest("Invalid multipart form: " + err.Error())
	}

	f := &projectForm{
		Title:  strings.TrimSpace(c.PostForm("title")),
		URL:    strings.TrimSpace(c.PostForm("url")),
		Target: c.PostForm("target"),
		Task:   c.PostForm("task"),

		PreviewImg:  formFile(form, "preview_img"),
		MainImg:     formFile(form, "main_img"),
		NotebookImg: formFile(form, "notebook_img"),
		StageImgs:   formFiles(form, "stage_imgs"),
		ResultImgs:  formFiles(form, "result_imgs"),
	}
	if f.Title == "" || f.URL == "" {
		return nil, badRequest("title and url are required")
	}

	hasAbout, err := decodeObject(c.DefaultPostForm("about_company", "{}"), &f.About)
	if err != nil {
		return nil, err
	}
	if err := decodeList(c.DefaultPostForm("stages", "[]"), &f.Stages); err != nil {
		return nil, err
	}
	hasResult, err := decodeObject(c.DefaultPostForm("result", "{}"), &f.Result)
	if err != nil {
		return nil, err
	}
	if err := decodeList(c.DefaultPostForm("progress", "[]"), &f.Progress); err != nil {
		return nil, err
	}

	if !hasAbout {
		return nil, badRequest("about_company is required")
	}
	if !hasResult {
		return nil, badRequest("result is required")
	}
	for i, s := range f.Stages {
		if s.Title == nil || s.Description == nil {
			return nil, badRequest(fmt.Sprintf("stage %d: title and description are required", i))
		}
	}
	for i, p := range f.Progress {
		if !p.Digit.Set || p.Text == nil {
			return nil, badRequest(fmt.Sprintf("progress %d: digit and text are required", i))
		}
	}
	if len(f.ResultImgs) > 0 && allBlank(f.ResultImgs) {
		return nil, errResultImgs
	}
	return f, nil
}

var errResultImgs = badRequest("result_imgs were uploaded but no file names were received")

func allBlank(files []*multipart.FileHeader) bool {
	for _, fh := range files {
		if !blankFile(fh) {
			return false
		}
	}
	return true
}

// save writes the form's files. Top-level images are saved only when a
// non-empty file was sent.
func (f *projectForm) save(ctx context.Context, uploads *storage.Uploads) (*savedImages, error) {
	saved := &savedImages{}
	top := []struct {
		fh  *multipart.FileHeader
		dst **string
	}{
		{f.PreviewImg, &saved.PreviewImg},
		{f.MainImg, &saved.MainImg},
		{f.NotebookImg, &saved.NotebookImg},
	}
	for _, t := range top {
		if blankFile(t.fh) {
			continue
		}
		name, err := uploads.Save(ctx, t.fh, "")
		if err != nil {
			return nil, err
		}
		if name != "" {
			*t.dst = &name
		}
	}

	var err error
	if saved.Stages, err = saveAll(ctx, uploads, f.StageImgs, model.StagesDir); err != nil {
		return nil, err
	}
	if saved.Results, err = saveAll(ctx, uploads, f.ResultImgs, model.ResultsDir); err != nil {
		return nil, err
	}
	if len(f.ResultImgs) > 0 && allEmpty(saved.Results) {
		return nil, errResultImgs
	}
	return saved, nil
}

func saveAll(ctx context.Context, uploads *storage.Uploads, files []*multipart.FileHeader, dir string) ([]string, error) {
	names := make([]string, 0, len(files))
	for _, fh := range files {
		name, err := uploads.Save(ctx, fh, dir)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func allEmpty(names []string) bool {
	for _, n := range names {
		if n != "" {
			return false
		}
	}
	return true
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// pick returns names[idx] when it exists and is non-empty.
func pick(names []string, idx int) *string {
	if idx < len(names) && names[idx] != "" {
		name := names[idx]
		return &name
	}
	return nil
}

func buildAboutCompany(in aboutCompanyIn) *model.ProjectAboutCompany {
	return &model.ProjectAboutCompany{Title: deref(in.Title), Description: deref(in.Description)}
}

// buildStages pairs stage metadata with uploaded files: a stage keeps the
// img from its JSON and otherwise takes the uploaded file at its position.
func buildStages(in []stageIn, files []string) []model.ProjectStage {
	stages := make([]model.ProjectStage, 0, len(in))
	for i, s := range in {
		img := nonEmpty(s.Img)
		if img == nil {
			img = pick(files, i)
		}
		stages = append(stages, model.ProjectStage{
			Title:       deref(s.Title),
			Description: deref(s.Description),
			Img:         img,
		})
	}
	return stages
}

// buildResultImages prefers uploaded files over metadata img values. With
// no metadata, every uploaded file becomes an image.
func buildResultImages(meta []resultImageIn, files []string) []model.ProjectResultImage {
	images := []model.ProjectResultImage{}
	if len(meta) > 0 {
		for i, m := range meta {
			img := pick(files, i)
			if img == nil {
				img = nonEmpty(m.Img)
			}
			images = append(images, model.ProjectResultImage{Type: model.ResultImageTypeAt(i), Img: img})
		}
		return images
	}
	for i := range files {
		images = append(images, model.ProjectResultImage{Type: model.ResultImageTypeAt(len(images)), Img: pick(files, i)})
	}
	return images
}

func buildResult(in resultIn, files []string) *model.ProjectResult {
	return &model.ProjectResult{
		Description: deref(in.Description),
		Images:      buildResultImages(in.Images, files),
	}
}

func buildProgress(in []progressIn) []model.ProjectProgress {
	progress := make([]model.ProjectProgress, 0, len(in))
	for _, p := range in {
		progress = append(progress, model.ProjectProgress{Digit: p.Digit.Value, Text: deref(p.Text)})
	}
	return progress
}

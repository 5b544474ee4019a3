package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/easylabel/easylabel-backend/config"
	"github.com/easylabel/easylabel-backend/models"
	"github.com/easylabel/easylabel-backend/repository"
	"github.com/easylabel/easylabel-backend/viewstate"
)

func handlerDB(t *testing.T) (*gorm.DB, *sql.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := gdb.AutoMigrate(&models.User{}, &models.Image{}, &models.Annotation{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	return gdb, sqlDB
}

func authed(r *http.Request, username string) *http.Request {
	user := &models.User{Username: username}
	return r.WithContext(context.WithValue(r.Context(), UserContextKey, user))
}

func seedHandlerImage(t *testing.T, gdb *gorm.DB, storagePath, status, createdBy, assignedBy string, createdAt int64) {
	t.Helper()
	img := models.Image{
		Filename:       path.Base(storagePath),
		ProjectName:    "proj",
		ProjectID:      strings.SplitN(storagePath, "/", 2)[0],
		StoragePath:    storagePath,
		Status:         status,
		Width:          10,
		Height:         10,
		CreatedBy:      createdBy,
		CreatedAt:      createdAt,
		LastModifiedBy: createdBy,
		LastModifiedAt: createdAt,
	}
	if assignedBy != "" {
		v := assignedBy
		img.AssignedBy = &v
	}
	if err := gdb.Create(&img).Error; err != nil {
		t.Fatalf("failed to seed %s: %v", storagePath, err)
	}
}

func TestListPaginatesWithConfiguredPageSize(t *testing.T) {
	gdb, sqlDB := handlerDB(t)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		seedHandlerImage(t, gdb, "p1/"+name+".jpg", "unassigned", "u1", "", int64(100+i))
	}

	ih := &ImageHandler{
		Cfg:       config.Config{PageSize: 2},
		ImageRepo: repository.NewImageRepository(gdb),
		DB:        sqlDB,
		Views:     viewstate.NewManager(),
	}

	req := authed(httptest.NewRequest(http.MethodGet, "/api/images?project_id=p1", nil), "u1")
	rec := httptest.NewRecorder()
	ih.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Images     []string `json:"images"`
		Page       int      `json:"page"`
		PageSize   int      `json:"page_size"`
		TotalPages int      `json:"total_pages"`
		Total      int      `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 5 || resp.TotalPages != 3 || resp.PageSize != 2 {
		t.Errorf("got total=%d total_pages=%d page_size=%d, want 5/3/2",
			resp.Total, resp.TotalPages, resp.PageSize)
	}
	if len(resp.Images) != 2 || resp.Page != 0 {
		t.Errorf("got %d images on page %d, want 2 on page 0", len(resp.Images), resp.Page)
	}
	// default sort is date_desc, so the newest upload leads
	if resp.Images[0] != "p1/e.jpg" {
		t.Errorf("first image = %s, want p1/e.jpg", resp.Images[0])
	}
}

func TestPageWindowClampsCursor(t *testing.T) {
	paths := []string{"a", "b", "c", "d", "e"}

	window, page, totalPages := pageWindow(paths, 4, 2)
	if page != 2 || totalPages != 3 {
		t.Errorf("got page=%d total=%d, want 2/3", page, totalPages)
	}
	if len(window) != 1 || window[0] != "e" {
		t.Errorf("last page = %v, want [e]", window)
	}

	if window, page, _ := pageWindow(paths, 99, 2); page != 2 || len(window) != 1 {
		t.Errorf("out-of-range cursor: page=%d window=%v", page, window)
	}
	if window, page, totalPages := pageWindow(nil, 0, 2); len(window) != 0 || page != 0 || totalPages != 0 {
		t.Errorf("empty list: %v %d %d", window, page, totalPages)
	}
	if window, _, _ := pageWindow(paths, 0, 0); len(window) != 0 {
		t.Errorf("zero page size yielded %v", window)
	}
}

func TestWorkingSetFollowsReviewFlag(t *testing.T) {
	gdb, sqlDB := handlerDB(t)
	seedHandlerImage(t, gdb, "p1/todo.jpg", "assigned", "boss", "u1", 100)
	seedHandlerImage(t, gdb, "p1/check.jpg", "review", "boss", "u1", 200)
	seedHandlerImage(t, gdb, "p1/other.jpg", "assigned", "boss", "u2", 300)

	views := viewstate.NewManager()
	ih := &ImageHandler{
		Cfg:       config.Config{PageSize: 12},
		ImageRepo: repository.NewImageRepository(gdb),
		DB:        sqlDB,
		Views:     views,
	}

	req := authed(httptest.NewRequest(http.MethodGet, "/api/images/working?project_id=p1", nil), "u1")
	rec := httptest.NewRecorder()
	ih.WorkingSet(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Images       []string `json:"images"`
		CurrentImage string   `json:"current_image"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Images) != 1 || resp.Images[0] != "p1/todo.jpg" {
		t.Errorf("assigned set = %v, want [p1/todo.jpg]", resp.Images)
	}
	if resp.CurrentImage != "p1/todo.jpg" {
		t.Errorf("current_image = %s, want p1/todo.jpg", resp.CurrentImage)
	}
	if mode, review := views.Get("u1").Mode(); mode != viewstate.ModeLabeling || review {
		t.Errorf("session = (%s, review=%v), want (labeling, false)", mode, review)
	}

	req = authed(httptest.NewRequest(http.MethodGet, "/api/images/working?project_id=p1&review=true", nil), "u1")
	rec = httptest.NewRecorder()
	ih.WorkingSet(rec, req)
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Images) != 1 || resp.Images[0] != "p1/check.jpg" {
		t.Errorf("review set = %v, want [p1/check.jpg]", resp.Images)
	}
	if mode, review := views.Get("u1").Mode(); mode != viewstate.ModeLabeling || !review {
		t.Errorf("session = (%s, review=%v), want (labeling, true)", mode, review)
	}
}

func TestWorkingSetRequiresProject(t *testing.T) {
	_, sqlDB := handlerDB(t)
	ih := &ImageHandler{DB: sqlDB, Views: viewstate.NewManager()}

	req := authed(httptest.NewRequest(http.MethodGet, "/api/images/working", nil), "u1")
	rec := httptest.NewRecorder()
	ih.WorkingSet(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

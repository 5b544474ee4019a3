package database

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/easylabel/easylabel-backend/models"
)

type seedRow struct {
	filename   string
	project    string
	projectID  string
	path       string
	status     string
	createdBy  string
	assignedBy string
	createdAt  int64
	modifiedAt int64
}

func catalogDB(t *testing.T, rows []seedRow) Querier {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := gdb.AutoMigrate(&models.Image{}, &models.Annotation{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	for _, row := range rows {
		img := models.Image{
			Filename:       row.filename,
			ProjectName:    row.project,
			ProjectID:      row.projectID,
			StoragePath:    row.path,
			Status:         row.status,
			Width:          10,
			Height:         10,
			CreatedBy:      row.createdBy,
			CreatedAt:      row.createdAt,
			LastModifiedBy: row.createdBy,
			LastModifiedAt: row.modifiedAt,
		}
		if row.assignedBy != "" {
			v := row.assignedBy
			img.AssignedBy = &v
		}
		if err := gdb.Create(&img).Error; err != nil {
			t.Fatalf("failed to seed row %s: %v", row.path, err)
		}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	return sqlDB
}

func TestListMyProjectsGroupsAndOrders(t *testing.T) {
	db := catalogDB(t, []seedRow{
		{filename: "a.jpg", project: "older", projectID: "p1", path: "p1/a.jpg", status: "unassigned", createdBy: "u1", createdAt: 100, modifiedAt: 100},
		{filename: "b.jpg", project: "older", projectID: "p1", path: "p1/b.jpg", status: "assigned", createdBy: "u1", assignedBy: "u2", createdAt: 150, modifiedAt: 150},
		{filename: "c.jpg", project: "newer", projectID: "p2", path: "p2/c.jpg", status: "unassigned", createdBy: "u1", createdAt: 300, modifiedAt: 300},
		{filename: "d.jpg", project: "other", projectID: "p3", path: "p3/d.jpg", status: "unassigned", createdBy: "u2", createdAt: 200, modifiedAt: 200},
	})

	projects := ListMyProjects(db, "u1")
	if len(projects) != 2 {
		t.Fatalf("got %d projects, want 2", len(projects))
	}
	if projects[0].Name != "newer" || projects[1].Name != "older" {
		t.Errorf("order = [%s, %s], want [newer, older]", projects[0].Name, projects[1].Name)
	}
	if projects[1].ImageCount != 2 {
		t.Errorf("older image count = %d, want 2", projects[1].ImageCount)
	}
	if projects[1].CreatedAt != 100 {
		t.Errorf("older created_at = %d, want earliest timestamp 100", projects[1].CreatedAt)
	}
}

func TestListSharedProjectsExcludesOwnUploads(t *testing.T) {
	db := catalogDB(t, []seedRow{
		// assigned to u2 by someone else: shared for u2
		{filename: "a.jpg", project: "teamwork", projectID: "p1", path: "p1/a.jpg", status: "assigned", createdBy: "u1", assignedBy: "u2", createdAt: 100, modifiedAt: 100},
		// u2's own upload, self-assigned: not shared
		{filename: "b.jpg", project: "mine", projectID: "p2", path: "p2/b.jpg", status: "assigned", createdBy: "u2", assignedBy: "u2", createdAt: 200, modifiedAt: 200},
	})

	projects := ListSharedProjects(db, "u2")
	if len(projects) != 1 || projects[0].Name != "teamwork" {
		t.Errorf("got %v, want only teamwork", projects)
	}
}

func TestProjectNameExists(t *testing.T) {
	db := catalogDB(t, []seedRow{
		{filename: "a.jpg", project: "dup", projectID: "p1", path: "p1/a.jpg", status: "unassigned", createdBy: "u1", createdAt: 100, modifiedAt: 100},
	})

	if !ProjectNameExists(db, "dup", "u1") {
		t.Error("expected existing name to be reported")
	}
	if ProjectNameExists(db, "dup", "u2") {
		t.Error("name check must be scoped per user")
	}
	if ProjectNameExists(db, "fresh", "u1") {
		t.Error("unused name reported as existing")
	}
}

func visibilityRows() []seedRow {
	return []seedRow{
		// u1's own upload in p1
		{filename: "own.jpg", project: "p", projectID: "p1", path: "p1/own.jpg", status: "unassigned", createdBy: "u1", createdAt: 100, modifiedAt: 400},
		// assigned to u1 in p1 by u2
		{filename: "task.jpg", project: "p", projectID: "p1", path: "p1/task.jpg", status: "assigned", createdBy: "u2", assignedBy: "u1", createdAt: 200, modifiedAt: 300},
		// in p1 but assigned to someone else and not u1's: invisible
		{filename: "hidden.jpg", project: "p", projectID: "p1", path: "p1/hidden.jpg", status: "assigned", createdBy: "u2", assignedBy: "u3", createdAt: 300, modifiedAt: 200},
		// u1's upload in another project: visible via created_by
		{filename: "elsewhere.jpg", project: "q", projectID: "p2", path: "p2/elsewhere.jpg", status: "review", createdBy: "u1", assignedBy: "u1", createdAt: 400, modifiedAt: 100},
	}
}

func TestFilteredImagesVisibilityScope(t *testing.T) {
	db := catalogDB(t, visibilityRows())

	paths := FilteredImages(db, ImageFilter{ProjectID: "p1", UserID: "u1", Sort: SortDateDesc})

	seen := make(map[string]bool)
	for _, p := range paths {
		seen[p] = true
	}
	if !seen["p1/own.jpg"] || !seen["p1/task.jpg"] {
		t.Errorf("own/assigned images missing from %v", paths)
	}
	if seen["p1/hidden.jpg"] {
		t.Error("image assigned to another user leaked into the list")
	}
	// own uploads are visible regardless of project scope
	if !seen["p2/elsewhere.jpg"] {
		t.Error("own upload in another project should be visible")
	}
}

func TestFilteredImagesStatusAndCreatorFilters(t *testing.T) {
	db := catalogDB(t, visibilityRows())

	paths := FilteredImages(db, ImageFilter{
		ProjectID: "p1", UserID: "u1", Status: "assigned", Sort: SortDateDesc,
	})
	if len(paths) != 1 || paths[0] != "p1/task.jpg" {
		t.Errorf("status filter returned %v, want [p1/task.jpg]", paths)
	}

	paths = FilteredImages(db, ImageFilter{
		ProjectID: "p1", UserID: "u1", CreatedBy: "u1", Sort: SortDateDesc,
	})
	for _, p := range paths {
		if p == "p1/task.jpg" {
			t.Error("creator filter should drop u2's upload")
		}
	}
}

func TestFilteredImagesSortOrders(t *testing.T) {
	db := catalogDB(t, []seedRow{
		{filename: "img10.jpg", project: "p", projectID: "p1", path: "p1/img10.jpg", status: "unassigned", createdBy: "u1", createdAt: 1, modifiedAt: 30},
		{filename: "img2.jpg", project: "p", projectID: "p1", path: "p1/img2.jpg", status: "unassigned", createdBy: "u1", createdAt: 2, modifiedAt: 20},
		{filename: "img1.jpg", project: "p", projectID: "p1", path: "p1/img1.jpg", status: "unassigned", createdBy: "u1", createdAt: 3, modifiedAt: 10},
	})
	filter := func(sortOrder string) []string {
		return FilteredImages(db, ImageFilter{ProjectID: "p1", UserID: "u1", Sort: sortOrder})
	}

	got := filter(SortDateDesc)
	want := []string{"p1/img10.jpg", "p1/img2.jpg", "p1/img1.jpg"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("date_desc[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	got = filter(SortDateAsc)
	if got[0] != "p1/img1.jpg" {
		t.Errorf("date_asc starts with %s, want p1/img1.jpg", got[0])
	}

	// lexicographic: img1 < img10 < img2
	got = filter(SortFilenameAsc)
	want = []string{"p1/img1.jpg", "p1/img10.jpg", "p1/img2.jpg"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("filename_asc[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	// natural: img1 < img2 < img10
	got = filter(SortFilenameNat)
	want = []string{"p1/img1.jpg", "p1/img2.jpg", "p1/img10.jpg"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("filename_nat[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestStatusCounts(t *testing.T) {
	db := catalogDB(t, visibilityRows())

	counts := StatusCounts(db, "p1", "u1")
	if counts["unassigned"] != 1 || counts["assigned"] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if _, ok := counts["confirmed"]; ok {
		t.Error("statuses with no images must be absent from the map")
	}
}

func TestPathsByStatus(t *testing.T) {
	db := catalogDB(t, visibilityRows())

	paths := PathsByStatus(db, "p1", "u1", "assigned")
	if len(paths) != 1 || paths[0] != "p1/task.jpg" {
		t.Errorf("got %v, want [p1/task.jpg]", paths)
	}

	if paths := PathsByStatus(db, "p1", "u1", "confirmed"); len(paths) != 0 {
		t.Errorf("got %v, want empty", paths)
	}
}

func TestUsersWithUploads(t *testing.T) {
	db := catalogDB(t, visibilityRows())

	users := UsersWithUploads(db, "p1")
	if len(users) != 2 || users[0] != "u1" || users[1] != "u2" {
		t.Errorf("got %v, want sorted [u1 u2]", users)
	}
}

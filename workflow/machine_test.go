package workflow

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/easylabel/easylabel-backend/models"
	"github.com/easylabel/easylabel-backend/permissions"
)

// fakeImageRepo is an in-memory stand-in for the metadata gateway.
type fakeImageRepo struct {
	images  map[uint]*models.Image
	failing bool
}

func newFakeImageRepo(images ...*models.Image) *fakeImageRepo {
	r := &fakeImageRepo{images: make(map[uint]*models.Image)}
	for _, img := range images {
		copied := *img
		r.images[img.ID] = &copied
	}
	return r
}

func (r *fakeImageRepo) Create(image *models.Image) error {
	copied := *image
	r.images[image.ID] = &copied
	return nil
}

func (r *fakeImageRepo) GetByID(id uint) (*models.Image, error) {
	img, ok := r.images[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *img
	return &copied, nil
}

func (r *fakeImageRepo) GetByStoragePath(storagePath string) (*models.Image, error) {
	for _, img := range r.images {
		if img.StoragePath == storagePath {
			copied := *img
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeImageRepo) IDByStoragePath(storagePath string) (uint, error) {
	img, err := r.GetByStoragePath(storagePath)
	if err != nil {
		return 0, err
	}
	return img.ID, nil
}

func (r *fakeImageRepo) UpdateStatus(id uint, status string, assignedBy *string, actor string, now int64) error {
	if r.failing {
		return errors.New("store unavailable")
	}
	img, ok := r.images[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	img.Status = status
	if assignedBy != nil {
		v := *assignedBy
		img.AssignedBy = &v
	} else {
		img.AssignedBy = nil
	}
	img.LastModifiedBy = actor
	img.LastModifiedAt = now
	return nil
}

func (r *fakeImageRepo) Delete(id uint) error {
	if _, ok := r.images[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.images, id)
	return nil
}

func (r *fakeImageRepo) ListByIDs(ids []uint) ([]models.Image, error) {
	var out []models.Image
	for _, id := range ids {
		if img, ok := r.images[id]; ok {
			out = append(out, *img)
		}
	}
	return out, nil
}

func (r *fakeImageRepo) CountOwnedByIDs(ids []uint, userID string) (int64, error) {
	var count int64
	for _, id := range ids {
		if img, ok := r.images[id]; ok && img.CreatedBy == userID {
			count++
		}
	}
	return count, nil
}

func userWith(name string, perms ...string) *models.User {
	return &models.User{Username: name, GlobalPermissions: perms}
}

func imageIn(id uint, status, createdBy string) *models.Image {
	return &models.Image{
		ID:          id,
		StoragePath: "proj/img.jpg",
		Status:      status,
		CreatedBy:   createdBy,
	}
}

func TestCanTransitionTable(t *testing.T) {
	all := []Status{StatusUnassigned, StatusAssigned, StatusReview, StatusConfirmed}
	allowed := map[[2]Status]bool{
		{StatusUnassigned, StatusAssigned}: true,
		{StatusAssigned, StatusReview}:     true,
		{StatusReview, StatusConfirmed}:    true,
		{StatusReview, StatusAssigned}:     true,
		{StatusConfirmed, StatusReview}:    true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTransitionAssignRequiresPermissionOrOwnership(t *testing.T) {
	tests := []struct {
		name    string
		actor   *models.User
		wantErr error
	}{
		{"privileged assigner", userWith("admin", permissions.ImageAssign), nil},
		{"uploader assigns own image", userWith("u1"), nil},
		{"unrelated user", userWith("u3"), ErrNotPermitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeImageRepo(imageIn(1, string(StatusUnassigned), "u1"))
			m := NewMachine(repo)

			_, err := m.Transition(Request{ImageID: 1, Target: StatusAssigned, Actor: tt.actor, TargetUser: "u2"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got error %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				got, _ := repo.GetByID(1)
				if got.AssignedBy == nil || *got.AssignedBy != "u2" {
					t.Errorf("assigned_by = %v, want u2", got.AssignedBy)
				}
			}
		})
	}
}

func TestTransitionAssignDefaultsToActor(t *testing.T) {
	repo := newFakeImageRepo(imageIn(1, string(StatusUnassigned), "u1"))
	m := NewMachine(repo)

	img, err := m.Transition(Request{ImageID: 1, Target: StatusAssigned, Actor: userWith("u1")})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if img.AssignedBy == nil || *img.AssignedBy != "u1" {
		t.Errorf("assigned_by = %v, want u1", img.AssignedBy)
	}
}

func TestTransitionRejectsIllegalEdges(t *testing.T) {
	tests := []struct {
		from   Status
		target Status
	}{
		{StatusAssigned, StatusConfirmed}, // cannot skip review
		{StatusUnassigned, StatusReview},
		{StatusUnassigned, StatusConfirmed},
		{StatusConfirmed, StatusAssigned},
	}

	for _, tt := range tests {
		repo := newFakeImageRepo(imageIn(1, string(tt.from), "u1"))
		m := NewMachine(repo)

		_, err := m.Transition(Request{ImageID: 1, Target: tt.target, Actor: userWith("u1", permissions.ImageAssign)})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s → %s: got %v, want ErrInvalidTransition", tt.from, tt.target, err)
		}

		got, _ := repo.GetByID(1)
		if got.Status != string(tt.from) {
			t.Errorf("%s → %s: status mutated to %s on failed transition", tt.from, tt.target, got.Status)
		}
	}
}

func TestTransitionReviewRecordsActor(t *testing.T) {
	repo := newFakeImageRepo(imageIn(1, string(StatusAssigned), "u1"))
	m := NewMachine(repo)

	img, err := m.Transition(Request{ImageID: 1, Target: StatusReview, Actor: userWith("u2")})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if img.AssignedBy == nil || *img.AssignedBy != "u2" {
		t.Errorf("assigned_by = %v, want u2", img.AssignedBy)
	}
	if img.LastModifiedBy != "u2" {
		t.Errorf("last_modified_by = %s, want u2", img.LastModifiedBy)
	}
}

// An image uploaded by u1, assigned to u2, sent to review by u2 and then
// confirmed by u1 must end up re-parented to its uploader.
func TestConfirmReparentsToUploader(t *testing.T) {
	repo := newFakeImageRepo(imageIn(1, string(StatusUnassigned), "u1"))
	m := NewMachine(repo)

	admin := userWith("admin", permissions.ImageAssign)
	u1 := userWith("u1")
	u2 := userWith("u2")

	steps := []struct {
		target Status
		actor  *models.User
		tgt    string
	}{
		{StatusAssigned, admin, "u2"},
		{StatusReview, u2, ""},
		{StatusConfirmed, u1, ""},
	}
	for _, step := range steps {
		if _, err := m.Transition(Request{ImageID: 1, Target: step.target, Actor: step.actor, TargetUser: step.tgt}); err != nil {
			t.Fatalf("transition to %s failed: %v", step.target, err)
		}
	}

	got, _ := repo.GetByID(1)
	if got.Status != string(StatusConfirmed) {
		t.Fatalf("status = %s, want confirmed", got.Status)
	}
	if got.AssignedBy == nil || *got.AssignedBy != "u1" {
		t.Errorf("assigned_by = %v, want uploader u1", got.AssignedBy)
	}
}

func TestTransitionStoreFailureLeavesStateUntouched(t *testing.T) {
	repo := newFakeImageRepo(imageIn(1, string(StatusAssigned), "u1"))
	repo.failing = true
	m := NewMachine(repo)

	if _, err := m.Transition(Request{ImageID: 1, Target: StatusReview, Actor: userWith("u1")}); err == nil {
		t.Fatal("expected error from failing store")
	}

	repo.failing = false
	got, _ := repo.GetByID(1)
	if got.Status != string(StatusAssigned) {
		t.Errorf("status = %s, want assigned", got.Status)
	}
}

func TestTransitionAllStopsAtFirstFailure(t *testing.T) {
	repo := newFakeImageRepo(
		imageIn(1, string(StatusAssigned), "u1"),
		imageIn(2, string(StatusUnassigned), "u1"), // illegal target below
		imageIn(3, string(StatusAssigned), "u1"),
	)
	m := NewMachine(repo)

	applied, err := m.TransitionAll([]uint{1, 2, 3}, StatusReview, userWith("u1"), "")
	if err == nil {
		t.Fatal("expected error on second image")
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}

	third, _ := repo.GetByID(3)
	if third.Status != string(StatusAssigned) {
		t.Errorf("image 3 status = %s, want assigned (untouched)", third.Status)
	}
}

func TestParseStatusRejectsUnknown(t *testing.T) {
	if _, err := ParseStatus("archived"); err == nil {
		t.Error("expected error for unknown status")
	}
	if s, err := ParseStatus("review"); err != nil || s != StatusReview {
		t.Errorf("ParseStatus(review) = %v, %v", s, err)
	}
}

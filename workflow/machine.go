package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/easylabel/easylabel-backend/models"
	"github.com/easylabel/easylabel-backend/permissions"
	"github.com/easylabel/easylabel-backend/repository"
)

var (
	// ErrInvalidTransition is returned for edges the lifecycle does not allow
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotPermitted is returned when the actor may not perform the transition
	ErrNotPermitted = errors.New("actor not permitted to perform transition")
)

// Machine applies status transitions to image metadata records. All status
// and assignment mutations go through here; there is no locking — two
// simultaneous transitions on the same image race and the last write wins.
type Machine struct {
	Images repository.ImageRepositoryInterface
}

// NewMachine creates a state machine over the given metadata gateway
func NewMachine(images repository.ImageRepositoryInterface) *Machine {
	return &Machine{Images: images}
}

// Request describes one transition. TargetUser is only consulted when the
// target status carries an explicit assignee (→ assigned); it defaults to
// the actor.
type Request struct {
	ImageID    uint
	Target     Status
	Actor      *models.User
	TargetUser string
}

// Transition validates and applies a single status transition.
//
// Assignment side effects:
//   - → assigned: assigned_by = target user (explicit parameter)
//   - → review: assigned_by = the acting user, recording who sent it
//   - → confirmed: assigned_by = the image's created_by, re-parenting the
//     record to its uploader regardless of who confirms
//
// Every transition stamps last_modified_by/last_modified_at. A store error
// surfaces as a failed transition with the previous state untouched.
func (m *Machine) Transition(req Request) (*models.Image, error) {
	if req.Actor == nil {
		return nil, ErrNotPermitted
	}

	image, err := m.Images.GetByID(req.ImageID)
	if err != nil {
		return nil, err
	}

	current, err := ParseStatus(image.Status)
	if err != nil {
		return nil, fmt.Errorf("image %d has corrupt status: %w", req.ImageID, err)
	}

	if !CanTransition(current, req.Target) {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, current, req.Target)
	}

	actorID := req.Actor.Username
	var assignedBy *string

	switch req.Target {
	case StatusAssigned:
		if current == StatusUnassigned {
			// only a privileged assigner or the uploader hands out new work
			if !req.Actor.HasGlobalPermission(permissions.ImageAssign) && image.CreatedBy != actorID {
				return nil, ErrNotPermitted
			}
		}
		target := req.TargetUser
		if target == "" {
			target = actorID
		}
		assignedBy = &target
	case StatusReview:
		assignedBy = &actorID
	case StatusConfirmed:
		creator := image.CreatedBy
		assignedBy = &creator
	default:
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, current, req.Target)
	}

	now := time.Now().Unix()
	if err := m.Images.UpdateStatus(image.ID, string(req.Target), assignedBy, actorID, now); err != nil {
		return nil, err
	}

	image.Status = string(req.Target)
	image.AssignedBy = assignedBy
	image.LastModifiedBy = actorID
	image.LastModifiedAt = now
	return image, nil
}

// TransitionAll applies the same transition to several images, returning the
// number applied. Per-image failures stop at the first error so the caller
// never mistakes a partial batch for a full one.
func (m *Machine) TransitionAll(ids []uint, target Status, actor *models.User, targetUser string) (int, error) {
	count := 0
	for _, id := range ids {
		if _, err := m.Transition(Request{ImageID: id, Target: target, Actor: actor, TargetUser: targetUser}); err != nil {
			return count, fmt.Errorf("transition failed for image %d: %w", id, err)
		}
		count++
	}
	return count, nil
}

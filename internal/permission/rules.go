package permission

import (
	"context"
	"fmt"

	"github.com/Oniqq60/task_system_control/internal/apperr"
	"github.com/google/uuid"
)

type Action string

const (
	ActionCreate Action = "CREATE"
	ActionView   Action = "VIEW"
	ActionEdit   Action = "EDIT"
	ActionDelete Action = "DELETE"
)

type Effect int

const (
	Deny Effect = iota
	Allow
	// AllowOwner allows only when the subject is the target's owner (assignee or the user itself).
	AllowOwner
	// AllowInvolved also accepts the subject as the target's creator.
	AllowInvolved
)

// Subject is the authenticated actor.
type Subject struct {
	UserID uuid.UUID
	Role   Role
}

// Target describes the record being acted on. Role is the current role of the owner,
// RoleNone for an unassigned task.
type Target struct {
	OwnerID   *uuid.UUID
	CreatorID *uuid.UUID
	Role      Role
}

var targetRoles = []Role{RoleSuperAdmin, RoleManager, RoleAgent, RoleNone}

// rules: action -> actor role -> target role.
var rules = map[Action]map[Role]map[Role]Effect{
	ActionCreate: {
		RoleSuperAdmin: {RoleSuperAdmin: Allow, RoleManager: Allow, RoleAgent: Allow, RoleNone: Allow},
		RoleManager:    {RoleSuperAdmin: Deny, RoleManager: Deny, RoleAgent: Allow, RoleNone: Allow},
		RoleAgent:      {RoleSuperAdmin: Deny, RoleManager: Deny, RoleAgent: Deny, RoleNone: Deny},
	},
	ActionDelete: {
		RoleSuperAdmin: {RoleSuperAdmin: Allow, RoleManager: Allow, RoleAgent: Allow, RoleNone: Allow},
		RoleManager:    {RoleSuperAdmin: Deny, RoleManager: Deny, RoleAgent: Allow, RoleNone: Allow},
		RoleAgent:      {RoleSuperAdmin: Deny, RoleManager: Deny, RoleAgent: Deny, RoleNone: Deny},
	},
	ActionEdit: {
		RoleSuperAdmin: {RoleSuperAdmin: Allow, RoleManager: Allow, RoleAgent: Allow, RoleNone: Allow},
		RoleManager:    {RoleSuperAdmin: Deny, RoleManager: AllowOwner, RoleAgent: Allow, RoleNone: AllowInvolved},
		RoleAgent:      {RoleSuperAdmin: Deny, RoleManager: Deny, RoleAgent: AllowOwner, RoleNone: Deny},
	},
	ActionView: {
		RoleSuperAdmin: {RoleSuperAdmin: Allow, RoleManager: Allow, RoleAgent: Allow, RoleNone: Allow},
		RoleManager:    {RoleSuperAdmin: AllowInvolved, RoleManager: AllowInvolved, RoleAgent: Allow, RoleNone: AllowInvolved},
		RoleAgent:      {RoleSuperAdmin: Deny, RoleManager: Deny, RoleAgent: AllowOwner, RoleNone: Deny},
	},
}

// Decide looks up the table entry. Unknown combinations deny.
func Decide(action Action, actor, target Role) Effect {
	return rules[action][actor][target]
}

// CanCreate: предикат создания/удаления: может ли actor создать запись с ролью target.
func CanCreate(actor, target Role) bool {
	return Decide(ActionCreate, actor, target) == Allow
}

func Allowed(sub Subject, action Action, target Target) bool {
	switch Decide(action, sub.Role, target.Role) {
	case Allow:
		return true
	case AllowOwner:
		return isSelf(sub, target.OwnerID)
	case AllowInvolved:
		return isSelf(sub, target.OwnerID) || isSelf(sub, target.CreatorID)
	default:
		return false
	}
}

// Authorize returns a Forbidden error when the subject may not perform action on target.
func Authorize(sub Subject, action Action, target Target) error {
	if !Allowed(sub, action, target) {
		return apperr.Forbidden()
	}
	return nil
}

// Require checks a coarse role permission.
func Require(sub Subject, perm Permission) error {
	if !HasPermission(sub.Role, perm) {
		return apperr.Forbidden()
	}
	return nil
}

// Validate reports a missing entry in the rule table.
func Validate() error {
	for _, action := range []Action{ActionCreate, ActionView, ActionEdit, ActionDelete} {
		byActor, ok := rules[action]
		if !ok {
			return fmt.Errorf("no rules for action %s", action)
		}
		for _, actor := range Roles() {
			byTarget, ok := byActor[actor]
			if !ok {
				return fmt.Errorf("no rules for %s by %s", action, actor)
			}
			for _, target := range targetRoles {
				if _, ok := byTarget[target]; !ok {
					return fmt.Errorf("no rule for %s by %s on %q", action, actor, target)
				}
			}
		}
	}
	return nil
}

func isSelf(sub Subject, id *uuid.UUID) bool {
	return id != nil && sub.UserID != uuid.Nil && *id == sub.UserID
}

type subjectKey struct{}

func WithSubject(ctx context.Context, sub Subject) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

func SubjectFrom(ctx context.Context) (Subject, bool) {
	sub, ok := ctx.Value(subjectKey{}).(Subject)
	return sub, ok
}

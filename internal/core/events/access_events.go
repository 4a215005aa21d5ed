package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRoleAssigned      = "access.role_assigned"
	EventTypePermissionGranted = "access.permission_granted"
	EventTypePermissionRevoked = "access.permission_revoked"
	EventTypeUserPromoted      = "access.user_promoted"
	EventTypeUserBanned        = "access.user_banned"
)

type RoleAssignedEvent struct {
	BaseEvent
	UserID   int64  `json:"user_id"`
	RoleName string `json:"role_name"`
}

func NewRoleAssignedEvent(userID int64, roleName string) *RoleAssignedEvent {
	return &RoleAssignedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRoleAssigned,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":   userID,
				"role_name": roleName,
			},
		},
		UserID:   userID,
		RoleName: roleName,
	}
}

type PermissionGrantedEvent struct {
	BaseEvent
	UserID         int64  `json:"user_id"`
	PermissionName string `json:"permission_name"`
}

func NewPermissionGrantedEvent(userID int64, permissionName string) *PermissionGrantedEvent {
	return &PermissionGrantedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePermissionGranted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":         userID,
				"permission_name": permissionName,
			},
		},
		UserID:         userID,
		PermissionName: permissionName,
	}
}

type PermissionRevokedEvent struct {
	BaseEvent
	UserID         int64  `json:"user_id"`
	PermissionName string `json:"permission_name"`
}

func NewPermissionRevokedEvent(userID int64, permissionName string) *PermissionRevokedEvent {
	return &PermissionRevokedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePermissionRevoked,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":         userID,
				"permission_name": permissionName,
			},
		},
		UserID:         userID,
		PermissionName: permissionName,
	}
}

type UserPromotedEvent struct {
	BaseEvent
	UserID   int64  `json:"user_id"`
	RoleName string `json:"role_name"`
}

func NewUserPromotedEvent(userID int64, roleName string) *UserPromotedEvent {
	return &UserPromotedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserPromoted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":   userID,
				"role_name": roleName,
			},
		},
		UserID:   userID,
		RoleName: roleName,
	}
}

type UserBannedEvent struct {
	BaseEvent
	UserID int64 `json:"user_id"`
}

func NewUserBannedEvent(userID int64) *UserBannedEvent {
	return &UserBannedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserBanned,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id": userID,
			},
		},
		UserID: userID,
	}
}

package service

import (
	"context"
	"strings"

	"github.com/noah-isme/giaoly-api/internal/models"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
)

type classAssignmentChecker interface {
	IsAssignedToUser(ctx context.Context, classID, userID string) (bool, error)
}

// ensureClassAccess lets admins through and limits catechists to classes they teach.
func ensureClassAccess(ctx context.Context, checker classAssignmentChecker, claims *models.JWTClaims, classID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleGLV:
		if checker == nil {
			return appErrors.Clone(appErrors.ErrForbidden, "class access cannot be verified")
		}
		ok, err := checker.IsAssignedToUser(ctx, classID, claims.UserID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify class assignment")
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrForbidden, "not assigned to this class")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "staff role required")
	}
}

type classRosterChecker interface {
	StudentsOutsideClass(ctx context.Context, classID string, studentIDs []string) ([]string, error)
}

// ensureStudentsInClass rejects writes that name students enrolled elsewhere.
// Admins are checked too.
func ensureStudentsInClass(ctx context.Context, roster classRosterChecker, classID string, studentIDs []string) error {
	if roster == nil {
		return appErrors.Clone(appErrors.ErrForbidden, "class roster cannot be verified")
	}
	outside, err := roster.StudentsOutsideClass(ctx, classID, studentIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify class roster")
	}
	if len(outside) > 0 {
		return appErrors.Clone(appErrors.ErrForbidden, "students not enrolled in this class: "+strings.Join(outside, ", "))
	}
	return nil
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue-api/internal/model"
)

// ActorFromRequest reads the acting identity from the gateway headers.
// Authentication happens upstream; these headers are trusted as-is. On
// failure the 400 response is written and ok is false.
func ActorFromRequest(c *gin.Context) (model.Actor, bool) {
	userID, err := uuid.Parse(c.GetHeader("X-Actor-ID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("missing or invalid X-Actor-ID header"))
		return model.Actor{}, false
	}

	role := model.ActorRole(c.GetHeader("X-Actor-Role"))
	switch role {
	case model.RolePatient, model.RoleProvider, model.RoleReceptionist, model.RoleAdmin:
	default:
		c.JSON(http.StatusBadRequest, NewErrorResponse("missing or invalid X-Actor-Role header"))
		return model.Actor{}, false
	}

	actor := model.Actor{UserID: userID, Role: role}
	if raw := c.GetHeader("X-Clinic-ID"); raw != "" {
		clinicID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse("invalid X-Clinic-ID header"))
			return model.Actor{}, false
		}
		actor.ClinicID = clinicID
	}

	return actor, true
}

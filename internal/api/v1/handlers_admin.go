package v1

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/service"
	"github.com/redtrack-io/redtrack/internal/workflow"
)

const maxWorkflowDocument = 1 << 20

func (r *APIRouter) handleListRoles(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roles, err := r.services.Roles.List(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, roles)
}

func (r *APIRouter) handleCreateRole(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var in service.RoleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid role request: "+err.Error())
		return
	}
	role, err := r.services.Roles.Create(c.Request.Context(), userID, in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendCreated(c, role)
}

func (r *APIRouter) handleUpdateRole(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roleID, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var in service.RoleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid role request: "+err.Error())
		return
	}
	role, err := r.services.Roles.Update(c.Request.Context(), userID, roleID, in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, role)
}

func (r *APIRouter) handleDeleteRole(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roleID, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := r.services.Roles.Delete(c.Request.Context(), userID, roleID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *APIRouter) handleSetMemberRoles(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramInt(c, "project_id")
	if !ok {
		return
	}
	userID, ok := paramInt(c, "user_id")
	if !ok {
		return
	}
	var in service.MemberInput
	if err := c.ShouldBindJSON(&in); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid member request: "+err.Error())
		return
	}
	member, err := r.services.Members.SetRoles(c.Request.Context(), actorID, projectID, userID, in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, member)
}

func (r *APIRouter) handleRemoveMember(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramInt(c, "project_id")
	if !ok {
		return
	}
	userID, ok := paramInt(c, "user_id")
	if !ok {
		return
	}
	if err := r.services.Members.Remove(c.Request.Context(), actorID, projectID, userID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *APIRouter) handleReplaceWorkflow(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var in service.WorkflowInput
	if err := c.ShouldBindJSON(&in); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid workflow request: "+err.Error())
		return
	}
	rules, err := r.services.Workflows.Replace(c.Request.Context(), userID, in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, rules)
}

// handleImportWorkflow accepts a YAML workflow document as the request body.
func (r *APIRouter) handleImportWorkflow(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWorkflowDocument))
	if err != nil {
		sendError(c, http.StatusRequestEntityTooLarge, "workflow document too large")
		return
	}
	doc, err := workflow.ParseDocument(body)
	if err != nil {
		var docErr *workflow.ValidationError
		if errors.As(err, &docErr) || core.IsValidation(err) {
			handleServiceError(c, err)
			return
		}
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := r.services.Workflows.Import(c.Request.Context(), userID, doc)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, summary)
}

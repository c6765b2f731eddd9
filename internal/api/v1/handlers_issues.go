package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/redtrack-io/redtrack/internal/service"
)

// handleLogin exchanges credentials for a bearer token
func (r *APIRouter) handleLogin(c *gin.Context) {
	var req struct {
		Login    string `json:"login" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid login request: "+err.Error())
		return
	}

	user, token, err := r.services.Auth.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, gin.H{"token": token, "user": user})
}

func (r *APIRouter) handlePermissionCatalog(c *gin.Context) {
	sendSuccess(c, r.services.Permissions.Catalog())
}

func (r *APIRouter) handleProjectPermissions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := paramInt(c, "project_id")
	if !ok {
		return
	}
	keys, err := r.services.Permissions.ProjectPermissions(c.Request.Context(), userID, projectID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, keys)
}

func (r *APIRouter) handleTransitions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	issueID, ok := paramInt(c, "id")
	if !ok {
		return
	}
	transitions, err := r.services.Issues.Transitions(c.Request.Context(), userID, issueID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, transitions)
}

// handleFieldRules answers for ?status_id= or, without it, the issue's current status.
func (r *APIRouter) handleFieldRules(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	issueID, ok := paramInt(c, "id")
	if !ok {
		return
	}
	statusID := 0
	if raw := c.Query("status_id"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			sendError(c, http.StatusBadRequest, "invalid status_id")
			return
		}
		statusID = v
	}
	rules, err := r.services.Issues.FieldRules(c.Request.Context(), userID, issueID, statusID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, rules)
}

func (r *APIRouter) handleTransition(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	issueID, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var in service.TransitionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid transition request: "+err.Error())
		return
	}
	res, err := r.services.Issues.Transition(c.Request.Context(), userID, issueID, in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, res)
}

func (r *APIRouter) handleListRelations(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	issueID, ok := paramInt(c, "id")
	if !ok {
		return
	}
	rels, err := r.services.Relations.List(c.Request.Context(), userID, issueID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, rels)
}

func (r *APIRouter) handleAddRelation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	issueID, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var in service.RelationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid relation request: "+err.Error())
		return
	}
	rel, err := r.services.Relations.Add(c.Request.Context(), userID, issueID, in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendCreated(c, rel)
}

func (r *APIRouter) handleDeleteRelation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	relationID, ok := paramInt(c, "id")
	if !ok {
		return
	}
	rel, err := r.services.Relations.Remove(c.Request.Context(), userID, relationID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	sendSuccess(c, rel)
}

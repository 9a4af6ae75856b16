package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/session"
)

// createSessionRequest is the wire body for POST /sessions. binding tags
// are enforced by gin's ShouldBindJSON via go-playground/validator/v10.
type createSessionRequest struct {
	Title              string                 `json:"title" binding:"required"`
	Description        string                 `json:"description"`
	Type               session.Type           `json:"type" binding:"required"`
	Priority           session.Priority       `json:"priority" binding:"required"`
	InitialPrompt      string                 `json:"initial_prompt" binding:"required"`
	MaxDurationSeconds int                    `json:"max_duration_seconds"`
	AgentConfig        map[string]interface{} `json:"agent_config"`
	ParentSessionID    *string                `json:"parent_session_id"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.engine.CreateSession(c.Request.Context(), req.Title, req.Description, req.Type, req.Priority,
		req.InitialPrompt, req.MaxDurationSeconds, req.AgentConfig, req.ParentSessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionView(sess))
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.engine.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(sess))
}

func (s *Server) getTree(c *gin.Context) {
	depth := 0
	if raw := c.Query("max_depth"); raw != "" {
		if parsed, err := parsePositiveInt(raw); err == nil {
			depth = parsed
		}
	}
	tree, err := s.engine.Tree(c.Request.Context(), c.Param("id"), depth)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

func (s *Server) executeSession(c *gin.Context) {
	sess, err := s.engine.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(sess))
}

type appendCheckpointRequest struct {
	Data     map[string]interface{} `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (s *Server) appendCheckpoint(c *gin.Context) {
	var req appendCheckpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cp, err := s.engine.AppendCheckpoint(c.Request.Context(), c.Param("id"), req.Data, req.Metadata)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cp)
}

// sessionView is the JSON projection of a session.Session returned to API
// callers; it exists so internal fields (Version, StatusUpdatedAt) stay
// under the package's control rather than locking the wire shape to the
// domain struct's field set.
func sessionView(sess *session.Session) gin.H {
	return gin.H{
		"id":          sess.ID,
		"tenant_id":   sess.TenantID,
		"title":       sess.Title,
		"type":        sess.Type,
		"priority":    sess.Priority,
		"status":      sess.Status.String(),
		"parent_id":   sess.ParentID,
		"child_ids":   sess.ChildIDs,
		"retry_count": sess.RetryCount(),
		"created_at":  sess.CreatedAt,
		"updated_at":  sess.UpdatedAt,
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error(), "code": string(apperrors.CodeOf(err))})
}

func parsePositiveInt(raw string) (int, error) {
	n := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, apperrors.InvalidFormat("max_depth", "non-negative integer")
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

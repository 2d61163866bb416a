package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/memoryctl/memoryctl/internal/facade"
	"github.com/memoryctl/memoryctl/internal/recordstore"
)

// saveRequestBody is the wire shape of POST /api/v1/memories.
type saveRequestBody struct {
	Content             string   `json:"content" binding:"required"`
	ProjectID           string   `json:"project_id" binding:"required"`
	Tags                []string `json:"tags"`
	Importance          *float64 `json:"importance"`
	SessionID           string   `json:"session_id"`
	CheckContradictions *bool    `json:"check_contradictions"`
}

func recordToJSON(r *recordstore.Record) gin.H {
	return gin.H{
		"id":                r.ID,
		"content":           r.Content,
		"project_id":        r.ProjectID,
		"scope":             r.Scope,
		"tags":              r.Tags,
		"importance":        r.Importance,
		"confidence_score":  r.ConfidenceScore,
		"source_session_id": r.SourceSessionID,
		"created":           r.Created,
		"updated":           r.Updated,
	}
}

func (s *Server) handleSave(c *gin.Context) {
	var body saveRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	checkContradictions := true
	if body.CheckContradictions != nil {
		checkContradictions = *body.CheckContradictions
	}

	record, err := s.facade.Save(c.Request.Context(), facade.SaveRequest{
		Content:             body.Content,
		ProjectID:           body.ProjectID,
		Tags:                body.Tags,
		Importance:          body.Importance,
		SessionID:           body.SessionID,
		CheckContradictions: checkContradictions,
	})
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	created(c, "memory saved", recordToJSON(record))
}

func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		badRequest(c, "query parameter 'q' is required")
		return
	}
	topK := 10
	if raw := c.Query("top_k"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			topK = n
		}
	}

	hits, err := s.facade.Search(query, topK)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	out := make([]gin.H, 0, len(hits))
	for _, h := range hits {
		out = append(out, gin.H{
			"memory":      recordToJSON(h.Memory),
			"score":       h.Score,
			"explanation": h.Explanation,
		})
	}
	success(c, "search complete", out)
}

func (s *Server) handleRecent(c *gin.Context) {
	n := 10
	if raw := c.Query("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			n = parsed
		}
	}

	records, err := s.facade.GetRecent(n)
	if err != nil {
		internalError(c, err.Error())
		return
	}
	out := make([]gin.H, 0, len(records))
	for _, r := range records {
		out = append(out, recordToJSON(r))
	}
	success(c, "recent memories", out)
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.facade.GetStats()
	if err != nil {
		internalError(c, err.Error())
		return
	}
	success(c, "stats", stats)
}

func (s *Server) handleMaintain(c *gin.Context) {
	dryRun := c.Query("dry_run") == "true"
	result, err := s.facade.RunMaintenance(dryRun)
	if err != nil {
		internalError(c, err.Error())
		return
	}
	success(c, "maintenance complete", result)
}

func (s *Server) handlePromote(c *gin.Context) {
	results, err := s.facade.ExecutePromotions()
	if err != nil {
		internalError(c, err.Error())
		return
	}
	success(c, "promotions executed", results)
}

func (s *Server) handleCluster(c *gin.Context) {
	clusters, err := s.facade.RebuildClusters()
	if err != nil {
		internalError(c, err.Error())
		return
	}
	success(c, "clusters rebuilt", clusters)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type consolidateRequestBody struct {
	SessionFile string `json:"session_file" binding:"required"`
	ProjectID   string `json:"project_id" binding:"required"`
}

func (s *Server) handleConsolidate(c *gin.Context) {
	var body consolidateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	report, err := s.facade.ConsolidateSession(c.Request.Context(), body.SessionFile, body.ProjectID)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	success(c, "session consolidated", report)
}

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/er-ddx-review-server/internal/domain"
	"github.com/er-ddx-review-server/internal/ledger"
	"github.com/er-ddx-review-server/internal/service"
	"github.com/er-ddx-review-server/internal/session"
)

// RecordSummary is one entry of the record picker
type RecordSummary struct {
	RowID     int    `json:"row_id"`
	Label     string `json:"label"`
	Evaluated bool   `json:"evaluated"`
}

type selectRequest struct {
	RowID *int `json:"row_id" binding:"required"`
}

type draftRequest struct {
	RowID *int `json:"row_id"`
	session.Draft
}

type toggleRequest struct {
	FileName string `json:"file_name"`
}

type reviewerRequest struct {
	Reviewer    *string `json:"reviewer"`
	AutoAdvance *bool   `json:"auto_advance"`
}

type saveRequest struct {
	RowID *int           `json:"row_id"`
	Draft *session.Draft `json:"draft"`
}

// handleUpload loads a multipart "file" upload and resets the session
func (s *Server) handleUpload(c *gin.Context) {
	cfg := s.configManager.GetConfig()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.Upload.MaxBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(c, domain.NewServiceError(domain.ErrPayloadTooLarge,
				"Upload exceeds the size limit", fmt.Sprintf("limit is %d bytes", tooLarge.Limit)))
			return
		}
		s.respondError(c, domain.NewServiceError(domain.ErrInvalidInput, "Multipart field \"file\" is required", err.Error()))
		return
	}
	defer file.Close()

	prefer := s.configManager.DefaultPreference()
	if raw := c.PostForm("prefer"); raw != "" {
		prefer, err = domain.ParseModelVariant(raw)
		if err != nil {
			s.respondError(c, domain.NewValidationError("prefer", err.Error(), raw))
			return
		}
	}

	ds, err := s.datasets.Load(c.Request.Context(), header.Filename, file, prefer)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.state.Reset()

	c.JSON(http.StatusCreated, s.datasetSummary(ds))
}

func (s *Server) datasetSummary(ds *service.Dataset) gin.H {
	return gin.H{
		"id":      ds.ID(),
		"dataset": ds,
		"columns": s.datasets.QuickBrowseColumnsFor(ds),
	}
}

func (s *Server) handleGetDataset(c *gin.Context) {
	ds, err := s.datasets.Current()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.datasetSummary(ds))
}

// filteredRows applies the ?q= search filter
func (s *Server) filteredRows(c *gin.Context) ([]int, error) {
	return s.datasets.Search(c.Query("q"))
}

func (s *Server) evaluatedSet(c *gin.Context) (map[int]bool, []int, error) {
	ids, err := s.store.EvaluatedRowIDs(c.Request.Context())
	if err != nil {
		return nil, nil, err
	}
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, ids, nil
}

func (s *Server) handleListRecords(c *gin.Context) {
	rows, err := s.filteredRows(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	evaluated, _, err := s.evaluatedSet(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	out := make([]RecordSummary, 0, len(rows))
	for _, id := range rows {
		label, err := s.datasets.RowLabel(id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		out = append(out, RecordSummary{RowID: id, Label: label, Evaluated: evaluated[id]})
	}
	c.JSON(http.StatusOK, gin.H{"records": out, "count": len(out)})
}

func rowParam(c *gin.Context) (int, error) {
	raw := c.Param("row")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, domain.NewValidationError("row", "must be a non-negative integer", raw)
	}
	return id, nil
}

func (s *Server) handleGetRecord(c *gin.Context) {
	id, err := rowParam(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	rec, err := s.datasets.Record(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	existing, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"record":         rec,
		"label":          service.RowLabel(rec),
		"preferred":      rec.Preferred(),
		"show_model_ddx": s.state.ShowModelDDX(rec.FileName()),
		"evaluation":     existing,
	})
}

func (s *Server) handleQuickBrowse(c *gin.Context) {
	id, err := rowParam(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	cols, rows, err := s.datasets.QuickBrowse([]int{id})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": cols, "row": rows[0]})
}

// handleGetSession resolves the current pick against the filtered rows,
// applying any queued navigation.
func (s *Server) handleGetSession(c *gin.Context) {
	rows, err := s.filteredRows(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	resp := gin.H{"rows": len(rows)}
	if id, ok := s.state.Pick(rows); ok {
		rec, err := s.datasets.Record(id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		resp["row_id"] = id
		resp["label"] = service.RowLabel(rec)
		resp["show_model_ddx"] = s.state.ShowModelDDX(rec.FileName())
	}
	resp["session"] = s.state.Snapshot()
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSelect(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewServiceError(domain.ErrInvalidInput, "row_id is required", err.Error()))
		return
	}
	if _, err := s.datasets.Record(*req.RowID); err != nil {
		s.respondError(c, err)
		return
	}
	s.state.Select(*req.RowID)
	c.JSON(http.StatusOK, gin.H{"session": s.state.Snapshot()})
}

// handleStep queues navigation to the neighbour of the current pick within
// the filtered rows. moved is false at either end.
func (s *Server) handleStep(delta int) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := s.filteredRows(c)
		if err != nil {
			s.respondError(c, err)
			return
		}

		var id int
		var moved bool
		if delta < 0 {
			id, moved = s.state.Prev(rows)
		} else {
			id, moved = s.state.Next(rows)
		}

		resp := gin.H{"moved": moved}
		if moved {
			resp["row_id"] = id
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) targetRow(rowID *int) (int, error) {
	if rowID != nil {
		if _, err := s.datasets.Record(*rowID); err != nil {
			return 0, err
		}
		return *rowID, nil
	}
	if id, ok := s.state.Current(); ok {
		return id, nil
	}
	return 0, domain.NewServiceError(domain.ErrInvalidInput, "No row selected", "pass row_id or select a row first")
}

func (s *Server) handleSetDraft(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewServiceError(domain.ErrInvalidInput, "Invalid draft", err.Error()))
		return
	}
	id, err := s.targetRow(req.RowID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.state.SetDraft(id, req.Draft)
	c.JSON(http.StatusOK, gin.H{"row_id": id, "draft": req.Draft})
}

func (s *Server) handleToggleDDX(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.FileName) == "" {
		s.respondError(c, domain.NewServiceError(domain.ErrInvalidInput, "file_name is required", ""))
		return
	}
	show := s.state.ToggleModelDDX(req.FileName)
	c.JSON(http.StatusOK, gin.H{"file_name": req.FileName, "key": session.ToggleKey(req.FileName), "show": show})
}

func (s *Server) handleSetReviewer(c *gin.Context) {
	var req reviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewServiceError(domain.ErrInvalidInput, "Invalid reviewer settings", err.Error()))
		return
	}
	if req.Reviewer != nil {
		s.state.SetReviewer(strings.TrimSpace(*req.Reviewer))
	}
	if req.AutoAdvance != nil {
		s.state.SetAutoAdvance(*req.AutoAdvance)
	}
	c.JSON(http.StatusOK, gin.H{"session": s.state.Snapshot()})
}

// handleSaveEvaluation records the draft of a row in the ledger. With
// auto-advance on, navigation to the next unreviewed row is queued.
func (s *Server) handleSaveEvaluation(c *gin.Context) {
	var req saveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, domain.NewServiceError(domain.ErrInvalidInput, "Invalid evaluation", err.Error()))
			return
		}
	}
	id, err := s.targetRow(req.RowID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	rec, err := s.datasets.Record(id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	draft := s.state.Draft(id)
	if req.Draft != nil {
		draft = *req.Draft
	}
	eval := draft.Evaluation(id, rec.FileName(), s.state.Reviewer())

	ctx := c.Request.Context()
	updated, err := s.store.Save(ctx, eval)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.state.ClearDraft(id)

	allRows, err := s.datasets.RowIDs()
	if err != nil {
		s.respondError(c, err)
		return
	}
	_, evaluated, err := s.evaluatedSet(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	resp := gin.H{
		"evaluation": eval,
		"updated":    updated,
		"progress":   ledger.ComputeProgress(allRows, evaluated),
	}
	if next, ok := ledger.NextUnreviewed(allRows, evaluated, id); ok {
		resp["next_row_id"] = next
		if s.state.AutoAdvance() {
			s.state.Navigate(next)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"row_id":   id,
		"order":    eval.Order,
		"updated":  updated,
		"reviewer": eval.Reviewer,
	}).Info("Evaluation saved")

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListEvaluations(c *gin.Context) {
	ctx := c.Request.Context()
	evals, err := s.store.List(ctx)
	if err != nil {
		s.respondError(c, err)
		return
	}

	resp := gin.H{"evaluations": evals, "count": len(evals)}
	if allRows, err := s.datasets.RowIDs(); err == nil {
		_, evaluated, err := s.evaluatedSet(c)
		if err != nil {
			s.respondError(c, err)
			return
		}
		resp["progress"] = ledger.ComputeProgress(allRows, evaluated)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUnreviewed(c *gin.Context) {
	allRows, err := s.datasets.RowIDs()
	if err != nil {
		s.respondError(c, err)
		return
	}
	_, evaluated, err := s.evaluatedSet(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	current := -1
	if id, ok := s.state.Current(); ok {
		current = id
	}
	resp := gin.H{
		"rows":     ledger.Unreviewed(allRows, evaluated),
		"progress": ledger.ComputeProgress(allRows, evaluated),
	}
	if next, ok := ledger.NextUnreviewed(allRows, evaluated, current); ok {
		resp["next_row_id"] = next
	}
	c.JSON(http.StatusOK, resp)
}

func attachment(c *gin.Context, name, contentType string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
}

func (s *Server) handleExportRecords(c *gin.Context) {
	var rows []int
	if strings.TrimSpace(c.Query("q")) != "" {
		var err error
		if rows, err = s.filteredRows(c); err != nil {
			s.respondError(c, err)
			return
		}
	} else if _, err := s.datasets.Current(); err != nil {
		s.respondError(c, err)
		return
	}

	attachment(c, "processed.csv", "text/csv; charset=utf-8")
	if err := s.datasets.ExportCSV(c.Writer, rows); err != nil {
		s.logger.WithError(err).Error("Record export failed mid-stream")
	}
}

func (s *Server) handleExportEvaluationsCSV(c *gin.Context) {
	attachment(c, "evaluations.csv", "text/csv; charset=utf-8")
	if err := s.store.ExportCSV(c.Request.Context(), c.Writer); err != nil {
		s.logger.WithError(err).Error("Evaluation export failed mid-stream")
	}
}

func (s *Server) handleExportEvaluationsJSON(c *gin.Context) {
	attachment(c, "evaluations.json", "application/json; charset=utf-8")
	if err := s.store.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		s.logger.WithError(err).Error("Evaluation export failed mid-stream")
	}
}

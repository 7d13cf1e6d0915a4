package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aquaa/markly/internal/attendance"
	"github.com/aquaa/markly/internal/backup"
	"github.com/aquaa/markly/internal/model"
	"github.com/aquaa/markly/internal/notify"
	"github.com/aquaa/markly/internal/queue"
	"github.com/aquaa/markly/internal/store"
)

const dateLayout = "2006-01-02"

// Handler wires HTTP requests to the services.
type Handler struct {
	store    *store.Store
	att      *attendance.Service
	importer *backup.Importer
	exporter *backup.Exporter
	queue    queue.Queue
	notifier *notify.Notifier
	log      *slog.Logger
}

func New(st *store.Store, att *attendance.Service, importer *backup.Importer, exporter *backup.Exporter, q queue.Queue, n *notify.Notifier) *Handler {
	return &Handler{
		store:    st,
		att:      att,
		importer: importer,
		exporter: exporter,
		queue:    q,
		notifier: n,
		log:      slog.Default().With("component", "handler"),
	}
}

// -------- Students --------

type studentRequest struct {
	Name            string `json:"name" binding:"required"`
	Gender          string `json:"gender" binding:"required"`
	Mobile          string `json:"mobile" binding:"required,len=10,numeric"`
	GuardianMobile  string `json:"guardian_mobile" binding:"required,len=10,numeric"`
	CurrentSemester int    `json:"current_semester" binding:"required,gt=0"`
	Section         string `json:"section" binding:"required"`
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st := model.Student{
		Name:            req.Name,
		Gender:          req.Gender,
		Mobile:          req.Mobile,
		GuardianMobile:  req.GuardianMobile,
		CurrentSemester: req.CurrentSemester,
		Section:         req.Section,
	}
	if _, err := h.store.InsertStudent(c.Request.Context(), &st); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) ListStudents(c *gin.Context) {
	ctx := c.Request.Context()
	if v := c.Query("semester"); v != "" {
		sem, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid semester"})
			return
		}
		students, err := h.store.StudentsBySemester(ctx, sem)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": students})
		return
	}
	students, err := h.store.ListStudents(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) GetStudent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	st, err := h.store.StudentByID(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st := model.Student{
		ID:              id,
		Name:            req.Name,
		Gender:          req.Gender,
		Mobile:          req.Mobile,
		GuardianMobile:  req.GuardianMobile,
		CurrentSemester: req.CurrentSemester,
		Section:         req.Section,
	}
	if err := h.store.UpdateStudent(c.Request.Context(), &st); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.store.DeleteStudent(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) PromoteStudents(c *gin.Context) {
	var req struct {
		StudentIDs []int64 `json:"student_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	promoted, err := h.att.Promote(c.Request.Context(), req.StudentIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "promoted": promoted})
		return
	}
	c.JSON(http.StatusOK, gin.H{"promoted": promoted})
}

// -------- Attendance --------

type markEntry struct {
	StudentID int64 `json:"student_id" binding:"required"`
	Present   *bool `json:"present" binding:"required"`
}

// MarkAttendance records presence for a set of students on one date.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req struct {
		Date    string      `json:"date" binding:"required"`
		Entries []markEntry `json:"entries" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	outcomes := map[string]int{}
	var failed []int64
	for _, entry := range req.Entries {
		outcome, err := h.att.Mark(c.Request.Context(), entry.StudentID, day, *entry.Present)
		if err != nil {
			h.log.Warn("mark attendance failed", "student_id", entry.StudentID, "err", err)
			failed = append(failed, entry.StudentID)
			continue
		}
		outcomes[string(outcome)]++
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes, "failed": failed})
}

func (h *Handler) ListAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	rawID := c.Query("student_id")
	if rawID == "" {
		records, err := h.store.ListAttendance(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"attendance": records})
		return
	}
	studentID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student_id"})
		return
	}

	from := int64(0)
	to := time.Now().UnixMilli()
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return
		}
		from = model.DayMillis(t)
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return
		}
		to = model.DayMillis(t)
	}
	records, err := h.store.AttendanceForStudent(ctx, studentID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": records})
}

func (h *Handler) ListAbsentees(c *gin.Context) {
	day, err := time.Parse(dateLayout, c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	students, err := h.att.Absentees(c.Request.Context(), day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// NotifyAbsentees enqueues one outbound-notification job per absent,
// not-yet-notified student on the date. The worker does the sending.
func (h *Handler) NotifyAbsentees(c *gin.Context) {
	var req struct {
		Date string `json:"date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	students, err := h.att.Absentees(c.Request.Context(), day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	queued := 0
	for _, st := range students {
		msg := queue.Message{
			Type:      queue.TypeAbsence,
			StudentID: st.ID,
			Date:      model.DayMillis(day),
		}
		if err := h.queue.Publish(c.Request.Context(), msg); err != nil {
			h.log.Warn("queue publish failed", "student_id", st.ID, "err", err)
			continue
		}
		queued++
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}

// -------- Backup / restore --------

func (h *Handler) ExportJSON(c *gin.Context) {
	data, err := h.exporter.Export(c.Request.Context(), backup.FormatJSON)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	filename := fmt.Sprintf("markly-backup-%s.json", time.Now().UTC().Format(dateLayout))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

func (h *Handler) ExportXLSX(c *gin.Context) {
	data, err := h.exporter.Export(c.Request.Context(), backup.FormatXLSX)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	filename := fmt.Sprintf("markly-backup-%s.xlsx", time.Now().UTC().Format(dateLayout))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *Handler) ImportJSON(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	res, err := h.importer.ImportJSON(c.Request.Context(), data)
	h.respondImport(c, res, err)
}

func (h *Handler) ImportXLSX(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
		return
	}
	defer file.Close()
	res, err := h.importer.ImportWorkbook(c.Request.Context(), file)
	h.respondImport(c, res, err)
}

func (h *Handler) respondImport(c *gin.Context, res *backup.ImportResult, err error) {
	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"status": res.Status(), "result": res})
}

// -------- Notifications --------

func (h *Handler) ListNotifications(c *gin.Context) {
	list, err := h.store.ListNotifications(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	unread, err := h.store.UnreadNotificationCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "unread": unread})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.store.MarkNotificationRead(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	if err := h.store.MarkAllNotificationsRead(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

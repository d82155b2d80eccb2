package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/uh2c-dev/memoire-api/internal/middleware"
	"github.com/uh2c-dev/memoire-api/internal/models"
	"github.com/uh2c-dev/memoire-api/internal/repository"
	"github.com/uh2c-dev/memoire-api/internal/service"
)

// Handlers bundles every HTTP handler the API exposes.
type Handlers struct {
	Auth          *AuthHandler
	Themes        *ThemeHandler
	Documents     *DocumentHandler
	Reports       *MeetingReportHandler
	Plagiarism    *PlagiarismHandler
	Jury          *JuryHandler
	Assignments   *AssignmentHandler
	Notifications *NotificationHandler
	Settings      *SettingsHandler
}

// RegisterRoutes mounts the API under the given prefix. Route-level RBAC is a
// coarse first filter; the fine-grained ownership and workflow rules live in
// the services.
func RegisterRoutes(r *gin.Engine, prefix string, authSvc *service.AuthService, auditRepo *repository.UserRepository, h Handlers) {
	api := r.Group(prefix)

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	// Access is granted by the signed token itself, no session required.
	// Downloads still leave an audit trail.
	api.GET("/minutes/download",
		middleware.Audit(auditRepo, models.AuditActionMinutesDownload, "jury_decision"),
		h.Jury.DownloadMinutes)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", h.Auth.Logout)
	authed.PUT("/auth/password", h.Auth.ChangePassword)
	authed.GET("/auth/me", h.Auth.Me)

	students := middleware.RequireRoles(models.RoleStudent, models.RoleAdmin, models.RoleSuperAdmin)
	supervisors := middleware.RequireRoles(models.RoleSupervisor, models.RoleAdmin, models.RoleSuperAdmin)
	heads := middleware.RequireRoles(models.RoleDepartmentHead, models.RoleAdmin, models.RoleSuperAdmin)
	juries := middleware.RequireRoles(models.RoleJury, models.RoleAdmin, models.RoleSuperAdmin)
	admins := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	authed.POST("/themes", students, h.Themes.Submit)
	authed.GET("/themes", h.Themes.List)
	authed.GET("/themes/:id", h.Themes.Get)
	authed.POST("/themes/:id/review", supervisors, h.Themes.Review)
	authed.POST("/themes/:id/resubmit", students, h.Themes.Resubmit)
	authed.GET("/themes/:id/decision", h.Jury.GetByTheme)

	authed.POST("/documents", students, h.Documents.Submit)
	authed.GET("/documents", h.Documents.List)
	authed.GET("/documents/:id", h.Documents.Get)
	authed.POST("/documents/:id/review", supervisors, h.Documents.Review)

	authed.POST("/meeting-reports", students, h.Reports.Submit)
	authed.GET("/meeting-reports", h.Reports.List)
	authed.GET("/meeting-reports/:id", h.Reports.Get)
	authed.POST("/meeting-reports/:id/resubmit", students, h.Reports.Resubmit)
	authed.POST("/meeting-reports/:id/validate-supervisor", supervisors, h.Reports.ValidateBySupervisor)
	authed.POST("/meeting-reports/:id/validate-head", heads, h.Reports.ValidateByHead)
	authed.POST("/meeting-reports/:id/notes", h.Reports.AppendNote)

	authed.POST("/plagiarism-checks", supervisors, h.Plagiarism.Request)
	authed.GET("/plagiarism-checks", h.Plagiarism.List)
	authed.GET("/plagiarism-checks/:id", h.Plagiarism.Get)
	authed.POST("/plagiarism-checks/:id/result", admins, h.Plagiarism.RecordResult)
	authed.POST("/plagiarism-checks/:id/finalize", supervisors, h.Plagiarism.Finalize)

	authed.POST("/jury-decisions", juries, h.Jury.RecordDecision)
	authed.POST("/jury-decisions/:id/corrections-completed", h.Jury.MarkCorrectionsCompleted)
	authed.POST("/jury-decisions/:id/validate-corrections", juries, h.Jury.ValidateCorrections)
	authed.GET("/jury-decisions/:id/minutes-url", h.Jury.MinutesURL)

	authed.POST("/assignments", admins, h.Assignments.Assign)
	authed.DELETE("/students/:id/assignment", admins, h.Assignments.Unassign)
	authed.GET("/students/:id/assignment", h.Assignments.Active)
	authed.GET("/students/:id/assignments",
		middleware.RBAC("SELF", string(models.RoleAdmin), string(models.RoleSuperAdmin)), h.Assignments.History)

	authed.GET("/notifications", h.Notifications.List)
	authed.POST("/notifications/:id/read", h.Notifications.MarkRead)
	authed.POST("/notifications/read-all", h.Notifications.MarkAllRead)

	authed.GET("/settings/plagiarism-threshold", h.Settings.GetPlagiarismThreshold)
	authed.PUT("/settings/plagiarism-threshold", admins, h.Settings.UpdatePlagiarismThreshold)
}

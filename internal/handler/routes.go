package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/giaoly-api/internal/middleware"
	"github.com/noah-isme/giaoly-api/internal/models"
)

// Handlers bundles every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth          *AuthHandler
	AcademicYears *AcademicYearHandler
	Classes       *ClassHandler
	Catechists    *CatechistHandler
	Students      *StudentHandler
	Sessions      *SessionHandler
	Attendance    *AttendanceHandler
	Scores        *ScoreHandler
	Reports       *ReportHandler
	Dashboard     *DashboardHandler
	Imports       *ImportHandler
	Materials     *MaterialHandler
	Accounts      *AccountHandler
	Metrics       *MetricsHandler
}

// Register mounts the API. authenticate must attach JWT claims; role checks
// are applied per group on top of it.
func Register(api *gin.RouterGroup, h Handlers, authenticate gin.HandlerFunc) {
	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireStaff()
	student := middleware.RequireRoles(models.RoleStudent)
	anyone := middleware.RequireRoles(models.RoleAdmin, models.RoleGLV, models.RoleStudent)

	api.POST("/auth/login", h.Auth.Login)
	// The signed token is the credential for material downloads.
	api.GET("/materials/download/:token", h.Materials.Download)

	secured := api.Group("", authenticate)
	secured.GET("/auth/me", h.Auth.Me)

	years := secured.Group("/academic-years")
	years.GET("", staff, h.AcademicYears.List)
	years.GET("/current", staff, h.AcademicYears.Current)
	years.GET("/:id", staff, h.AcademicYears.Get)
	years.POST("", admin, h.AcademicYears.Create)
	years.PUT("/:id", admin, h.AcademicYears.Update)
	years.DELETE("/:id", admin, h.AcademicYears.Delete)

	classes := secured.Group("/classes")
	classes.GET("", staff, h.Classes.List)
	classes.GET("/:id", staff, h.Classes.Get)
	classes.POST("", admin, h.Classes.Create)
	classes.PUT("/:id", admin, h.Classes.Update)
	classes.DELETE("/:id", admin, h.Classes.Delete)
	classes.GET("/:id/catechists", staff, h.Classes.Catechists)
	classes.POST("/:id/catechists", admin, h.Classes.AssignCatechist)
	classes.DELETE("/:id/catechists/:catechistId", admin, h.Classes.UnassignCatechist)

	catechists := secured.Group("/catechists")
	catechists.GET("", staff, h.Catechists.List)
	catechists.GET("/:id", staff, h.Catechists.Get)
	catechists.POST("", admin, h.Catechists.Create)
	catechists.PUT("/:id", admin, h.Catechists.Update)
	catechists.DELETE("/:id", admin, h.Catechists.Delete)

	students := secured.Group("/students")
	students.GET("", staff, h.Students.List)
	students.GET("/export", staff, h.Students.Export)
	students.GET("/me", student, h.Students.Me)
	students.GET("/:id", staff, h.Students.Get)
	students.POST("", admin, h.Students.Create)
	students.PUT("/:id", admin, h.Students.Update)
	students.DELETE("/:id", admin, h.Students.Delete)

	attendance := secured.Group("/attendance")
	attendance.POST("/sessions", staff, h.Sessions.Start)
	attendance.GET("/sessions", staff, h.Sessions.List)
	attendance.GET("/sessions/active", staff, h.Sessions.Active)
	attendance.POST("/sessions/:id/end", staff, h.Sessions.End)
	attendance.GET("/sessions/:id/qr", staff, h.Sessions.QRCode)
	attendance.POST("/check-in", student, h.Sessions.CheckIn)
	attendance.GET("/records", staff, h.Attendance.ListRecords)
	attendance.PUT("/records", staff, h.Attendance.SaveRecords)

	mass := secured.Group("/mass-attendance")
	mass.GET("", staff, h.Attendance.ListMass)
	mass.PUT("", staff, h.Attendance.SaveMass)
	mass.POST("/self", student, h.Attendance.SelfReportMass)

	secured.GET("/scores", staff, h.Scores.List)
	secured.PUT("/scores", staff, h.Scores.Save)

	reports := secured.Group("/reports")
	reports.GET("/classes/:id/summary", staff, h.Reports.ClassSummary)
	reports.GET("/classes/:id/attendance", staff, h.Reports.MonthlyAttendance)
	reports.GET("/students/me", student, h.Reports.StudentSummary)
	secured.GET("/dashboard", staff, h.Dashboard.Summary)

	imports := secured.Group("/import", admin)
	imports.POST("/students", h.Imports.Students)
	imports.POST("/classes", h.Imports.Classes)
	imports.POST("/catechists", h.Imports.Catechists)
	imports.GET("/templates/:kind", h.Imports.Template)

	materials := secured.Group("/materials")
	materials.GET("", anyone, h.Materials.List)
	materials.POST("", staff, h.Materials.Upload)
	materials.GET("/:id", anyone, h.Materials.Get)
	materials.GET("/:id/download-url", anyone, h.Materials.DownloadURL)
	materials.DELETE("/:id", staff, h.Materials.Delete)

	accounts := secured.Group("/accounts", admin)
	accounts.POST("/catechists", h.Accounts.Catechist)
	accounts.POST("/students", h.Accounts.Student)
	accounts.POST("/students/bulk", h.Accounts.BulkStudents)
	accounts.GET("/batches/:id", h.Accounts.Batch)

	secured.GET("/metrics/summary", admin, h.Metrics.Snapshot)
}

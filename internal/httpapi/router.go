package httpapi

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FunkyDevv/ITRACK-sub000/internal/apperr"
	"github.com/FunkyDevv/ITRACK-sub000/internal/attendance"
	"github.com/FunkyDevv/ITRACK-sub000/internal/auth"
	"github.com/FunkyDevv/ITRACK-sub000/internal/directory"
	"github.com/FunkyDevv/ITRACK-sub000/internal/httpmiddleware"
	"github.com/FunkyDevv/ITRACK-sub000/internal/logger"
)

// Deps is everything the router needs.
type Deps struct {
	Attendance *attendance.Service
	Auth       Authenticator
	Photos     PhotoUploader

	JWTIssuer       string
	JWTSigningKey   string
	RateLimitPerMin int
	MaxUploadBytes  int64

	// Health checks reported by /healthz, keyed by dependency name.
	Health map[string]func(context.Context) bool
}

// NewRouter builds the gin engine with every route.
func NewRouter(d Deps) *gin.Engine {
	h := New(d)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Requests())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := httpmiddleware.NewTokenBucket(d.RateLimitPerMin, d.RateLimitPerMin)

	v1 := r.Group("/v1")
	{
		public := v1.Group("/auth", limiter.GinMiddleware())
		public.POST("/login", h.Login)
		public.POST("/refresh", h.Refresh)
	}

	authed := v1.Group("", auth.Bearer(d.JWTSigningKey, d.JWTIssuer), limiter.GinMiddleware())
	authed.POST("/photos", h.UploadPhoto)

	intern := string(directory.RoleIntern)
	teacher := string(directory.RoleTeacher)
	supervisor := string(directory.RoleSupervisor)

	att := authed.Group("/attendance")
	{
		att.POST("/time-in", auth.RequireRole(intern), h.TimeIn)
		att.POST("/:id/time-out", auth.RequireRole(intern), h.TimeOut)
		att.POST("/:id/approve", auth.RequireRole(teacher, supervisor), h.Approve)
		att.POST("/:id/reject", auth.RequireRole(teacher, supervisor), h.Reject)
	}

	interns := authed.Group("/interns/:id/attendance", selfOrStaff(d.Attendance))
	{
		interns.GET("/current", h.CurrentSession)
		interns.GET("/pending", h.PendingSession)
		interns.GET("/history", h.History)
		interns.GET("/stream", h.InternStream)
	}

	teachers := authed.Group("/teachers/:id/attendance", auth.RequireRole(teacher, supervisor), ownTeacher)
	{
		teachers.GET("", h.TeacherAttendance)
		teachers.GET("/stream", h.TeacherStream)
	}

	return r
}

// selfOrStaff lets interns read only their own records and teachers only
// the records of interns assigned to them.
func selfOrStaff(att *attendance.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := auth.ClaimsFrom(c)
		if !ok {
			forbidden(c)
			return
		}
		switch claims.Role {
		case string(directory.RoleSupervisor):
		case string(directory.RoleTeacher):
			teacherID, err := att.InternTeacher(c.Request.Context(), c.Param("id"))
			if err != nil && !apperr.IsKind(err, apperr.KindValidation) {
				writeError(c, err)
				return
			}
			if err != nil || teacherID != claims.Subject {
				forbidden(c)
				return
			}
		default:
			if claims.Subject != c.Param("id") {
				forbidden(c)
				return
			}
		}
		c.Next()
	}
}

// ownTeacher lets teachers read only their own dashboard.
func ownTeacher(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok || (claims.Role == string(directory.RoleTeacher) && claims.Subject != c.Param("id")) {
		forbidden(c)
		return
	}
	c.Next()
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

package registry

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ganot/scanpoint/internal/logger"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// RequireAuth enforces bearer tokens on the /v1 routes.
	RequireAuth bool
	Logger      *slog.Logger
}

// NewRouter builds the registry HTTP API.
func NewRouter(svc *Service, opts RouterOptions) *gin.Engine {
	log := logger.OrDiscard(opts.Logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := NewHandler(svc, log)
	v1 := router.Group("/v1")
	if opts.RequireAuth {
		v1.Use(RequireStation(svc))
	}
	{
		v1.GET("/identities/:code", h.GetIdentity)
		v1.GET("/activities/:id", h.GetActivity)
		v1.GET("/activities/:id/attendance/:identity_id", h.CountAttendance)
		v1.POST("/attendance", h.RecordAttendance)
	}
	return router
}

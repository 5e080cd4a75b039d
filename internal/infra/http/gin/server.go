package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/infra/obs"
)

type CalendarHTTP interface {
	Quote(c *gin.Context)
	Calendar(c *gin.Context)
	CreateBooking(c *gin.Context)
	RescheduleBooking(c *gin.Context)
	ConfirmBooking(c *gin.Context)
	CancelBooking(c *gin.Context)
	CreateBlock(c *gin.Context)
	RescheduleBlock(c *gin.Context)
	DeleteBlock(c *gin.Context)
}

type RatesHTTP interface {
	ListUnits(c *gin.Context)
	UpsertUnit(c *gin.Context)
	ListRules(c *gin.Context)
	CreateRule(c *gin.Context)
	UpdateRule(c *gin.Context)
	DeleteRule(c *gin.Context)
	ListBands(c *gin.Context)
	CreateBand(c *gin.Context)
	UpdateBand(c *gin.Context)
	DeleteBand(c *gin.Context)
}

type Handlers struct {
	Calendar CalendarHTTP
	Rates    RatesHTTP
}

type Options struct {
	Addr         string
	Env          string
	AllowOrigins []string
}

func NewServer(opts Options, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(opts.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              opts.Addr,
		Handler:           NewRouter(opts, obsMW, health, h),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func NewRouter(opts Options, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", obs.HeaderActorID, headerIdempotencyKey},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			obs.HeaderRequestID,
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Calendar != nil {
		api.GET("/units/:id/quote", h.Calendar.Quote)
		api.GET("/units/:id/calendar", h.Calendar.Calendar)
		api.POST("/bookings", h.Calendar.CreateBooking)
		api.PUT("/bookings/:id/dates", h.Calendar.RescheduleBooking)
		api.POST("/bookings/:id/confirm", h.Calendar.ConfirmBooking)
		api.POST("/bookings/:id/cancel", h.Calendar.CancelBooking)
		api.POST("/units/:id/blocks", h.Calendar.CreateBlock)
		api.PUT("/blocks/:id", h.Calendar.RescheduleBlock)
		api.DELETE("/blocks/:id", h.Calendar.DeleteBlock)
	}
	if h.Rates != nil {
		api.GET("/units", h.Rates.ListUnits)
		api.PUT("/units/:id", h.Rates.UpsertUnit)
		api.GET("/rate-rules", h.Rates.ListRules)
		api.POST("/rate-rules", h.Rates.CreateRule)
		api.PUT("/rate-rules/:id", h.Rates.UpdateRule)
		api.DELETE("/rate-rules/:id", h.Rates.DeleteRule)
		api.GET("/units/:id/rate-bands", h.Rates.ListBands)
		api.POST("/units/:id/rate-bands", h.Rates.CreateBand)
		api.PUT("/rate-bands/:id", h.Rates.UpdateBand)
		api.DELETE("/rate-bands/:id", h.Rates.DeleteBand)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "local", "dev":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}

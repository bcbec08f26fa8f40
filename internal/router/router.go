package router

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/cartdotfun/settlement-backend/internal/app"
	"github.com/cartdotfun/settlement-backend/internal/config"
	"github.com/cartdotfun/settlement-backend/internal/handlers"
	"github.com/cartdotfun/settlement-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// corsMiddleware handles CORS headers and preflight requests.
// Priority: Environment Variable > YAML Config > Default (*)
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		var allowedOrigins []string
		allowCredentials := true
		maxAge := 3600

		envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if envOrigins != "" {
			for _, o := range strings.Split(envOrigins, ",") {
				if trimmed := strings.TrimSpace(o); trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		} else if config.AppConfig != nil && len(config.AppConfig.CORS.AllowedOrigins) > 0 {
			allowedOrigins = config.AppConfig.CORS.AllowedOrigins
			allowCredentials = config.AppConfig.CORS.AllowCredentials
			if config.AppConfig.CORS.MaxAge > 0 {
				maxAge = config.AppConfig.CORS.MaxAge
			}
		} else {
			allowedOrigins = []string{"*"}
		}

		originAllowed := func() bool {
			if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
				c.Header("Access-Control-Allow-Origin", "*")
				return true
			}
			if origin == "" {
				return false
			}
			for _, allowed := range allowedOrigins {
				if strings.TrimSpace(allowed) == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					return true
				}
			}
			logrus.WithFields(logrus.Fields{
				"request_origin":  origin,
				"allowed_origins": allowedOrigins,
				"path":            c.Request.URL.Path,
				"method":          c.Request.Method,
			}).Warn("🚫 CORS: Request blocked - Origin not in whitelist")
			return false
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")
		if allowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		// Preflight requests must be answered before any auth middleware.
		if c.Request.Method == http.MethodOptions {
			originAllowed()
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		originAllowed()
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type")
		c.Next()
	}
}

// SetupRouter builds the gin engine with all API routes
func SetupRouter(container *app.ServiceContainer) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())
	r.Use(corsMiddleware())

	logger := logrus.New()

	var allowedIPs []string
	if config.AppConfig != nil && len(config.AppConfig.Admin.AllowedIPs) > 0 {
		allowedIPs = config.AppConfig.Admin.AllowedIPs
		logger.WithFields(logrus.Fields{
			"allowed_ips": allowedIPs,
			"count":       len(allowedIPs),
		}).Info("Admin API IP whitelist configured")
	} else {
		logger.Info("No admin.allowedIPs configured, using localhost-only mode")
	}
	localhostOnly := middleware.NewLocalhostOnly(logger, allowedIPs)
	authMiddleware := middleware.NewAuthMiddleware(logger)

	// Handlers
	authHandler := handlers.NewAuthHandler()
	ledgerHandler := handlers.NewLedgerHandler(container.LedgerService)
	escrowHandler := handlers.NewEscrowHandler(container.EscrowService)
	sessionHandler := handlers.NewSessionHandler(container.SessionService)
	crossChainHandler := handlers.NewCrossChainHandler(container.CrossChainService)
	adminHandler := handlers.NewAdminHandler(container.AdminService)

	// ============ Liveness ============
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	r.GET("/health", handlers.HealthCheckHandler)
	r.GET("/api/health", handlers.HealthCheckHandler)

	// ============ Prometheus Metrics ============
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ Public auth endpoints ============
	auth := r.Group("/api/auth")
	{
		auth.GET("/nonce", authHandler.GenerateNonceHandler)
		auth.POST("/login", authHandler.AuthenticateHandler)
	}

	// ============ Authenticated API ============
	api := r.Group("/api")
	api.Use(authMiddleware.RequireAuth())
	{
		vault := api.Group("/vault")
		{
			vault.POST("/deposit", ledgerHandler.DepositHandler)
			vault.POST("/withdraw", ledgerHandler.WithdrawHandler)
			vault.GET("/balances", ledgerHandler.ListBalancesHandler)
			vault.GET("/balances/:asset", ledgerHandler.GetBalanceHandler)
			vault.GET("/history", ledgerHandler.GetHistoryHandler)
			vault.GET("/entries/:ref", ledgerHandler.GetEntriesByRefHandler)
		}

		deals := api.Group("/deals")
		{
			deals.POST("", escrowHandler.CreateDealHandler)
			deals.GET("", escrowHandler.ListDealsHandler)
			deals.GET("/:id", escrowHandler.GetDealHandler)
			deals.POST("/:id/submit", escrowHandler.SubmitWorkHandler)
			deals.POST("/:id/dispute", escrowHandler.RaiseDisputeHandler)
			deals.POST("/:id/resolve", escrowHandler.ResolveDisputeHandler)
			deals.POST("/:id/release", escrowHandler.ReleaseHandler)
			deals.POST("/:id/refund", escrowHandler.RefundHandler)
		}

		gateways := api.Group("/gateways")
		{
			gateways.POST("", sessionHandler.RegisterGatewayHandler)
			gateways.GET("", sessionHandler.ListGatewaysHandler)
			gateways.GET("/:slug", sessionHandler.GetGatewayHandler)
			gateways.PUT("/:slug/price", sessionHandler.UpdateGatewayPriceHandler)
			gateways.DELETE("/:slug", sessionHandler.DeactivateGatewayHandler)
		}

		sessions := api.Group("/sessions")
		{
			sessions.POST("", sessionHandler.OpenSessionHandler)
			sessions.GET("", sessionHandler.ListSessionsHandler)
			sessions.GET("/:id", sessionHandler.GetSessionHandler)
			sessions.POST("/:id/usage", sessionHandler.RecordUsageHandler)
			sessions.POST("/:id/settle", sessionHandler.SettleSessionHandler)
			sessions.POST("/:id/cancel", sessionHandler.CancelSessionHandler)
			sessions.POST("/:id/renew", sessionHandler.RenewSessionHandler)
		}

		crosschain := api.Group("/crosschain")
		{
			crosschain.POST("/settle", crossChainHandler.SettleHandler)
			crosschain.GET("/settlements", crossChainHandler.ListSettlementsHandler)
			crosschain.GET("/settlements/:external_id", crossChainHandler.GetSettlementHandler)
		}
	}

	// ============ Admin API (IP whitelist + JWT + owner check in core) ============
	admin := r.Group("/admin/api")
	admin.Use(localhostOnly.Restrict(), authMiddleware.RequireAuth())
	{
		admin.GET("/config", adminHandler.GetConfigHandler)
		admin.PUT("/config/fee-rate", adminHandler.SetFeeRateHandler)
		admin.PUT("/config/fee-recipient", adminHandler.SetFeeRecipientHandler)
		admin.PUT("/config/arbiter", adminHandler.SetArbiterHandler)
		admin.PUT("/config/relay", adminHandler.SetRelayHandler)
		admin.PUT("/config/validation-bridge", adminHandler.SetValidationBridgeHandler)
		admin.PUT("/config/settlement-asset", adminHandler.SetSettlementAssetHandler)
	}

	// ============ NoRoute handler for 404 ============
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message":    "Endpoint not found",
			"path":       c.Request.URL.Path,
			"suggestion": "Check documentation for available /api endpoints",
		})
	})

	return r
}

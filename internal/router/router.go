package router

import (
	"net/http"

	"github.com/blues/cfledger/internal/handler"
	"github.com/blues/cfledger/internal/ledger"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Setup 注册路由，db 为 nil 时不提供镜像记录查询
func Setup(l *ledger.Ledger, db *gorm.DB) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   "campaign-ledger",
			"campaigns": l.GetCampaignCount(c.Request.Context()),
			"mirror":    db != nil,
		})
	})

	// API版本组
	v1 := r.Group("/api/v1")
	{
		campaignHandler := handler.NewCampaignHandler(l)
		contributeHandler := handler.NewContributeHandler(l)
		refundHandler := handler.NewRefundHandler(l)
		settlementHandler := handler.NewSettlementHandler(l)

		campaigns := v1.Group("/campaigns")
		{
			campaigns.POST("", campaignHandler.CreateCampaign)
			campaigns.GET("", campaignHandler.ListCampaigns)
			campaigns.GET("/count", campaignHandler.GetCampaignCount)
			campaigns.GET("/:id", campaignHandler.GetCampaign)
			campaigns.POST("/:id/close", campaignHandler.CloseCampaign)
			campaigns.POST("/:id/contributions", contributeHandler.Contribute)
			campaigns.GET("/:id/contributions/:address", contributeHandler.GetContribution)
			campaigns.POST("/:id/refund", refundHandler.ClaimRefund)
			campaigns.POST("/:id/withdraw", settlementHandler.Withdraw)
			campaigns.POST("/:id/fees/collect", settlementHandler.CollectFees)
		}
		v1.GET("/fees/receiver", settlementHandler.GetFeeReceiver)

		// 镜像记录查询
		if db != nil {
			recordHandler := handler.NewRecordHandler(db)
			records := v1.Group("/campaigns/:id/records")
			{
				records.GET("/contributions", recordHandler.GetContributeRecords)
				records.GET("/refunds", recordHandler.GetRefundRecords)
				records.GET("/settlements", recordHandler.GetSettlementRecords)
				records.GET("/events", recordHandler.GetEvents)
			}
			v1.GET("/users/:address/contributions", recordHandler.GetUserContributeRecords)
		}
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, "+handler.CallerHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

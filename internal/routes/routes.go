package routes

import (
	"github.com/gin-gonic/gin"

	handler "github.com/Manzp111/Procured-Payment/internal/handlers"
	"github.com/Manzp111/Procured-Payment/internal/models"
)

func RegisterRoutes(r *gin.Engine, h *handler.PurchaseRequestHandler) {
	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	requests := api.Group("/requests")
	requests.Use(handler.Identity())
	{
		requests.POST("", handler.RequireRoles(models.RoleStaff), h.Create)
		requests.GET("", h.List)
		requests.GET("/:id", h.Get)
		requests.PUT("/:id", handler.RequireRoles(models.RoleStaff), h.Update)

		approvers := handler.RequireRoles(models.RoleManager, models.RoleGeneralManager)
		requests.PATCH("/:id/approve", approvers, h.Approve)
		requests.PATCH("/:id/reject", approvers, h.Reject)

		requests.POST("/:id/receipt", handler.RequireRoles(models.RoleStaff), h.SubmitReceipt)
		requests.POST("/:id/invoice", handler.RequireRoles(models.RoleFinance), h.SubmitInvoice)
	}
}

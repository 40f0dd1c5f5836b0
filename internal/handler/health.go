package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	amqpConn    *amqp.Connection
}

func NewHealthHandler(dbPool *pgxpool.Pool, redisClient *redis.Client, amqpConn *amqp.Connection) *HealthHandler {
	return &HealthHandler{dbPool: dbPool, redisClient: redisClient, amqpConn: amqpConn}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz checks every dependency and reports each one, so a degraded
// response names what is actually down instead of the first failure found.
func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx := c.Request.Context()

	checks := gin.H{"postgres": "connected", "redis": "connected", "rabbitmq": "connected"}
	ready := true

	if err := h.dbPool.Ping(ctx); err != nil {
		checks["postgres"] = "unavailable"
		ready = false
	}
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		checks["redis"] = "unavailable"
		ready = false
	}
	if h.amqpConn.IsClosed() {
		checks["rabbitmq"] = "unavailable"
		ready = false
	}

	if !ready {
		checks["status"] = "error"
		c.JSON(http.StatusServiceUnavailable, checks)
		return
	}
	checks["status"] = "ok"
	c.JSON(http.StatusOK, checks)
}

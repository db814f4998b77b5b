package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vitrine-app/vitrine/internal/pkg/jobqueue"
)

// HandleQueueStats reports background queue depth and per-status job counts
// for operators. A single job can be looked up via the job_id query parameter.
func HandleQueueStats(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	queue := jobqueue.GetManager().GetQueue()

	stats, err := queue.GetJobStats(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "queue_unavailable"})
	}
	pending, err := queue.GetQueueSize(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "queue_unavailable"})
	}
	processing, err := queue.GetProcessingSize(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "queue_unavailable"})
	}

	resp := fiber.Map{
		"pending":    pending,
		"processing": processing,
		"stats":      stats,
	}

	if jobID := c.Query("job_id"); jobID != "" {
		job, err := queue.GetJob(ctx, jobID)
		switch {
		case errors.Is(err, redis.Nil):
			resp["job"] = nil
		case err != nil:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "queue_unavailable"})
		default:
			resp["job"] = job
		}
	}

	return c.JSON(resp)
}

package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ecoenzim-service/middleware"
	"ecoenzim-service/models"
	"ecoenzim-service/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const pointsStreamInterval = 2 * time.Second

// pointsStream pushes new ledger lines for the caller as server-sent events.
func pointsStream(ledger *services.LedgerService, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := middleware.CurrentActor(c).ID
		cursor := ledger.Now()
		done := c.Context().Done()

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			ticker := time.NewTicker(pointsStreamInterval)
			defer ticker.Stop()

			fetch := func(t time.Time) ([]models.PointsHistory, error) {
				return ledger.Since(context.Background(), userID, t)
			}
			streamLedger(w, cursor, fetch, ticker.C, done, log.WithField("user_id", userID))
		})
		return nil
	}
}

// streamLedger writes one "points" event per new entry on every tick until
// done closes, tick closes or the client goes away.
func streamLedger(w *bufio.Writer, cursor time.Time, fetch func(time.Time) ([]models.PointsHistory, error), tick <-chan time.Time, done <-chan struct{}, log logrus.FieldLogger) {
	// Initial keepalive (comment event)
	_, _ = w.WriteString(":\n\n")
	if err := w.Flush(); err != nil {
		return
	}

	for {
		select {
		case _, ok := <-tick:
			if !ok {
				return
			}
			entries, err := fetch(cursor)
			if err != nil {
				log.WithError(err).Warn("points stream query failed")
				continue
			}
			if len(entries) == 0 {
				continue
			}
			cursor = entries[len(entries)-1].CreatedAt

			for _, e := range entries {
				payload, err := json.Marshal(e)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: points\ndata: %s\n\n", payload)
			}
			if err := w.Flush(); err != nil {
				// client disconnected
				return
			}
		case <-done:
			return
		}
	}
}

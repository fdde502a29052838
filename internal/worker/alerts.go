// Package worker runs the background job loop that turns queued access
// events into phone alerts for guardians.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/pkg/queue"
)

// JobSource hands jobs to the dispatcher and takes failed ones back.
// Satisfied by queue.Queue.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// AlertDispatcher drains the alert queue, posts each alert to the SMS
// gateway, and records the outcome in the system database.
type AlertDispatcher struct {
	pool       *pgxpool.Pool
	queue      JobSource
	client     *http.Client
	gatewayURL string
	token      string
	logger     *zap.Logger
}

// NewAlertDispatcher creates an alert dispatcher. An empty gatewayURL turns
// sending into a no-op that still logs deliveries as skipped.
func NewAlertDispatcher(pool *pgxpool.Pool, q JobSource, gatewayURL, token string, logger *zap.Logger) *AlertDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertDispatcher{
		pool:       pool,
		queue:      q,
		client:     &http.Client{Timeout: 15 * time.Second},
		gatewayURL: gatewayURL,
		token:      token,
		logger:     logger,
	}
}

// gatewayRequest is the body posted to the SMS gateway.
type gatewayRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Process executes one guardian alert job.
func (d *AlertDispatcher) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeGuardianAlert {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.GuardianAlertPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	status := "sent"
	if d.gatewayURL == "" {
		status = "skipped"
	} else if err := d.send(ctx, payload); err != nil {
		return err
	}

	if err := d.record(ctx, payload, status); err != nil {
		// The alert went out; a logging failure must not trigger a resend.
		d.logger.Error("record alert", zap.String("job_id", job.ID), zap.Error(err))
	}
	d.logger.Info("guardian alert processed",
		zap.String("job_id", job.ID),
		zap.Int64("school_id", payload.SchoolID),
		zap.Int64("student_id", payload.StudentID),
		zap.String("status", status),
	)
	return nil
}

func (d *AlertDispatcher) send(ctx context.Context, payload queue.GuardianAlertPayload) error {
	message := fmt.Sprintf("%s: %s recorded %s at %s",
		payload.SchoolName, payload.StudentName, payload.Kind,
		payload.RecordedAt.Local().Format("15:04"))
	body, err := json.Marshal(gatewayRequest{Phone: payload.Phone, Message: message})
	if err != nil {
		return fmt.Errorf("marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway status: %d", resp.StatusCode)
	}
	return nil
}

func (d *AlertDispatcher) record(ctx context.Context, payload queue.GuardianAlertPayload, status string) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO alert_log (school_id, student_id, phone, kind, status) VALUES ($1, $2, $3, $4, $5)`,
		payload.SchoolID, payload.StudentID, payload.Phone, payload.Kind, status)
	return err
}

// Run starts the worker loop: dequeue, process, retry on error.
func (d *AlertDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("alert worker stopping")
			return
		default:
		}

		job, _, err := d.queue.Dequeue(ctx)
		if err != nil {
			// A canceled context surfaces here as a dequeue error; do not
			// stall shutdown with a backoff sleep.
			if ctx.Err() != nil {
				d.logger.Info("alert worker stopping")
				return
			}
			d.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		d.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := d.Process(ctx, job); err != nil {
			d.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := d.queue.Retry(ctx, job); reErr != nil {
				d.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			if ctx.Err() != nil {
				d.logger.Info("alert worker stopping")
				return
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

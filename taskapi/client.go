package taskapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/theoremus-urban-solutions/taskroute-live/config"
	"github.com/theoremus-urban-solutions/taskroute-live/geo"
	"github.com/theoremus-urban-solutions/taskroute-live/tracking"
	"github.com/theoremus-urban-solutions/taskroute-live/utils"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

// Client is an HTTP client for the task backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	decoder    *tracking.Decoder
	logger     *slog.Logger
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		decoder:    tracking.NewDecoder(),
		logger:     logger,
	}
}

// NewClientFromConfig creates a client honouring the configured timeout.
func NewClientFromConfig(cfg config.APIConfig, logger *slog.Logger) *Client {
	return NewClient(cfg.BaseURL, cfg.Token, &http.Client{Timeout: cfg.Timeout()}, logger)
}

// Location is the backend's location log entry.
type Location struct {
	ID         int64   `json:"id"`
	UserID     int64   `json:"user_id"`
	TaskID     int64   `json:"task_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	RecordedAt string  `json:"recorded_at"`
}

// Snapshot is the state used to seed the engine.
type Snapshot struct {
	Tasks     []tracking.Task
	Positions []tracking.LivePosition
	FetchedAt time.Time
}

// get fetches path and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

// InProgressTasks lists the tasks currently being executed. Records that fail
// validation or lack a destination are skipped with a warning.
func (c *Client) InProgressTasks(ctx context.Context) ([]tracking.Task, error) {
	body, err := c.get(ctx, "/tasks/?status="+tracking.StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("in-progress tasks: %w", err)
	}
	var records []tracking.TaskRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("in-progress tasks: failed to decode: %w", err)
	}

	tasks := make([]tracking.Task, 0, len(records))
	for _, rec := range records {
		if err := c.decoder.ValidateRecord(rec); err != nil {
			c.logger.Warn("skipping invalid task record", "task_id", rec.ID, "error", err)
			continue
		}
		t := rec.Task()
		if !t.Destination.Valid() {
			c.logger.Warn("skipping task without destination", "task_id", rec.ID)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// LatestLocation returns the most recent position logged for a task.
// ok is false when the backend has none yet.
func (c *Client) LatestLocation(ctx context.Context, taskID int64) (Location, bool, error) {
	body, err := c.get(ctx, fmt.Sprintf("/locations/%d/latest", taskID))
	if errors.Is(err, ErrNotFound) {
		return Location{}, false, nil
	}
	if err != nil {
		return Location{}, false, fmt.Errorf("latest location of task %d: %w", taskID, err)
	}
	var loc Location
	if err := json.Unmarshal(body, &loc); err != nil {
		return Location{}, false, fmt.Errorf("latest location of task %d: failed to decode: %w", taskID, err)
	}
	return loc, true, nil
}

// Snapshot fetches the in-progress tasks and their latest positions. A
// position that cannot be fetched is logged and left out; only the task
// listing is fatal.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	tasks, err := c.InProgressTasks(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Tasks: tasks, FetchedAt: time.Now()}
	for _, t := range tasks {
		loc, ok, err := c.LatestLocation(ctx, t.ID)
		if err != nil {
			if ctx.Err() != nil {
				return Snapshot{}, ctx.Err()
			}
			c.logger.Warn("snapshot position unavailable", "task_id", t.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		pos, err := toPosition(t.ID, loc)
		if err != nil {
			c.logger.Warn("ignoring snapshot position", "task_id", t.ID, "error", err)
			continue
		}
		snap.Positions = append(snap.Positions, pos)
	}
	c.logger.Info("snapshot fetched", "tasks", len(snap.Tasks), "positions", len(snap.Positions))
	return snap, nil
}

func toPosition(taskID int64, loc Location) (tracking.LivePosition, error) {
	coord := geo.Coordinate{Lat: loc.Latitude, Lng: loc.Longitude}
	if !coord.Valid() {
		return tracking.LivePosition{}, fmt.Errorf("invalid coordinate %s", coord)
	}
	recorded, err := utils.ParseBackendTime(loc.RecordedAt)
	if err != nil {
		return tracking.LivePosition{}, err
	}
	return tracking.LivePosition{TaskID: taskID, Coordinate: coord, ReceivedAt: recorded}, nil
}

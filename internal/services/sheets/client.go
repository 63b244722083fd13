// -----------------------------------------------------------------------
// Sheet Client - JSON transport to the tabular data source web app
// -----------------------------------------------------------------------

package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Client talks to the sheet web app. Every operation is one JSON POST with
// an "action" discriminator; there is no batching transaction. Transport
// failures are retried with backoff here so callers see only the final
// outcome.
type Client struct {
	httpClient *http.Client
	url        string
	retryCfg   common.RetryConfig
	// Highlights are cosmetic and high-volume; the limiter keeps them from
	// saturating the web app while jobs run.
	highlightLimiter *rate.Limiter
	logger           arbor.ILogger
}

// NewClient creates a sheet client from config. When a bearer token is
// configured, requests authenticate through an oauth2 static token source.
func NewClient(cfg *common.SheetConfig, logger arbor.ILogger) interfaces.SheetClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.Token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), src)
		httpClient.Timeout = timeout
	}

	highlightEvery := cfg.HighlightRate
	if highlightEvery <= 0 {
		highlightEvery = 500 * time.Millisecond
	}

	return &Client{
		httpClient:       httpClient,
		url:              cfg.URL,
		retryCfg:         common.DefaultRetryConfig(),
		highlightLimiter: rate.NewLimiter(rate.Every(highlightEvery), 1),
		logger:           logger,
	}
}

// GetRow fetches one row by its 1-based row number.
func (c *Client) GetRow(ctx context.Context, row int) (*models.SheetRow, error) {
	var resp models.SheetRowResponse
	err := c.doAction(ctx, "getRow", map[string]interface{}{"row": row}, &resp)
	if err != nil {
		return nil, err
	}
	return &models.SheetRow{Row: resp.Row, Data: resp.Data}, nil
}

// ListRows fetches rows from start to end inclusive. end <= 0 means
// through the last populated row.
func (c *Client) ListRows(ctx context.Context, start, end int) ([]models.SheetRow, error) {
	params := map[string]interface{}{"start": start}
	if end > 0 {
		params["end"] = end
	}

	var resp models.SheetRowsResponse
	if err := c.doAction(ctx, "list", params, &resp); err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

// UpdateCell writes a value into one cell.
func (c *Client) UpdateCell(ctx context.Context, row int, column, value string) error {
	var resp models.SheetUpdateResponse
	err := c.doAction(ctx, "updateCell", map[string]interface{}{
		"row":   row,
		"col":   column,
		"value": value,
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("updateCell rejected for row %d col %s: %s", row, column, resp.Message)
	}
	return nil
}

// HighlightCell colors one cell. Fire-and-forget: failures are logged and
// never reach the caller, and highlight panics cannot abort a job.
func (c *Client) HighlightCell(row int, column, color string) {
	common.SafeGo(c.logger, "highlightCell", func() {
		c.highlight("highlightCell", map[string]interface{}{
			"row":   row,
			"col":   column,
			"color": color,
		})
	})
}

// HighlightRange colors several cells in one row, same contract as
// HighlightCell.
func (c *Client) HighlightRange(row int, columns []string, color string) {
	common.SafeGo(c.logger, "highlightRange", func() {
		c.highlight("highlightRange", map[string]interface{}{
			"row":   row,
			"cols":  columns,
			"color": color,
		})
	})
}

func (c *Client) highlight(action string, params map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.highlightLimiter.Wait(ctx); err != nil {
		return
	}

	var resp models.SheetUpdateResponse
	if err := c.doRequest(ctx, action, params, &resp); err != nil {
		c.logger.Debug().
			Err(err).
			Str("action", action).
			Msg("Sheet highlight failed (ignored)")
	}
}

// doAction performs one sheet action with bounded retries.
func (c *Client) doAction(ctx context.Context, action string, params map[string]interface{}, out interface{}) error {
	return common.Retry(ctx, c.logger, fmt.Sprintf("sheet %s", action), c.retryCfg, func() error {
		return c.doRequest(ctx, action, params, out)
	})
}

func (c *Client) doRequest(ctx context.Context, action string, params map[string]interface{}, out interface{}) error {
	if c.url == "" {
		return fmt.Errorf("sheet URL is not configured")
	}

	payload := make(map[string]interface{}, len(params)+1)
	payload["action"] = action
	for k, v := range params {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sheet %s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", action, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sheet %s returned status %d: %s", action, resp.StatusCode, truncate(string(data), 200))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", action, err)
		}
	}
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

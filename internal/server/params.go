package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Aiuser8/defi-alive-jobs/internal/job"
)

const dateLayout = "2006-01-02"

// parseParams reads the recognized trigger parameters. Unknown parameters are
// ignored; malformed values are a 400, never a silent default.
func parseParams(c *gin.Context) (*job.Params, error) {
	p := &job.Params{}

	var err error
	if p.Offset, err = intParam(c, "offset", 0); err != nil {
		return nil, err
	}
	if p.Offset < 0 {
		return nil, fmt.Errorf("offset must be >= 0")
	}
	if p.Limit, err = intParam(c, "limit", 0); err != nil {
		return nil, err
	}
	if p.BatchSize, err = intParam(c, "batch_size", 0); err != nil {
		return nil, err
	}
	if p.Concurrency, err = intParam(c, "concurrency", 0); err != nil {
		return nil, err
	}
	if p.Fetch.RecentPoints, err = intParam(c, "recent_points", 0); err != nil {
		return nil, err
	}

	if day := c.Query("day"); day != "" {
		d, err := time.Parse(dateLayout, day)
		if err != nil {
			return nil, fmt.Errorf("day: %w", err)
		}
		p.Fetch.Since, p.Fetch.Until = d, d
	}
	if since := c.Query("since"); since != "" {
		if p.Fetch.Since, err = time.Parse(dateLayout, since); err != nil {
			return nil, fmt.Errorf("since: %w", err)
		}
	}
	if start := c.Query("start_date"); start != "" {
		if p.Fetch.Since, err = time.Parse(dateLayout, start); err != nil {
			return nil, fmt.Errorf("start_date: %w", err)
		}
	}
	if end := c.Query("end_date"); end != "" {
		if p.Fetch.Until, err = time.Parse(dateLayout, end); err != nil {
			return nil, fmt.Errorf("end_date: %w", err)
		}
	}

	p.Fetch.Full = c.Query("full") == "1"

	return p, nil
}

func intParam(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer", name)
	}
	return v, nil
}

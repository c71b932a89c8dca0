package api

import (
	"github.com/rishabhpatre/ai-news-agent/app/database"
	"github.com/rishabhpatre/ai-news-agent/app/metrics"
	"github.com/rishabhpatre/ai-news-agent/app/tasks"
)

// RunTrigger starts digest runs on demand.
type RunTrigger interface {
	TriggerRun(trigger string) (string, error)
	Running() bool
}

var _ RunTrigger = (*tasks.Scheduler)(nil)

type Handler struct {
	store       database.DigestStore
	trigger     RunTrigger
	metrics     *metrics.Collector
	sourceCount int
	version     string
}

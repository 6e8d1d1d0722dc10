package component

import (
	"log/slog"

	"github.com/ItamarWilf/PipeRT/message"
	"github.com/ItamarWilf/PipeRT/metric"
	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
)

// Dependencies are the shared collaborators handed to every component.
type Dependencies struct {
	Routines        *routine.Registry       // routine types available to AddRoutine
	MetricsRegistry *metric.MetricsRegistry // can be nil
	Collector       metric.Collector        // can be nil, defaults to NoopCollector
	Generator       *message.Generator      // can be nil, defaults to message.Default()
	Logger          *slog.Logger            // can be nil, defaults to slog.Default()
	QueueCapacity   int                     // capacity of queues created by name only
}

// GetLogger returns the configured logger or the default logger.
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger carrying the component name.
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}

func (d *Dependencies) collector() metric.Collector {
	if d.Collector != nil {
		return d.Collector
	}
	if d.MetricsRegistry != nil {
		return metric.CollectorFor(d.MetricsRegistry)
	}
	return metric.NoopCollector{}
}

func (d *Dependencies) coreMetrics() *metric.Metrics {
	if d.MetricsRegistry == nil {
		return nil
	}
	return d.MetricsRegistry.CoreMetrics()
}

func (d *Dependencies) queueCapacity() int {
	if d.QueueCapacity > 0 {
		return d.QueueCapacity
	}
	return queue.DefaultCapacity
}

func (d *Dependencies) routineDeps(logger *slog.Logger) routine.Dependencies {
	return routine.Dependencies{
		Logger:    logger,
		Collector: d.collector(),
		Metrics:   d.coreMetrics(),
		Generator: d.Generator,
	}
}

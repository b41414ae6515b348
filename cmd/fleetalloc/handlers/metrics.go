package handlers

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// writeMetrics dumps every collected metric in the Prometheus text format.
// Nothing is written when path is empty.
func writeMetrics(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

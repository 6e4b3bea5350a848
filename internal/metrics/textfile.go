package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteFile dumps the default registry in the text exposition format.
func WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

package observability

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const jobName = "sipsa_etl"

// Exporter ships the metrics of a finished batch run. A scrape endpoint does
// not fit a process that exits right away, so metrics go to a Pushgateway
// and/or a node-exporter textfile.
type Exporter struct {
	PushgatewayURL string
	Textfile       string
}

// Enabled reports whether any export target is configured.
func (e Exporter) Enabled() bool {
	return e.PushgatewayURL != "" || e.Textfile != ""
}

// Export pushes g to every configured target, grouped by command. It returns
// the joined errors of all failed targets.
func (e Exporter) Export(ctx context.Context, g prometheus.Gatherer, command string) error {
	var errs []error
	if e.PushgatewayURL != "" {
		err := push.New(e.PushgatewayURL, jobName).
			Gatherer(g).
			Grouping("command", command).
			PushContext(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("push metrics: %w", err))
		}
	}
	if e.Textfile != "" {
		if err := prometheus.WriteToTextfile(e.Textfile, g); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}
	return errors.Join(errs...)
}

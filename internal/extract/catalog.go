package extract

import (
	"context"

	"github.com/signalsfoundry/neo-catalog/internal/logging"
	"github.com/signalsfoundry/neo-catalog/kb"
)

// LoadCatalog reads both files and builds a catalog from them, logging what
// each load had to default or skip.
func LoadCatalog(ctx context.Context, log logging.Logger, neoPath, cadPath string, opts ...kb.Option) (*kb.Catalog, error) {
	if log == nil {
		log = logging.Noop()
	}

	neos, rep, err := LoadNEOsFile(neoPath)
	if err != nil {
		return nil, err
	}
	logReport(ctx, log, "loaded NEOs", neoPath, rep)

	approaches, rep, err := LoadApproachesFile(cadPath)
	if err != nil {
		return nil, err
	}
	logReport(ctx, log, "loaded close approaches", cadPath, rep)

	opts = append([]kb.Option{kb.WithLogger(log)}, opts...)
	return kb.NewCatalog(neos, approaches, opts...), nil
}

func logReport(ctx context.Context, log logging.Logger, msg, path string, rep Report) {
	fields := []logging.Field{
		logging.String("path", path),
		logging.Int("rows", rep.Rows),
		logging.Int("defaulted", rep.Defaulted),
		logging.Int("skipped", rep.Skipped),
	}
	if rep.Skipped > 0 {
		log.Warn(ctx, msg, fields...)
		return
	}
	log.Info(ctx, msg, fields...)
}

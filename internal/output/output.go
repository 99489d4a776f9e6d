// Package output extracts each channel's eligible population into a file.
package output

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/waterfall/internal/eligible"
	"github.com/leapstack-labs/waterfall/internal/logging"
	"github.com/leapstack-labs/waterfall/internal/sqlgen"
	"github.com/leapstack-labs/waterfall/internal/warehouse"
	"github.com/leapstack-labs/waterfall/pkg/core"
)

// Result describes one channel's output.
type Result struct {
	Channel string `json:"channel"`
	Path    string `json:"path,omitempty"`
	Rows    int64  `json:"rows"`
	Err     error  `json:"-"`
}

// Output writes channel files for a run.
type Output struct {
	session     *warehouse.Session
	constructor *sqlgen.Constructor
	logger      *slog.Logger
}

// New returns an Output. If logger is nil, a discard logger is used.
func New(session *warehouse.Session, constructor *sqlgen.Constructor, logger *slog.Logger) *Output {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Output{session: session, constructor: constructor, logger: logger}
}

// Path returns the file a channel instruction is written to.
func Path(inst core.OutputInstruction) string {
	dir := inst.FileLocation
	if dir == "" {
		dir = "."
	}
	base := inst.FileBaseName
	if base == "" {
		base = inst.Channel
	}
	return filepath.Join(dir, base+"."+inst.Format.Extension())
}

// Write produces every channel's file, in channel name order. A failing
// channel does not stop the others; failures come back joined as
// *core.ChannelError and in the matching Result.
func (o *Output) Write(ctx context.Context, instructions []core.OutputInstruction) (results []Result, err error) {
	span := logging.Trace(o.logger, "Output.Write", slog.Int("channels", len(instructions)))
	defer func() { span.End(err) }()

	sorted := append([]core.OutputInstruction(nil), instructions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Channel < sorted[j].Channel })

	var errs []error
	for _, inst := range sorted {
		res := o.writeChannel(ctx, inst)
		if res.Err != nil {
			res.Err = &core.ChannelError{Channel: inst.Channel, Path: res.Path, Err: res.Err}
			errs = append(errs, res.Err)
			o.logger.Error("channel output failed", slog.String("channel", inst.Channel), slog.String("error", res.Err.Error()))
		} else {
			o.logger.Info("channel output written",
				slog.String("channel", inst.Channel),
				slog.String("path", res.Path),
				slog.Int64("rows", res.Rows))
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (o *Output) writeChannel(ctx context.Context, inst core.OutputInstruction) Result {
	res := Result{Channel: inst.Channel}

	elig, err := o.constructor.ChannelEligibility(inst.Channel)
	if err != nil {
		res.Err = err
		return res
	}
	extract, err := o.constructor.OutputQuery(inst)
	if err != nil {
		res.Err = err
		return res
	}
	if err := eligible.Materialize(ctx, o.session, elig); err != nil {
		res.Err = err
		return res
	}

	res.Path = Path(inst)
	if err := os.MkdirAll(filepath.Dir(res.Path), 0o750); err != nil {
		res.Err = fmt.Errorf("failed to create output directory: %w", err)
		return res
	}
	w, err := NewWriter(res.Path, inst)
	if err != nil {
		res.Err = err
		return res
	}

	n, err := o.session.Export(ctx, extract.SQL, w)
	cerr := w.Close()
	if err != nil || cerr != nil {
		_ = os.Remove(res.Path)
		if err != nil {
			res.Err = extract.Error(err)
		} else {
			res.Err = fmt.Errorf("failed to finish %s: %w", res.Path, cerr)
		}
		return res
	}
	res.Rows = n
	return res
}

// Package plan implements the Plan abstraction: an ordered collection
// of shards, plus a mode flag, that every public engine operation
// acts on. Mode is modeled as a tagged variant (ReadPlan / WritePlan
// as distinct Go types sharing the Plan interface) rather than a
// runtime-checked field, per the design notes.
package plan

import (
	"context"
	"sort"
	"sync"

	vdifsg "github.com/cfa-haystack/vdifsg"
	"github.com/cfa-haystack/vdifsg/internal/logging"
	"github.com/cfa-haystack/vdifsg/internal/sgfile"
	"github.com/cfa-haystack/vdifsg/internal/shard"
	"github.com/cfa-haystack/vdifsg/internal/vdiferrors"
	"golang.org/x/sync/errgroup"
)

// Mode distinguishes read and write plans.
type Mode int

const (
	// ModeRead plans reconstruct a contiguous stream from existing shards.
	ModeRead Mode = iota
	// ModeWrite plans distribute an incoming stream across shards.
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeRead {
		return "read"
	}
	return "write"
}

// Plan is the shared surface mode-agnostic tooling (logging,
// diagnostics) can use; ReadPlan and WritePlan each add mode-specific
// methods (ReadNextBlock, WriteFrames, ...) that are unrepresentable
// on the other type.
type Plan interface {
	Mode() Mode
	NumShards() int
	Shards() []*shard.Shard
	Close() error
}

// Config is the shared construction input for both plan modes: a
// filename pattern substituted for the template's %s verb, a path
// template with two %d verbs (module, disk) and one %s verb, and the
// module/disk identifier lists to fan out over.
type Config struct {
	Pattern  string
	Template string
	Modules  []int
	Disks    []int
	Logger   *logging.Logger

	// Observer receives per-operation counters and latencies from both
	// pipelines. Defaults to vdifsg.NoOpObserver{} when nil.
	Observer vdifsg.Observer
}

func (c Config) observer() vdifsg.Observer {
	if c.Observer != nil {
		return c.Observer
	}
	return vdifsg.NoOpObserver{}
}

func (c Config) validate() error {
	if err := ValidateTemplate(c.Template); err != nil {
		return err
	}
	if len(c.Modules) == 0 || len(c.Disks) == 0 {
		return vdiferrors.New("validate", vdiferrors.CodeInvalid, "at least one module and one disk are required")
	}
	return nil
}

func (c Config) pairs() []shard.ModuleDisk {
	out := make([]shard.ModuleDisk, 0, len(c.Modules)*len(c.Disks))
	for _, m := range c.Modules {
		for _, d := range c.Disks {
			out = append(out, shard.ModuleDisk{Module: m, Disk: d})
		}
	}
	return out
}

// ReadPlan is a Plan opened over existing SG shards, sorted ascending
// by (first_secs, first_frame) immediately after construction.
type ReadPlan struct {
	mu       sync.Mutex
	shards   []*shard.Shard
	logger   *logging.Logger
	observer vdifsg.Observer
}

// WritePlan is a Plan distributing an incoming stream across
// freshly-created SG shards, round-robin by write-block.
type WritePlan struct {
	mu            sync.Mutex
	shards        []*shard.Shard
	framesWritten int64
	logger        *logging.Logger
	observer      vdifsg.Observer
}

var (
	_ Plan = (*ReadPlan)(nil)
	_ Plan = (*WritePlan)(nil)
)

func (p *ReadPlan) Mode() Mode              { return ModeRead }
func (p *ReadPlan) NumShards() int          { return len(p.shards) }
func (p *ReadPlan) Shards() []*shard.Shard  { return p.shards }

func (p *WritePlan) Mode() Mode             { return ModeWrite }
func (p *WritePlan) NumShards() int         { return len(p.shards) }
func (p *WritePlan) Shards() []*shard.Shard { return p.shards }

// NewReadPlan opens one SG file per (module, disk) pair in parallel,
// retains only those that open successfully, sorts them ascending by
// first-frame timestamp, and returns the plan plus the count opened.
// A zero count is a valid result; subsequent reads simply return zero.
func NewReadPlan(ctx context.Context, cfg Config) (*ReadPlan, int, error) {
	if err := cfg.validate(); err != nil {
		return nil, 0, err
	}
	pairs := cfg.pairs()

	type opened struct {
		sh  *shard.Shard
		ok  bool
	}
	results := make([]opened, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	for i, pd := range pairs {
		i, pd := i, pd
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := FormatPath(cfg.Template, pd.Module, pd.Disk, cfg.Pattern)
			sg, err := sgfile.Open(path)
			if err != nil {
				// OpenMissing: not every (module, disk) must exist.
				return nil
			}
			if _, err := sg.FirstTimestamp(); err != nil {
				sg.Close()
				return nil
			}
			sh := &shard.Shard{
				Path:       path,
				SG:         sg,
				PacketSize: sg.PacketSize(),
				Module:     pd.Module,
				Disk:       pd.Disk,
			}
			results[i] = opened{sh: sh, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, vdiferrors.Wrap("NewReadPlan", vdiferrors.CodeFatalSpawn, err)
	}

	var shards []*shard.Shard
	for _, r := range results {
		if r.ok {
			shards = append(shards, r.sh)
		}
	}
	sort.SliceStable(shards, func(i, j int) bool {
		ti, _ := shards[i].SG.FirstTimestamp()
		tj, _ := shards[j].SG.FirstTimestamp()
		if ti.Secs != tj.Secs {
			return ti.Secs < tj.Secs
		}
		return ti.Frame < tj.Frame
	})

	return &ReadPlan{shards: shards, logger: cfg.Logger, observer: cfg.observer()}, len(shards), nil
}

// NewWritePlan creates/truncates one SG file per (module, disk) pair
// in parallel and maps an initial region for each. Shards whose
// create or map fails are dropped from the final plan; write-mode
// shards are not time-sorted since they have no data yet.
func NewWritePlan(ctx context.Context, cfg Config) (*WritePlan, int, error) {
	if err := cfg.validate(); err != nil {
		return nil, 0, err
	}
	pairs := cfg.pairs()

	type opened struct {
		sh *shard.Shard
		ok bool
	}
	results := make([]opened, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	for i, pd := range pairs {
		i, pd := i, pd
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := FormatPath(cfg.Template, pd.Module, pd.Disk, cfg.Pattern)
			sg, err := sgfile.Create(path)
			if err != nil {
				// MmapFailure (or create failure): shard dropped, not fatal to the plan.
				return nil
			}
			results[i] = opened{sh: &shard.Shard{
				Path:   path,
				SG:     sg,
				Module: pd.Module,
				Disk:   pd.Disk,
			}, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, vdiferrors.Wrap("NewWritePlan", vdiferrors.CodeFatalSpawn, err)
	}

	var shards []*shard.Shard
	for _, r := range results {
		if r.ok {
			shards = append(shards, r.sh)
		}
	}
	return &WritePlan{shards: shards, logger: cfg.Logger, observer: cfg.observer()}, len(shards), nil
}

// Close closes every shard's SG accessor. Any remaining staging
// buffers are simply dropped (ordinary Go slices, collected by the
// GC) rather than requiring a separate free step.
func (p *ReadPlan) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, s := range p.shards {
		s.Clear()
		if s.SG != nil {
			if err := s.SG.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close finalizes every write-mode shard: shrinks its mapping to the
// exact written offset, or restores and unlinks the file if nothing
// was ever written.
func (p *WritePlan) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, s := range p.shards {
		if s.SG == nil {
			continue
		}
		if s.SG.Offset() == 0 {
			if err := s.SG.RestoreSizeAndUnlink(); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := s.SG.Finalize(); err != nil && firstErr == nil {
			firstErr = err
			continue
		}
		if err := s.SG.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReadNextBlockOn dispatches ReadNextBlock through the Plan
// interface, returning vdiferrors.ErrModeMismatch if p is not a
// ReadPlan. Callers that hold a concrete *ReadPlan should call its
// method directly instead; this exists for callers that only have
// the interface, per the design note's ModeMismatch contract.
func ReadNextBlockOn(ctx context.Context, p Plan) ([]byte, int, error) {
	rp, ok := p.(*ReadPlan)
	if !ok {
		return nil, 0, vdiferrors.ErrModeMismatch
	}
	return rp.ReadNextBlock(ctx)
}

// WriteFramesOn dispatches WriteFrames through the Plan interface,
// returning vdiferrors.ErrModeMismatch if p is not a WritePlan.
func WriteFramesOn(ctx context.Context, p Plan, buf []byte, nFrames int) (int, error) {
	wp, ok := p.(*WritePlan)
	if !ok {
		return 0, vdiferrors.ErrModeMismatch
	}
	return wp.WriteFrames(ctx, buf, nFrames)
}

// firstWrite reports whether no shard has written any blocks yet.
func (p *WritePlan) firstWrite() bool {
	for _, s := range p.shards {
		if s.BlockIndex != 0 {
			return false
		}
	}
	return true
}

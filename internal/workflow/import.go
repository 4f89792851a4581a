package workflow

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"board-tiler/internal/board"
	"board-tiler/internal/fileprocessor"
	"board-tiler/internal/geom"
	"board-tiler/internal/layout"
	"board-tiler/internal/logger"
	"board-tiler/internal/order"
	"board-tiler/internal/scheduler"
	"board-tiler/internal/slicer"
	"board-tiler/internal/ui"
	"board-tiler/internal/util"
)

// maxHoleFactor bounds how many slots numbered gaps may add, relative to the
// number of sources.
const maxHoleFactor = 4

// Source is one local image to import.
type Source struct {
	Name string
	Data []byte
}

// Placement is an accepted source and where it goes on the board.
type Placement struct {
	Name   string // file name
	Title  string // widget title, color-coded in color mode
	Image  image.Image
	Width  int // pixels
	Height int
	Rect   geom.Rect    // board rectangle of the whole source
	Plan   *slicer.Plan // nil when the source is uploaded whole
	Code   *order.ColorCode

	source int // index in the input
	data   []byte
}

// Widgets is how many board widgets the source becomes.
func (p *Placement) Widgets() int {
	if p.Plan == nil {
		return 1
	}
	return p.Plan.Count()
}

// entry adapts a Placement to order.Entry.
type entry struct{ p *Placement }

func (e entry) Name() string { return e.p.Title }

func (e entry) Center() geom.Point { return e.p.Rect.Center() }

func (e entry) Size() geom.Size { return geom.Size{W: e.p.Rect.W, H: e.p.Rect.H} }

type ImportPlan struct {
	Placements []*Placement // layout order
	Rejected   []SourceResult
	Grid       layout.Grid
	Holes      int
}

// SourceResult is the outcome of one source file.
type SourceResult struct {
	Name    string
	Widgets int // widgets planned
	Created int
	Skipped int // tiles that could not be encoded
	Err     error

	source int
}

// OK reports whether every widget of the source made it to the board.
func (s SourceResult) OK() bool {
	return s.Err == nil && s.Skipped == 0 && s.Created == s.Widgets
}

type ImportReport struct {
	Sources []SourceResult // input order
	Holes   int
	Created []*board.Item
	Failed  int // uploads failed after retries
	Upload  scheduler.Report
}

// Rejected counts sources that were not uploaded at all.
func (r ImportReport) Rejected() int {
	n := 0
	for _, s := range r.Sources {
		if s.Widgets == 0 && s.Err != nil {
			n++
		}
	}
	return n
}

// uploadTask is one widget to create.
type uploadTask struct {
	source int
	spec   board.ImageSpec
	meta   map[string]any
}

// PlanImport decodes the sources, orders them and computes their board
// rectangles around the viewport center without touching the board.
func (r *Runner) PlanImport(ctx context.Context, sources []Source) (*ImportPlan, error) {
	plan, err := r.planImport(ctx, sources)
	if err != nil {
		return plan, r.finish(ctx, "Plan", err)
	}
	return plan, nil
}

// Import uploads the sources as new widgets laid out around the viewport
// center. Oversized sources are sliced into edge-to-edge tiles. Unusable
// files and failed uploads are reported and skipped.
func (r *Runner) Import(ctx context.Context, sources []Source) (*ImportReport, error) {
	rep, err := r.importSources(ctx, sources)
	if err != nil {
		return rep, r.finish(ctx, "Import", err)
	}

	text := fmt.Sprintf("Imported %d widgets from %d of %d files", len(rep.Created), len(sources)-rep.Rejected(), len(sources))
	if n := rep.Rejected(); n > 0 {
		text += fmt.Sprintf(", %d files rejected", n)
	}
	if rep.Failed > 0 {
		text += fmt.Sprintf(", %d uploads failed", rep.Failed)
	}
	if rep.Failed > 0 || rep.Rejected() > 0 {
		r.notifyError(ctx, text+", check the console for details")
	} else {
		r.notifyInfo(ctx, text)
	}
	return rep, nil
}

func (r *Runner) importSources(ctx context.Context, sources []Source) (*ImportReport, error) {
	plan, err := r.planImport(ctx, sources)
	if err != nil {
		return nil, err
	}

	rep := &ImportReport{Sources: make([]SourceResult, len(sources)), Holes: plan.Holes}
	for i, src := range sources {
		rep.Sources[i] = SourceResult{Name: src.Name, source: i}
	}
	for _, rj := range plan.Rejected {
		rep.Sources[rj.source].Err = rj.Err
	}

	tasks, err := r.buildTasks(ctx, plan, rep)
	if err != nil {
		return rep, err
	}
	if len(tasks) == 0 {
		return rep, nil
	}

	created := make([]*board.Item, len(tasks))
	progress := r.openProgress("Uploading", len(tasks))
	eta := scheduler.NewEtaEstimator()
	sched := scheduler.New(r.sched, scheduler.WithProgress(func(p scheduler.Progress) {
		d, ok := eta.Update(p.Completed, p.Total, p.BytesDone, p.Elapsed)
		progress.Update(ui.Status{
			Text: fmt.Sprintf("%s of %s, %d in flight",
				util.FormatBytesToHumanReadable(p.BytesDone), util.FormatBytesToHumanReadable(p.BytesTotal), p.Concurrency),
			Completed: p.Completed,
			Total:     p.Total,
			ETA:       d,
			HasETA:    ok,
		})
	}))

	rep.Upload = sched.Run(ctx,
		len(tasks),
		func(i int) int64 { return int64(len(tasks[i].spec.Data)) },
		func(ctx context.Context, i int) scheduler.Outcome {
			t := tasks[i]
			var it *board.Item
			retries, err := r.call(ctx, func(ctx context.Context) error {
				var err error
				it, err = r.board.CreateImage(ctx, t.spec)
				return err
			})
			if err != nil {
				return scheduler.Outcome{Retries: retries, Err: fmt.Errorf("create %s: %w", t.spec.Filename, err)}
			}
			created[i] = it
			r.setMetadata(ctx, it, t.meta)
			return scheduler.Outcome{Retries: retries}
		},
	)
	progress.Done()

	for i, t := range tasks {
		src := &rep.Sources[t.source]
		if created[i] == nil {
			if src.Err == nil {
				src.Err = rep.Upload.Errors[i]
			}
			continue
		}
		src.Created++
		rep.Created = append(rep.Created, created[i])
	}
	rep.Failed = rep.Upload.Failed

	logger.Info.Printf("Upload finished in %s: %d created, %d failed, %d retries, concurrency %v",
		rep.Upload.Elapsed.Round(time.Millisecond), rep.Upload.Succeeded, rep.Upload.Failed, rep.Upload.Retries, rep.Upload.History)
	r.zoomTo(ctx, rep.Created)

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}

func (r *Runner) planImport(ctx context.Context, sources []Source) (*ImportPlan, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: choose at least one image file", ErrNoItems)
	}

	plan := &ImportPlan{}
	prepared := make([]*Placement, 0, len(sources))
	progress := r.openProgress("Preparing", len(sources))
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			progress.Done()
			return nil, err
		}
		p, err := r.prepare(src)
		if err != nil {
			logger.Warn.Printf("Skipping %s: %v", src.Name, err)
			plan.Rejected = append(plan.Rejected, SourceResult{Name: src.Name, Err: err, source: i})
		} else {
			p.source = i
			prepared = append(prepared, p)
		}
		progress.Update(ui.Status{Text: src.Name, Completed: i + 1, Total: len(sources)})
	}
	progress.Done()

	if len(prepared) == 0 {
		return plan, fmt.Errorf("%w: none of the %d files could be read", ErrNoItems, len(sources))
	}

	slots := r.withHoles(r.orderPlacements(prepared))

	sizes := make([]geom.Size, len(slots))
	for i, p := range slots {
		if p == nil {
			plan.Holes++
			continue
		}
		sizes[i] = geom.Size{W: float64(p.Width) * r.opts.Scale, H: float64(p.Height) * r.opts.Scale}
	}
	sizes = layout.NormalizeSizes(sizes, r.opts.Layout.SizeMode)

	vp, err := r.board.Viewport(ctx)
	if err != nil {
		return plan, fmt.Errorf("read viewport: %w", err)
	}
	plan.Grid = layout.Compute(sizes, r.opts.Layout)
	centers := plan.Grid.Place(layout.CenteredOn(vp.Center(), plan.Grid))
	for i, p := range slots {
		if p == nil {
			continue
		}
		p.Rect = geom.RectAround(centers[i], sizes[i])
		plan.Placements = append(plan.Placements, p)
	}

	logger.Info.Printf("Planned %d sources (%d rejected, %d gaps) in %d rows, %.0fx%.0f board units",
		len(plan.Placements), len(plan.Rejected), plan.Holes, plan.Grid.Rows, plan.Grid.Width, plan.Grid.Height)
	return plan, nil
}

// prepare decodes a source and decides whether it is sliced.
func (r *Runner) prepare(src Source) (*Placement, error) {
	w, h, err := fileprocessor.Dimensions(src.Data)
	if err != nil {
		return nil, err
	}
	// reject oversized sources before paying for the decode
	if _, err := r.slicer.Plan(w, h); err != nil {
		return nil, err
	}

	img, err := fileprocessor.Decode(src.Data)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	p := &Placement{
		Name:   src.Name,
		Title:  util.TrimExt(util.SafeBase(src.Name)),
		Image:  img,
		Width:  b.Dx(),
		Height: b.Dy(),
		data:   src.Data,
	}
	if r.slicer.NeedsSlicing(p.Width, p.Height) {
		sp, err := r.slicer.Plan(p.Width, p.Height)
		if err != nil {
			return nil, err
		}
		p.Plan = &sp
		logger.Debug.Printf("%s is %dx%d, slicing into %s", src.Name, p.Width, p.Height, sp)
	}
	if r.opts.Sort == SortColor {
		code := r.classifier.Classify(img)
		p.Code = &code
		p.Title = order.FormatColorTitle(code, p.Title)
	}
	return p, nil
}

func (r *Runner) orderPlacements(ps []*Placement) []*Placement {
	es := make([]entry, len(ps))
	for i, p := range ps {
		es[i] = entry{p: p}
	}
	if r.opts.Sort == SortColor {
		es = order.ByColor(es, r.classifier.GrayThreshold())
	} else {
		es = order.ByNumber(es)
	}
	out := make([]*Placement, len(es))
	for i, e := range es {
		out[i] = e.p
	}
	return out
}

// withHoles inserts a nil slot for every number missing between the lowest
// and highest trailing number, unless missing tiles are skipped. Unnumbered
// sources follow the numbered ones unchanged.
func (r *Runner) withHoles(ordered []*Placement) []*Placement {
	if r.opts.SkipMissingTiles || r.opts.Sort != SortNumber {
		return ordered
	}

	keyed := 0
	var lo, hi int64
	for _, p := range ordered {
		n, ok := order.ExtractTrailingNumber(p.Title)
		if !ok {
			break
		}
		if keyed == 0 {
			lo = n
		}
		hi = n
		keyed++
	}
	if keyed == 0 {
		return ordered
	}
	if hi-lo >= int64(maxHoleFactor*len(ordered)) {
		logger.Warn.Printf("Numbers %d..%d are too sparse for %d files, gaps are not kept", lo, hi, len(ordered))
		return ordered
	}

	out := make([]*Placement, 0, int(hi-lo)+1+len(ordered)-keyed)
	next := lo
	for _, p := range ordered[:keyed] {
		n, _ := order.ExtractTrailingNumber(p.Title)
		for ; next < n; next++ {
			out = append(out, nil)
		}
		if n >= next {
			next = n + 1
		}
		out = append(out, p)
	}
	return append(out, ordered[keyed:]...)
}

// buildTasks encodes every placement into upload tasks in layout order.
// Tiles that fail to encode are recorded on their source and skipped.
func (r *Runner) buildTasks(ctx context.Context, plan *ImportPlan, rep *ImportReport) ([]uploadTask, error) {
	var tasks []uploadTask
	progress := r.openProgress("Encoding", len(plan.Placements))
	defer progress.Done()

	for n, p := range plan.Placements {
		src := &rep.Sources[p.source]
		src.Widgets = p.Widgets()

		ts, skipped, err := r.encodePlacement(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn.Printf("Skipping %s: %v", p.Name, err)
			src.Err = err
			src.Widgets = 0
			continue
		}
		src.Skipped = skipped

		tasks = append(tasks, ts...)
		progress.Update(ui.Status{Text: p.Name, Completed: n + 1, Total: len(plan.Placements)})
	}
	return tasks, nil
}

func (r *Runner) encodePlacement(ctx context.Context, p *Placement) ([]uploadTask, int, error) {
	base := util.TrimExt(util.SafeBase(p.Name))
	meta := map[string]any{"source": p.Name}
	if p.Code != nil {
		meta["color"] = colorMetadata(*p.Code)
	}

	if p.Plan == nil {
		data, filename := p.data, util.SafeBase(p.Name)
		if !r.slicer.WithinTarget(len(data)) {
			enc, err := r.slicer.Encode(p.Image)
			if err != nil {
				return nil, 0, err
			}
			data, filename = enc.Data, base+".jpg"
		}
		return []uploadTask{{
			source: p.source,
			spec: board.ImageSpec{
				Data:     data,
				Filename: filename,
				Title:    p.Title,
				Center:   p.Rect.Center(),
				Width:    p.Rect.W,
			},
			meta: meta,
		}}, 0, nil
	}

	tiles, err := r.slicer.SliceAndEncode(ctx, p.Image, *p.Plan)
	if err != nil {
		return nil, 0, err
	}
	scale := p.Rect.W / float64(p.Width)
	centers := slicer.PlanMosaic(*p.Plan, p.Rect.Center(), scale)

	var (
		out     []uploadTask
		skipped int
	)
	for i, t := range tiles {
		if t.Err != nil {
			skipped++
			continue
		}
		tm := map[string]any{
			"source": p.Name,
			"col":    t.Col,
			"row":    t.Row,
			"tilesX": p.Plan.TilesX,
			"tilesY": p.Plan.TilesY,
		}
		if c, ok := meta["color"]; ok {
			tm["color"] = c
		}
		out = append(out, uploadTask{
			source: p.source,
			spec: board.ImageSpec{
				Data:     t.Data,
				Filename: fmt.Sprintf("%s_r%d_c%d.jpg", base, t.Row, t.Col),
				Title:    p.Title,
				Center:   centers[i],
				Width:    float64(t.Rect.Dx()) * scale,
			},
			meta: tm,
		})
	}
	return out, skipped, nil
}

// RenderPreview draws the planned layout into a JPEG of at most maxEdge
// pixels on its longest side.
func (plan *ImportPlan) RenderPreview(w io.Writer, maxEdge int) error {
	items := make([]slicer.PreviewItem, 0, len(plan.Placements))
	for _, p := range plan.Placements {
		items = append(items, slicer.PreviewItem{Image: p.Image, Rect: p.Rect})
	}
	return slicer.RenderPreview(w, items, maxEdge)
}

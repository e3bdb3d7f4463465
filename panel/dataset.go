package panel

import (
	"math"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrSchema is wrapped by every validation failure raised while building a Dataset.
	ErrSchema = errors.New("panel: schema error")
	// ErrLookup is wrapped by failed queries against a built Dataset.
	ErrLookup = errors.New("panel: lookup error")
)

// Options holds the optional inputs of New.
type Options struct {
	Exogenous *Table // temporal covariates, one row per target row
	Static    *Table // one row per entity
	Mask      *Table // sample_mask and optional available_mask

	// DsInTest and IsTest drive DefaultMask when Mask is nil.
	DsInTest int
	IsTest   bool

	// FutureColumns lists the channels known ahead of time.
	FutureColumns []string

	Logger *zap.Logger
}

// Dataset is a left-padded panel tensor built from long-format tables.
// It is immutable once built and safe for concurrent readers.
type Dataset struct {
	// tensor is laid out [entity][channel][time].
	tensor  []float64
	lengths []int
	maxLen  int

	entities []string
	times    [][]time.Time

	channels   []string
	nx         int
	static     []float64
	staticCols []string

	futureCols []string
	futureIdx  []int

	frequency string
}

// New validates the input tables and builds the panel tensor.
func New(target *Table, opts *Options) (*Dataset, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := checkKeyed("target", target); err != nil {
		return nil, err
	}
	if target.Len() == 0 {
		return nil, errors.Wrap(ErrSchema, "target table is empty")
	}
	if !target.HasColumn(TargetColumn) {
		return nil, errors.Wrapf(ErrSchema, "target table is missing column %q", TargetColumn)
	}

	exog := opts.Exogenous
	nx := 0
	if exog != nil {
		if err := checkKeyed("exogenous", exog); err != nil {
			return nil, err
		}
		if exog.Len() != target.Len() {
			return nil, errors.Wrapf(ErrSchema, "exogenous table has %d rows, target table has %d", exog.Len(), target.Len())
		}
		nx = len(exog.Columns)
	} else {
		exog = &Table{IDs: target.IDs, Times: target.Times}
	}

	mask, err := resolveMask(target, opts)
	if err != nil {
		return nil, err
	}

	static := opts.Static
	if static != nil {
		if err := checkColumns("static", static); err != nil {
			return nil, err
		}
	} else {
		static = NewStaticTable(distinct(target.IDs))
	}

	// Sort everything by key, then insist the key sequences agree exactly.
	y := target.take(sortOrder(target))
	x := exog.take(sortOrder(exog))
	m := mask.take(sortOrder(mask))
	if err := checkStrictlyIncreasing(y); err != nil {
		return nil, err
	}
	if err := alignKeys("exogenous", y, x); err != nil {
		return nil, err
	}
	if err := alignKeys("mask", y, m); err != nil {
		return nil, err
	}

	channels, wide, err := widen(y, x, m)
	if err != nil {
		return nil, err
	}

	d := &Dataset{
		channels:   channels,
		nx:         nx,
		staticCols: static.ColumnNames(),
	}
	d.group(y, wide)
	if err := d.attachStatic(static.take(sortOrder(static))); err != nil {
		return nil, err
	}

	d.frequency = InferFrequency(d.times[0])

	for _, col := range opts.FutureColumns {
		idx, ok := d.ChannelIndex(col)
		if !ok {
			return nil, errors.Wrapf(ErrSchema, "future column %q is not a temporal channel", col)
		}
		d.futureCols = append(d.futureCols, col)
		d.futureIdx = append(d.futureIdx, idx)
	}

	logSummary(logger, d, m)
	return d, nil
}

// resolveMask validates a caller mask or derives the default one. The result
// always carries available_mask and sample_mask, in that order.
func resolveMask(target *Table, opts *Options) (*Table, error) {
	if opts.Mask == nil {
		mask, err := DefaultMask(target, opts.DsInTest, opts.IsTest)
		if err != nil {
			return nil, err
		}
		sample, _ := mask.Column(SampleMaskColumn)
		available, _ := mask.Column(AvailableMaskColumn)
		return &Table{
			IDs:     mask.IDs,
			Times:   mask.Times,
			Columns: []Column{{AvailableMaskColumn, available}, {SampleMaskColumn, sample}},
		}, nil
	}

	mask := opts.Mask
	if err := checkKeyed("mask", mask); err != nil {
		return nil, err
	}
	if mask.Len() != target.Len() {
		return nil, errors.Wrapf(ErrSchema, "mask table has %d rows, target table has %d", mask.Len(), target.Len())
	}
	sample, ok := mask.Column(SampleMaskColumn)
	if !ok {
		return nil, errors.Wrapf(ErrSchema, "mask table is missing column %q", SampleMaskColumn)
	}
	available, ok := mask.Column(AvailableMaskColumn)
	if !ok {
		available = make([]float64, mask.Len())
		for i := range available {
			available[i] = 1
		}
	}
	if hasNaN(available) {
		return nil, errors.Wrapf(ErrSchema, "mask column %q has missing values", AvailableMaskColumn)
	}
	if hasNaN(sample) {
		return nil, errors.Wrapf(ErrSchema, "mask column %q has missing values", SampleMaskColumn)
	}
	return &Table{
		IDs:     mask.IDs,
		Times:   mask.Times,
		Columns: []Column{{AvailableMaskColumn, available}, {SampleMaskColumn, sample}},
	}, nil
}

// widen concatenates the sorted target, exogenous and mask columns.
// The target column always comes first.
func widen(y, x, m *Table) ([]string, [][]float64, error) {
	var channels []string
	var wide [][]float64
	seen := make(map[string]string)
	add := func(table string, c Column) error {
		if prev, ok := seen[c.Name]; ok {
			return errors.Wrapf(ErrSchema, "column %q appears in both %s and %s tables", c.Name, prev, table)
		}
		seen[c.Name] = table
		channels = append(channels, c.Name)
		wide = append(wide, c.Values)
		return nil
	}

	target, _ := y.Column(TargetColumn)
	if err := add("target", Column{TargetColumn, target}); err != nil {
		return nil, nil, err
	}
	for _, c := range y.Columns {
		if c.Name == TargetColumn {
			continue
		}
		if err := add("target", c); err != nil {
			return nil, nil, err
		}
	}
	for _, c := range x.Columns {
		if err := add("exogenous", c); err != nil {
			return nil, nil, err
		}
	}
	for _, c := range m.Columns {
		if err := add("mask", c); err != nil {
			return nil, nil, err
		}
	}
	return channels, wide, nil
}

// group splits the wide sorted rows by entity and lays them out right-aligned.
func (d *Dataset) group(y *Table, wide [][]float64) {
	type span struct{ start, end int }
	var spans []span
	for start := 0; start < y.Len(); {
		end := start + 1
		for end < y.Len() && y.IDs[end] == y.IDs[start] {
			end++
		}
		spans = append(spans, span{start, end})
		d.entities = append(d.entities, y.IDs[start])
		if n := end - start; n > d.maxLen {
			d.maxLen = n
		}
		start = end
	}

	nc := len(d.channels)
	d.tensor = make([]float64, len(spans)*nc*d.maxLen)
	d.lengths = make([]int, len(spans))
	d.times = make([][]time.Time, len(spans))
	for e, s := range spans {
		n := s.end - s.start
		d.lengths[e] = n
		d.times[e] = append([]time.Time(nil), y.Times[s.start:s.end]...)
		offset := d.maxLen - n
		for c := 0; c < nc; c++ {
			row := d.tensor[(e*nc+c)*d.maxLen : (e*nc+c+1)*d.maxLen]
			copy(row[offset:], wide[c][s.start:s.end])
		}
	}
}

// attachStatic stacks the sorted static rows in entity order.
func (d *Dataset) attachStatic(s *Table) error {
	rows := make(map[string]int, s.Len())
	for r, id := range s.IDs {
		if _, dup := rows[id]; dup {
			return errors.Wrapf(ErrSchema, "static table has more than one row for entity %q", id)
		}
		rows[id] = r
	}

	var missing []string
	for _, id := range d.entities {
		if _, ok := rows[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrSchema, "static table has no row for entities %s", strings.Join(missing, ", "))
	}
	if len(rows) != len(d.entities) {
		var extra []string
		for _, id := range s.IDs {
			if _, ok := d.EntityIndex(id); !ok {
				extra = append(extra, id)
			}
		}
		return errors.Wrapf(ErrSchema, "static table has entities absent from target: %s", strings.Join(extra, ", "))
	}

	ns := len(s.Columns)
	d.static = make([]float64, len(d.entities)*ns)
	for e, id := range d.entities {
		r := rows[id]
		for j, c := range s.Columns {
			d.static[e*ns+j] = c.Values[r]
		}
	}
	return nil
}

// NSeries returns the number of entities.
func (d *Dataset) NSeries() int { return len(d.entities) }

// MaxLen returns the longest series length, i.e. the tensor time axis.
func (d *Dataset) MaxLen() int { return d.maxLen }

// NChannels returns the number of temporal channels, masks included.
func (d *Dataset) NChannels() int { return len(d.channels) }

// NX returns the number of exogenous columns.
func (d *Dataset) NX() int { return d.nx }

// NS returns the number of static attributes.
func (d *Dataset) NS() int { return len(d.staticCols) }

// Frequency returns the inferred calendar frequency label, or "".
func (d *Dataset) Frequency() string { return d.frequency }

// Channels returns the channel names in tensor order.
func (d *Dataset) Channels() []string { return append([]string(nil), d.channels...) }

// StaticColumns returns the static attribute names in matrix order.
func (d *Dataset) StaticColumns() []string { return append([]string(nil), d.staticCols...) }

// FutureColumns returns the declared future covariates.
func (d *Dataset) FutureColumns() []string { return append([]string(nil), d.futureCols...) }

// Entities returns the entity ids in tensor order.
func (d *Dataset) Entities() []string { return append([]string(nil), d.entities...) }

// Entity returns the id of entity e.
func (d *Dataset) Entity(e int) string { return d.entities[e] }

// EntityIndex returns the tensor position of id.
func (d *Dataset) EntityIndex(id string) (int, bool) {
	// entities are sorted
	lo, hi := 0, len(d.entities)
	for lo < hi {
		mid := (lo + hi) / 2
		if d.entities[mid] < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(d.entities) && d.entities[lo] == id {
		return lo, true
	}
	return -1, false
}

// ChannelIndex returns the tensor position of a channel.
func (d *Dataset) ChannelIndex(name string) (int, bool) {
	for i, c := range d.channels {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Length returns the unpadded length of entity e.
func (d *Dataset) Length(e int) int { return d.lengths[e] }

// Lengths returns the unpadded length of every entity.
func (d *Dataset) Lengths() []int { return append([]int(nil), d.lengths...) }

// Times returns the sorted timestamps of entity e.
func (d *Dataset) Times(e int) []time.Time { return append([]time.Time(nil), d.times[e]...) }

// At returns the tensor value at (entity, channel, time).
func (d *Dataset) At(e, c, t int) float64 {
	return d.tensor[(e*len(d.channels)+c)*d.maxLen+t]
}

// Static returns the static attributes of entity e.
func (d *Dataset) Static(e int) []float64 {
	ns := len(d.staticCols)
	return append([]float64(nil), d.static[e*ns:(e+1)*ns]...)
}

// StaticMatrix returns the static attributes, one row per entity.
func (d *Dataset) StaticMatrix() [][]float64 {
	out := make([][]float64, len(d.entities))
	for e := range out {
		out[e] = d.Static(e)
	}
	return out
}

// TrainMask returns available_mask * sample_mask laid out [entity][time].
// Padding slots are zero.
func (d *Dataset) TrainMask() []float64 {
	ai, _ := d.ChannelIndex(AvailableMaskColumn)
	si, _ := d.ChannelIndex(SampleMaskColumn)
	out := make([]float64, len(d.entities)*d.maxLen)
	for e := range d.entities {
		for t := 0; t < d.maxLen; t++ {
			out[e*d.maxLen+t] = d.At(e, ai, t) * d.At(e, si, t)
		}
	}
	return out
}

// FutureIndices maps declared future covariates to channel indices.
func (d *Dataset) FutureIndices(cols []string) ([]int, error) {
	var missing []string
	idxs := make([]int, 0, len(cols))
	for _, col := range cols {
		found := false
		for i, f := range d.futureCols {
			if f == col {
				idxs = append(idxs, d.futureIdx[i])
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Wrapf(ErrLookup, "columns %s are not declared future covariates", strings.Join(missing, ", "))
	}
	return idxs, nil
}

func checkColumns(name string, t *Table) error {
	if t == nil {
		return errors.Wrapf(ErrSchema, "%s table is nil", name)
	}
	for _, c := range t.Columns {
		if len(c.Values) != t.Len() {
			return errors.Wrapf(ErrSchema, "%s column %q has %d values for %d rows", name, c.Name, len(c.Values), t.Len())
		}
	}
	return nil
}

func checkKeyed(name string, t *Table) error {
	if err := checkColumns(name, t); err != nil {
		return err
	}
	if t.IDs == nil {
		return errors.Wrapf(ErrSchema, "%s table is missing column %q", name, IDColumn)
	}
	if t.Times == nil {
		return errors.Wrapf(ErrSchema, "%s table is missing column %q", name, TimeColumn)
	}
	if len(t.Times) != len(t.IDs) {
		return errors.Wrapf(ErrSchema, "%s table has %d %q values for %d rows", name, len(t.Times), TimeColumn, len(t.IDs))
	}
	return nil
}

func checkStrictlyIncreasing(y *Table) error {
	for i := 1; i < y.Len(); i++ {
		if y.IDs[i] == y.IDs[i-1] && !y.Times[i].After(y.Times[i-1]) {
			return errors.Wrapf(ErrSchema, "target table repeats timestamp %s for entity %q", y.Times[i].Format(time.RFC3339), y.IDs[i])
		}
	}
	return nil
}

func alignKeys(name string, y, other *Table) error {
	for i := 0; i < y.Len(); i++ {
		if y.IDs[i] != other.IDs[i] {
			return errors.Wrapf(ErrSchema, "mismatch in %s and target %s at row %d: %q != %q", name, IDColumn, i, other.IDs[i], y.IDs[i])
		}
		if !y.Times[i].Equal(other.Times[i]) {
			return errors.Wrapf(ErrSchema, "mismatch in %s and target %s for entity %q: %s != %s", name, TimeColumn, y.IDs[i],
				other.Times[i].Format(time.RFC3339), y.Times[i].Format(time.RFC3339))
		}
	}
	return nil
}

func distinct(ids []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func logSummary(logger *zap.Logger, d *Dataset, m *Table) {
	available, _ := m.Column(AvailableMaskColumn)
	sample, _ := m.Column(SampleMaskColumn)
	n := float64(m.Len())
	var avl, ins float64
	for i := range available {
		avl += available[i]
		ins += sample[i]
	}
	pct := func(v float64) float64 { return math.Round(10000*v/n) / 100 }
	logger.Info("built panel dataset",
		zap.Int("entities", d.NSeries()),
		zap.String("rows", humanize.Comma(int64(m.Len()))),
		zap.Int("channels", d.NChannels()),
		zap.Int("max_len", d.maxLen),
		zap.String("frequency", d.frequency),
		zap.Float64("available_pct", pct(avl)),
		zap.Float64("insample_pct", pct(ins)),
		zap.Float64("outsample_pct", pct(n-ins)),
	)
}

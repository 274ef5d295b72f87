package datasets

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"

	"k8s.io/klog/v2"

	"github.com/textbatch/textbatch/samples"
)

// Config drives the dynamic batcher. Batches are bounded by total subword
// count rather than by sample count, so compute per batch stays roughly
// constant regardless of sequence length variance.
type Config struct {
	// TokensPerBatch is the token budget: for every batch,
	// paddedLength * batchSize <= TokensPerBatch, except for a single
	// element that alone exceeds the budget.
	TokensPerBatch int
	// MaxBatchSize optionally caps the number of elements per batch.
	// Zero means no cap.
	MaxBatchSize int
	// SectionSize is the nominal number of elements bucketed and sorted by
	// length together before batching. Only used when Prebatch is set.
	SectionSize int
	// Prebatch enables length bucketing in sections to reduce padding
	// waste.
	Prebatch bool
	// Materialize precomputes all batches once and replays them across
	// epochs. The full batch list stays resident in memory.
	Materialize bool
	// MinLength and MaxLength filter elements by subword count before
	// batching. MaxLength <= 0 falls back to the tokenizer maximum.
	MinLength int
	MaxLength int
	// NoiseFraction perturbs each section size by a uniform fraction of
	// SectionSize, so training batches are not perfectly sorted by length.
	NoiseFraction float64
	// Seed makes bucketing noise reproducible.
	Seed int64
}

func (c *Config) Validate() error {
	var validationErrors []error
	if c.TokensPerBatch <= 0 {
		validationErrors = append(validationErrors, fmt.Errorf("tokens per batch must be positive, got %d", c.TokensPerBatch))
	}
	if c.Prebatch && c.SectionSize <= 0 {
		validationErrors = append(validationErrors, fmt.Errorf("section size must be positive when prebatching, got %d", c.SectionSize))
	}
	if c.NoiseFraction < 0 || c.NoiseFraction >= 1 {
		validationErrors = append(validationErrors, fmt.Errorf("noise fraction must be in [0, 1), got %f", c.NoiseFraction))
	}
	if c.MinLength < 0 {
		validationErrors = append(validationErrors, fmt.Errorf("min length cannot be negative, got %d", c.MinLength))
	}
	if c.MaxLength > 0 && c.MaxLength < c.MinLength {
		validationErrors = append(validationErrors, fmt.Errorf("max length %d is smaller than min length %d", c.MaxLength, c.MinLength))
	}
	return errors.Join(validationErrors...)
}

// Stats counts what the dataset has processed since construction.
type Stats struct {
	// Elements successfully normalized.
	Elements int
	// Skipped samples that failed normalization.
	Skipped int
	// Filtered elements dropped by the length thresholds.
	Filtered int
	// Batches yielded (first materialization pass included).
	Batches int
}

type normalizeFunc func(samples.Sample) (*Element, error)

// Dataset turns a stream of samples into a stream of collated batches. It
// is the base embedded by the per-task datasets. Yield returns io.EOF when
// the current pass is exhausted; Reset starts the next pass.
//
// A Dataset is not safe for concurrent use; normalization is purely
// functional per sample, so callers wanting parallelism run one Dataset per
// disjoint partition of the input.
type Dataset struct {
	source    samples.Iterator
	normalize normalizeFunc
	collator  *Collator
	config    Config
	rng       *rand.Rand

	ready      []*Batch
	carry      *Element
	sourceDone bool

	materialized     []*Batch
	materializedDone bool
	batchN           int

	stats Stats
}

func newDataset(source samples.Iterator, normalize normalizeFunc, collator *Collator, config Config) (*Dataset, error) {
	if source == nil {
		return nil, fmt.Errorf("a sample iterator is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Dataset{
		source:    source,
		normalize: normalize,
		collator:  collator,
		config:    config,
		rng:       rand.New(rand.NewSource(config.Seed)),
	}, nil
}

// Collator exposes the field collation table of the dataset.
func (d *Dataset) Collator() *Collator { return d.collator }

// Stats returns processing counters for the dataset.
func (d *Dataset) Stats() Stats { return d.stats }

// Yield returns the next batch, or io.EOF when the pass is over.
func (d *Dataset) Yield() (*Batch, error) {
	if d.config.Materialize {
		if !d.materializedDone {
			if err := d.materializeBatches(); err != nil {
				return nil, err
			}
		}
		if d.batchN >= len(d.materialized) {
			return nil, io.EOF
		}
		batch := d.materialized[d.batchN]
		d.batchN++
		return batch, nil
	}
	return d.nextBatch()
}

// Reset rewinds the dataset for another epoch. In materialized mode the
// precomputed batches are replayed; in streaming mode the upstream sample
// iterator is rewound and the bucketing noise is re-seeded, so the same
// seed reproduces the same pass.
func (d *Dataset) Reset() error {
	d.batchN = 0
	if d.config.Materialize {
		return nil
	}
	d.ready = nil
	d.carry = nil
	d.sourceDone = false
	d.rng = rand.New(rand.NewSource(d.config.Seed))
	return d.source.Reset()
}

// Close releases the upstream sample source.
func (d *Dataset) Close() error {
	return d.source.Close()
}

func (d *Dataset) materializeBatches() error {
	for {
		batch, err := d.nextBatch()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		d.materialized = append(d.materialized, batch)
	}
	d.materializedDone = true
	return nil
}

func (d *Dataset) nextBatch() (*Batch, error) {
	for len(d.ready) == 0 {
		if d.sourceDone && d.carry == nil {
			return nil, io.EOF
		}
		var err error
		if d.config.Prebatch {
			err = d.fillFromSection()
		} else {
			err = d.fillGreedy()
		}
		if err != nil {
			return nil, err
		}
	}
	batch := d.ready[0]
	d.ready = d.ready[1:]
	d.stats.Batches++
	return batch, nil
}

// fillFromSection pulls one section of elements, sorts it by length and
// splits it into budget-bounded batches. The section size is perturbed by
// bounded noise so epoch batches are not perfectly sorted.
func (d *Dataset) fillFromSection() error {
	section := make([]*Element, 0, d.config.SectionSize)
	target := d.noisySectionSize()
	for len(section) < target {
		element, err := d.nextElement()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		section = append(section, element)
	}
	if len(section) == 0 {
		return nil
	}
	sort.SliceStable(section, func(i, j int) bool {
		return section[i].Length() < section[j].Length()
	})
	var current []*Element
	for _, element := range section {
		if len(current) > 0 && !d.fits(current, element) {
			if err := d.closeBatch(current); err != nil {
				return err
			}
			current = nil
		}
		current = append(current, element)
	}
	if len(current) > 0 {
		return d.closeBatch(current)
	}
	return nil
}

// fillGreedy accumulates one batch straight off the stream, carrying the
// overflowing element into the next batch.
func (d *Dataset) fillGreedy() error {
	var current []*Element
	if d.carry != nil {
		current = append(current, d.carry)
		d.carry = nil
	}
	for {
		element, err := d.nextElement()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(current) > 0 && !d.fits(current, element) {
			d.carry = element
			break
		}
		current = append(current, element)
	}
	if len(current) == 0 {
		return nil
	}
	return d.closeBatch(current)
}

// fits reports whether adding candidate to current keeps the batch within
// the token budget and the optional sample cap. A batch of one is always
// allowed, even over budget.
func (d *Dataset) fits(current []*Element, candidate *Element) bool {
	if d.config.MaxBatchSize > 0 && len(current) >= d.config.MaxBatchSize {
		return false
	}
	maxLength := candidate.Length()
	for _, element := range current {
		if element.Length() > maxLength {
			maxLength = element.Length()
		}
	}
	return maxLength*(len(current)+1) <= d.config.TokensPerBatch
}

func (d *Dataset) closeBatch(elements []*Element) error {
	batch, err := d.collator.Collate(elements)
	if err != nil {
		return err
	}
	d.ready = append(d.ready, batch)
	return nil
}

// nextElement normalizes samples until one survives. Per-sample failures
// are logged and skipped; they never abort the batch stream.
func (d *Dataset) nextElement() (*Element, error) {
	for {
		sample, err := d.source.Next()
		if err == io.EOF {
			d.sourceDone = true
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		element, normErr := d.normalize(sample)
		if normErr != nil {
			d.stats.Skipped++
			klog.Warningf("skipping sample: %v", normErr)
			continue
		}
		length := element.Length()
		if length < d.config.MinLength || (d.config.MaxLength > 0 && length > d.config.MaxLength) {
			d.stats.Filtered++
			continue
		}
		d.stats.Elements++
		return element, nil
	}
}

func (d *Dataset) noisySectionSize() int {
	size := d.config.SectionSize
	if d.config.NoiseFraction > 0 {
		noise := float64(size) * d.config.NoiseFraction
		size += int((d.rng.Float64()*2 - 1) * noise)
	}
	if size < 1 {
		return 1
	}
	return size
}

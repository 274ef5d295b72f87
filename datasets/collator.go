package datasets

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/textbatch/textbatch/samples"
	"github.com/textbatch/textbatch/util/safeconv"
)

// FieldRole is the semantic role of a field, which decides how the collator
// turns a list of per-element values into one tensor. The role table is
// fixed per task at dataset construction time; an unregistered field name
// reaching the collator is a programming error that aborts the run.
type FieldRole int

const (
	// RoleTokenIDs right-pads with the tokenizer pad id.
	RoleTokenIDs FieldRole = iota
	// RoleMask right-pads with 0.
	RoleMask
	// RoleTypeIDs right-pads with 0.
	RoleTypeIDs
	// RoleTokenLabels right-pads with LabelIgnoreIndex so loss computation
	// skips padding positions.
	RoleTokenLabels
	// RoleScalar stacks single values into a 1-D tensor, no padding.
	RoleScalar
)

func (r FieldRole) String() string {
	switch r {
	case RoleTokenIDs:
		return "token-ids"
	case RoleMask:
		return "mask"
	case RoleTypeIDs:
		return "type-ids"
	case RoleTokenLabels:
		return "token-labels"
	case RoleScalar:
		return "scalar"
	}
	return "unknown"
}

// Batch is a collated group of elements. Every tensor in Fields has the
// element count as its leading dimension; sequence fields are right-padded
// to the longest value of that field in the batch. TokenOffsets, Word2Chars
// and Samples stay ordered lists and are never turned into tensors.
type Batch struct {
	Fields       map[string]tensor.Tensor
	TokenOffsets [][][2]int
	Word2Chars   [][][2]uint
	Samples      []samples.Sample
	Size         int
	// MaxLength is the padded subword length of the batch.
	MaxLength int
}

// Collator pads and stacks element fields into tensors according to a fixed
// field-name -> role table.
type Collator struct {
	roles map[string]FieldRole
	padID int64
}

func NewCollator(padID uint32, roles map[string]FieldRole) *Collator {
	return &Collator{roles: roles, padID: int64(padID)}
}

// Collate builds a Batch from elements. A field defined by only part of the
// batch is omitted from the tensors rather than silently zero-filled; the
// per-sample back-references let callers recover which elements carried it.
func (c *Collator) Collate(elements []*Element) (*Batch, error) {
	if len(elements) == 0 {
		return nil, fmt.Errorf("cannot collate an empty batch")
	}
	batch := &Batch{
		Fields:       map[string]tensor.Tensor{},
		TokenOffsets: make([][][2]int, len(elements)),
		Word2Chars:   make([][][2]uint, len(elements)),
		Samples:      make([]samples.Sample, len(elements)),
		Size:         len(elements),
	}
	present := map[string]int{}
	for i, element := range elements {
		batch.TokenOffsets[i] = element.TokenOffsets
		batch.Word2Chars[i] = element.Word2Chars
		batch.Samples[i] = element.Sample
		if length := element.Length(); length > batch.MaxLength {
			batch.MaxLength = length
		}
		for name := range element.Fields {
			present[name]++
		}
	}
	for name, count := range present {
		role, ok := c.roles[name]
		if !ok {
			return nil, fmt.Errorf("no collation strategy registered for field %q", name)
		}
		if count < len(elements) {
			// partially-defined fields are dropped for the batch, e.g. QA
			// gold spans that fell outside the tokenized context
			continue
		}
		collated, err := c.collateField(name, role, elements)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		batch.Fields[name] = collated
	}
	return batch, nil
}

func (c *Collator) collateField(name string, role FieldRole, elements []*Element) (tensor.Tensor, error) {
	switch role {
	case RoleTokenIDs:
		return padUint32(elements, name, safeconv.Int64ToUint32(c.padID)), nil
	case RoleMask, RoleTypeIDs:
		return padUint32(elements, name, 0), nil
	case RoleTokenLabels:
		return padInt64(elements, name, LabelIgnoreIndex), nil
	case RoleScalar:
		backing := make([]int64, len(elements))
		for i, element := range elements {
			values := element.Fields[name]
			if len(values) != 1 {
				return nil, fmt.Errorf("expected a single value, got %d", len(values))
			}
			backing[i] = values[0]
		}
		return tensor.New(
			tensor.Of(tensor.Int64),
			tensor.WithShape(len(elements)),
			tensor.WithBacking(backing),
		), nil
	}
	return nil, fmt.Errorf("field role %s not recognized", role)
}

func padUint32(elements []*Element, name string, padValue uint32) tensor.Tensor {
	width := fieldWidth(elements, name)
	backing := make([]uint32, len(elements)*width)
	counter := 0
	for _, element := range elements {
		values := element.Fields[name]
		for j := 0; j < width; j++ {
			if j < len(values) {
				backing[counter] = safeconv.Int64ToUint32(values[j])
			} else {
				backing[counter] = padValue
			}
			counter++
		}
	}
	return tensor.New(
		tensor.Of(tensor.Uint32),
		tensor.WithShape(len(elements), width),
		tensor.WithBacking(backing),
	)
}

func padInt64(elements []*Element, name string, padValue int64) tensor.Tensor {
	width := fieldWidth(elements, name)
	backing := make([]int64, len(elements)*width)
	counter := 0
	for _, element := range elements {
		values := element.Fields[name]
		for j := 0; j < width; j++ {
			if j < len(values) {
				backing[counter] = values[j]
			} else {
				backing[counter] = padValue
			}
			counter++
		}
	}
	return tensor.New(
		tensor.Of(tensor.Int64),
		tensor.WithShape(len(elements), width),
		tensor.WithBacking(backing),
	)
}

func fieldWidth(elements []*Element, name string) int {
	width := 0
	for _, element := range elements {
		if length := len(element.Fields[name]); length > width {
			width = length
		}
	}
	return width
}

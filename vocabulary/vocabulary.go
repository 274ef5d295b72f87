package vocabulary

import (
	"fmt"
	"io"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/textbatch/textbatch/samples"
	"github.com/textbatch/textbatch/util/fileutil"
)

// Labels is the namespace holding the labeling scheme of a task.
const Labels = "labels"

// PadToken is the reserved padding entry present in every namespace. Its
// index is used downstream to mark positions excluded from metrics.
const PadToken = "<pad>"

// UnkToken is the reserved entry for values never seen during fitting.
const UnkToken = "<unk>"

// Vocabulary is a bidirectional value<->id lookup, partitioned by namespace.
// Every namespace reserves PadToken at index 0 and UnkToken at index 1.
type Vocabulary struct {
	namespaces map[string]*namespace
}

type namespace struct {
	itos []string
	stoi map[string]int
}

func newNamespace() *namespace {
	ns := &namespace{stoi: map[string]int{}}
	ns.add(PadToken)
	ns.add(UnkToken)
	return ns
}

func (n *namespace) add(elem string) int {
	if idx, ok := n.stoi[elem]; ok {
		return idx
	}
	idx := len(n.itos)
	n.itos = append(n.itos, elem)
	n.stoi[elem] = idx
	return idx
}

func New() *Vocabulary {
	return &Vocabulary{namespaces: map[string]*namespace{}}
}

// Add inserts elem into the given namespace, creating the namespace if
// needed, and returns its index.
func (v *Vocabulary) Add(ns string, elem string) int {
	n, ok := v.namespaces[ns]
	if !ok {
		n = newNamespace()
		v.namespaces[ns] = n
	}
	return n.add(elem)
}

// GetIdx returns the index of elem in the given namespace.
func (v *Vocabulary) GetIdx(ns string, elem string) (int, bool) {
	n, ok := v.namespaces[ns]
	if !ok {
		return 0, false
	}
	idx, ok := n.stoi[elem]
	return idx, ok
}

// GetElem returns the value stored at idx in the given namespace.
func (v *Vocabulary) GetElem(ns string, idx int) (string, bool) {
	n, ok := v.namespaces[ns]
	if !ok || idx < 0 || idx >= len(n.itos) {
		return "", false
	}
	return n.itos[idx], true
}

// GetSize returns the number of entries in the given namespace, reserved
// entries included.
func (v *Vocabulary) GetSize(ns string) int {
	n, ok := v.namespaces[ns]
	if !ok {
		return 0
	}
	return len(n.itos)
}

// HasNamespace reports whether the namespace exists.
func (v *Vocabulary) HasNamespace(ns string) bool {
	_, ok := v.namespaces[ns]
	return ok
}

// PadIndex returns the index of the reserved padding entry.
func (v *Vocabulary) PadIndex(ns string) (int, bool) {
	return v.GetIdx(ns, PadToken)
}

// FromSamples fits a label vocabulary over an iterator of samples. Label
// values are inserted in first-seen order after the reserved entries, so
// fitting over the same data always produces the same mapping.
func FromSamples(it samples.Iterator) (*Vocabulary, error) {
	v := New()
	for {
		sample, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch s := sample.(type) {
		case *samples.SequenceSample:
			if s.Label != nil {
				v.Add(Labels, *s.Label)
			}
		case *samples.SentencePairSample:
			if s.Label != nil {
				v.Add(Labels, *s.Label)
			}
		case *samples.TokensSample:
			for _, label := range s.Labels {
				v.Add(Labels, label)
			}
		case *samples.QASample:
			// span extraction carries no label scheme
		default:
			return nil, fmt.Errorf("sample type %T not recognized", sample)
		}
	}
	return v, nil
}

type namespaceDump struct {
	Namespace string   `json:"namespace"`
	Elements  []string `json:"elements"`
}

// Save writes the vocabulary to a JSON file, one namespace per entry.
func (v *Vocabulary) Save(path string) error {
	dumps := make([]namespaceDump, 0, len(v.namespaces))
	for name, n := range v.namespaces {
		dumps = append(dumps, namespaceDump{Namespace: name, Elements: n.itos})
	}
	sort.Slice(dumps, func(i, j int) bool { return dumps[i].Namespace < dumps[j].Namespace })
	data, err := jsoniter.MarshalIndent(dumps, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileBytes(path, data)
}

// Load reads a vocabulary previously written with Save.
func Load(path string) (*Vocabulary, error) {
	data, err := fileutil.ReadFileBytes(path)
	if err != nil {
		return nil, err
	}
	var dumps []namespaceDump
	if err := jsoniter.Unmarshal(data, &dumps); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file %s: %w", path, err)
	}
	v := New()
	for _, dump := range dumps {
		n := &namespace{stoi: map[string]int{}}
		for _, elem := range dump.Elements {
			n.add(elem)
		}
		if _, ok := n.stoi[PadToken]; !ok {
			return nil, fmt.Errorf("namespace %s is missing the reserved %s entry", dump.Namespace, PadToken)
		}
		v.namespaces[dump.Namespace] = n
	}
	return v, nil
}

package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/textbatch/textbatch/datasets"
	"github.com/textbatch/textbatch/samples"
)

func TestParseTask(t *testing.T) {
	for name, want := range map[string]samples.Kind{
		"sequence": samples.KindSequence,
		"pair":     samples.KindSentencePair,
		"tokens":   samples.KindTokens,
		"qa":       samples.KindQA,
	} {
		kind, err := parseTask(name)
		require.NoError(t, err)
		assert.Equal(t, want, kind)
	}

	_, err := parseTask("summarization")
	assert.ErrorContains(t, err, "not recognized")
}

type fakeYielder struct {
	batches []*datasets.Batch
	cursor  int
}

func (f *fakeYielder) Yield() (*datasets.Batch, error) {
	if f.cursor >= len(f.batches) {
		return nil, io.EOF
	}
	batch := f.batches[f.cursor]
	f.cursor++
	return batch, nil
}

func (f *fakeYielder) Reset() error          { f.cursor = 0; return nil }
func (f *fakeYielder) Close() error          { return nil }
func (f *fakeYielder) Stats() datasets.Stats { return datasets.Stats{} }

func TestWriteBatchStats(t *testing.T) {
	ids := tensor.New(
		tensor.Of(tensor.Uint32),
		tensor.WithShape(2, 3),
		tensor.WithBacking([]uint32{1, 2, 3, 4, 0, 0}),
	)
	source := &fakeYielder{batches: []*datasets.Batch{{
		Fields:    map[string]tensor.Tensor{datasets.FieldInputIDs: ids},
		Size:      2,
		MaxLength: 3,
	}}}

	var out bytes.Buffer
	require.NoError(t, writeBatchStats(source, &out, 0))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)

	var stats batchStats
	require.NoError(t, jsoniter.Unmarshal([]byte(lines[0]), &stats))
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 3, stats.MaxLength)
	assert.Equal(t, 6, stats.Tokens)
	assert.Equal(t, []int{2, 3}, stats.Shape)
	assert.False(t, stats.Labeled)
}

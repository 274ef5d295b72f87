package samples

import (
	"bufio"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/textbatch/textbatch/util/fileutil"
)

// JSONLReader streams samples of a single kind from a .jsonl source, one
// JSON object per line. When constructed from a path the reader can be
// Reset to run multiple passes; when constructed from a raw stream (e.g.
// stdin) Reset returns an error.
type JSONLReader struct {
	kind       Kind
	sourcePath string
	source     io.ReadCloser
	reader     *bufio.Reader
	lineN      int
}

// NewJSONLReader opens a .jsonl file (local or remote URL supported by the
// file system abstraction) holding samples of the given kind.
func NewJSONLReader(kind Kind, path string) (*JSONLReader, error) {
	source, err := fileutil.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return &JSONLReader{
		kind:       kind,
		sourcePath: path,
		source:     source,
		reader:     bufio.NewReader(source),
	}, nil
}

// NewJSONLStreamReader reads samples of the given kind from an already-open
// stream. The resulting iterator cannot be Reset.
func NewJSONLStreamReader(kind Kind, source io.ReadCloser) *JSONLReader {
	return &JSONLReader{
		kind:   kind,
		source: source,
		reader: bufio.NewReader(source),
	}
}

func (r *JSONLReader) Next() (Sample, error) {
	lineBytes, readErr := fileutil.ReadLine(r.reader)
	if readErr != nil {
		if readErr == io.EOF && len(lineBytes) == 0 {
			return nil, io.EOF
		}
		if readErr != io.EOF {
			return nil, readErr
		}
	}
	r.lineN++
	sample, err := unmarshalSample(r.kind, lineBytes)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", r.lineN, err)
	}
	return sample, nil
}

func (r *JSONLReader) Reset() error {
	if r.sourcePath == "" {
		return fmt.Errorf("cannot reset a stream-backed sample reader")
	}
	if err := r.source.Close(); err != nil {
		return err
	}
	source, err := fileutil.OpenFile(r.sourcePath)
	if err != nil {
		return err
	}
	r.source = source
	r.reader = bufio.NewReader(source)
	r.lineN = 0
	return nil
}

func (r *JSONLReader) Close() error {
	if r.source != nil {
		return r.source.Close()
	}
	return nil
}

func unmarshalSample(kind Kind, lineBytes []byte) (Sample, error) {
	switch kind {
	case KindSequence:
		sample := &SequenceSample{}
		if err := jsoniter.Unmarshal(lineBytes, sample); err != nil {
			return nil, fmt.Errorf("failed to parse JSON line: %w", err)
		}
		return sample, nil
	case KindSentencePair:
		sample := &SentencePairSample{}
		if err := jsoniter.Unmarshal(lineBytes, sample); err != nil {
			return nil, fmt.Errorf("failed to parse JSON line: %w", err)
		}
		return sample, nil
	case KindTokens:
		sample := &TokensSample{}
		if err := jsoniter.Unmarshal(lineBytes, sample); err != nil {
			return nil, fmt.Errorf("failed to parse JSON line: %w", err)
		}
		if sample.Labels != nil && len(sample.Labels) != len(sample.Tokens) {
			return nil, fmt.Errorf("labels length %d does not match tokens length %d", len(sample.Labels), len(sample.Tokens))
		}
		return sample, nil
	case KindQA:
		sample := &QASample{}
		if err := jsoniter.Unmarshal(lineBytes, sample); err != nil {
			return nil, fmt.Errorf("failed to parse JSON line: %w", err)
		}
		return sample, nil
	}
	return nil, fmt.Errorf("sample kind %s not recognized", kind)
}

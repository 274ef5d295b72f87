package main

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/textbatch/textbatch/datasets"
	"github.com/textbatch/textbatch/samples"
	"github.com/textbatch/textbatch/tokenization"
	"github.com/textbatch/textbatch/util/fileutil"
	"github.com/textbatch/textbatch/vocabulary"
)

var inputPath string
var outputPath string
var taskName string
var tokenizerPath string
var vocabularyPath string
var tokensPerBatch int
var maxBatchSize int
var sectionSize int
var prebatch bool
var materialize bool
var minLength int
var maxLength int
var noiseFraction float64
var seed int64
var epochs int

var commonFlags = []cli.Flag{
	&cli.StringFlag{
		Name:        "input",
		Usage:       "Path to a .jsonl file with one sample per line. If omitted, samples are read from stdin.",
		Aliases:     []string{"i"},
		Destination: &inputPath,
	},
	&cli.StringFlag{
		Name:        "task",
		Usage:       "Sample variant: sequence, pair, tokens or qa",
		Aliases:     []string{"t"},
		Destination: &taskName,
		Required:    true,
	},
}

var batchCommand = &cli.Command{
	Name:  "batch",
	Usage: "Tokenize samples and group them into token-budget batches",
	Description: `Batch expects a path to a file with samples in .jsonl format, tokenizes and
normalizes them, groups them into batches bounded by total subword count and
writes one JSON line of shape statistics per batch.`,
	Flags: append(commonFlags,
		&cli.StringFlag{
			Name:        "output",
			Usage:       "Path where to write the per-batch statistics. If omitted, the output goes to stdout.",
			Aliases:     []string{"o"},
			Destination: &outputPath,
		},
		&cli.StringFlag{
			Name:        "tokenizer",
			Usage:       "Path to a tokenizer.json file",
			Destination: &tokenizerPath,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "vocabulary",
			Usage:       "Path to a fitted label vocabulary. Required for labeled tasks.",
			Destination: &vocabularyPath,
		},
		&cli.IntFlag{
			Name:        "tokens-per-batch",
			Usage:       "Token budget per batch",
			Destination: &tokensPerBatch,
			Value:       800,
		},
		&cli.IntFlag{
			Name:        "max-batch-size",
			Usage:       "Optional cap on the number of samples per batch",
			Destination: &maxBatchSize,
		},
		&cli.IntFlag{
			Name:        "section-size",
			Usage:       "Number of samples bucketed together when prebatching",
			Destination: &sectionSize,
			Value:       5000,
		},
		&cli.BoolFlag{
			Name:        "prebatch",
			Usage:       "Sort samples by length in sections before batching to reduce padding",
			Destination: &prebatch,
		},
		&cli.BoolFlag{
			Name:        "materialize",
			Usage:       "Precompute all batches once and replay them across epochs",
			Destination: &materialize,
		},
		&cli.IntFlag{
			Name:        "min-length",
			Usage:       "Drop samples shorter than this many subwords",
			Destination: &minLength,
		},
		&cli.IntFlag{
			Name:        "max-length",
			Usage:       "Drop samples longer than this many subwords. Defaults to the tokenizer maximum.",
			Destination: &maxLength,
		},
		&cli.Float64Flag{
			Name:        "noise",
			Usage:       "Fraction of the section size used as bucketing noise",
			Destination: &noiseFraction,
			Value:       0.1,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "Seed for the bucketing noise",
			Destination: &seed,
		},
		&cli.IntFlag{
			Name:        "epochs",
			Usage:       "Number of passes over the input",
			Destination: &epochs,
			Value:       1,
		},
	),
	Action: func(ctx *cli.Context) error {
		kind, err := parseTask(taskName)
		if err != nil {
			return err
		}
		source, err := openSource(kind)
		if err != nil {
			return err
		}

		tk, err := tokenization.FromFile(tokenizerPath)
		if err != nil {
			return err
		}

		var vocab *vocabulary.Vocabulary
		if vocabularyPath != "" {
			vocab, err = vocabulary.Load(vocabularyPath)
			if err != nil {
				return err
			}
		}

		config := datasets.Config{
			TokensPerBatch: tokensPerBatch,
			MaxBatchSize:   maxBatchSize,
			SectionSize:    sectionSize,
			Prebatch:       prebatch,
			Materialize:    materialize,
			MinLength:      minLength,
			MaxLength:      maxLength,
			NoiseFraction:  noiseFraction,
			Seed:           seed,
		}

		dataset, err := newDataset(kind, source, tk, vocab, config)
		if err != nil {
			return err
		}
		defer dataset.Close()

		writeTarget, err := openOutput()
		if err != nil {
			return err
		}
		defer writeTarget.Close()

		for epoch := 0; epoch < epochs; epoch++ {
			if epoch > 0 {
				if err := dataset.Reset(); err != nil {
					return err
				}
			}
			if err := writeBatchStats(dataset, writeTarget, epoch); err != nil {
				return err
			}
		}
		stats := dataset.Stats()
		fmt.Fprintf(os.Stderr, "normalized %d samples (%d skipped, %d filtered) into %d batches\n",
			stats.Elements, stats.Skipped, stats.Filtered, stats.Batches)
		return nil
	},
}

var fitCommand = &cli.Command{
	Name:  "fit-vocabulary",
	Usage: "Fit a label vocabulary over a sample file",
	Flags: append(commonFlags,
		&cli.StringFlag{
			Name:        "output",
			Usage:       "Path where to write the fitted vocabulary",
			Aliases:     []string{"o"},
			Destination: &outputPath,
			Required:    true,
		},
	),
	Action: func(ctx *cli.Context) error {
		kind, err := parseTask(taskName)
		if err != nil {
			return err
		}
		source, err := openSource(kind)
		if err != nil {
			return err
		}
		defer source.Close()

		vocab, err := vocabulary.FromSamples(source)
		if err != nil {
			return err
		}
		if err := vocab.Save(outputPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "fitted %d labels to %s\n", vocab.GetSize(vocabulary.Labels), outputPath)
		return nil
	},
}

type yielder interface {
	Yield() (*datasets.Batch, error)
	Reset() error
	Close() error
	Stats() datasets.Stats
}

func newDataset(kind samples.Kind, source samples.Iterator, tk *tokenization.Tokenizer, vocab *vocabulary.Vocabulary, config datasets.Config) (yielder, error) {
	switch kind {
	case samples.KindSequence:
		return datasets.NewSequenceDataset(source, tk, vocab, config)
	case samples.KindSentencePair:
		return datasets.NewSentencePairDataset(source, tk, vocab, config)
	case samples.KindTokens:
		return datasets.NewTokensDataset(source, tk, vocab, config)
	case samples.KindQA:
		return datasets.NewQADataset(source, tk, config)
	}
	return nil, fmt.Errorf("task %s not recognized", kind)
}

func parseTask(name string) (samples.Kind, error) {
	switch name {
	case "sequence":
		return samples.KindSequence, nil
	case "pair":
		return samples.KindSentencePair, nil
	case "tokens":
		return samples.KindTokens, nil
	case "qa":
		return samples.KindQA, nil
	}
	return 0, fmt.Errorf("task %q not recognized: use sequence, pair, tokens or qa", name)
}

func openSource(kind samples.Kind) (samples.Iterator, error) {
	if inputPath != "" {
		return samples.NewJSONLReader(kind, inputPath)
	}
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return nil, fmt.Errorf("no input file provided and stdin is a terminal")
	}
	return samples.NewJSONLStreamReader(kind, os.Stdin), nil
}

func openOutput() (io.WriteCloser, error) {
	if outputPath == "" {
		return os.Stdout, nil
	}
	return fileutil.NewFileWriter(outputPath)
}

type batchStats struct {
	Epoch     int   `json:"epoch"`
	Batch     int   `json:"batch"`
	Size      int   `json:"size"`
	MaxLength int   `json:"max_length"`
	Tokens    int   `json:"tokens"`
	Labeled   bool  `json:"labeled"`
	Shape     []int `json:"shape"`
}

func writeBatchStats(dataset yielder, writeTarget io.Writer, epoch int) error {
	batchN := 0
	for {
		batch, err := dataset.Yield()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		_, labeled := batch.Fields[datasets.FieldLabels]
		stats := batchStats{
			Epoch:     epoch,
			Batch:     batchN,
			Size:      batch.Size,
			MaxLength: batch.MaxLength,
			Tokens:    batch.Size * batch.MaxLength,
			Labeled:   labeled,
			Shape:     []int(batch.Fields[datasets.FieldInputIDs].Shape()),
		}
		outputBytes, err := jsoniter.Marshal(stats)
		if err != nil {
			return err
		}
		if _, err := writeTarget.Write(append(outputBytes, '\n')); err != nil {
			return err
		}
		batchN++
	}
}

func main() {
	app := &cli.App{
		Name:     "textbatch",
		Usage:    "Token-budget batching for subword encoders from the command line",
		Commands: []*cli.Command{batchCommand, fitCommand},
	}
	if err := app.Run(os.Args); err != nil {
		panic(err)
	}
}

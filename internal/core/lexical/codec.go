package lexical

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// FormatVersion identifies the snapshot layout written by Encode.
const FormatVersion = 1

type snapshot struct {
	Version int         `json:"version"`
	Options Options     `json:"options"`
	Terms   []string    `json:"terms"`
	IDF     []float64   `json:"idf"`
	Rows    []sparseRow `json:"rows"`
	Answers []string    `json:"answers"`
}

// Encode writes the vocabulary table and weight matrix.
func (idx *Index) Encode(w io.Writer) error {
	if idx == nil {
		return errors.New("lexical: encode nil index")
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(snapshot{
		Version: FormatVersion,
		Options: idx.opts,
		Terms:   idx.terms,
		IDF:     idx.idf,
		Rows:    idx.rows,
		Answers: idx.answers,
	}); err != nil {
		return fmt.Errorf("encode index snapshot: %w", err)
	}
	return nil
}

// Decode restores an index written by Encode. Queries against the restored
// index use tokenizer, which must normalize the same way as the one used at
// build time.
func Decode(r io.Reader, tokenizer Tokenizer) (*Index, error) {
	if tokenizer == nil {
		return nil, errors.New("lexical: tokenizer is nil")
	}
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode index snapshot: %w", err)
	}
	if snap.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported index snapshot version %d", snap.Version)
	}
	if len(snap.Terms) != len(snap.IDF) || len(snap.Rows) != len(snap.Answers) {
		return nil, errors.New("index snapshot is inconsistent")
	}

	idx := &Index{
		opts:       snap.Options.normalize(),
		tokenizer:  tokenizer,
		vocabulary: make(map[string]int, len(snap.Terms)),
		terms:      snap.Terms,
		idf:        snap.IDF,
		rows:       snap.Rows,
		answers:    snap.Answers,
	}
	for id, term := range snap.Terms {
		idx.vocabulary[term] = id
	}
	for _, row := range snap.Rows {
		if len(row.Indices) != len(row.Values) {
			return nil, errors.New("index snapshot row is inconsistent")
		}
		for _, id := range row.Indices {
			if id < 0 || id >= len(snap.Terms) {
				return nil, fmt.Errorf("index snapshot references unknown term %d", id)
			}
		}
	}
	idx.buildPostings()
	return idx, nil
}

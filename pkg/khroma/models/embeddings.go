package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// EmbeddingKind tags the numeric representation carried by Embeddings.
type EmbeddingKind int

const (
	// EmbeddingFloat is one dense float vector per record.
	EmbeddingFloat EmbeddingKind = iota
	// EmbeddingInt is one dense integer vector per record.
	EmbeddingInt
	// EmbeddingSparse is one index/value vector per record.
	EmbeddingSparse
)

func (k EmbeddingKind) String() string {
	switch k {
	case EmbeddingFloat:
		return "float"
	case EmbeddingInt:
		return "int"
	case EmbeddingSparse:
		return "sparse"
	default:
		return fmt.Sprintf("EmbeddingKind(%d)", int(k))
	}
}

// SparseVector is a sparse embedding. Indices and Values are parallel.
type SparseVector struct {
	Indices []int     `json:"indices"`
	Values  []float32 `json:"values"`
}

// Embeddings holds one embedding per record in exactly one representation.
// The representation chosen at construction is the one sent on the wire.
//
// A nil entry (nil slice or nil *SparseVector) is encoded as JSON null, which
// update requests use to leave a record's embedding untouched.
type Embeddings struct {
	kind   EmbeddingKind
	floats [][]float32
	ints   [][]int64
	sparse []*SparseVector
}

// FloatEmbeddings builds dense float embeddings.
func FloatEmbeddings(vectors ...[]float32) *Embeddings {
	return &Embeddings{kind: EmbeddingFloat, floats: vectors}
}

// IntEmbeddings builds dense integer embeddings.
func IntEmbeddings(vectors ...[]int64) *Embeddings {
	return &Embeddings{kind: EmbeddingInt, ints: vectors}
}

// SparseEmbeddings builds sparse embeddings.
func SparseEmbeddings(vectors ...*SparseVector) *Embeddings {
	return &Embeddings{kind: EmbeddingSparse, sparse: vectors}
}

// Kind reports the representation.
func (e *Embeddings) Kind() EmbeddingKind {
	return e.kind
}

// Len is the number of records covered.
func (e *Embeddings) Len() int {
	switch e.kind {
	case EmbeddingInt:
		return len(e.ints)
	case EmbeddingSparse:
		return len(e.sparse)
	default:
		return len(e.floats)
	}
}

// Floats returns the dense float vectors, or nil for another kind.
func (e *Embeddings) Floats() [][]float32 {
	if e.kind != EmbeddingFloat {
		return nil
	}
	return e.floats
}

// Ints returns the dense integer vectors, or nil for another kind.
func (e *Embeddings) Ints() [][]int64 {
	if e.kind != EmbeddingInt {
		return nil
	}
	return e.ints
}

// Sparse returns the sparse vectors, or nil for another kind.
func (e *Embeddings) Sparse() []*SparseVector {
	if e.kind != EmbeddingSparse {
		return nil
	}
	return e.sparse
}

func (e Embeddings) MarshalJSON() ([]byte, error) {
	switch e.kind {
	case EmbeddingFloat:
		if e.floats == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(e.floats)
	case EmbeddingInt:
		if e.ints == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(e.ints)
	case EmbeddingSparse:
		if e.sparse == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(e.sparse)
	default:
		return nil, fmt.Errorf("unknown embedding kind %d", int(e.kind))
	}
}

// UnmarshalJSON infers the representation: objects decode as sparse, arrays
// made only of integer literals as int, anything else as float. An all-null
// or empty list decodes as float.
func (e *Embeddings) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("embeddings must be a list: %w", err)
	}

	kind := EmbeddingFloat
	sawVector := false
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || bytes.Equal(item, []byte("null")) {
			continue
		}
		switch item[0] {
		case '{':
			if sawVector && kind != EmbeddingSparse {
				return errors.New("embeddings mix sparse and dense vectors")
			}
			kind = EmbeddingSparse
		case '[':
			if kind == EmbeddingSparse {
				return errors.New("embeddings mix sparse and dense vectors")
			}
			if !sawVector {
				kind = EmbeddingInt
			}
			if !integerLiterals(item) {
				kind = EmbeddingFloat
			}
		default:
			return fmt.Errorf("unexpected embedding %s", item)
		}
		sawVector = true
	}

	out := Embeddings{kind: kind}
	var err error
	switch kind {
	case EmbeddingSparse:
		err = json.Unmarshal(data, &out.sparse)
	case EmbeddingInt:
		err = json.Unmarshal(data, &out.ints)
	default:
		err = json.Unmarshal(data, &out.floats)
	}
	if err != nil {
		return err
	}

	*e = out
	return nil
}

// integerLiterals reports whether every number in a flat JSON array is
// written without a fraction or exponent.
func integerLiterals(array []byte) bool {
	return !bytes.ContainsAny(array, ".eE")
}

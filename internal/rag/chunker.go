package rag

import (
	"os"
	"path/filepath"
	"strings"
)

// Chunk is one window of a source document prior to embedding.
type Chunk struct {
	Text       string
	WordCount  int
	ChunkIndex int
	Metadata   map[string]any
}

// Chunker splits documents into overlapping word windows. Overlap keeps
// boundary sentences available to both neighbouring chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 600
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 100
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// ChunkText splits a document into overlapping chunks, attaching the given
// metadata to each.
func (c *Chunker) ChunkText(text string, metadata map[string]any) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []Chunk
	step := c.chunkSize - c.chunkOverlap
	for start := 0; start < len(words); start += step {
		end := start + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		window := words[start:end]

		meta := make(map[string]any, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}

		chunks = append(chunks, Chunk{
			Text:       strings.Join(window, " "),
			WordCount:  len(window),
			ChunkIndex: len(chunks),
			Metadata:   meta,
		})

		if end == len(words) {
			break
		}
	}
	return chunks
}

// ChunkFile reads and chunks one knowledge file, inferring doc_type from the
// path when not given.
func (c *Chunker) ChunkFile(path string, docType string) ([]Chunk, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if docType == "" {
		docType = docTypeFromPath(path)
	}

	metadata := map[string]any{
		"source_file": path,
		"doc_title":   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		"doc_type":    docType,
	}
	return c.ChunkText(string(raw), metadata), nil
}

// ChunkDirectory chunks every markdown/text file under root.
func (c *Chunker) ChunkDirectory(root string) ([]Chunk, error) {
	var all []Chunk
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".md", ".txt", ".rst":
		default:
			return nil
		}
		chunks, err := c.ChunkFile(path, "")
		if err != nil {
			return err
		}
		all = append(all, chunks...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

func docTypeFromPath(path string) string {
	switch {
	case strings.Contains(path, "sops"):
		return "sop"
	case strings.Contains(path, "faqs"):
		return "faq"
	case strings.Contains(path, "pricing"):
		return "pricing"
	case strings.Contains(path, "policies"):
		return "policy"
	default:
		return "general"
	}
}

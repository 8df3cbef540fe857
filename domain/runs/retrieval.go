package runs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/arclane/assistants-executor/domain/chunks"
	"github.com/arclane/assistants-executor/domain/files"
	"github.com/arclane/assistants-executor/pkg/kreuzberg"
	"github.com/arclane/assistants-executor/pkg/llm"
	"github.com/arclane/assistants-executor/pkg/logger"
)

// kreuzbergExtensions are the file extensions that are not reliably raw
// UTF-8 and must go through Kreuzberg's document extraction rather than a
// direct byte decode.
var kreuzbergExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".pptx": true,
	".doc":  true,
	".ppt":  true,
}

// RetrievalResult is the joined output of the Retrieval Subsystem's two
// concurrent branches (spec §4.7): per-file content, and chunk-query
// search hits.
type RetrievalResult struct {
	FileContents []string
	Chunks       []string
}

// Retrieval implements the Retrieval Subsystem: fetching the content of a
// run's attached files (via Kreuzberg for non-text formats, raw UTF-8
// otherwise) concurrently with an LLM-generated full-text chunk query
// (spec §4.7). A file the caller cannot read is logged and skipped rather
// than failing the whole run; an unparsable chunk query yields an empty
// chunk set for the same reason.
type Retrieval struct {
	files      *files.Service
	chunks     *chunks.Service
	kreuzberg  *kreuzberg.Client
	llm        llm.Client
	log        *slog.Logger
}

func NewRetrieval(filesSvc *files.Service, chunksSvc *chunks.Service, kreuzbergClient *kreuzberg.Client, llmClient llm.Client, log *slog.Logger) *Retrieval {
	return &Retrieval{
		files:     filesSvc,
		chunks:    chunksSvc,
		kreuzberg: kreuzbergClient,
		llm:       llmClient,
		log:       log.With(logger.Scope("runs.retrieval")),
	}
}

// Fetch runs the file-content branch and the chunk-query branch
// concurrently and joins their results. fileIDs is the union of the run's
// and the assistant's file ids (see dispatchRetrieval); queryContext is the text the chunk
// query is generated from (typically the latest user message).
func (rt *Retrieval) Fetch(ctx context.Context, fileIDs []string, queryContext string) (*RetrievalResult, error) {
	var wg sync.WaitGroup
	var fileContents []string
	var chunkHits []string

	wg.Add(2)
	go func() {
		defer wg.Done()
		fileContents = rt.fetchFileContents(ctx, fileIDs)
	}()
	go func() {
		defer wg.Done()
		chunkHits = rt.searchChunks(ctx, queryContext)
	}()
	wg.Wait()

	return &RetrievalResult{FileContents: fileContents, Chunks: chunkHits}, nil
}

func (rt *Retrieval) fetchFileContents(ctx context.Context, fileIDs []string) []string {
	var out []string
	for _, idStr := range fileIDs {
		id, err := uuid.Parse(idStr)
		if err != nil {
			rt.log.Warn("skipping file with invalid id", slog.String("file_id", idStr))
			continue
		}
		content, err := rt.extractFileContent(ctx, id)
		if err != nil {
			rt.log.Warn("skipping file content fetch", slog.String("file_id", idStr), logger.Error(err))
			continue
		}
		if content != "" {
			out = append(out, content)
		}
	}
	return out
}

func (rt *Retrieval) extractFileContent(ctx context.Context, id uuid.UUID) (string, error) {
	meta, err := rt.files.Retrieve(ctx, id)
	if err != nil {
		return "", fmt.Errorf("retrieve file metadata: %w", err)
	}
	if meta == nil {
		return "", fmt.Errorf("file %s not found", id)
	}

	reader, err := rt.files.GetContent(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get file content: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read file content: %w", err)
	}

	if needsKreuzberg(meta.MimeType, meta.Filename) && rt.kreuzberg != nil && rt.kreuzberg.IsEnabled() {
		result, err := rt.kreuzberg.ExtractText(ctx, data, meta.Filename, meta.MimeType, nil)
		if err != nil {
			return "", fmt.Errorf("kreuzberg extract: %w", err)
		}
		return result.Content, nil
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("file %s is not valid UTF-8 and is not a supported document format", meta.Filename)
	}
	return string(data), nil
}

func needsKreuzberg(mimeType, filename string) bool {
	if kreuzberg.ShouldUseKreuzberg(mimeType, filename) {
		return true
	}
	return kreuzbergExtensions[strings.ToLower(filepath.Ext(filename))]
}

// searchChunks asks the model for a short full-text query derived from
// queryContext, then runs it against the chunk store. An empty
// queryContext short-circuits to no search.
func (rt *Retrieval) searchChunks(ctx context.Context, queryContext string) []string {
	if strings.TrimSpace(queryContext) == "" {
		return nil
	}

	query, err := rt.generateChunkQuery(ctx, queryContext)
	if err != nil {
		rt.log.Warn("chunk query generation failed, skipping retrieval", logger.Error(err))
		return nil
	}
	if query == "" {
		return nil
	}

	results, err := rt.chunks.Search(ctx, query, defaultChunkSearchLimit)
	if err != nil {
		rt.log.Warn("chunk search failed, returning empty result", logger.Error(err))
		return nil
	}

	out := make([]string, 0, len(results))
	for _, c := range results {
		out = append(out, c.Text)
	}
	return out
}

const defaultChunkSearchLimit = 5

func (rt *Retrieval) generateChunkQuery(ctx context.Context, queryContext string) (string, error) {
	if !rt.llm.IsConfigured() {
		return "", nil
	}
	resp, err := rt.llm.Complete(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "Respond with a short full-text search query (a few keywords, no punctuation) capturing what the user is asking about. Respond with the query only."},
			{Role: "user", Content: queryContext},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate chunk query: %w", err)
	}
	return strings.TrimSpace(resp.Message.Content), nil
}

// Package chunks implements the retrieval subsystem's chunk store (spec
// §4.7): fixed-token-count splitting of a file's extracted text at
// ingestion time, and full-text search over the resulting rows.
package chunks

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/arclane/assistants-executor/pkg/apperror"
	"github.com/arclane/assistants-executor/pkg/logger"
	"github.com/arclane/assistants-executor/pkg/textsplitter"
	"github.com/arclane/assistants-executor/pkg/tokenizer"
)

// DefaultTokensPerChunk is well under the prompt assembler's default token
// budget (4096, ExecutorConfig.PromptTokenBudget) so a single retrieved
// chunk fits the budget on its own under normal settings.
const DefaultTokensPerChunk = 400

// Service ingests file text into chunks and serves the retrieval
// subsystem's search operation over them.
type Service struct {
	repo *Repository
	db   bun.IDB
	log  *slog.Logger
}

func NewService(repo *Repository, db bun.IDB, log *slog.Logger) *Service {
	return &Service{repo: repo, db: db, log: log.With(logger.Scope("chunks"))}
}

// IngestFile splits text into fixed-token-count chunks and persists them
// for fileID, replacing any chunks the file already has. The whole
// operation runs in a single transaction (spec §5).
func (s *Service) IngestFile(ctx context.Context, fileID uuid.UUID, text string) ([]*Chunk, error) {
	pieces := splitIntoTokenChunks(text, DefaultTokensPerChunk)

	var chunks []*Chunk
	offset := 0
	for seq, piece := range pieces {
		idx := strings.Index(text[offset:], piece)
		if idx < 0 {
			idx = 0
		}
		start := offset + idx
		end := start + len(piece)
		chunks = append(chunks, &Chunk{
			ID:         uuid.New(),
			FileID:     fileID,
			Sequence:   seq,
			Text:       piece,
			StartIndex: start,
			EndIndex:   end,
		})
		offset = end
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		txRepo := &Repository{db: tx, log: s.log}
		if err := txRepo.DeleteByFile(ctx, fileID); err != nil {
			return err
		}
		return txRepo.CreateBatch(ctx, chunks)
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// splitIntoTokenChunks produces contiguous, non-overlapping slices of text
// each bounded by maxTokens cl100k tokens. textsplitter.Split supplies the
// initial separator-aware boundaries; any resulting piece still over
// budget is re-split at exact token boundaries via the tokenizer.
func splitIntoTokenChunks(text string, maxTokens int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	cfg := textsplitter.DefaultConfig()
	cfg.ChunkSize = maxTokens * 4 // rough chars-per-token heuristic, refined below
	cfg.ChunkOverlap = 0

	var out []string
	for _, piece := range textsplitter.Split(text, cfg) {
		if tokenizer.Count(piece) <= maxTokens {
			out = append(out, piece)
			continue
		}
		out = append(out, splitByTokenBoundary(piece, maxTokens)...)
	}
	return out
}

func splitByTokenBoundary(text string, maxTokens int) []string {
	tokens := tokenizer.Encode(text)
	if tokens == nil {
		return []string{text}
	}

	var out []string
	for start := 0; start < len(tokens); start += maxTokens {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		decoded, err := tokenizer.Decode(tokens[start:end])
		if err != nil || decoded == "" {
			continue
		}
		out = append(out, decoded)
	}
	return out
}

// GetByID returns a single chunk.
func (s *Service) GetByID(ctx context.Context, chunkID uuid.UUID) (*Chunk, error) {
	return s.repo.GetByID(ctx, chunkID)
}

// ListByFile returns a file's chunks in sequence order.
func (s *Service) ListByFile(ctx context.Context, fileID uuid.UUID) ([]*Chunk, error) {
	return s.repo.ListByFile(ctx, fileID)
}

// DeleteByFile removes every chunk belonging to a file.
func (s *Service) DeleteByFile(ctx context.Context, fileID uuid.UUID) error {
	return s.repo.DeleteByFile(ctx, fileID)
}

// CountByFile returns how many chunks a file has.
func (s *Service) CountByFile(ctx context.Context, fileID uuid.UUID) (int, error) {
	return s.repo.CountByFile(ctx, fileID)
}

// Search runs the retrieval subsystem's full-text chunk search (spec
// §4.7). Terms are joined with the tsquery OR operator "|" by default,
// matching the spec's token-joining behavior; an invalid resulting query
// yields an empty result set rather than an error.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*Chunk, error) {
	tsQuery := toTSQuery(query)
	if tsQuery == "" {
		return nil, nil
	}

	results, err := s.repo.Search(ctx, tsQuery, limit)
	if err != nil {
		if isSyntaxError(err) {
			s.log.Warn("chunk search query was invalid, returning empty result", logger.Error(err))
			return nil, nil
		}
		return nil, apperror.NewInternal("chunk search failed", err)
	}
	return results, nil
}

func toTSQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := sanitizeTSTerm(f); t != "" {
			terms = append(terms, t)
		}
	}
	return strings.Join(terms, " | ")
}

func sanitizeTSTerm(term string) string {
	term = strings.Map(func(r rune) rune {
		switch r {
		case '&', '|', '!', '(', ')', ':', '\'':
			return -1
		default:
			return r
		}
	}, term)
	return strings.TrimSpace(term)
}

func isSyntaxError(err error) bool {
	return strings.Contains(err.Error(), "syntax error") || strings.Contains(err.Error(), "tsquery")
}

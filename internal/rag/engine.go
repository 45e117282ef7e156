package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docchat/internal/contextutil"
	"docchat/internal/llm"
	"docchat/internal/storage"
)

// DefaultSystemPrompt instructs the model to answer strictly from the
// retrieved documentation context.
const DefaultSystemPrompt = "You are a helpful assistant that answers questions about a documentation corpus. " +
	"Answer as completely and accurately as possible using only the information from the provided context. " +
	"Pay attention to technical details. If the context doesn't contain enough information to answer, say so."

// EngineConfig holds the tunables for the answer pipeline.
type EngineConfig struct {
	TopK          int
	MinScore      float32
	ContextBudget int
	SystemPrompt  string // DefaultSystemPrompt when empty
	SessionTTL    time.Duration
	ChatParams    llm.ChatParams
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	retriever *Retriever
	assembler Assembler
	prompts   PromptBuilder
	generator Generator
	sessions  storage.SessionStore
	cfg       EngineConfig
}

// NewEngine creates the answer engine from its collaborators.
func NewEngine(
	retriever *Retriever,
	prompts PromptBuilder,
	generator Generator,
	sessions storage.SessionStore,
	cfg EngineConfig,
) Engine {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &ragEngine{
		retriever: retriever,
		prompts:   prompts,
		generator: generator,
		sessions:  sessions,
		cfg:       cfg,
	}
}

// Answer runs the request-scoped pipeline: resolve session, retrieve,
// assemble, build prompt, generate, record the exchange. An empty
// retrieval is a valid outcome; the prompt then tells the model no
// context was found instead of fabricating one.
func (e *ragEngine) Answer(ctx context.Context, sessionID, query string) (Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if query == "" {
		return Answer{}, fmt.Errorf("%w: query must not be empty", ErrInvalidConfig)
	}

	session, history, err := e.resolveSession(ctx, sessionID)
	if err != nil {
		return Answer{}, err
	}

	logger.InfoContext(ctx, "answering query", "session_id", session.ID, "query_length", len(query), "history_turns", len(history))

	results, usedFallback, err := e.retriever.Retrieve(ctx, query, e.cfg.TopK, e.cfg.MinScore)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieval failed: %w", err)
	}

	assembled, err := e.assembler.Assemble(results, e.cfg.ContextBudget)
	if err != nil {
		return Answer{}, fmt.Errorf("context assembly failed: %w", err)
	}

	messages := e.prompts.Build(e.cfg.SystemPrompt, assembled.Text, history, query)

	answerText, err := e.generator.ChatWithMessages(ctx, messages, e.cfg.ChatParams)
	if err != nil {
		return Answer{}, fmt.Errorf("generation failed: %w", err)
	}

	// Record the exchange. The answer has already been produced, so a
	// session store failure is logged rather than failing the request.
	if err := e.sessions.AppendTurn(ctx, session.ID, "user", query); err != nil {
		logger.ErrorContext(ctx, "failed to record user turn", "session_id", session.ID, "error", err)
	} else if err := e.sessions.AppendTurn(ctx, session.ID, "assistant", answerText); err != nil {
		logger.ErrorContext(ctx, "failed to record assistant turn", "session_id", session.ID, "error", err)
	}
	if err := e.sessions.Touch(ctx, session.ID, e.cfg.SessionTTL); err != nil {
		logger.WarnContext(ctx, "failed to extend session expiry", "session_id", session.ID, "error", err)
	}

	logger.InfoContext(ctx, "query answered",
		"session_id", session.ID,
		"chunks_used", len(assembled.ChunkIDs),
		"used_fallback", usedFallback,
		"answer_length", len(answerText),
	)

	return Answer{
		SessionID:      session.ID,
		Text:           answerText,
		SourceChunkIDs: assembled.ChunkIDs,
		UsedFallback:   usedFallback,
	}, nil
}

// resolveSession loads the session and its history, creating a fresh
// session when the ID is empty, unknown, or expired.
func (e *ragEngine) resolveSession(ctx context.Context, sessionID string) (*storage.SessionRecord, []storage.Turn, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if sessionID != "" {
		session, err := e.sessions.Get(ctx, sessionID)
		if err == nil {
			history, err := e.sessions.History(ctx, sessionID)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to load session history: %w", err)
			}
			return session, history, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("failed to load session: %w", err)
		}
		logger.InfoContext(ctx, "session missing or expired, starting a new one", "session_id", sessionID)
	}

	session, err := e.sessions.Create(ctx, e.cfg.SessionTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil, nil
}

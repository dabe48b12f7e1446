package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jamolinav/ai-assist-attorney/internal/ai"
	"github.com/jamolinav/ai-assist-attorney/internal/casestore"
	"github.com/jamolinav/ai-assist-attorney/internal/logger"
)

const systemPrompt = `Eres un abogado analista de textos judiciales.
Si el contexto es suficiente, responde con:
FINAL_ANSWER: <tu respuesta concluyente y breve>

Si NO es suficiente, responde SOLO con:
NEED_MORE_CONTEXT: <hasta 3 consultas o palabras clave concretas separadas por punto y coma>

Cuando debas pedir más contexto, en NEED_MORE_CONTEXT usa solo palabras clave limpias (sin puntos, guiones ni signos), en minúsculas, sin fechas ni RUTs.
Ejemplos válidos: "pagare; ley 20027; banco internacional"
Ejemplos inválidos: "97.011.000-3; Ley 20.027; EN LO PRINCIPAL:"`

// inconclusiveAnswer closes the loop when the rounds run out without a
// conclusive answer.
const inconclusiveAnswer = "No fue posible obtener una respuesta concluyente con el contexto disponible."

const (
	maxRounds        = 3
	maxFollowups     = 3
	followupK        = 4
	seedSnippetLen   = 800
	followSnippetLen = 1200
)

// Searcher is the slice of the case store the answer loop needs.
type Searcher interface {
	HybridSearch(ctx context.Context, query string, embed casestore.EmbedQueryFunc, lexicalK, rerankK int) ([]casestore.Result, error)
}

// Answerer runs the retrieval loop over a case store.
type Answerer struct {
	chat     ai.ChatModel
	embed    casestore.EmbedQueryFunc
	lexicalK int
	rerankK  int
}

func NewAnswerer(chat ai.ChatModel, embed casestore.EmbedQueryFunc, lexicalK, rerankK int) *Answerer {
	return &Answerer{chat: chat, embed: embed, lexicalK: lexicalK, rerankK: rerankK}
}

// Answer runs the retrieve-then-answer loop. The model either commits
// with FINAL_ANSWER, requests followup retrievals with
// NEED_MORE_CONTEXT, or goes off protocol, in which case its text is
// passed through verbatim. The loop runs at most three rounds. Answer
// never fails; any terminal condition becomes an answer string.
func (a *Answerer) Answer(ctx context.Context, store Searcher, question string) (string, *Trace) {
	start := time.Now()

	results, err := store.HybridSearch(ctx, question, a.embed, a.lexicalK, a.rerankK)
	if err != nil {
		logger.Error("initial hybrid search failed", "error", err)
		results = nil
	}

	contextText := buildContext(results, seedSnippetLen)
	if contextText == "" {
		contextText = "(sin resultados)"
	}

	trace := &Trace{
		Question:   question,
		ContextLen: len(contextText),
		TopChunks:  topChunks(results),
		Timestamp:  time.Now(),
	}

	turns := []ai.Message{
		{Role: "user", Content: fmt.Sprintf("Pregunta: %s\n\ncontext:\n%s", question, contextText)},
	}

	answer := a.loop(ctx, store, turns, trace)
	trace.Answer = answer
	trace.ElapsedSeconds = time.Since(start).Seconds()
	return answer, trace
}

func (a *Answerer) loop(ctx context.Context, store Searcher, turns []ai.Message, trace *Trace) string {
	for round := 1; round <= maxRounds; round++ {
		reply, err := a.chat.Chat(ctx, systemPrompt, turns)
		if err != nil {
			logger.Error("chat round failed", "round", round, "error", err)
			return fmt.Sprintf("Error al consultar el modelo: %v", err)
		}

		reply = strings.TrimSpace(reply)
		trace.Rounds = append(trace.Rounds, RoundTrace{Round: round, ReplyLen: len(reply)})

		if rest, ok := strings.CutPrefix(reply, "FINAL_ANSWER:"); ok {
			return strings.TrimSpace(rest)
		}

		if rest, ok := strings.CutPrefix(reply, "NEED_MORE_CONTEXT:"); ok {
			extra := a.moreContext(ctx, store, rest)
			if extra == "" {
				logger.Warn("no additional context available, stopping", "round", round)
				break
			}
			turns = append(turns,
				ai.Message{Role: "model", Content: reply},
				ai.Message{Role: "user", Content: "Contexto adicional:\n" + extra},
			)
			continue
		}

		// Off-protocol replies pass through untouched.
		logger.Warn("reply outside expected format, returning verbatim", "round", round)
		return reply
	}
	return inconclusiveAnswer
}

// moreContext retrieves followup context for each requested phrase.
// Phrases are sanitized before search and capped at three per round.
func (a *Answerer) moreContext(ctx context.Context, store Searcher, rawQueries string) string {
	var parts []string
	count := 0
	for _, phrase := range strings.Split(rawQueries, ";") {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		if count++; count > maxFollowups {
			break
		}

		safe := casestore.Sanitize(phrase)
		if safe == "" {
			continue
		}

		results, err := store.HybridSearch(ctx, safe, a.embed, a.lexicalK, followupK)
		if err != nil {
			logger.Warn("followup search failed", "query", safe, "error", err)
			continue
		}
		if piece := buildContext(results, followSnippetLen); piece != "" {
			parts = append(parts, piece)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func buildContext(results []casestore.Result, snippetLen int) string {
	var blocks []string
	for _, r := range results {
		snippet := r.Content
		if runes := []rune(snippet); len(runes) > snippetLen {
			snippet = string(runes[:snippetLen])
		}
		blocks = append(blocks, fmt.Sprintf("[chunk:%d score=%.3f]\n%s", r.ChunkID, r.Score, snippet))
	}
	return strings.Join(blocks, "\n---\n")
}

func topChunks(results []casestore.Result) []ChunkRef {
	refs := make([]ChunkRef, 0, len(results))
	for _, r := range results {
		refs = append(refs, ChunkRef{ChunkID: r.ChunkID, Score: r.Score})
	}
	return refs
}

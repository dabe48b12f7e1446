package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamolinav/ai-assist-attorney/internal/ai"
	"github.com/jamolinav/ai-assist-attorney/internal/casestore"
)

// scriptedChat replays canned replies in order and records the turns it
// was given.
type scriptedChat struct {
	replies []string
	err     error
	calls   [][]ai.Message
}

func (s *scriptedChat) Chat(ctx context.Context, system string, turns []ai.Message) (string, error) {
	s.calls = append(s.calls, append([]ai.Message(nil), turns...))
	if s.err != nil {
		return "", s.err
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

// fakeSearcher maps query substrings to fixed results.
type fakeSearcher struct {
	byQuery map[string][]casestore.Result
	queries []string
}

func (f *fakeSearcher) HybridSearch(ctx context.Context, query string, embed casestore.EmbedQueryFunc, lexicalK, rerankK int) ([]casestore.Result, error) {
	f.queries = append(f.queries, query)
	return f.byQuery[query], nil
}

func noEmbed(ctx context.Context, query string) ([]float32, error) {
	return []float32{1}, nil
}

func TestAnswerFinalAnswerFirstRound(t *testing.T) {
	chat := &scriptedChat{replies: []string{"FINAL_ANSWER: El embargo fue decretado el 12 de marzo."}}
	store := &fakeSearcher{byQuery: map[string][]casestore.Result{
		"¿cuándo se decretó el embargo?": {{ChunkID: 7, Content: "se decreta embargo", Score: 0.9}},
	}}

	answerer := NewAnswerer(chat, noEmbed, 40, 8)
	answer, trace := answerer.Answer(context.Background(), store, "¿cuándo se decretó el embargo?")

	assert.Equal(t, "El embargo fue decretado el 12 de marzo.", answer)
	require.Len(t, chat.calls, 1)
	require.Len(t, chat.calls[0], 1)
	assert.Contains(t, chat.calls[0][0].Content, "Pregunta: ¿cuándo se decretó el embargo?")
	assert.Contains(t, chat.calls[0][0].Content, "[chunk:7 score=0.900]")
	require.NotNil(t, trace)
	assert.Len(t, trace.Rounds, 1)
	assert.Equal(t, answer, trace.Answer)
}

func TestAnswerFollowupRound(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		"NEED_MORE_CONTEXT: pagare; banco",
		"FINAL_ANSWER: El pagaré fue protestado.",
	}}
	store := &fakeSearcher{byQuery: map[string][]casestore.Result{
		"pregunta inicial": {{ChunkID: 1, Content: "antecedentes generales", Score: 0.5}},
		"pagare":           {{ChunkID: 2, Content: "pagare suscrito ante notario", Score: 0.8}},
		// "banco" returns nothing, the loop tolerates empty followups.
	}}

	answerer := NewAnswerer(chat, noEmbed, 40, 8)
	answer, trace := answerer.Answer(context.Background(), store, "pregunta inicial")

	assert.Equal(t, "El pagaré fue protestado.", answer)
	assert.Equal(t, []string{"pregunta inicial", "pagare", "banco"}, store.queries)

	// Second call carries the model turn plus the followup context.
	require.Len(t, chat.calls, 2)
	require.Len(t, chat.calls[1], 3)
	assert.Equal(t, "model", chat.calls[1][1].Role)
	assert.True(t, strings.HasPrefix(chat.calls[1][2].Content, "Contexto adicional:\n"))
	assert.Contains(t, chat.calls[1][2].Content, "pagare suscrito ante notario")
	assert.Len(t, trace.Rounds, 2)
}

func TestAnswerFollowupPhrasesCappedAtThree(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		"NEED_MORE_CONTEXT: uno; dos; tres; cuatro; cinco",
		"FINAL_ANSWER: listo",
	}}
	store := &fakeSearcher{byQuery: map[string][]casestore.Result{
		"pregunta": {{ChunkID: 1, Content: "algo", Score: 0.1}},
		"uno":      {{ChunkID: 2, Content: "uno", Score: 0.1}},
		"dos":      {{ChunkID: 3, Content: "dos", Score: 0.1}},
		"tres":     {{ChunkID: 4, Content: "tres", Score: 0.1}},
		"cuatro":   {{ChunkID: 5, Content: "cuatro", Score: 0.1}},
	}}

	answerer := NewAnswerer(chat, noEmbed, 40, 8)
	_, _ = answerer.Answer(context.Background(), store, "pregunta")

	assert.Equal(t, []string{"pregunta", "uno", "dos", "tres"}, store.queries)
}

func TestAnswerNoFollowupContextInconclusive(t *testing.T) {
	chat := &scriptedChat{replies: []string{"NEED_MORE_CONTEXT: inexistente"}}
	store := &fakeSearcher{byQuery: map[string][]casestore.Result{
		"pregunta": {{ChunkID: 1, Content: "algo", Score: 0.1}},
	}}

	answerer := NewAnswerer(chat, noEmbed, 40, 8)
	answer, _ := answerer.Answer(context.Background(), store, "pregunta")

	assert.Equal(t, inconclusiveAnswer, answer)
	assert.Len(t, chat.calls, 1)
}

func TestAnswerRoundsExhaustedInconclusive(t *testing.T) {
	chat := &scriptedChat{replies: []string{"NEED_MORE_CONTEXT: pagare"}}
	store := &fakeSearcher{byQuery: map[string][]casestore.Result{
		"pregunta": {{ChunkID: 1, Content: "algo", Score: 0.1}},
		"pagare":   {{ChunkID: 2, Content: "pagare", Score: 0.2}},
	}}

	answerer := NewAnswerer(chat, noEmbed, 40, 8)
	answer, trace := answerer.Answer(context.Background(), store, "pregunta")

	assert.Equal(t, inconclusiveAnswer, answer)
	assert.Len(t, trace.Rounds, 3)
}

func TestAnswerOffProtocolPassthrough(t *testing.T) {
	chat := &scriptedChat{replies: []string{"El demandado opuso excepciones el 3 de abril."}}
	store := &fakeSearcher{byQuery: map[string][]casestore.Result{
		"pregunta": {{ChunkID: 1, Content: "algo", Score: 0.1}},
	}}

	answerer := NewAnswerer(chat, noEmbed, 40, 8)
	answer, _ := answerer.Answer(context.Background(), store, "pregunta")

	assert.Equal(t, "El demandado opuso excepciones el 3 de abril.", answer)
}

func TestAnswerChatErrorSurfacesInAnswer(t *testing.T) {
	chat := &scriptedChat{err: assert.AnError}
	store := &fakeSearcher{}

	answerer := NewAnswerer(chat, noEmbed, 40, 8)
	answer, _ := answerer.Answer(context.Background(), store, "pregunta")

	assert.True(t, strings.HasPrefix(answer, "Error al consultar el modelo:"))
}

func TestAnswerEmptyStoreUsesPlaceholderContext(t *testing.T) {
	chat := &scriptedChat{replies: []string{"FINAL_ANSWER: sin antecedentes"}}
	store := &fakeSearcher{}

	answerer := NewAnswerer(chat, noEmbed, 40, 8)
	_, trace := answerer.Answer(context.Background(), store, "pregunta")

	require.Len(t, chat.calls, 1)
	assert.Contains(t, chat.calls[0][0].Content, "(sin resultados)")
	assert.Empty(t, trace.TopChunks)
}

func TestBuildContextTruncatesSnippets(t *testing.T) {
	long := strings.Repeat("x", 2000)
	got := buildContext([]casestore.Result{
		{ChunkID: 1, Content: long, Score: 1},
		{ChunkID: 2, Content: "corto", Score: 0.5},
	}, 800)

	assert.Contains(t, got, "\n---\n")
	assert.Contains(t, got, "[chunk:1 score=1.000]")
	assert.NotContains(t, got, strings.Repeat("x", 801))
	assert.Contains(t, got, "corto")
}

package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/lorekit/lore/internal/knowledge"
	"github.com/lorekit/lore/internal/log"
)

// Message roles accepted on the chat endpoints.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

var (
	// ErrNoMessages is returned when a chat request carries no messages.
	ErrNoMessages = errors.New("rag: no messages provided")
	// ErrLastNotUser is returned when the final message is not from the user.
	ErrLastNotUser = errors.New("rag: last message must be from the user")
)

// retrievalTimeout bounds the context lookup so a slow vector query
// cannot stall the whole chat request.
const retrievalTimeout = 5 * time.Second

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is a completed chat turn with its supporting source nodes.
type Response struct {
	Content string
	Nodes   []SourceNode
}

// StreamFunc receives answer fragments as the model produces them.
type StreamFunc func(ctx context.Context, text string) error

// Config carries the prompt templates and retrieval settings.
type Config struct {
	SystemPrompt   string
	CitationPrompt string
	CondensePrompt string // expects history and question, in that order
	TopK           int
	URLPrefix      string
}

// Engine answers questions over the indexed corpus. With history present
// it first condenses history plus question into a standalone question,
// retrieves context for it, then generates the final answer with the
// retrieved nodes inlined into the system prompt.
type Engine struct {
	retriever ai.Retriever
	model     ai.Model
	cfg       Config
	logger    log.Logger

	generate func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error)
}

// NewEngine wires an Engine from the Genkit instance, the chat model and
// the document retriever.
func NewEngine(g *genkit.Genkit, model ai.Model, retriever ai.Retriever, cfg Config, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		retriever: retriever,
		model:     model,
		cfg:       cfg,
		logger:    logger,
		generate: func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
			return genkit.Generate(ctx, g, opts...)
		},
	}
}

// ValidateMessages checks the request shape shared by both chat endpoints.
func ValidateMessages(messages []Message) error {
	if len(messages) == 0 {
		return ErrNoMessages
	}
	last := messages[len(messages)-1]
	if last.Role != RoleUser {
		return ErrLastNotUser
	}
	if strings.TrimSpace(last.Content) == "" {
		return fmt.Errorf("%w: empty content", ErrNoMessages)
	}
	return nil
}

// Chat runs one conversation turn. When stream is non-nil it is invoked
// for every generated fragment; the full response is returned either way.
func (e *Engine) Chat(ctx context.Context, messages []Message, stream StreamFunc) (*Response, error) {
	if err := ValidateMessages(messages); err != nil {
		return nil, err
	}

	question := messages[len(messages)-1].Content
	history := messages[:len(messages)-1]

	standalone := e.condense(ctx, history, question)
	docs := e.retrieveContext(ctx, standalone)

	opts := []ai.GenerateOption{
		ai.WithModel(e.model),
		ai.WithSystem(e.systemPrompt(docs)),
		ai.WithMessages(toGenkitMessages(history, question)...),
	}
	if stream != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return stream(ctx, chunk.Text())
		}))
	}

	resp, err := e.generate(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Response{
		Content: resp.Text(),
		Nodes:   NodesFromDocuments(docs, e.cfg.URLPrefix),
	}, nil
}

// condense rewrites history plus the latest question into a standalone
// question. Empty history skips the extra model call; on failure the raw
// question is used as-is.
func (e *Engine) condense(ctx context.Context, history []Message, question string) string {
	if len(history) == 0 {
		return question
	}

	prompt := fmt.Sprintf(e.cfg.CondensePrompt, renderHistory(history), question)
	resp, err := e.generate(ctx,
		ai.WithModel(e.model),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		e.logger.Warn("condense failed, using question as-is", "error", err)
		return question
	}

	standalone := strings.TrimSpace(resp.Text())
	if standalone == "" {
		return question
	}
	e.logger.Debug("question condensed",
		"history_turns", len(history),
		"standalone_length", len(standalone))
	return standalone
}

// retrieveContext fetches the top-k nodes for query. Errors degrade to an
// answer without context rather than failing the request.
func (e *Engine) retrieveContext(ctx context.Context, query string) []*ai.Document {
	if e.cfg.TopK <= 0 || e.retriever == nil {
		return nil
	}

	retrieveCtx, cancel := context.WithTimeout(ctx, retrievalTimeout)
	defer cancel()

	resp, err := e.retriever.Retrieve(retrieveCtx, &ai.RetrieverRequest{
		Query:   ai.DocumentFromText(query, nil),
		Options: map[string]any{"k": e.cfg.TopK},
	})
	if err != nil {
		if retrieveCtx.Err() != nil {
			e.logger.Debug("retrieval timed out, answering without context", "error", err)
		} else {
			e.logger.Warn("retrieval failed, answering without context", "error", err)
		}
		return nil
	}

	e.logger.Debug("context retrieved", "documents", len(resp.Documents), "query_length", len(query))
	return resp.Documents
}

// systemPrompt assembles the system prompt, the citation instructions and
// the retrieved context block. Without context the citation instructions
// are left out so the model does not cite nodes it never saw.
func (e *Engine) systemPrompt(docs []*ai.Document) string {
	if len(docs) == 0 {
		return e.cfg.SystemPrompt
	}

	var b strings.Builder
	b.WriteString(e.cfg.SystemPrompt)
	b.WriteString("\n\n")
	b.WriteString(e.cfg.CitationPrompt)
	b.WriteString("\n\nContext information is below.\n---------------------\n")
	for _, doc := range docs {
		id, _ := doc.Metadata[metaNodeID].(string)
		fmt.Fprintf(&b, "node_id: %s\n", id)
		if name, ok := doc.Metadata[knowledge.MetaFileName].(string); ok && name != "" {
			fmt.Fprintf(&b, "file: %s", name)
			if page := doc.Metadata[knowledge.MetaPage]; page != nil {
				fmt.Fprintf(&b, " (page %v)", page)
			}
			b.WriteString("\n")
		}
		b.WriteString(docText(doc))
		b.WriteString("\n---------------------\n")
	}
	return b.String()
}

func renderHistory(history []Message) string {
	var b strings.Builder
	for i, m := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", m.Role, m.Content)
	}
	return b.String()
}

// toGenkitMessages converts the API history plus the current question to
// Genkit messages. System turns are folded in as user context since the
// engine controls the actual system prompt.
func toGenkitMessages(history []Message, question string) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	return append(msgs, ai.NewUserMessage(ai.NewTextPart(question)))
}

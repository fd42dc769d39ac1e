package rag

import (
	"context"

	"github.com/ppiankov/labkit/internal/logging"
	"github.com/ppiankov/labkit/internal/model"
	"github.com/ppiankov/labkit/internal/session"
)

// Lab answers knowledge base questions within a session
type Lab struct {
	retriever *Retriever
	responder *Responder
	topK      int
	log       logging.Logger
}

// NewLab wires a retriever and responder together
func NewLab(retriever *Retriever, responder *Responder, topK int, log logging.Logger) *Lab {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Lab{retriever: retriever, responder: responder, topK: topK, log: logging.OrNoOp(log)}
}

// Ask retrieves context for query and answers it. Retrieval failures are
// logged and answered without documents. Both turns are recorded in the
// session history, which is not trimmed here.
func (l *Lab) Ask(ctx context.Context, sess *session.Session, query string) string {
	sess.Append(model.Message{Role: model.RoleUser, Content: query})

	docs, err := l.search(ctx, sess, query)
	if err != nil {
		l.log.Warn("search failed, answering without documents: %v", err)
		docs = nil
	}

	answer := l.responder.Respond(ctx, query, docs)
	sess.Append(model.Message{Role: model.RoleAssistant, Content: answer})
	return answer
}

func (l *Lab) search(ctx context.Context, sess *session.Session, query string) ([]model.SearchResult, error) {
	coll := sess.Collection()
	if coll == nil {
		var err error
		if coll, err = l.retriever.Open(ctx); err != nil {
			return nil, err
		}
		sess.SetCollection(coll)
	}
	return l.retriever.Search(ctx, coll, query, l.topK)
}

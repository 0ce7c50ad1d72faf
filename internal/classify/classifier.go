package classify

import (
	"log/slog"

	"github.com/summerlabs/notifai/internal/store"
)

// Classifier assigns importance tiers to message bodies.
type Classifier struct {
	logger *slog.Logger
}

// New creates a Classifier.
func New() *Classifier {
	return &Classifier{logger: slog.Default()}
}

// WithLogger sets the logger.
func (c *Classifier) WithLogger(logger *slog.Logger) *Classifier {
	c.logger = logger
	return c
}

// Classify returns the importance tier for a message body given its sender
// context. The rule pass short-circuits on unambiguous patterns; ambiguous
// bodies fall through to the scoring model.
func (c *Classifier) Classify(body string, senderType store.SenderType) int {
	if tier := matchRules(body); tier != 0 {
		return tier
	}
	return modelTier(body, senderType == store.SenderTypeContact)
}

package tokenizer

import (
	"sync"

	tiktoken "github.com/tiktoken-go/tokenizer"
	"go.uber.org/zap"
)

var (
	mu    sync.RWMutex
	codec tiktoken.Codec
)

// Init loads the shared BPE codec once. Safe to call repeatedly.
func Init(log *zap.Logger) error {
	mu.Lock()
	defer mu.Unlock()
	if codec != nil {
		return nil
	}
	c, err := tiktoken.Get(tiktoken.Cl100kBase)
	if err != nil {
		log.Error("failed to load tokenizer codec", zap.Error(err))
		return err
	}
	codec = c
	return nil
}

// CountTokens returns the token count of text, or a conservative estimate
// when the codec is not initialized.
func CountTokens(text string) (int, error) {
	mu.RLock()
	c := codec
	mu.RUnlock()
	if c == nil {
		// 4 chars per token is a common rough estimate
		return len(text) / 4, nil
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

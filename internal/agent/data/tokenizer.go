package data

import (
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-gateway/internal/agent/biz"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
)

// TiktokenCounter counts tokens with a tiktoken encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

var _ biz.TokenCounter = (*TiktokenCounter)(nil)

func (c *TiktokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// ApproxCounter estimates four characters per token.
type ApproxCounter struct{}

func (ApproxCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// NewTokenCounter loads the named encoding. tiktoken fetches encodings on
// first use; when that fails the approximate counter is used instead.
func NewTokenCounter(encoding string, log *logger.Logger) biz.TokenCounter {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		if log != nil {
			log.Warn("tiktoken encoding unavailable, using approximate token counts",
				zap.String("encoding", encoding),
				zap.Error(err),
			)
		}
		return ApproxCounter{}
	}
	return &TiktokenCounter{encoding: enc}
}

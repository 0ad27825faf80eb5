package streaming

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/loomhq/loom/types"
)

// PipelineConfig composes the two cleaning stages for one responder.
type PipelineConfig struct {
	Think  ThinkConfig  `yaml:"think" json:"think"`
	Prefix PrefixConfig `yaml:"prefix" json:"prefix"`
}

// DefaultPipelineConfig returns standard think filtering with marker-only
// prefix stripping.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Think:  DefaultThinkConfig(),
		Prefix: DefaultPrefixConfig(),
	}
}

// Pipeline applies the cleaning stages to responder output. A Pipeline is
// cheap to construct and is built per request; the stateful filters live in
// the stream goroutine, never shared.
type Pipeline struct {
	cfg    PipelineConfig
	logger *zap.Logger
}

// NewPipeline creates a pipeline. A nil logger falls back to zap.NewNop.
func NewPipeline(cfg PipelineConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, logger: logger.With(zap.String("component", "pipeline"))}
}

// Apply is the non-streaming form: think filtering and the ordered prefix
// removals over the complete text, then a final trim.
func (p *Pipeline) Apply(text string) string {
	think := NewThinkFilter(p.cfg.Think)
	cleaned := think.Feed(text) + think.Flush()
	return strings.TrimSpace(StripPrefixes(cleaned, p.cfg.Prefix))
}

// Stream pipes every fragment through the think filter and then the one-shot
// prefix stripper. The returned stream is single-consumer. onDone runs exactly
// once when the output stream finishes, whether by source close or by ctx
// cancellation; the processor uses it to release workflow locks.
func (p *Pipeline) Stream(ctx context.Context, in types.Stream, onDone func()) types.Stream {
	out := make(chan types.Fragment, 16)
	go func() {
		defer close(out)
		if onDone != nil {
			defer onDone()
		}

		think := NewThinkFilter(p.cfg.Think)
		strip := NewPrefixStripper(p.cfg.Prefix)

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("stream cancelled mid-flight", zap.Error(ctx.Err()))
				return
			case frag, ok := <-in:
				if !ok {
					// Source finished: drain both filters in order.
					tail := strip.Feed(think.Flush()) + strip.Flush()
					if tail != "" {
						emit(ctx, out, types.Fragment{Text: tail})
					}
					return
				}
				text := strip.Feed(think.Feed(frag.Text))
				if text == "" && frag.FinishReason == "" {
					continue
				}
				if !emit(ctx, out, types.Fragment{Text: text, FinishReason: frag.FinishReason}) {
					return
				}
			}
		}
	}()
	return out
}

func emit(ctx context.Context, out chan<- types.Fragment, frag types.Fragment) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- frag:
		return true
	}
}

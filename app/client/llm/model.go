package llm

import (
	"context"
	"drivechat/app/config"
	"drivechat/app/service/command"
	"drivechat/app/service/history"

	"github.com/samber/do"
	"github.com/samber/oops"
)

type Request struct {
	System  string
	History []history.Turn
	Tool    command.Schema
}

// Model is one round trip to a hosted chat model with a single callable tool attached.
// The returned turn has RoleModel and may contain no parts.
type Model interface {
	Generate(ctx context.Context, req Request) (history.Turn, error)
}

func New(di *do.Injector) (Model, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	switch cfg.Model.Provider {
	case config.ProviderGemini:
		return NewGemini(ctx, cfg.Model)
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.Model)
	default:
		return nil, oops.In("llm").Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}

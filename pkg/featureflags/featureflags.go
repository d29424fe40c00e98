package featureflags

import (
	"context"

	"studentslife/pkg/config"
	"studentslife/pkg/logger"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

type FeatureFlag interface {
	Features(ctx context.Context) ([]flagsmith.Flag, error)
	// IsEnabled evaluates feature for identifier, returning fallback when
	// flags are not configured or cannot be fetched.
	IsEnabled(ctx context.Context, identifier, feature string, fallback bool) bool
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{}
	}

	opts := []flagsmith.Option{
		flagsmith.WithAnalytics(),
	}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) Features(ctx context.Context) ([]flagsmith.Flag, error) {
	if s.client == nil {
		return nil, nil
	}

	flags, err := s.client.GetEnvironmentFlags()
	if err != nil {
		return nil, err
	}

	return flags.AllFlags(), nil
}

func (s *featureflag) IsEnabled(ctx context.Context, identifier, feature string, fallback bool) bool {
	if s.client == nil {
		return fallback
	}

	flags, err := s.client.GetIdentityFlags(identifier, nil)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to fetch feature flags", zap.String("identifier", identifier), zap.Error(err))
		return fallback
	}

	enabled, err := flags.IsFeatureEnabled(feature)
	if err != nil {
		return fallback
	}
	return enabled
}

// Static is a fixed flag set, used when flags come from local config or tests.
type Static map[string]bool

func (s Static) Features(ctx context.Context) ([]flagsmith.Flag, error) {
	out := make([]flagsmith.Flag, 0, len(s))
	for name, enabled := range s {
		out = append(out, flagsmith.Flag{FeatureName: name, Enabled: enabled})
	}
	return out, nil
}

func (s Static) IsEnabled(ctx context.Context, identifier, feature string, fallback bool) bool {
	if enabled, ok := s[feature]; ok {
		return enabled
	}
	return fallback
}

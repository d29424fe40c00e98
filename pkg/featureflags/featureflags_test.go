package featureflags

import (
	"context"
	"testing"

	"studentslife/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestUnconfiguredFallsBack(t *testing.T) {
	ff := ProvideFeatureFlag(FeatureParams{Config: &config.Config{}})

	require.True(t, ff.IsEnabled(context.Background(), "partner-1", "loyalty_stamps", true))
	require.False(t, ff.IsEnabled(context.Background(), "partner-1", "loyalty_stamps", false))

	flags, err := ff.Features(context.Background())
	require.NoError(t, err)
	require.Empty(t, flags)
}

func TestStatic(t *testing.T) {
	ff := Static{"loyalty_stamps": false}

	require.False(t, ff.IsEnabled(context.Background(), "partner-1", "loyalty_stamps", true))
	require.True(t, ff.IsEnabled(context.Background(), "partner-1", "unknown", true))
}

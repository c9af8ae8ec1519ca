//go:build integration

package openai

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/cloo-solutions/nutrikb/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_Embed_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client, err := NewClient(Config{APIKey: apiKey})
	require.NoError(t, err)

	ctx := context.Background()
	vecs, err := client.Embed(ctx, []string{
		"Ferritin reflects iron stores in children.",
		"Vitamin D is synthesised in the skin.",
	})

	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, len(vecs[0]), len(vecs[1]))
	for _, v := range vecs {
		assert.Less(t, math.Abs(vector.Norm(v)-1.0), 1e-4)
	}
}

package sequence

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryGeneratorReferralCodeSeqIsPerPrefix(t *testing.T) {
	g := NewMemoryGenerator()
	ctx := context.Background()

	first, err := g.NextReferralCodeSeq(ctx, "JANEDOE")
	require.NoError(t, err)
	second, err := g.NextReferralCodeSeq(ctx, "JANEDOE")
	require.NoError(t, err)
	other, err := g.NextReferralCodeSeq(ctx, "JOHNROE")
	require.NoError(t, err)

	require.Equal(t, int64(1), first)
	require.Equal(t, int64(2), second)
	require.Equal(t, int64(1), other)
}

func TestFormatBatchCode(t *testing.T) {
	code, err := formatBatchCode("240501", 37)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^BATCH-240501-011[A-Z2-9]{2}$`), code)
}

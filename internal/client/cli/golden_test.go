package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophcache/internal/client/iocli"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestGolden_Usage(t *testing.T) {
	var out bytes.Buffer
	PrintUsage(iocli.NewStream(strings.NewReader(""), &out))

	newGoldie(t).Assert(t, "usage", out.Bytes())
}

func TestGolden_Summary(t *testing.T) {
	ctx := context.Background()
	c, out, _ := newTestCli(t, FormatText, nil)

	for _, line := range []string{
		`add widget [{"id": 1, "parts": [{"id": "p1"}]}, {"id": 2}]`,
		`queue widget patch {"id": 2, "name": "renamed"}`,
	} {
		require.NoError(t, c.Execute(ctx, line))
	}
	out.Reset()

	require.NoError(t, c.Execute(ctx, "show"))
	newGoldie(t).Assert(t, "summary", out.Bytes())
}

package log_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
)

func TestNewLevelsAndService(t *testing.T) {
	var buf bytes.Buffer
	l := pkglog.New(pkglog.Config{Level: " WARN ", ServiceName: "social-service", Output: &buf})

	l.Info().Msg("dropped")
	require.Zero(t, buf.Len())

	l.Warn().Str(pkglog.FieldUserID, "u1").Msg("kept")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "social-service", line[pkglog.FieldService])
	require.Equal(t, "u1", line[pkglog.FieldUserID])

	buf.Reset()
	bogus := pkglog.New(pkglog.Config{Level: "bogus", Output: &buf})
	bogus.Debug().Msg("dropped")
	require.Zero(t, buf.Len())
}

package glmix

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerScoreFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).
		WithCoordinate("member", "shard-a")

	l.LogScore(context.Background(), 16, 1, nil)

	out := buf.String()
	for _, want := range []string{
		`"points":16`,
		`"passive_entities":1`,
		`"entity_type":"member"`,
		`"feature_shard":"shard-a"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("score log missing %s: %s", want, out)
		}
	}
	if strings.Contains(out, "active_entities") {
		t.Errorf("score log should not report point counts as entities: %s", out)
	}
}

func TestLoggerTrainFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).
		WithCoordinate("member", "shard-a")

	l.LogTrain(context.Background(), 2, true, nil)

	out := buf.String()
	for _, want := range []string{`"entities":2`, `"warm_start":true`} {
		if !strings.Contains(out, want) {
			t.Errorf("train log missing %s: %s", want, out)
		}
	}
}

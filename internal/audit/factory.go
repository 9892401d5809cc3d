package audit

import (
	"context"
	"os"
	"strings"
)

// Sink modes reported by NewSink.
const (
	ModePostgres = "postgres"
	ModeFile     = "file"
	ModeStdout   = "stdout"
)

// NewSink creates a postgres-backed sink when a database is configured,
// otherwise a JSON-lines sink on logPath (stdout when empty). It also
// reports which mode was chosen.
func NewSink(ctx context.Context, databaseURL, logPath string) (Sink, string, error) {
	if strings.TrimSpace(databaseURL) != "" {
		s, err := OpenPostgresSink(ctx, databaseURL)
		if err != nil {
			return nil, "", err
		}
		return s, ModePostgres, nil
	}
	if strings.TrimSpace(logPath) != "" {
		s, err := OpenJSONSink(logPath)
		if err != nil {
			return nil, "", err
		}
		return s, ModeFile, nil
	}
	return NewJSONSink(os.Stdout), ModeStdout, nil
}

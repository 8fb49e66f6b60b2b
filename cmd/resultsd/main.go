// resultsd runs the analysis pipeline once and serves the result
// tables over a read-only HTTP API.
package main

import (
	"context"
	"log/slog"
	"os"

	"surveykit/internal/app"
)

func main() {
	application, err := app.New(context.Background())
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := application.Run(); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

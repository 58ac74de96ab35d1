package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/convene/pkg/utils/logging"
	"github.com/m-mizutani/gt"
)

func TestNewWithDifferentLevels(t *testing.T) {
	testCases := []struct {
		level       string
		expectDebug bool
		expectInfo  bool
		expectWarn  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warning", false, false, true},
		{"DEBUG", true, true, true},   // Case-insensitive
		{"invalid", false, true, true}, // Defaults to info
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.New(tc.level, buf)
			gt.V(t, logger).NotNil()

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")

			output := buf.String()
			gt.Equal(t, strings.Contains(output, "debug message"), tc.expectDebug)
			gt.Equal(t, strings.Contains(output, "info message"), tc.expectInfo)
			gt.Equal(t, strings.Contains(output, "warn message"), tc.expectWarn)
		})
	}
}

func TestBuild(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger, err := logging.Build("info", logging.FormatJSON, buf)
		gt.NoError(t, err)

		logger.Info("planned", "steps", 2)
		var record map[string]any
		gt.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		gt.Equal(t, record["msg"], any("planned"))
		gt.Equal(t, record["steps"], any(float64(2)))
	})

	t.Run("console", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger, err := logging.Build("debug", logging.FormatConsole, buf)
		gt.NoError(t, err)
		logger.Debug("console message")
		gt.S(t, buf.String()).Contains("console message")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := logging.Build("info", logging.Format("xml"), nil)
		gt.True(t, errors.Is(err, logging.ErrInvalidFormat))
	})
}

func TestWithAndFrom(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("debug", buf).With("component", "orchestrator")
	ctx := logging.With(context.Background(), logger)

	retrieved := logging.From(ctx)
	gt.Equal(t, retrieved, logger)

	retrieved.Info("context message")
	gt.S(t, buf.String()).Contains("context message")
	gt.S(t, buf.String()).Contains("orchestrator")
}

func TestFromUsesDefault(t *testing.T) {
	original := logging.Default()
	defer logging.SetDefault(original)

	buf := &bytes.Buffer{}
	customDefault := logging.New("warn", buf)
	logging.SetDefault(customDefault)

	retrieved := logging.From(context.Background())
	gt.Equal(t, retrieved, customDefault)

	retrieved.Warn("warning from default")
	gt.S(t, buf.String()).Contains("warning from default")
}

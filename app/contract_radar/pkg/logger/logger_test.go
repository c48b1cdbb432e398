package logger

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestCustomFormatter(t *testing.T) {
	entry := &logrus.Entry{
		Time:    time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "分段分析失败",
		Data:    logrus.Fields{"segment": 2, "file": "a.pdf"},
		Caller:  &runtime.Frame{File: "/src/engine/engine.go", Line: 42},
	}
	entry.Logger = logrus.New()
	entry.Logger.SetReportCaller(true)

	out, err := (&CustomFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	want := "[2024-05-01 08:30:00] [WARN] [engine.go:42] 分段分析失败 file=a.pdf segment=2\n"
	if string(out) != want {
		t.Errorf("Format = %q, want %q", out, want)
	}
}

func TestInitLogger_WritesFile(t *testing.T) {
	prev := Log
	defer func() { Log = prev }()

	path := filepath.Join(t.TempDir(), "logs", "radar.log")
	if err := InitLogger("debug", path); err != nil {
		t.Fatalf("InitLogger error: %v", err)
	}
	if Log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", Log.GetLevel())
	}
	Log.Debug("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "[DEBU]") || !strings.Contains(string(data), "hello") {
		t.Errorf("unexpected log content: %q", data)
	}
}

func TestInitLogger_BadLevelFallsBackToInfo(t *testing.T) {
	prev := Log
	defer func() { Log = prev }()

	if err := InitLogger("loud", ""); err != nil {
		t.Fatalf("InitLogger error: %v", err)
	}
	if Log.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want info", Log.GetLevel())
	}
}

package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rafi-backend/internal/logger"
)

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("creates a default text logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriters(&buf))
			l.Info("hello", "key", "value")

			Expect(buf.String()).To(ContainSubstring("hello"))
			Expect(buf.String()).To(ContainSubstring("key=value"))
		})

		It("filters debug at the default level", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriters(&buf))
			l.Debug("hidden")

			Expect(buf.String()).To(BeEmpty())
		})

		It("emits debug when the level allows it", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriters(&buf), logger.WithLevel(slog.LevelDebug))
			l.Debug("upstream payload")

			Expect(buf.String()).To(ContainSubstring("upstream payload"))
		})

		It("drops info when the level is warn", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriters(&buf), logger.WithLevel(slog.LevelWarn))
			l.Info("routine")
			l.Warn("slow upstream")

			Expect(buf.String()).NotTo(ContainSubstring("routine"))
			Expect(buf.String()).To(ContainSubstring("slow upstream"))
		})

		It("creates a JSON logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriters(&buf), logger.WithFormat(logger.FormatJSON))
			l.Info("gemini call", "status", 200)

			var parsed map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &parsed)).To(Succeed())
			Expect(parsed["msg"]).To(Equal("gemini call"))
			Expect(parsed["status"]).To(BeNumerically("==", 200))
		})

		It("creates a pretty logger that honours the level", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriters(&buf), logger.WithFormat(logger.FormatPretty), logger.WithLevel(slog.LevelError))
			l.Warn("quiet")
			l.Error("pretty output")

			Expect(buf.String()).NotTo(ContainSubstring("quiet"))
			Expect(buf.String()).To(ContainSubstring("pretty output"))
		})

		It("supports multiple writers", func() {
			var buf1, buf2 bytes.Buffer
			l := logger.New(logger.WithWriters(&buf1, &buf2))
			l.Info("multi")

			Expect(buf1.String()).To(ContainSubstring("multi"))
			Expect(buf2.String()).To(ContainSubstring("multi"))
		})
	})

	Describe("ParseLevel", func() {
		DescribeTable("maps LOG_LEVEL values",
			func(in string, want slog.Level) {
				Expect(logger.ParseLevel(in)).To(Equal(want))
			},
			Entry("debug", "debug", slog.LevelDebug),
			Entry("upper case", "WARN", slog.LevelWarn),
			Entry("error", "error", slog.LevelError),
			Entry("padded", " info ", slog.LevelInfo),
			Entry("empty", "", slog.LevelInfo),
			Entry("unknown", "verbose", slog.LevelInfo),
		)
	})

	Describe("FromEnv", func() {
		It("applies LOG_LEVEL", func() {
			l := logger.FromEnv("json", "error")

			Expect(l.Enabled(context.Background(), slog.LevelWarn)).To(BeFalse())
			Expect(l.Enabled(context.Background(), slog.LevelError)).To(BeTrue())
		})
	})

	Describe("Nop", func() {
		It("does not panic on any method", func() {
			l := logger.Nop()
			Expect(func() {
				l.Debug("msg")
				l.Info("msg")
				l.Error("msg")
				l.With("key", "value").Info("msg")
			}).NotTo(Panic())
		})
	})
})

package sinks_test

import (
	"strings"
	"time"

	"github.com/leandrodaf/midiviewer/internal/logger"
	"github.com/leandrodaf/midiviewer/internal/sinks"
	"github.com/spf13/afero"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Sinks", func() {
	Describe("Multi", func() {
		It("fans out in order and skips nil sinks", func() {
			var got []string
			first := func(line string) { got = append(got, "1:"+line) }
			second := func(line string) { got = append(got, "2:"+line) }

			sinks.Multi(first, nil, second)("hello")

			Expect(got).To(Equal([]string{"1:hello", "2:hello"}))
		})
	})

	Describe("Timestamped", func() {
		It("prefixes the time", func() {
			c := &sinks.Collector{}
			now := func() time.Time { return time.Date(2024, 1, 2, 13, 14, 15, 16_000_000, time.UTC) }

			sinks.Timestamped(c.Sink(), now)("NoteOn")

			Expect(c.Lines()).To(Equal([]string{"13:14:15.016 NoteOn"}))
		})
	})

	Describe("FileSink", func() {
		var fs afero.Fs

		BeforeEach(func() {
			fs = afero.NewMemMapFs()
		})

		It("appends lines to the file", func() {
			f, err := sinks.NewFileSink(fs, "logs/midi.log", logger.NewNopLogger())
			Expect(err).NotTo(HaveOccurred())

			sink := f.Sink()
			sink("first")
			sink("second")
			Expect(f.Close()).To(Succeed())

			data, err := afero.ReadFile(fs, "logs/midi.log")
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
			Expect(lines).To(HaveLen(2))
			Expect(lines[0]).To(MatchRegexp(`^\d{2}:\d{2}:\d{2}\.\d{3} first$`))
			Expect(lines[1]).To(MatchRegexp(`^\d{2}:\d{2}:\d{2}\.\d{3} second$`))
		})

		It("keeps existing content", func() {
			Expect(afero.WriteFile(fs, "midi.log", []byte("old\n"), 0o644)).To(Succeed())

			f, err := sinks.NewFileSink(fs, "midi.log", logger.NewNopLogger())
			Expect(err).NotTo(HaveOccurred())
			f.Sink()("new")
			Expect(f.Close()).To(Succeed())

			data, err := afero.ReadFile(fs, "midi.log")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(HavePrefix("old\n"))
			Expect(string(data)).To(HaveSuffix(" new\n"))
		})

		It("discards lines after close", func() {
			f, err := sinks.NewFileSink(fs, "midi.log", logger.NewNopLogger())
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Close()).To(Succeed())
			Expect(f.Close()).To(Succeed())

			f.Sink()("late")

			data, err := afero.ReadFile(fs, "midi.log")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(BeEmpty())
		})

		It("fails on a read-only filesystem", func() {
			_, err := sinks.NewFileSink(afero.NewReadOnlyFs(fs), "midi.log", logger.NewNopLogger())
			Expect(err).To(HaveOccurred())
		})
	})
})

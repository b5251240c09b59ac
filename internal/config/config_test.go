package config_test

import (
	"bytes"
	"os"

	"github.com/leandrodaf/midiviewer/internal/config"
	"github.com/leandrodaf/midiviewer/sdk/contracts"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	Describe("Load", func() {
		AfterEach(func() {
			os.Unsetenv("MIDIVIEWER_DRIVER")
			os.Unsetenv("MIDIVIEWER_BUFFER_SIZE")
			os.Unsetenv("MIDIVIEWER_COMMANDS")
		})

		It("returns the defaults", func() {
			cfg, err := config.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.Default()))
		})

		It("reads the environment", func() {
			os.Setenv("MIDIVIEWER_DRIVER", "memory")
			os.Setenv("MIDIVIEWER_BUFFER_SIZE", "16")
			os.Setenv("MIDIVIEWER_COMMANDS", "noteon,noteoff")

			cfg, err := config.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Driver).To(Equal("memory"))
			Expect(cfg.BufferSize).To(Equal(16))
			Expect(cfg.Commands).To(Equal([]string{"noteon", "noteoff"}))
		})

		It("fails on malformed values", func() {
			os.Setenv("MIDIVIEWER_BUFFER_SIZE", "lots")

			_, err := config.Load()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Report", func() {
		It("writes every reportable setting with its variable", func() {
			cfg := config.Default()
			cfg.Driver = "memory"
			cfg.Commands = []string{"noteon"}

			var out bytes.Buffer
			Expect(config.Report(&out, &cfg)).To(Succeed())

			Expect(out.String()).To(HavePrefix("FIELD NAME:"))
			Expect(out.String()).To(ContainSubstring("Config.Driver"))
			Expect(out.String()).To(ContainSubstring("MIDIVIEWER_DRIVER"))
			Expect(out.String()).To(ContainSubstring("memory"))
			Expect(out.String()).To(ContainSubstring("MIDIVIEWER_BUFFER_SIZE"))
			Expect(out.String()).To(ContainSubstring("[noteon]"))
			Expect(out.String()).NotTo(ContainSubstring("(OMITTED)"))
		})
	})

	Describe("ParseLogLevel", func() {
		It("maps level names", func() {
			for name, level := range map[string]contracts.LogLevel{
				"":        contracts.InfoLevel,
				"info":    contracts.InfoLevel,
				"DEBUG":   contracts.DebugLevel,
				"warning": contracts.WarnLevel,
				"error":   contracts.ErrorLevel,
				"fatal":   contracts.FatalLevel,
			} {
				got, err := config.ParseLogLevel(name)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(level), name)
			}
		})

		It("rejects unknown names", func() {
			_, err := config.ParseLogLevel("loud")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ParseFilter", func() {
		It("returns no filter for no names", func() {
			filter, err := config.ParseFilter([]string{"", " "})
			Expect(err).NotTo(HaveOccurred())
			Expect(filter).To(BeNil())
		})

		It("accepts spelling variants", func() {
			filter, err := config.ParseFilter([]string{"note_on", "Control-Change", "pitchbend"})
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Commands).To(Equal([]contracts.MIDICommand{
				contracts.NoteOn, contracts.ControlChange, contracts.PitchBend,
			}))
		})

		It("rejects unknown commands", func() {
			_, err := config.ParseFilter([]string{"sysex"})
			Expect(err).To(MatchError(ContainSubstring("sysex")))
		})
	})
})

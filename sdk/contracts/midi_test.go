package contracts_test

import (
	"github.com/leandrodaf/midiviewer/sdk/contracts"
	gomidi "gitlab.com/gomidi/midi/v2"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Message", func() {
	It("splits command and channel", func() {
		msg := contracts.Message{Data: []byte{0x93, 60, 100}}

		Expect(msg.Command()).To(Equal(contracts.NoteOn))
		ch, ok := msg.Channel()
		Expect(ok).To(BeTrue())
		Expect(ch).To(Equal(uint8(3)))
	})

	It("keeps the whole status byte of system messages", func() {
		msg := contracts.Message{Data: []byte{0xF8}}

		Expect(msg.Command()).To(Equal(contracts.MIDICommand(0xF8)))
		_, ok := msg.Channel()
		Expect(ok).To(BeFalse())
	})

	It("renders the text form gomidi uses", func() {
		data := []byte{0xB0, 7, 64}

		Expect(contracts.Message{Data: data}.String()).To(Equal(gomidi.Message(data).String()))
		Expect(contracts.Message{Data: data}.String()).To(ContainSubstring("ControlChange"))
	})

	It("has no command when empty", func() {
		Expect(contracts.Message{}.Command()).To(BeZero())
	})
})

var _ = Describe("MIDIEventFilter", func() {
	It("lets everything through when nil or empty", func() {
		var none *contracts.MIDIEventFilter
		msg := contracts.Message{Data: []byte{0xE0, 0, 64}}

		Expect(none.Allows(msg)).To(BeTrue())
		Expect((&contracts.MIDIEventFilter{}).Allows(msg)).To(BeTrue())
	})

	It("matches on the command regardless of channel", func() {
		filter := &contracts.MIDIEventFilter{Commands: []contracts.MIDICommand{contracts.NoteOn, contracts.NoteOff}}

		Expect(filter.Allows(contracts.Message{Data: []byte{0x9F, 60, 1}})).To(BeTrue())
		Expect(filter.Allows(contracts.Message{Data: []byte{0x80, 60, 0}})).To(BeTrue())
		Expect(filter.Allows(contracts.Message{Data: []byte{0xB0, 1, 1}})).To(BeFalse())
	})
})

var _ = Describe("DeviceNames", func() {
	It("keeps the order", func() {
		Expect(contracts.DeviceNames([]contracts.DeviceInfo{{Name: "b"}, {Name: "a"}})).To(Equal([]string{"b", "a"}))
	})
})

package midimem_test

import (
	"io"

	"github.com/leandrodaf/midiviewer/internal/logger"
	"github.com/leandrodaf/midiviewer/internal/midi/midimem"
	"github.com/leandrodaf/midiviewer/sdk/contracts"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Driver", func() {
	var driver *midimem.Driver

	BeforeEach(func() {
		driver = midimem.New(&contracts.ClientOptions{Logger: logger.NewNopLogger()})
	})

	It("lists ports sorted by name", func() {
		driver.AddPort("Zeta", "")
		driver.AddPort("Alpha", "Acme")

		devices, err := driver.ListInputs()
		Expect(err).NotTo(HaveOccurred())
		Expect(devices).To(Equal([]contracts.DeviceInfo{
			{Name: "Alpha", Manufacturer: "Acme", EntityName: "Alpha"},
			{Name: "Zeta", EntityName: "Zeta"},
		}))
	})

	It("returns the existing port for a duplicate name", func() {
		p := driver.AddPort("Alpha", "")
		Expect(driver.AddPort("Alpha", "other")).To(BeIdenticalTo(p))
	})

	It("fails to open an unknown port", func() {
		_, err := driver.OpenInput("nope")
		Expect(err).To(MatchError(ContainSubstring(contracts.ErrDeviceNotFound.Error())))
	})

	It("delivers sent messages to every open connection", func() {
		p := driver.AddPort("Alpha", "")
		a, err := driver.OpenInput("Alpha")
		Expect(err).NotTo(HaveOccurred())
		b, err := driver.OpenInput("Alpha")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Connections()).To(Equal(2))

		p.Send([]byte{0x90, 60, 100})

		for _, conn := range []contracts.InputConnection{a, b} {
			msg, err := conn.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.Data).To(Equal([]byte{0x90, 60, 100}))
			Expect(msg.Timestamp).NotTo(BeZero())
		}
		Expect(driver.Opens()).To(Equal(2))
	})

	It("detaches a connection on close", func() {
		p := driver.AddPort("Alpha", "")
		conn, err := driver.OpenInput("Alpha")
		Expect(err).NotTo(HaveOccurred())

		Expect(conn.Close()).To(Succeed())
		Expect(p.Connections()).To(BeZero())
		_, err = conn.Next()
		Expect(err).To(Equal(io.EOF))
	})

	It("fails open connections and forgets the port on unplug", func() {
		p := driver.AddPort("Alpha", "")
		conn, err := driver.OpenInput("Alpha")
		Expect(err).NotTo(HaveOccurred())

		p.Unplug()

		_, err = conn.Next()
		Expect(err).To(MatchError(ContainSubstring(contracts.ErrDeviceRemoved.Error())))
		_, ok := driver.Port("Alpha")
		Expect(ok).To(BeFalse())
	})

	It("closes everything with the driver", func() {
		p := driver.AddPort("Alpha", "")
		conn, err := driver.OpenInput("Alpha")
		Expect(err).NotTo(HaveOccurred())

		Expect(driver.Close()).To(Succeed())
		Expect(driver.Close()).To(Succeed())

		Expect(p.Connections()).To(BeZero())
		_, err = conn.Next()
		Expect(err).To(Equal(io.EOF))
		_, err = driver.OpenInput("Alpha")
		Expect(err).To(MatchError(contracts.ErrDriverClosed))
	})
})

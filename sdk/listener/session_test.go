package listener_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/leandrodaf/midiviewer/internal/logger"
	"github.com/leandrodaf/midiviewer/internal/midi/midimem"
	"github.com/leandrodaf/midiviewer/internal/sinks"
	"github.com/leandrodaf/midiviewer/sdk/contracts"
	"github.com/leandrodaf/midiviewer/sdk/listener"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var (
	noteOn        = []byte{0x90, 60, 100}
	noteOff       = []byte{0x80, 60, 0}
	controlChange = []byte{0xB0, 7, 64}
)

func text(data []byte) string {
	return contracts.Message{Data: data}.String()
}

var _ = Describe("Session", func() {
	var (
		driver  *midimem.Driver
		port    *midimem.Port
		lines   *sinks.Collector
		session *listener.Session
	)

	BeforeEach(func() {
		driver = midimem.New(&contracts.ClientOptions{Logger: logger.NewNopLogger()})
		port = driver.AddPort("Device A", "Acme")
		lines = &sinks.Collector{}
		session = nil
	})

	AfterEach(func() {
		if session != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			Expect(session.StopAndWait(ctx)).To(Succeed())
		}
		Expect(driver.Close()).To(Succeed())
	})

	startOn := func(device string) {
		session = listener.NewSession(device, driver, lines.Sink())
		Expect(session.Start()).To(Succeed())
	}

	It("reports the listening line once the device is open", func() {
		startOn("Device A")

		Eventually(lines.Lines).Should(Equal([]string{listener.ListeningLine("Device A")}))
		Expect(session.Running()).To(BeTrue())
		Expect(session.DeviceName()).To(Equal("Device A"))
		Expect(port.Connections()).To(Equal(1))
	})

	It("forwards messages in order and nothing after stop", func() {
		startOn("Device A")
		Eventually(lines.Lines).Should(HaveLen(1))

		port.Send(noteOn, noteOff, controlChange)

		Eventually(lines.Lines).Should(Equal([]string{
			listener.ListeningLine("Device A"),
			text(noteOn),
			text(noteOff),
			text(controlChange),
		}))

		session.Stop()
		port.Send(noteOn)

		Consistently(lines.Lines).Should(HaveLen(4))
		Eventually(session.Done()).Should(BeClosed())
		Expect(port.Connections()).To(BeZero())
		Expect(session.Running()).To(BeFalse())
	})

	It("delivers N messages between the listening line and termination", func() {
		startOn("Device A")
		Eventually(lines.Lines).Should(HaveLen(1))

		const n = 200
		expected := []string{listener.ListeningLine("Device A")}
		for i := 0; i < n; i++ {
			msg := []byte{0x90, byte(i % 128), 1 + byte(i%126)}
			port.Send(msg)
			expected = append(expected, text(msg))
		}

		Eventually(lines.Lines).Should(Equal(expected))
	})

	It("closes the connection when stopped right after start", func() {
		startOn("Device A")
		session.Stop()

		Eventually(session.Done()).Should(BeClosed())
		Expect(session.Running()).To(BeFalse())
		Expect(port.Connections()).To(BeZero())
	})

	It("joins the worker with StopAndWait", func() {
		startOn("Device A")
		Eventually(lines.Lines).Should(HaveLen(1))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		Expect(session.StopAndWait(ctx)).To(Succeed())

		Expect(session.Done()).To(BeClosed())
		Expect(port.Connections()).To(BeZero())
	})

	It("allows stop on a session that was never started, more than once", func() {
		s := listener.NewSession("Device A", driver, lines.Sink())

		Expect(s.Stop).NotTo(Panic())
		Expect(s.Stop).NotTo(Panic())
		Expect(s.Running()).To(BeFalse())
		Expect(s.Wait(context.Background())).To(Succeed())
		Expect(lines.Lines()).To(BeEmpty())
		Expect(driver.Opens()).To(BeZero())
	})

	It("allows stop twice on a running session", func() {
		startOn("Device A")
		Eventually(lines.Lines).Should(HaveLen(1))

		session.Stop()
		session.Stop()

		Eventually(session.Done()).Should(BeClosed())
		Expect(lines.Lines()).To(HaveLen(1))
	})

	It("reports exactly one error line for an unknown device", func() {
		startOn("Missing Device")

		Eventually(session.Done()).Should(BeClosed())
		Expect(session.Running()).To(BeFalse())
		Expect(lines.Lines()).To(HaveLen(1))
		Expect(lines.Lines()[0]).To(HavePrefix("Error: "))
		Expect(lines.Lines()[0]).To(ContainSubstring(contracts.ErrDeviceNotFound.Error()))
	})

	It("ends with an error line when the device is unplugged", func() {
		startOn("Device A")
		Eventually(lines.Lines).Should(HaveLen(1))
		port.Send(noteOn)
		Eventually(lines.Lines).Should(HaveLen(2))

		port.Unplug()

		Eventually(session.Done()).Should(BeClosed())
		Expect(session.Running()).To(BeFalse())
		Expect(lines.Lines()).To(HaveLen(3))
		Expect(lines.Lines()[2]).To(Equal(listener.ErrorLine(errors.New(contracts.ErrDeviceRemoved.Error() + ": Device A"))))
	})

	Context("with a sink that lags behind the device", func() {
		var (
			gate     chan struct{}
			openGate func()
		)

		BeforeEach(func() {
			gate = make(chan struct{})
			var once sync.Once
			openGate = func() { once.Do(func() { close(gate) }) }

			collect := lines.Sink()
			session = listener.NewSession("Device A", driver, func(line string) {
				if line != listener.ListeningLine("Device A") {
					<-gate
				}
				collect(line)
			})
			Expect(session.Start()).To(Succeed())
			Eventually(lines.Lines).Should(HaveLen(1))
		})

		AfterEach(func() {
			openGate()
		})

		It("delivers messages received before an unplug, then the error line", func() {
			port.Send(noteOn, noteOff, controlChange)
			port.Unplug()
			openGate()

			Eventually(session.Done()).Should(BeClosed())
			Expect(lines.Lines()).To(Equal([]string{
				listener.ListeningLine("Device A"),
				text(noteOn),
				text(noteOff),
				text(controlChange),
				listener.ErrorLine(errors.New(contracts.ErrDeviceRemoved.Error() + ": Device A")),
			}))
		})

		It("keeps every message of a burst larger than the sink can take", func() {
			const n = 2000
			clock := []byte{0xF8}
			for i := 0; i < n; i++ {
				port.Send(clock)
			}
			openGate()

			Eventually(lines.Lines).Should(HaveLen(n + 1))
			Consistently(lines.Lines).Should(HaveLen(n + 1))
			for _, line := range lines.Lines()[1:] {
				Expect(line).To(Equal(text(clock)))
			}
		})
	})

	It("refuses to be started twice", func() {
		startOn("Device A")

		Expect(session.Start()).To(MatchError(listener.ErrSessionReused))
		Eventually(lines.Lines).Should(HaveLen(1))
		Expect(driver.Opens()).To(Equal(1))
	})

	It("times out Wait while the worker is still blocked", func() {
		startOn("Device A")
		Eventually(lines.Lines).Should(HaveLen(1))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		Expect(session.Wait(ctx)).To(MatchError(context.DeadlineExceeded))
		Expect(session.Running()).To(BeTrue())
	})
})

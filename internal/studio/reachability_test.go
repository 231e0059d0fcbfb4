package studio

import (
	"bytes"
	"net"
	"os"
	"path"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("reachability checker", func() {
	Context("create new reachability checker", func() {
		It("should be ok", func() {
			tmpDir, err := os.MkdirTemp("", "reachability")
			Expect(err).To(BeNil())
			defer os.RemoveAll(tmpDir)

			checker, err := NewReachabilityChecker("http://localhost:8000", tmpDir, time.Second)
			Expect(err).To(BeNil())
			Expect(checker.logFilepath).To(Equal(path.Join(tmpDir, "reachability.log")))

			stat, err := os.Stat(checker.logFilepath)
			Expect(err).To(BeNil())
			Expect(stat.IsDir()).To(BeFalse())
		})

		It("should fail -- log folder missing", func() {
			_, err := NewReachabilityChecker("http://localhost:8000", "some_unknown_folder", time.Second)
			Expect(err).NotTo(BeNil())
		})

		It("should fail -- composer url has no hostname", func() {
			tmpDir, err := os.MkdirTemp("", "reachability")
			Expect(err).To(BeNil())
			defer os.RemoveAll(tmpDir)

			_, err = NewReachabilityChecker("http://", tmpDir, time.Second)
			Expect(err).NotTo(BeNil())
		})
	})

	Context("dial address", func() {
		It("uses the explicit port", func() {
			address, err := dialAddress("http://composer.local:8000")
			Expect(err).To(BeNil())
			Expect(address).To(Equal("composer.local:8000"))
		})

		It("falls back to the scheme when no port is given", func() {
			address, err := dialAddress("https://tunnel.ngrok.app")
			Expect(err).To(BeNil())
			Expect(address).To(Equal("tunnel.ngrok.app:https"))
		})
	})

	Context("test the lifecycle of the reachability checker", func() {
		var (
			tmpDir   string
			listener net.Listener
			checker  *ReachabilityChecker
		)

		BeforeEach(func() {
			var err error
			tmpDir, err = os.MkdirTemp("", "reachability")
			Expect(err).To(BeNil())

			listener, err = net.Listen("tcp", "127.0.0.1:0")
			Expect(err).To(BeNil())

			checker, err = NewReachabilityChecker("http://"+listener.Addr().String(), tmpDir, 50*time.Millisecond)
			Expect(err).To(BeNil())
		})

		AfterEach(func() {
			if listener != nil {
				_ = listener.Close()
			}
			os.RemoveAll(tmpDir)
		})

		It("probes synchronously on start and closes cleanly", func() {
			closeCh := make(chan chan any)
			checker.Start(closeCh)
			Expect(checker.State()).To(Equal(ComposerReachable))

			c := make(chan any, 1)
			closeCh <- c

			received := 0
			for range c {
				received++
			}
			Expect(received).To(Equal(1))
		})

		It("flips to unreachable when the composer goes away", func() {
			closeCh := make(chan chan any)
			checker.Start(closeCh)
			Expect(checker.State()).To(Equal(ComposerReachable))

			Expect(listener.Close()).To(Succeed())
			listener = nil

			Eventually(func() ReachabilityState { return checker.State() }).Should(Equal(ComposerUnreachable))

			c := make(chan any, 1)
			closeCh <- c
			<-c

			// only the first success makes it into the log, failures all do
			content, err := os.ReadFile(checker.logFilepath)
			Expect(err).To(BeNil())
			entries := bytes.Split(bytes.TrimSpace(content), []byte("\n"))

			countOK := 0
			countUnreachable := 0
			for _, entry := range entries {
				if bytes.Contains(entry, []byte("is OK")) {
					countOK++
				}
				if bytes.Contains(entry, []byte("is unreachable")) {
					countUnreachable++
				}
			}
			Expect(countOK).To(Equal(1))
			Expect(countUnreachable).NotTo(BeZero())
		})
	})
})

package studio_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/mixdeskhq/mixdesk/api/v1"
	"github.com/mixdeskhq/mixdesk/internal/studio"
	"github.com/mixdeskhq/mixdesk/internal/studio/config"
	"github.com/mixdeskhq/mixdesk/internal/util"
)

var _ = Describe("studio", func() {
	It("runs a mashup from prompt to download", func() {
		audio := []byte("ID3 pretend mashup bytes")

		var statusPolls int32
		composer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodPost && r.URL.Path == "/generate":
				Expect(r.Header.Get("ngrok-skip-browser-warning")).To(Equal("true"))
				form := map[string]string{}
				Expect(json.NewDecoder(r.Body).Decode(&form)).To(Succeed())
				Expect(form["prompt"]).To(Equal("mashup of A and B"))
				_, _ = w.Write([]byte(`{"job_id": "j1"}`))
			case r.Method == http.MethodGet && r.URL.Path == "/status/j1":
				Expect(r.Header.Get("ngrok-skip-browser-warning")).To(Equal("true"))
				seq := []string{
					`{"status": "parsing_prompt"}`,
					`{"status": "searching_youtube"}`,
					`{"status": "downloading_audio"}`,
					`{"status": "processing_audio"}`,
					`{"status": "complete", "file_url": "/out/j1.mp3"}`,
				}
				n := int(atomic.AddInt32(&statusPolls, 1))
				if n > len(seq) {
					n = len(seq)
				}
				_, _ = w.Write([]byte(seq[n-1]))
			case r.Method == http.MethodGet && r.URL.Path == "/out/j1.mp3":
				_, _ = w.Write(audio)
			default:
				http.NotFound(w, r)
			}
		}))
		defer composer.Close()

		dataDir, err := os.MkdirTemp("", "studio")
		Expect(err).To(BeNil())
		defer os.RemoveAll(dataDir)

		cfg := config.NewDefault()
		cfg.DataDir = dataDir
		cfg.Composer.Service.Server = composer.URL
		cfg.PollInterval = util.Duration{Duration: 5 * time.Millisecond}
		cfg.ReachabilityInterval = util.Duration{Duration: 20 * time.Millisecond}

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(BeNil())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		runErr := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			runErr <- studio.New(cfg, listener).Run(ctx)
		}()

		console := "http://" + listener.Addr().String()

		Eventually(func() error {
			resp, err := http.Get(console + "/health")
			if err != nil {
				return err
			}
			resp.Body.Close()
			return nil
		}).Should(Succeed())

		resp, err := http.Post(console+"/api/v1/jobs", "application/json", bytes.NewBufferString(`{"prompt": "mashup of A and B"}`))
		Expect(err).To(BeNil())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

		status := func() studio.StatusReply {
			resp, err := http.Get(console + "/api/v1/status")
			Expect(err).To(BeNil())
			defer resp.Body.Close()
			reply := studio.StatusReply{}
			Expect(json.NewDecoder(resp.Body).Decode(&reply)).To(Succeed())
			return reply
		}

		Eventually(func() v1.Phase { return status().Phase }).Should(Equal(v1.PhaseComplete))

		final := status()
		Expect(final.JobID).To(Equal("j1"))
		Expect(final.Active).To(BeFalse())
		Expect(final.Connected).To(Equal("true"))
		Expect(final.ArtifactURL).To(Equal(composer.URL + "/out/j1.mp3"))
		for _, step := range final.Steps {
			Expect(step.State).To(Equal(v1.StepPassed))
		}

		resp, err = http.Get(console + "/api/v1/artifact")
		Expect(err).To(BeNil())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("Content-Disposition")).To(Equal(`attachment; filename="j1.mp3"`))
		got, err := io.ReadAll(resp.Body)
		Expect(err).To(BeNil())
		Expect(got).To(Equal(audio))

		cancel()
		Eventually(runErr).Should(Receive(BeNil()))
	})
})

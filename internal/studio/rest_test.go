package studio_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v1 "github.com/mixdeskhq/mixdesk/api/v1"
	"github.com/mixdeskhq/mixdesk/internal/studio"
	"github.com/mixdeskhq/mixdesk/internal/studio/client"
	"github.com/mixdeskhq/mixdesk/pkg/artifact"
)

var _ = Describe("console api", func() {
	var (
		composerFiles *httptest.Server
		audio         []byte
	)

	BeforeEach(func() {
		audio = []byte("ID3 not really audio")
		composerFiles = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/out/j1.mp3" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(audio)
		}))
	})

	AfterEach(func() {
		composerFiles.Close()
	})

	newConsole := func(ctrl *studio.Controller) *httptest.Server {
		router := chi.NewRouter()
		studio.RegisterApi(router, ctrl, nil, artifact.NewFetcher(nil), composerFiles.URL)
		return httptest.NewServer(router)
	}

	Context("submit", func() {
		It("accepts a prompt and replies with the optimistic state", func() {
			gate := make(chan struct{})
			var statusCalls int32
			ctrl := studio.NewController(&client.ComposerMock{
				CreateJobFunc: func(ctx context.Context, prompt string) (string, error) {
					<-gate
					return "j1", nil
				},
				GetJobStatusFunc: sequencedStatus(&statusCalls, fullRun),
			}, studio.WithPollInterval(2*time.Millisecond))
			defer ctrl.Close()

			ts := newConsole(ctrl)
			defer ts.Close()

			resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", bytes.NewBufferString(`{"prompt": "mashup of A and B"}`))
			Expect(err).To(BeNil())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			reply := studio.StatusReply{}
			Expect(json.NewDecoder(resp.Body).Decode(&reply)).To(Succeed())
			Expect(reply.Phase).To(Equal(v1.PhaseParsingPrompt))
			Expect(reply.Active).To(BeTrue())
			Expect(reply.JobID).To(BeEmpty())
			Expect(reply.Steps).To(HaveLen(4))
			Expect(reply.Steps[0].State).To(Equal(v1.StepInProgress))
			Expect(reply.Steps[1].State).To(Equal(v1.StepPending))

			close(gate)
			Eventually(func() v1.Phase { return ctrl.CurrentState().Phase }).Should(Equal(v1.PhaseComplete))
		})

		It("rejects an empty prompt", func() {
			ctrl := studio.NewController(&client.ComposerMock{})
			defer ctrl.Close()

			ts := newConsole(ctrl)
			defer ts.Close()

			for _, body := range []string{`{"prompt": ""}`, `{"prompt": "   "}`, `{}`, `not json`} {
				resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", bytes.NewBufferString(body))
				Expect(err).To(BeNil())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest), "body: %s", body)
			}

			// nothing reached the controller
			Expect(ctrl.CurrentState()).To(Equal(v1.IdleSnapshot()))
		})

		It("rejects a prompt while a job is active", func() {
			gate := make(chan struct{})
			var statusCalls int32
			ctrl := studio.NewController(&client.ComposerMock{
				CreateJobFunc: func(ctx context.Context, prompt string) (string, error) {
					<-gate
					return "j1", nil
				},
				GetJobStatusFunc: sequencedStatus(&statusCalls, fullRun),
			}, studio.WithPollInterval(2*time.Millisecond))
			defer ctrl.Close()

			ts := newConsole(ctrl)
			defer ts.Close()

			resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", bytes.NewBufferString(`{"prompt": "mashup of A and B"}`))
			Expect(err).To(BeNil())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			resp, err = http.Post(ts.URL+"/api/v1/jobs", "application/json", bytes.NewBufferString(`{"prompt": "another one"}`))
			Expect(err).To(BeNil())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))

			close(gate)
			Eventually(func() v1.Phase { return ctrl.CurrentState().Phase }).Should(Equal(v1.PhaseComplete))
		})
	})

	Context("status", func() {
		It("reports the idle state", func() {
			ctrl := studio.NewController(&client.ComposerMock{})
			defer ctrl.Close()

			ts := newConsole(ctrl)
			defer ts.Close()

			resp, err := http.Get(ts.URL + "/api/v1/status")
			Expect(err).To(BeNil())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			reply := studio.StatusReply{}
			Expect(json.NewDecoder(resp.Body).Decode(&reply)).To(Succeed())
			Expect(reply.Phase).To(Equal(v1.PhaseIdle))
			Expect(reply.Active).To(BeFalse())
			Expect(reply.Connected).To(Equal("true"))
			Expect(reply.ArtifactURL).To(BeEmpty())
			for _, step := range reply.Steps {
				Expect(step.State).To(Equal(v1.StepPending))
			}
		})

		It("reports the finished state with an absolute artifact url", func() {
			var statusCalls int32
			ctrl := studio.NewController(&client.ComposerMock{
				CreateJobFunc: func(ctx context.Context, prompt string) (string, error) {
					return "j1", nil
				},
				GetJobStatusFunc: sequencedStatus(&statusCalls, fullRun),
			}, studio.WithPollInterval(2*time.Millisecond))
			defer ctrl.Close()

			ts := newConsole(ctrl)
			defer ts.Close()

			resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", bytes.NewBufferString(`{"prompt": "mashup of A and B"}`))
			Expect(err).To(BeNil())
			resp.Body.Close()
			Eventually(func() v1.Phase { return ctrl.CurrentState().Phase }).Should(Equal(v1.PhaseComplete))

			resp, err = http.Get(ts.URL + "/api/v1/status")
			Expect(err).To(BeNil())
			defer resp.Body.Close()

			reply := studio.StatusReply{}
			Expect(json.NewDecoder(resp.Body).Decode(&reply)).To(Succeed())
			Expect(reply.Phase).To(Equal(v1.PhaseComplete))
			Expect(reply.JobID).To(Equal("j1"))
			Expect(reply.ArtifactURL).To(Equal(composerFiles.URL + "/out/j1.mp3"))
			for _, step := range reply.Steps {
				Expect(step.State).To(Equal(v1.StepPassed))
			}
		})
	})

	Context("phases", func() {
		It("lists the catalog in order", func() {
			ctrl := studio.NewController(&client.ComposerMock{})
			defer ctrl.Close()

			ts := newConsole(ctrl)
			defer ts.Close()

			resp, err := http.Get(ts.URL + "/api/v1/phases")
			Expect(err).To(BeNil())
			defer resp.Body.Close()

			reply := studio.PhasesReply{}
			Expect(json.NewDecoder(resp.Body).Decode(&reply)).To(Succeed())
			Expect(reply.Phases).To(HaveLen(4))
			Expect(reply.Phases[0].Key).To(Equal(v1.PhaseParsingPrompt))
			Expect(reply.Phases[0].Label).To(Equal("prompt analysis"))
			Expect(reply.Phases[3].Key).To(Equal(v1.PhaseProcessingAudio))
			Expect(reply.Phases[3].Label).To(Equal("mixing/mastering"))
		})
	})

	Context("artifact", func() {
		It("is not found until the job completes", func() {
			ctrl := studio.NewController(&client.ComposerMock{})
			defer ctrl.Close()

			ts := newConsole(ctrl)
			defer ts.Close()

			resp, err := http.Get(ts.URL + "/api/v1/artifact")
			Expect(err).To(BeNil())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("streams the finished mashup as an attachment", func() {
			var statusCalls int32
			ctrl := studio.NewController(&client.ComposerMock{
				CreateJobFunc: func(ctx context.Context, prompt string) (string, error) {
					return "j1", nil
				},
				GetJobStatusFunc: sequencedStatus(&statusCalls, fullRun),
			}, studio.WithPollInterval(2*time.Millisecond))
			defer ctrl.Close()

			ts := newConsole(ctrl)
			defer ts.Close()

			resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", bytes.NewBufferString(`{"prompt": "mashup of A and B"}`))
			Expect(err).To(BeNil())
			resp.Body.Close()
			Eventually(func() v1.Phase { return ctrl.CurrentState().Phase }).Should(Equal(v1.PhaseComplete))

			resp, err = http.Get(ts.URL + "/api/v1/artifact")
			Expect(err).To(BeNil())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Disposition")).To(Equal(`attachment; filename="j1.mp3"`))

			got, err := io.ReadAll(resp.Body)
			Expect(err).To(BeNil())
			Expect(got).To(Equal(audio))
		})
	})

	Context("version", func() {
		It("reports the build version", func() {
			ctrl := studio.NewController(&client.ComposerMock{})
			defer ctrl.Close()

			ts := newConsole(ctrl)
			defer ts.Close()

			resp, err := http.Get(ts.URL + "/api/v1/version")
			Expect(err).To(BeNil())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			reply := studio.VersionReply{}
			Expect(json.NewDecoder(resp.Body).Decode(&reply)).To(Succeed())
			Expect(reply.Version).NotTo(BeEmpty())
		})
	})
})

package studio

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	v1 "github.com/mixdeskhq/mixdesk/api/v1"
	"github.com/mixdeskhq/mixdesk/internal/validator"
	"github.com/mixdeskhq/mixdesk/pkg/artifact"
	"github.com/mixdeskhq/mixdesk/pkg/version"
)

func RegisterApi(router *chi.Mux, controller *Controller, checker *ReachabilityChecker, fetcher *artifact.Fetcher, composerURL string) {
	router.Get("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		_ = render.Render(w, r, VersionReply{Version: version.Get().String()})
	})
	router.Get("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		_ = render.Render(w, r, newStatusReply(controller, checker, composerURL))
	})
	router.Get("/api/v1/phases", func(w http.ResponseWriter, r *http.Request) {
		_ = render.Render(w, r, PhasesReply{Phases: v1.Catalog()})
	})
	router.Post("/api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		submitHandler(controller, checker, composerURL, w, r)
	})
	router.Get("/api/v1/artifact", func(w http.ResponseWriter, r *http.Request) {
		artifactHandler(controller, fetcher, composerURL, w, r)
	})
}

type SubmitRequest struct {
	Prompt string `json:"prompt" validate:"required,prompt"`
}

type StatusReply struct {
	JobID       string    `json:"jobId,omitempty"`
	Prompt      string    `json:"prompt,omitempty"`
	Phase       v1.Phase  `json:"phase"`
	Active      bool      `json:"active"`
	Connected   string    `json:"connected"`
	Steps       []v1.Step `json:"steps"`
	ArtifactURL string    `json:"artifactUrl,omitempty"`
}

type PhasesReply struct {
	Phases []v1.CatalogEntry `json:"phases"`
}

type VersionReply struct {
	Version string `json:"version"`
}

func (s StatusReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (p PhasesReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (v VersionReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func submitHandler(controller *Controller, checker *ReachabilityChecker, composerURL string, w http.ResponseWriter, r *http.Request) {
	var form SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	v := validator.NewValidator()
	v.Register(validator.NewSubmitValidationRules()...)
	if err := v.Struct(form); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := controller.Submit(form.Prompt); err != nil {
		switch {
		case errors.Is(err, ErrEmptyPrompt):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrJobActive):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		}
		return
	}

	render.Status(r, http.StatusAccepted)
	_ = render.Render(w, r, newStatusReply(controller, checker, composerURL))
}

func artifactHandler(controller *Controller, fetcher *artifact.Fetcher, composerURL string, w http.ResponseWriter, r *http.Request) {
	snap := controller.CurrentState()
	if snap.Phase != v1.PhaseComplete || snap.ArtifactRef == "" {
		http.Error(w, "artifact not available", http.StatusNotFound)
		return
	}

	downloadURL, err := ArtifactDownloadURL(composerURL, snap.ArtifactRef)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if name := artifactFilename(snap.ArtifactRef); name != "" {
		w.Header().Add("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	} else {
		w.Header().Add("Content-Disposition", "attachment")
	}

	ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
	if err := fetcher.Fetch(r.Context(), downloadURL, ww); err != nil {
		zap.S().Named("rest").Errorw("artifact download failed", "url", downloadURL, "error", err)
		// headers are gone once streaming started
		if ww.BytesWritten() == 0 {
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
	}
}

func newStatusReply(controller *Controller, checker *ReachabilityChecker, composerURL string) StatusReply {
	snap := controller.CurrentState()

	connected := true
	if checker != nil && checker.State() == ComposerUnreachable {
		connected = false
	}

	reply := StatusReply{
		JobID:     snap.JobID,
		Prompt:    snap.Prompt,
		Phase:     snap.Phase,
		Active:    snap.Active,
		Connected: fmt.Sprintf("%t", connected),
		Steps:     v1.Steps(snap.Phase, snap.Reached),
	}
	if snap.ArtifactRef != "" {
		if downloadURL, err := ArtifactDownloadURL(composerURL, snap.ArtifactRef); err == nil {
			reply.ArtifactURL = downloadURL
		}
	}
	return reply
}

// ArtifactDownloadURL turns the file reference reported by the composer
// into a fetchable URL. References that are already absolute pass
// through untouched.
func ArtifactDownloadURL(composerURL string, ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("error parsing artifact reference %q: %w", ref, err)
	}
	if parsed.IsAbs() {
		return ref, nil
	}

	base, err := url.Parse(composerURL)
	if err != nil {
		return "", fmt.Errorf("error parsing composer url: %w", err)
	}
	downloadURL := url.URL{
		Scheme:   base.Scheme,
		Host:     base.Host,
		Path:     path.Join(base.Path, parsed.Path),
		RawQuery: parsed.RawQuery,
	}
	return downloadURL.String(), nil
}

func artifactFilename(ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

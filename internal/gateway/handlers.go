package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pulselabs/pulse-gateway/internal/audit"
	"github.com/pulselabs/pulse-gateway/internal/domain"
	"github.com/pulselabs/pulse-gateway/internal/jobs"
	"github.com/pulselabs/pulse-gateway/internal/ratelimit"
	"github.com/pulselabs/pulse-gateway/internal/server"
	"github.com/pulselabs/pulse-gateway/internal/session"
)

// requireParam rejects requests whose URL parameter decodes to blank before
// the handler, or the forwarder, sees them.
func requireParam(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(chi.URLParam(r, name)) == "" {
				server.Error(w, r, domain.ErrValidation(name+" is required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	server.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Key string `json:"key"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Role          string `json:"role,omitempty"`
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.Error(w, r, domain.ErrValidation("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		server.Error(w, r, domain.ErrValidation("key is required"))
		return
	}

	if !g.verifier.VerifyAdminKey(req.Key) {
		g.recorder.Record(audit.Event{
			Kind:      audit.KindLoginFailure,
			OriginIP:  ratelimit.ClientIP(r),
			Detail:    "admin key rejected",
			RequestID: server.GetRequestID(r.Context()),
		})
		server.Error(w, r, domain.ErrAuthentication("invalid admin key"))
		return
	}

	sess := &session.Session{UserID: "admin", Role: session.RoleAdmin}
	if err := g.sessions.Issue(w, sess); err != nil {
		server.Error(w, r, domain.ErrServer("failed to issue session"))
		return
	}

	g.recorder.Record(audit.Event{
		Kind:      audit.KindLogin,
		Actor:     sess.UserID,
		OriginIP:  ratelimit.ClientIP(r),
		RequestID: server.GetRequestID(r.Context()),
	})

	server.JSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		UserID:        sess.UserID,
		Role:          sess.Role,
	})
}

func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	g.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, err := g.sessions.Current(r)
	if err != nil {
		server.Error(w, r, domain.ErrServer("session lookup failed"))
		return
	}
	if sess == nil {
		server.JSON(w, http.StatusOK, sessionResponse{Authenticated: false})
		return
	}
	server.JSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		UserID:        sess.UserID,
		Role:          sess.Role,
	})
}

// proxy relays the request to the upstream under the same path, minus the
// /api mount point. The upstream's status and body come back byte for byte.
func (g *Gateway) proxy(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	path = strings.TrimRight(path, "/")

	result, apiErr := g.forwarder.Forward(r.Context(), r.Method, path, r.URL.RawQuery, r.Body, r.Header.Get("Content-Type"))
	if apiErr != nil {
		if apiErr.Type == domain.ErrorTypeUpstream {
			g.recorder.Record(audit.Event{
				Kind:      audit.KindUpstreamError,
				OriginIP:  ratelimit.ClientIP(r),
				Detail:    r.Method + " " + path + ": " + apiErr.Message,
				RequestID: server.GetRequestID(r.Context()),
			})
		}
		server.Error(w, r, apiErr)
		return
	}

	server.Data(w, result.StatusCode, result.ContentType, result.Body)
}

type jobStartedResponse struct {
	JobID  string      `json:"job_id"`
	Status jobs.Status `json:"status"`
}

func (g *Gateway) handleModelDownload(w http.ResponseWriter, r *http.Request) {
	jobID := "job_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	tracker, err := jobs.Start(r.Context(), g.jobStore, jobID, "model download queued")
	if err != nil {
		server.Error(w, r, domain.ErrServer("failed to start job"))
		return
	}

	var actor string
	if sess := server.SessionFromContext(r.Context()); sess != nil {
		actor = sess.UserID
	}
	g.recorder.Record(audit.Event{
		Kind:      audit.KindJobStarted,
		Actor:     actor,
		OriginIP:  ratelimit.ClientIP(r),
		Detail:    "model download " + jobID,
		RequestID: server.GetRequestID(r.Context()),
	})

	// The job outlives the request; it runs on its own context.
	go g.runModelDownload(context.Background(), tracker)

	server.JSON(w, http.StatusAccepted, jobStartedResponse{
		JobID:  jobID,
		Status: jobs.StatusStarting,
	})
}

// runModelDownload advances a download job through its lifecycle. Stages are
// paced by stageDelay so pollers observe intermediate states.
func (g *Gateway) runModelDownload(ctx context.Context, tracker *jobs.Tracker) {
	stages := []struct {
		status   jobs.Status
		progress int
		message  string
	}{
		{jobs.StatusDownloading, 20, "downloading model archive"},
		{jobs.StatusDownloading, 65, "downloading model archive"},
		{jobs.StatusExtracting, 85, "extracting model files"},
		{jobs.StatusCompleted, 100, "model ready"},
	}

	for _, stage := range stages {
		time.Sleep(g.stageDelay)
		if err := tracker.Update(ctx, stage.status, stage.progress, stage.message); err != nil {
			g.logger.Error("model download job update failed",
				"job_id", tracker.Record().ID, "error", err)
			if failErr := tracker.Fail(ctx, "internal job error"); failErr != nil {
				g.logger.Error("model download job fail transition rejected",
					"job_id", tracker.Record().ID, "error", failErr)
			}
			return
		}
	}
}

func (g *Gateway) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		server.Error(w, r, domain.ErrValidation("id is required"))
		return
	}

	rec, err := g.jobStore.Get(r.Context(), id)
	if err != nil {
		server.Error(w, r, domain.ErrServer("job lookup failed"))
		return
	}
	if rec == nil {
		server.Error(w, r, domain.ErrNotFound("job not found"))
		return
	}

	server.JSON(w, http.StatusOK, rec)
}

package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"
	"github.com/google/uuid"

	"github.com/jonathan/boot-release/internal/pipeline"
	"github.com/jonathan/boot-release/internal/types"
)

// maxPayloadBytes caps the webhook body; GitHub documents 25 MB
const maxPayloadBytes = 25 << 20

// PushResponse is returned by /hooks/push
type PushResponse struct {
	Status     string `json:"status"` // started, ignored, pong
	RunID      string `json:"run_id,omitempty"`
	Reference  string `json:"reference,omitempty"`
	DeliveryID string `json:"delivery_id"`
	Reason     string `json:"reason,omitempty"`
}

// handlePush accepts a push webhook and starts a release run when the pushed
// reference matches the trigger pattern
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	deliveryID := github.DeliveryID(r)
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	log := s.log.InFunc("handlePush")
	log.Entry = log.WithField("delivery_id", deliveryID)

	event, err := s.readPushEvent(r)
	if err != nil {
		log.WithError(err).Warn("Rejected webhook")
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if event == nil {
		s.jsonResponse(w, http.StatusOK, PushResponse{Status: "ignored", DeliveryID: deliveryID, Reason: "not a push event"})
		return
	}
	if _, ok := event.(pong); ok {
		s.jsonResponse(w, http.StatusOK, PushResponse{Status: "pong", DeliveryID: deliveryID})
		return
	}

	push := event.(*github.PushEvent)
	trig := s.triggerEvent(push)

	resp := PushResponse{DeliveryID: deliveryID, Reference: trig.Reference}
	switch {
	case push.GetDeleted():
		resp.Status, resp.Reason = "ignored", "reference deleted"
	case !s.cfg.Matcher.MatchEvent(trig):
		resp.Status, resp.Reason = "ignored", "reference does not match "+s.cfg.Matcher.Pattern()
	}
	if resp.Status != "" {
		log.WithField("reference", trig.Reference).Info("Push ignored")
		s.jsonResponse(w, http.StatusOK, resp)
		return
	}

	runID, err := s.startRun(trig)
	if err != nil {
		log.WithError(err).Warn("Run not started")
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	log.WithRun(runID.String()).WithField("reference", trig.Reference).Info("Release run started")
	resp.Status, resp.RunID = "started", runID.String()
	s.jsonResponse(w, http.StatusAccepted, resp)
}

type pong struct{}

// readPushEvent verifies and decodes the request. It returns nil, nil for
// event types other than push and ping.
func (s *Server) readPushEvent(r *http.Request) (any, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return nil, &ErrInvalidPayload{Message: "content type must be application/json"}
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		return nil, &ErrInvalidPayload{Message: "failed to read body", Cause: err}
	}

	if s.cfg.WebhookSecret != "" {
		signature := r.Header.Get(github.SHA256SignatureHeader)
		if signature == "" {
			signature = r.Header.Get(github.SHA1SignatureHeader)
		}
		if signature == "" {
			return nil, &ErrSignature{Cause: errors.New("missing signature header")}
		}
		if err := github.ValidateSignature(signature, body, []byte(s.cfg.WebhookSecret)); err != nil {
			return nil, &ErrSignature{Cause: err}
		}
	}

	eventType := github.WebHookType(r)
	switch eventType {
	case "", "push":
		eventType = "push"
	case "ping":
		return pong{}, nil
	default:
		return nil, nil
	}

	parsed, err := github.ParseWebHook(eventType, body)
	if err != nil {
		return nil, &ErrInvalidPayload{Message: "malformed push event", Cause: err}
	}
	push, ok := parsed.(*github.PushEvent)
	if !ok || push.GetRef() == "" {
		return nil, &ErrInvalidPayload{Message: "push event has no ref"}
	}
	return push, nil
}

func (s *Server) triggerEvent(push *github.PushEvent) types.TriggerEvent {
	snapshot := types.RepositorySnapshot{
		Path:      s.cfg.Workdir,
		CommitSHA: push.GetAfter(),
	}
	if owner, name, ok := strings.Cut(push.GetRepo().GetFullName(), "/"); ok {
		snapshot.Owner, snapshot.Name = owner, name
	}
	return types.TriggerEvent{Reference: push.GetRef(), Repository: snapshot}
}

// startRun claims the single run slot and executes the run in the background
func (s *Server) startRun(event types.TriggerEvent) (uuid.UUID, error) {
	runID := uuid.New()
	if !s.runs.begin(runID.String(), event, s.now()) {
		return uuid.Nil, pipeline.ErrBusy
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log := s.log.InFunc("startRun").WithRun(runID.String())

		summary, err := s.cfg.Runner.RunWithID(s.runCtx, runID, event)
		if summary == nil {
			fallback, _ := s.runs.get(runID.String())
			summary = &fallback
			summary.State = types.RunFailed
			summary.FinishedAt = s.now()
		}
		if err != nil {
			summary.Error = err.Error()
			log.WithError(err).Error("Release run failed")
		} else {
			log.WithField("state", summary.State).Info("Release run finished")
		}
		s.runs.finish(runID.String(), summary)
	}()
	return runID, nil
}

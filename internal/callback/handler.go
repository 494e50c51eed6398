// Package callback implements the upstream push-notification surface (spec
// §4.1, §4.9): GET for the platform's URL-verification handshake, POST for
// the actual event stream.
package callback

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
)

// statuChangeEventIgnored is the event-type code the platform uses for
// comment/attachment activity on an approval rather than a status
// transition (spec §4.9); these carry no SpStatus worth acting on.
const statuChangeEventIgnored = 10

// spStatusPending is the upstream sp_status code for "Pending" (matches
// domain.StatusPending's wire code), used by the third event filter below:
// a duplicate Pending push for an approval already in the active index is
// an intermediate step within a flow already being tracked, not a new
// event worth dispatching.
const spStatusPending = 1

// Codec is the subset of cryptocodec.Codec this handler needs, accepted as
// an interface so tests can substitute a fake without the real AES/SHA-1
// machinery.
type Codec interface {
	Verify(received, timestamp, nonce, ciphertext string) bool
	Decrypt(b64 string) (string, error)
	Encrypt(plaintext string) (string, error)
}

// Dispatcher processes a single approval event, acquiring the sync lock
// itself. It returns domain.CodeLockBusy (via *domain.Error) if the lock is
// already held, in which case the caller falls back to the queue.
type Dispatcher interface {
	ProcessApproval(ctx context.Context, spNo string) error
	IsTracked(spNo string) bool
}

// Handler serves both the GET verification and POST event endpoints.
type Handler struct {
	codec      Codec
	dispatcher Dispatcher
	queue      *Queue
	log        zerolog.Logger
}

// New builds a Handler and starts its background drain queue. Call
// Handler.Close on shutdown to stop that queue cleanly.
func New(codec Codec, dispatcher Dispatcher, log zerolog.Logger) *Handler {
	h := &Handler{codec: codec, dispatcher: dispatcher, log: log}
	h.queue = NewQueue(h.dispatchQueued, log)
	return h
}

// Close stops the background drain queue.
func (h *Handler) Close() {
	h.queue.Close()
}

// Disabled serves both callback endpoints with a fixed "not configured"
// response, for a deployment that hasn't set the callback credentials
// (spec §4.9: "Drain is started iff callback credentials are configured").
// The rest of the process — poller, status checker, control plane — runs
// normally without it.
type Disabled struct{}

func (Disabled) ServeVerify(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "callback not configured", http.StatusNotFound)
}

func (Disabled) ServeEvent(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "callback not configured", http.StatusNotFound)
}

// ServeVerify handles the GET /callback handshake: verify the signature,
// decrypt echostr, and write the decrypted plaintext back verbatim.
func (h *Handler) ServeVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sig := q.Get("msg_signature")
	ts := q.Get("timestamp")
	nonce := q.Get("nonce")
	echostr := q.Get("echostr")

	if !h.codec.Verify(sig, ts, nonce, echostr) {
		http.Error(w, "signature verification failed", http.StatusUnauthorized)
		return
	}
	plain, err := h.codec.Decrypt(echostr)
	if err != nil {
		http.Error(w, "decrypt failed", http.StatusUnauthorized)
		return
	}
	_, _ = io.WriteString(w, plain)
}

// ServeEvent handles POST /callback. Per invariant P6 the response body is
// always exactly "success" with HTTP 200, regardless of whether the event
// verified, parsed, matched a filter, or was successfully dispatched — the
// upstream platform's retry behavior on anything else is aggressive enough
// that swallowing failures here (after logging them) is the documented
// design, not an oversight.
func (h *Handler) ServeEvent(w http.ResponseWriter, r *http.Request) {
	defer func() {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "success")
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.Warn().Err(err).Msg("callback: read body failed")
		return
	}

	q := r.URL.Query()
	sig := q.Get("msg_signature")
	ts := q.Get("timestamp")
	nonce := q.Get("nonce")

	envelope := extractFields(body)
	encrypted := envelope["Encrypt"]
	if encrypted == "" {
		h.log.Warn().Msg("callback: missing Encrypt field")
		return
	}
	if !h.codec.Verify(sig, ts, nonce, encrypted) {
		h.log.Warn().Msg("callback: signature verification failed")
		return
	}
	plain, err := h.codec.Decrypt(encrypted)
	if err != nil {
		h.log.Warn().Err(err).Msg("callback: decrypt failed")
		return
	}

	h.handleEvent([]byte(plain))
}

// handleEvent applies the event filters (spec §4.9) and either dispatches
// immediately (lock free) or enqueues for the drain loop (lock busy).
func (h *Handler) handleEvent(plain []byte) {
	fields := extractFields(plain)

	spName := fields["SpName"]
	if spName != "" && spName != "leave" && spName != "请假" {
		return
	}

	if ce, err := strconv.Atoi(fields["StatuChangeEvent"]); err == nil && ce == statuChangeEventIgnored {
		return
	}

	spNo := fields["SpNo"]
	if spNo == "" {
		h.log.Warn().Msg("callback: event missing SpNo")
		return
	}
	status, _ := strconv.Atoi(fields["SpStatus"])

	if status == spStatusPending && h.dispatcher.IsTracked(spNo) {
		return
	}

	h.dispatchNow(spNo, status)
}

// dispatchNow tries to process the event synchronously; on a busy lock it
// falls back to the queue for the next drain pass.
func (h *Handler) dispatchNow(spNo string, status int) {
	err := h.dispatcher.ProcessApproval(context.Background(), spNo)
	if err == nil {
		return
	}
	var domErr *domain.Error
	if errors.As(err, &domErr) && domErr.Code == domain.CodeLockBusy {
		h.queue.Enqueue(spNo, status)
		return
	}
	h.log.Error().Err(err).Str("sp_no", spNo).Msg("callback: dispatch failed")
}

func (h *Handler) dispatchQueued(spNo string, status int) {
	_ = status
	if err := h.dispatcher.ProcessApproval(context.Background(), spNo); err != nil {
		h.log.Error().Err(err).Str("sp_no", spNo).Msg("callback: queued dispatch failed")
	}
}

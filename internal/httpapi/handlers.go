// Package httpapi is the operations surface of the daemon: health, metrics,
// channel attach/detach, manual announcements and recipient seeding.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"freshshare/internal/channel"
	"freshshare/internal/domain"
	"freshshare/internal/fanout"
	"freshshare/internal/notifier"
	"freshshare/internal/proximity"
	"freshshare/internal/storage"
	logx "freshshare/pkg/logx"
)

const maxBodyBytes = 1 << 20

type Announcer interface {
	Announce(ctx context.Context, ev domain.Event) (notifier.Report, error)
}

// ChannelSource resolves a configured channel by name, attached or not.
type ChannelSource interface {
	Lookup(name string) (channel.Channel, bool)
}

type Deps struct {
	Fanout     Announcer
	Registry   *notifier.Registry
	Channels   ChannelSource
	Recipients storage.RecipientStore
	Metrics    http.Handler
	// OnChannelsChanged is called with the attached count after attach or detach.
	OnChannelsChanged func(attached int)
	AnnounceTimeout   time.Duration
	// Pprof mounts /debug/pprof/ when non-nil.
	Pprof *PprofConfig
}

type handlers struct {
	d   Deps
	log logx.Logger
}

type channelView struct {
	Name     string `json:"name"`
	Attached bool   `json:"attached"`
}

func NewRouter(d Deps, log logx.Logger) http.Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &handlers{d: d, log: log}
	router := chi.NewRouter()

	router.Get("/healthz", h.healthz)
	if d.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	if d.Pprof != nil {
		router.Mount("/debug/pprof", pprofRouter(*d.Pprof))
	}
	router.Route("/api", func(r chi.Router) {
		r.Get("/channels", h.listChannels)
		r.Post("/channels/{name}/attach", h.attach)
		r.Post("/channels/{name}/detach", h.detach)
		r.Post("/announce", h.announce)
		r.Post("/recipients", h.upsertRecipient)
	})
	return router
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handlers) listChannels(w http.ResponseWriter, _ *http.Request) {
	out := make([]channelView, 0, h.d.Registry.Count())
	for _, name := range h.d.Registry.Names() {
		out = append(out, channelView{Name: name, Attached: true})
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": out})
}

func (h *handlers) attach(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if _, ok := h.d.Registry.Lookup(name); ok {
		writeJSON(w, http.StatusOK, map[string]any{"status": "attached", "channels": h.d.Registry.Count()})
		return
	}
	if h.d.Channels == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_channel"})
		return
	}
	ch, ok := h.d.Channels.Lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_channel"})
		return
	}
	n := h.d.Registry.Attach(ch)
	h.changed(n)
	h.log.Info("channel attached", logx.Channel(name), logx.Int("channels", n))
	writeJSON(w, http.StatusOK, map[string]any{"status": "attached", "channels": n})
}

func (h *handlers) detach(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	ch, ok := h.d.Registry.Lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_attached"})
		return
	}
	n := h.d.Registry.Detach(ch)
	h.changed(n)
	h.log.Info("channel detached", logx.Channel(name), logx.Int("channels", n))
	writeJSON(w, http.StatusOK, map[string]any{"status": "detached", "channels": n})
}

func (h *handlers) changed(n int) {
	if h.d.OnChannelsChanged != nil {
		h.d.OnChannelsChanged(n)
	}
}

func (h *handlers) announce(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if err := decode(w, r, &ev); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid_event"})
		return
	}

	ctx := r.Context()
	if h.d.AnnounceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.d.AnnounceTimeout)
		defer cancel()
	}
	rep, err := h.d.Fanout.Announce(ctx, ev)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rep)
	case errors.Is(err, fanout.ErrInvalidEvent), errors.Is(err, proximity.ErrInvalidArgument):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid_event", "detail": err.Error()})
	case errors.Is(err, proximity.ErrSelectionUnavailable):
		h.log.Warn("announce selection unavailable", logx.Event(ev.ID), logx.Err(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "selection_unavailable"})
	default:
		h.log.Error("announce failed", logx.Event(ev.ID), logx.Err(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}
}

func (h *handlers) upsertRecipient(w http.ResponseWriter, r *http.Request) {
	if h.d.Recipients == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage_disabled"})
		return
	}
	var rec domain.Recipient
	if err := decode(w, r, &rec); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid_recipient"})
		return
	}
	if err := h.d.Recipients.UpsertRecipient(r.Context(), rec); err != nil {
		if errors.Is(err, storage.ErrInvalidRecipient) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid_recipient", "detail": err.Error()})
			return
		}
		h.log.Error("recipient upsert failed", logx.Recipient(rec.ID), logx.Err(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored", "id": rec.ID})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

package http

import (
	"errors"
	"net/http"

	"procwatch/internal/adapters/http/request"
	"procwatch/internal/adapters/http/response"
	"procwatch/internal/adapters/http/validator"
	"procwatch/internal/domain"
)

type MetricsHandler struct {
	svc domain.MetricsService

	res response.ResponseWriter
	dec request.RequestDecoder
	val validator.Validator
}

func NewMetricsHandler(svc domain.MetricsService, res response.ResponseWriter, dec request.RequestDecoder, val validator.Validator) *MetricsHandler {
	return &MetricsHandler{
		svc: svc,
		res: res,
		dec: dec,
		val: val,
	}
}

func (h *MetricsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	h.res.Write(w, http.StatusOK, &response.Response{
		Message: "OK",
		Data:    h.svc.View(),
	})
}

func (h *MetricsHandler) Process(w http.ResponseWriter, r *http.Request) {
	pid := domain.ProcessID(r.PathValue("pid"))

	proc, err := h.svc.Process(pid)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}

	h.res.Write(w, http.StatusOK, &response.Response{
		Message: "OK",
		Data:    proc,
	})
}

// Channel returns one channel state. ?limit=n trims values to the newest n.
func (h *MetricsHandler) Channel(w http.ResponseWriter, r *http.Request) {
	pid := domain.ProcessID(r.PathValue("pid"))
	ch := domain.ChannelKind(r.PathValue("channel"))

	state, err := h.svc.Channel(pid, ch)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}

	if limit := GetInt(r.URL.Query(), "limit", 0); limit > 0 && limit < len(state.Values) {
		state.Values = state.Values[len(state.Values)-limit:]
	}

	h.res.Write(w, http.StatusOK, &response.Response{
		Message: "OK",
		Data:    state,
	})
}

func (h *MetricsHandler) Command(w http.ResponseWriter, r *http.Request) {
	var req domain.CommandRequest
	if err := h.dec.Decode(r, &req); err != nil {
		h.res.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if errs := h.val.Validate(req); len(errs) > 0 {
		h.res.WriteValidationError(w, errs)
		return
	}

	cmd, err := h.svc.SendTestCommand(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotConnected):
			h.res.WriteError(w, http.StatusConflict, "upstream is not connected")
		case errors.Is(err, domain.ErrInvalidPayload):
			h.res.WriteValidationError(w, map[string]string{"metric_type": "metric_type is invalid"})
		case errors.Is(err, domain.ErrTransport):
			h.res.WriteError(w, http.StatusBadGateway, "failed to send command upstream")
		default:
			h.res.WriteError(w, http.StatusInternalServerError, "failed to send command")
		}
		return
	}

	h.res.Write(w, http.StatusAccepted, &response.Response{
		Message: "Command sent",
		Data: domain.CommandResultPayload{
			PID:        cmd.PID,
			MetricType: cmd.Channel.WireName(),
			Value:      cmd.Value,
		},
	})
}

func (h *MetricsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.svc.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *MetricsHandler) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProcessNotFound):
		h.res.WriteError(w, http.StatusNotFound, "process not found")
	case errors.Is(err, domain.ErrChannelNotFound):
		h.res.WriteError(w, http.StatusNotFound, "channel not found")
	default:
		h.res.WriteError(w, http.StatusInternalServerError, "failed to read metrics")
	}
}

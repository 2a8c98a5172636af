// Package decoder turns raw upstream frames into canonical samples.
//
// Two frame shapes are accepted. The flat shape carries pid, metric_type and
// value at the top level with an optional numeric prediction or status string.
// The nested shape wraps the observation in raw_data and the verdict in a
// prediction object ({result, status}). Anything else is rejected.
package decoder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"procwatch/internal/domain"
)

// AnomalyPrediction is the upstream prediction value that flags an anomaly.
const AnomalyPrediction = -1

// upstreamTimeLayout is the zone-less ISO form produced by the anomaly server.
const upstreamTimeLayout = "2006-01-02T15:04:05.999999999"

type DecodeError struct {
	Kind  error
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	msg := e.Kind.Error()
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func malformed(err error) *DecodeError {
	return &DecodeError{Kind: domain.ErrMalformedFrame, Err: err}
}

func invalid(field string, err error) *DecodeError {
	return &DecodeError{Kind: domain.ErrInvalidPayload, Field: field, Err: err}
}

type Decoder struct {
	now func() time.Time
}

func New() *Decoder {
	return &Decoder{now: time.Now}
}

// NewWithClock is New with a fixed time source for frames without a timestamp.
func NewWithClock(now func() time.Time) *Decoder {
	return &Decoder{now: now}
}

type observation struct {
	PID        json.RawMessage `json:"pid"`
	MetricType *string         `json:"metric_type"`
	Value      json.RawMessage `json:"value"`
	SubType    string          `json:"sub_type"`
}

type frame struct {
	observation

	Timestamp  *string         `json:"timestamp"`
	Status     *string         `json:"status"`
	Prediction json.RawMessage `json:"prediction"`
	RawData    *observation    `json:"raw_data"`
}

type predictionObject struct {
	Result *float64 `json:"result"`
	Status *string  `json:"status"`
}

func (d *Decoder) Decode(raw []byte) (domain.DecodedSample, error) {
	var out domain.DecodedSample

	if !json.Valid(raw) {
		return out, malformed(nil)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return out, invalid("", fmt.Errorf("frame is not a json object"))
	}

	var f frame
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return out, invalid("", err)
	}

	obs := f.observation
	if f.RawData != nil {
		obs = *f.RawData
	}

	pid, err := decodePID(obs.PID)
	if err != nil {
		return out, err
	}

	if obs.MetricType == nil {
		return out, invalid("metric_type", fmt.Errorf("missing"))
	}
	channel := domain.NormalizeChannel(*obs.MetricType)
	if channel == "" {
		return out, invalid("metric_type", fmt.Errorf("empty"))
	}

	value, err := decodeValue(obs.Value)
	if err != nil {
		return out, err
	}

	status, err := decodeStatus(f.Status, f.Prediction)
	if err != nil {
		return out, err
	}

	ts, err := d.decodeTimestamp(f.Timestamp)
	if err != nil {
		return out, err
	}

	out.PID = pid
	out.Channel = channel
	out.Sample = domain.Sample{
		Value:     value,
		SubType:   strings.TrimSpace(obs.SubType),
		Timestamp: ts,
		Status:    status,
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func decodePID(raw json.RawMessage) (domain.ProcessID, error) {
	if isNull(raw) {
		return "", invalid("pid", fmt.Errorf("missing"))
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", invalid("pid", err)
		}
		if s = strings.TrimSpace(s); s == "" {
			return "", invalid("pid", fmt.Errorf("empty"))
		}
		return domain.ProcessID(s), nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", invalid("pid", err)
	}
	if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
		return "", invalid("pid", fmt.Errorf("not an integer: %v", n))
	}
	return domain.ProcessIDFromInt(int64(n)), nil
}

func decodeValue(raw json.RawMessage) (float64, error) {
	if isNull(raw) {
		return 0, invalid("value", fmt.Errorf("missing"))
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, invalid("value", fmt.Errorf("not a number"))
	}
	return v, nil
}

func parseStatus(s string) (domain.Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return domain.StatusNormal, nil
	case "anomaly":
		return domain.StatusAnomaly, nil
	default:
		return "", invalid("status", fmt.Errorf("unknown status %q", s))
	}
}

func statusFromPrediction(p float64) domain.Status {
	if p == AnomalyPrediction {
		return domain.StatusAnomaly
	}
	return domain.StatusNormal
}

func decodeStatus(status *string, prediction json.RawMessage) (domain.Status, error) {
	if status != nil {
		return parseStatus(*status)
	}

	if isNull(prediction) {
		return domain.StatusNormal, nil
	}

	if prediction[0] == '{' {
		var p predictionObject
		if err := json.Unmarshal(prediction, &p); err != nil {
			return "", invalid("prediction", err)
		}
		if p.Status != nil {
			return parseStatus(*p.Status)
		}
		if p.Result != nil {
			return statusFromPrediction(*p.Result), nil
		}
		return domain.StatusNormal, nil
	}

	var p float64
	if err := json.Unmarshal(prediction, &p); err != nil {
		return "", invalid("prediction", fmt.Errorf("not a number"))
	}
	return statusFromPrediction(p), nil
}

func (d *Decoder) decodeTimestamp(raw *string) (time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return d.now().UTC(), nil
	}

	s := strings.TrimSpace(*raw)
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}

	ts, err := time.Parse(upstreamTimeLayout, s)
	if err != nil {
		return time.Time{}, invalid("timestamp", err)
	}
	return ts.UTC(), nil
}

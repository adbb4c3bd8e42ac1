package model

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Connectivity is the terminal outcome of a connectivity test.
type Connectivity string

const (
	ConnectivitySuccess Connectivity = "success"
	ConnectivityFailure Connectivity = "failure"
)

// ErrorKind classifies why a validation failed.
type ErrorKind string

const (
	ErrorNone       ErrorKind = ""
	ErrorConnection ErrorKind = "connection"
	ErrorTimeout    ErrorKind = "timeout"
	ErrorProtocol   ErrorKind = "protocol"
)

// LatencyState distinguishes "never measured" from "deadline elapsed".
type LatencyState int

const (
	LatencyNotRun LatencyState = iota
	LatencyTimedOut
	LatencyMeasured
)

// Latency 是三态的延迟值：NotRun / TimedOut / Measured(ms)。
type Latency struct {
	State LatencyState
	Ms    float64
}

// NotRun is the latency of a test that never got a response.
func NotRun() Latency { return Latency{State: LatencyNotRun} }

// TimedOut is the latency of a test whose deadline elapsed.
func TimedOut() Latency { return Latency{State: LatencyTimedOut} }

// Measured rounds d to milliseconds with two decimals.
func Measured(d time.Duration) Latency {
	ms := float64(d) / float64(time.Millisecond)
	return Latency{State: LatencyMeasured, Ms: math.Round(ms*100) / 100}
}

func (l Latency) String() string {
	switch l.State {
	case LatencyTimedOut:
		return "timed out"
	case LatencyMeasured:
		return strconv.FormatFloat(l.Ms, 'f', 2, 64)
	default:
		return "-"
	}
}

type latencyJSON struct {
	State string   `json:"state"`
	Ms    *float64 `json:"ms,omitempty"`
}

func (l Latency) MarshalJSON() ([]byte, error) {
	out := latencyJSON{}
	switch l.State {
	case LatencyTimedOut:
		out.State = "timed_out"
	case LatencyMeasured:
		out.State = "measured"
		ms := l.Ms
		out.Ms = &ms
	default:
		out.State = "not_run"
	}
	return json.Marshal(out)
}

func (l *Latency) UnmarshalJSON(data []byte) error {
	var in latencyJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.State {
	case "timed_out":
		*l = TimedOut()
	case "measured":
		*l = Latency{State: LatencyMeasured}
		if in.Ms != nil {
			l.Ms = *in.Ms
		}
	default:
		*l = NotRun()
	}
	return nil
}

// ValidationResult 是一次验证的终态结果，每个代理每轮只产生一个。
type ValidationResult struct {
	RunID        string       `json:"run_id"`
	ProxyID      string       `json:"proxy_id"`
	RowID        string       `json:"row_id"`
	Connectivity Connectivity `json:"connectivity"`
	Latency      Latency      `json:"latency"`
	EgressIP     string       `json:"egress_ip,omitempty"`
	Country      string       `json:"country,omitempty"`
	City         string       `json:"city,omitempty"`
	ISP          string       `json:"isp,omitempty"`
	ErrorKind    ErrorKind    `json:"error_kind,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CheckedAt    time.Time    `json:"checked_at"`
}

// Succeeded reports whether the connectivity test passed.
func (r ValidationResult) Succeeded() bool {
	return r.Connectivity == ConnectivitySuccess
}

// Display is the presentation component the core pushes rows to.
// Row ids are opaque to the core.
type Display interface {
	InsertRow(d ProxyDescriptor) string
	UpdateRow(rowID string, r ValidationResult)
	DeleteRow(rowID string)
}

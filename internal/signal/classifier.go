// Package signal classifies discovery-feed tokens by their social signal.
// A token is SUB when its announcement tweet comes from an allow-listed
// handle and is recent enough, judged by the timestamp encoded in the
// tweet's snowflake identifier.
package signal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"token-radar/internal/domain"
)

// Twitter snowflake epoch offset (milliseconds since Unix epoch).
const snowflakeEpochMs = 1288834974657

const statusMarker = "/status/"

// DecodeTimestamp extracts the creation time in Unix milliseconds from a
// snowflake-style status identifier. The identifier must parse as an
// unsigned 64-bit integer; the high 42 bits hold milliseconds since the
// snowflake epoch.
func DecodeTimestamp(id string) (int64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return int64(n>>22) + snowflakeEpochMs, nil
}

// ExtractStatusID pulls the status identifier out of a tweet URL.
// Returns ok=false when the /status/ path marker is absent.
func ExtractStatusID(link string) (string, bool) {
	i := strings.Index(link, statusMarker)
	if i < 0 {
		return "", false
	}
	id := link[i+len(statusMarker):]
	if j := strings.IndexByte(id, '?'); j >= 0 {
		id = id[:j]
	}
	if j := strings.IndexByte(id, '/'); j >= 0 {
		id = id[:j]
	}
	if id == "" {
		return "", false
	}
	return id, true
}

// IsRecent reports whether a signal observed at observedMs is within maxAge
// of nowMs. The boundary is inclusive. A future-dated signal (clock skew)
// has its age clamped to zero and counts as recent.
func IsRecent(observedMs, nowMs int64, maxAge time.Duration) bool {
	age := nowMs - observedMs
	if age < 0 {
		age = 0
	}
	return age <= maxAge.Milliseconds()
}

// Stage names the classification predicate that decided the verdict.
// Reported for observability only; callers branch on Verdict.Sub.
type Stage string

const (
	StageLinkMissing      Stage = "link_missing"
	StageHandleNotAllowed Stage = "handle_not_allowed"
	StageStatusIDMissing  Stage = "status_id_missing"
	StageBadIdentifier    Stage = "bad_identifier"
	StageTooOld           Stage = "too_old"
	StageFutureDated      Stage = "future_dated"
	StagePassed           Stage = "passed"
)

// Verdict is the result of classifying one feed token.
type Verdict struct {
	Sub    bool
	Stage  Stage
	Signal *domain.Signal // set when a status id was decoded
}

// Classifier evaluates SUB eligibility against an allow-list and a
// recency window.
type Classifier struct {
	allowed      map[string]struct{}
	maxAge       time.Duration
	rejectFuture bool
	now          func() time.Time
}

// Options configures a Classifier.
type Options struct {
	// AllowedHandles are compared trimmed, lowercased, without a leading @.
	AllowedHandles []string

	// MaxAge is the recency window. Zero defaults to 30 seconds.
	MaxAge time.Duration

	// RejectFutureSignals treats future-dated signals as not recent instead
	// of clamping their age to zero.
	RejectFutureSignals bool

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New creates a Classifier.
func New(opts Options) *Classifier {
	maxAge := opts.MaxAge
	if maxAge == 0 {
		maxAge = 30 * time.Second
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	allowed := make(map[string]struct{}, len(opts.AllowedHandles))
	for _, h := range opts.AllowedHandles {
		allowed[NormalizeHandle(h)] = struct{}{}
	}

	return &Classifier{
		allowed:      allowed,
		maxAge:       maxAge,
		rejectFuture: opts.RejectFutureSignals,
		now:          now,
	}
}

// NormalizeHandle canonicalizes a handle for allow-list comparison.
func NormalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}

// HandleFromLink extracts the handle segment from a tweet URL, e.g.
// https://x.com/someone/status/123 -> someone.
func HandleFromLink(link string) string {
	rest := link
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[1] == "" {
		return ""
	}
	return parts[1]
}

// Classify evaluates the ordered eligibility predicates. Each predicate
// short-circuits: link present, handle allow-listed, status id extractable,
// signal recent. The failing stage is reported for metrics.
func (c *Classifier) Classify(tok *domain.FeedToken) Verdict {
	if tok.TwitterLink == "" {
		return Verdict{Stage: StageLinkMissing}
	}

	handle := tok.TwitterHandle
	if handle == "" {
		handle = HandleFromLink(tok.TwitterLink)
	}
	handle = NormalizeHandle(handle)
	if _, ok := c.allowed[handle]; !ok {
		return Verdict{Stage: StageHandleNotAllowed}
	}

	statusID, ok := ExtractStatusID(tok.TwitterLink)
	if !ok {
		return Verdict{Stage: StageStatusIDMissing}
	}

	createdMs, err := DecodeTimestamp(statusID)
	if err != nil {
		return Verdict{Stage: StageBadIdentifier}
	}

	nowMs := c.now().UnixMilli()
	ageSec := (nowMs - createdMs) / 1000
	if ageSec < 0 {
		if c.rejectFuture {
			return Verdict{Stage: StageFutureDated, Signal: newSignal(handle, statusID, createdMs, 0)}
		}
		ageSec = 0
	}

	sig := newSignal(handle, statusID, createdMs, ageSec)
	if !IsRecent(createdMs, nowMs, c.maxAge) {
		return Verdict{Stage: StageTooOld, Signal: sig}
	}

	return Verdict{Sub: true, Stage: StagePassed, Signal: sig}
}

func newSignal(handle, statusID string, createdMs, ageSec int64) *domain.Signal {
	return &domain.Signal{
		Handle:      handle,
		StatusID:    statusID,
		TimestampMs: createdMs,
		AgeSeconds:  ageSec,
	}
}

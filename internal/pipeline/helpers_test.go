package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/theirongolddev/ccmeter/internal/config"
	"github.com/theirongolddev/ccmeter/internal/model"
)

// est is a fixed zone so calendar assertions do not depend on the host.
var est = time.FixedZone("EST", -5*3600)

// wed is Wednesday 2025-06-04 15:00 in est.
var wed = time.Date(2025, 6, 4, 15, 0, 0, 0, est)

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func userLine(at time.Time, sid, text string) string {
	return fmt.Sprintf(`{"type":"user","timestamp":%q,"sessionId":%q,"cwd":"/work/%s","message":{"role":"user","content":%q}}`,
		ts(at), sid, sid, text)
}

func toolResultLine(at time.Time, sid string) string {
	return fmt.Sprintf(`{"type":"user","timestamp":%q,"sessionId":%q,"message":{"role":"user","content":[{"type":"tool_result","content":"ok"}]}}`,
		ts(at), sid)
}

func asstLine(at time.Time, sid, msgID, mdl string, in, out int64, cost float64) string {
	return fmt.Sprintf(`{"type":"assistant","timestamp":%q,"sessionId":%q,"costUSD":%g,"message":{"id":%q,"role":"assistant","model":%q,"usage":{"input_tokens":%d,"output_tokens":%d}}}`,
		ts(at), sid, cost, msgID, mdl, in, out)
}

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	data := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
}

func appendLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		t.Fatal(err)
	}
}

func testQuota() QuotaSettings {
	return QuotaSettings{
		Plan:        config.PlanMax5x,
		Limits:      config.DefaultPlans[config.PlanMax5x],
		WindowHours: 5,
	}
}

func newTestEngine(root string, now time.Time) *Engine {
	return New(Options{
		Roots: []string{root},
		Quota: testQuota(),
		Now:   func() time.Time { return now },
	})
}

func prompt(at time.Time, sid, mdl string) model.Event {
	return model.Event{
		Timestamp: at,
		SessionID: sid,
		Role:      model.RoleUser,
		Model:     mdl,
		IsPrompt:  true,
		Ref:       model.EventRef{Path: "p.jsonl", Offset: at.UnixNano()},
	}
}

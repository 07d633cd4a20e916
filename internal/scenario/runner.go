package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nextlevelbuilder/rodchain/pkg/browser"
)

// ErrAssertion is returned when a text or count check does not hold.
var ErrAssertion = errors.New("assertion failed")

// Status is the outcome of one step.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int
	Label    string
	Kind     string
	Status   Status
	Duration time.Duration
	Output   string
	Err      error
}

// Report collects step results of one run.
type Report struct {
	Scenario string
	Session  string
	Steps    []StepResult
	Duration time.Duration
}

// Passed reports whether every step passed.
func (r *Report) Passed() bool { return r.Err() == nil }

// Err returns the first step failure.
func (r *Report) Err() error {
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return fmt.Errorf("step %d (%s): %w", s.Index, s.Label, s.Err)
		}
	}
	return nil
}

// Runner executes scenarios on sessions of one client.
type Runner struct {
	client *browser.Client
	logger *slog.Logger
}

// NewRunner creates a Runner. A nil logger uses slog.Default.
func NewRunner(c *browser.Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{client: c, logger: logger}
}

// run is the state of one scenario execution.
type run struct {
	sess    *browser.Session
	timeout time.Duration
}

// Run opens a session, executes every step in order and closes the session.
// Steps after the first failure are skipped. The returned error is only set
// when the session could not be opened; step failures are in the report.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	start := time.Now()
	rep := &Report{Scenario: sc.Name}

	sess, err := r.client.Open().Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	st := &run{sess: sess, timeout: sc.Timeout}
	st.configure()
	defer func() {
		if _, err := st.sess.Close().Await(ctx); err != nil {
			r.logger.Warn("scenario: close session", "error", err)
		}
	}()

	steps := sc.Steps
	if sc.URL != "" {
		steps = append([]Step{{Name: "open " + sc.URL, Navigate: sc.URL}}, steps...)
	}

	failed := false
	for i, step := range steps {
		res := StepResult{Index: i + 1, Label: step.Label(), Kind: step.Kind()}
		if failed || ctx.Err() != nil {
			res.Status = StatusSkipped
			rep.Steps = append(rep.Steps, res)
			continue
		}

		t0 := time.Now()
		res.Output, res.Err = r.step(ctx, st, step)
		res.Duration = time.Since(t0)
		if res.Err != nil {
			res.Status = StatusFailed
			failed = true
			r.logger.Info("scenario: step failed", "scenario", sc.Name, "step", res.Index, "label", res.Label, "error", res.Err)
		} else {
			res.Status = StatusPassed
			r.logger.Debug("scenario: step passed", "scenario", sc.Name, "step", res.Index, "label", res.Label, "duration", res.Duration)
		}
		rep.Steps = append(rep.Steps, res)
	}

	rep.Session = st.sess.ID()
	rep.Duration = time.Since(start)
	return rep, nil
}

// configure applies the scenario wait bound to the current session.
func (st *run) configure() {
	if st.timeout <= 0 {
		return
	}
	cfg := st.sess.WaitConfig()
	cfg.Timeout = st.timeout
	st.sess.SetWaitConfig(cfg)
}

func (r *Runner) step(ctx context.Context, st *run, s Step) (string, error) {
	sess := st.sess
	switch s.Kind() {
	case "navigate":
		_, err := sess.Navigate(s.Navigate).Await(ctx)
		return "", err

	case "restart":
		next, err := sess.Restart().Await(ctx)
		if err != nil {
			return "", err
		}
		st.sess = next
		st.configure()
		return next.ID(), nil

	case "script":
		v, err := sess.ExecuteScript(s.Script).Await(ctx)
		if err != nil {
			return "", err
		}
		return v.JSON("", ""), nil

	case "node":
		return r.node(ctx, sess, s)

	case "nodes":
		return r.nodes(ctx, sess, s)
	}

	cond, expect := s.Wait, false
	if cond == nil {
		cond, expect = s.Expect, true
	}
	sc, err := cond.session(r.client.Sessions())
	if err != nil {
		return "", err
	}
	var p *browser.SessionPromise
	switch {
	case expect:
		p = sess.Expect(sc)
	case s.Timeout > 0:
		p = sess.WaitTimeout(sc, s.Timeout)
	default:
		p = sess.Wait(sc)
	}
	_, err = p.Await(ctx)
	return "", err
}

func (r *Runner) node(ctx context.Context, sess *browser.Session, s Step) (string, error) {
	var np *browser.NodePromise
	if s.Within != "" {
		np = sess.Node(s.Within).Node(s.Node)
	} else {
		np = sess.Node(s.Node)
	}

	if c, expect := stepCondition(s); c != nil {
		nc, err := c.node(r.client.Nodes())
		if err != nil {
			return "", err
		}
		switch {
		case expect:
			np = np.Expect(nc)
		case s.Timeout > 0:
			np = np.WaitTimeout(nc, s.Timeout)
		default:
			np = np.Wait(nc)
		}
	}
	if s.Clear {
		np = np.Clear()
	}
	if s.Type != "" {
		np = np.SendKeys(s.Type)
	}
	if s.Click {
		np = np.Click()
	}

	if s.Text == nil {
		_, err := np.Await(ctx)
		return "", err
	}
	text, err := np.Text().Await(ctx)
	if err != nil {
		return "", err
	}
	return text, s.Text.check(text)
}

func (r *Runner) nodes(ctx context.Context, sess *browser.Session, s Step) (string, error) {
	var sp *browser.NodeSetPromise
	if s.Within != "" {
		sp = sess.Node(s.Within).NodeSet(s.Nodes)
	} else {
		sp = sess.NodeSet(s.Nodes)
	}

	if c, expect := stepCondition(s); c != nil {
		nc, err := c.node(r.client.Nodes())
		if err != nil {
			return "", err
		}
		switch {
		case expect:
			sp = sp.Expect(nc)
		case s.Timeout > 0:
			sp = sp.WaitTimeout(nc, s.Timeout)
		default:
			sp = sp.Wait(nc)
		}
	}
	if s.Where != "" {
		p, err := compilePredicate(s.Where)
		if err != nil {
			return "", err
		}
		sp = sp.Filter(p.match)
	}

	each := func(fn func(n *browser.Node) *browser.NodePromise) {
		sp = sp.ForEach(func(ctx context.Context, n *browser.Node) error {
			_, err := fn(n).Await(ctx)
			return err
		})
	}
	if s.Clear {
		each((*browser.Node).Clear)
	}
	if s.Type != "" {
		each(func(n *browser.Node) *browser.NodePromise { return n.SendKeys(s.Type) })
	}
	if s.Click {
		each((*browser.Node).Click)
	}

	set, err := sp.Await(ctx)
	if err != nil {
		return "", err
	}
	if s.Count != nil && set.Len() != *s.Count {
		return fmt.Sprintf("%d nodes", set.Len()), fmt.Errorf("%w: %d nodes match %s, want %d", ErrAssertion, set.Len(), s.Nodes, *s.Count)
	}
	if s.Text == nil {
		return fmt.Sprintf("%d nodes", set.Len()), nil
	}

	texts, err := browser.Map(set, func(ctx context.Context, n *browser.Node) (string, error) {
		return n.Text().Await(ctx)
	}).Await(ctx)
	if err != nil {
		return "", err
	}
	out := strings.Join(texts, " | ")
	for i, text := range texts {
		if err := s.Text.check(text); err != nil {
			return out, fmt.Errorf("node %d: %w", i, err)
		}
	}
	return out, nil
}

func stepCondition(s Step) (*Condition, bool) {
	if s.Expect != nil {
		return s.Expect, true
	}
	return s.Wait, false
}

func (t *TextCheck) check(text string) error {
	if t.Equals != "" && text != t.Equals {
		return fmt.Errorf("%w: text %q, want %q", ErrAssertion, text, t.Equals)
	}
	if t.Contains != "" && !strings.Contains(text, t.Contains) {
		return fmt.Errorf("%w: text %q does not contain %q", ErrAssertion, text, t.Contains)
	}
	return nil
}

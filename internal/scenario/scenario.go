// Package scenario runs browser scenarios described in YAML through the
// fluent browser API.
//
//	name: login
//	url: https://example.test/login
//	steps:
//	  - node: "#user"
//	    type: alice
//	  - node: "#pass"
//	    type: "secret{Enter}"
//	  - wait: {title_contains: Dashboard}
//	  - nodes: ".todo li"
//	    where: 'text.startsWith("urgent")'
//	    count: 2
package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/rodchain/pkg/browser"
	"github.com/nextlevelbuilder/rodchain/pkg/waitfor"
)

// Scenario is one scripted browser run.
type Scenario struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"` // default wait bound for the session
	Steps   []Step        `yaml:"steps"`
}

// Step is one action. Node and Nodes select what the action applies to;
// without either, the action targets the session.
type Step struct {
	Name string `yaml:"name"`

	Navigate string `yaml:"navigate"`
	Restart  bool   `yaml:"restart"`
	Script   string `yaml:"script"`

	Node   string `yaml:"node"`
	Within string `yaml:"within"` // parent selector for node / nodes
	Nodes  string `yaml:"nodes"`
	Where  string `yaml:"where"` // CEL filter over nodes
	Count  *int   `yaml:"count"`

	Click bool       `yaml:"click"`
	Type  string     `yaml:"type"`
	Clear bool       `yaml:"clear"`
	Text  *TextCheck `yaml:"text"`

	Wait    *Condition    `yaml:"wait"`
	Expect  *Condition    `yaml:"expect"`
	Timeout time.Duration `yaml:"timeout"` // bound for wait
}

// TextCheck reads text and optionally asserts on it.
type TextCheck struct {
	Equals   string `yaml:"equals"`
	Contains string `yaml:"contains"`
}

// Condition selects a wait condition. Exactly one field is set.
type Condition struct {
	Is    string      `yaml:"is"`    // present, visible, clickable, selected, invisible, stale, document_ready, session_ready
	Text  string      `yaml:"text"`  // node text contains
	Value string      `yaml:"value"` // node value contains
	CEL   string      `yaml:"cel"`   // node predicate over text, value, classes, selector
	Any   []Condition `yaml:"any"`   // first to hold
	All   []Condition `yaml:"all"`   // every one holds

	TitleIs       string `yaml:"title_is"`
	TitleContains string `yaml:"title_contains"`
	URLIs         string `yaml:"url_is"`
	URLContains   string `yaml:"url_contains"`
}

// Kind names the step's action for reports.
func (s Step) Kind() string {
	switch {
	case s.Navigate != "":
		return "navigate"
	case s.Restart:
		return "restart"
	case s.Script != "":
		return "script"
	case s.Nodes != "":
		return "nodes"
	case s.Node != "":
		return "node"
	case s.Wait != nil:
		return "wait"
	case s.Expect != nil:
		return "expect"
	}
	return "noop"
}

// Label is the step name, or a description derived from its fields.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	switch s.Kind() {
	case "navigate":
		return "navigate " + s.Navigate
	case "nodes":
		return "nodes " + s.Nodes
	case "node":
		var acts []string
		for _, a := range []struct {
			on   bool
			name string
		}{{s.Clear, "clear"}, {s.Type != "", "type"}, {s.Click, "click"}, {s.Text != nil, "text"}} {
			if a.on {
				acts = append(acts, a.name)
			}
		}
		if len(acts) == 0 {
			return s.Node
		}
		return s.Node + " " + strings.Join(acts, ",")
	}
	return s.Kind()
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks that each step names one target and one action, and
// that CEL expressions compile.
func (sc *Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return errors.New("scenario has no steps")
	}
	var errs []error
	for i, s := range sc.Steps {
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, s.Label(), err))
		}
	}
	return errors.Join(errs...)
}

func (s Step) validate() error {
	targets := 0
	for _, set := range []bool{s.Navigate != "", s.Restart, s.Script != "", s.Node != "", s.Nodes != ""} {
		if set {
			targets++
		}
	}
	if targets > 1 {
		return errors.New("navigate, restart, script, node and nodes are exclusive")
	}
	if targets == 0 && s.Wait == nil && s.Expect == nil {
		return errors.New("step does nothing")
	}
	if s.Wait != nil && s.Expect != nil {
		return errors.New("wait and expect are exclusive")
	}

	onNodes := s.Node != "" || s.Nodes != ""
	if !onNodes && (s.Click || s.Type != "" || s.Clear || s.Text != nil) {
		return errors.New("click, type, clear and text need node or nodes")
	}
	if s.Nodes == "" && (s.Where != "" || s.Count != nil) {
		return errors.New("where and count need nodes")
	}
	if s.Within != "" && !onNodes {
		return errors.New("within needs node or nodes")
	}
	if s.Where != "" {
		if _, err := compilePredicate(s.Where); err != nil {
			return err
		}
	}
	c := s.Wait
	if c == nil {
		c = s.Expect
	}
	if c == nil {
		return nil
	}
	if onNodes {
		_, err := c.node(waitfor.NewEngine[*browser.Node]())
		return err
	}
	_, err := c.session(waitfor.NewEngine[*browser.Session]())
	return err
}

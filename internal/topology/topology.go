// Package topology records the pipeline wiring the deployment templates
// express: which mailbox, topic or schedule feeds each stage and what
// each stage publishes. snackctl renders it as DOT or Mermaid.
package topology

import (
	"io"
	"sort"
	"strings"

	"github.com/emicklei/dot"
)

// Stage is one deployed worker. Consumes names the SNS topics its queue
// subscribes to; a topic nothing here publishes is fed from outside the
// pipeline (the dashboard).
type Stage struct {
	Name      string
	Mailbox   string
	Schedule  string
	Consumes  []string
	Publishes []string
	SendsMail bool
	Table     bool
}

// Stages returns every pipeline stage in delivery order.
func Stages() []Stage {
	return []Stage{
		{
			Name:      "mail-request-intake",
			Mailbox:   "organizer mailbox",
			Publishes: []string{"new_event_request", "event_update", "event_cancellation", "failed_event_create"},
		},
		{
			Name:      "event-create",
			Consumes:  []string{"new_event_request"},
			Publishes: []string{"new_event_created", "event_updated", "event_limit_reached"},
			Table:     true,
		},
		{
			Name:      "event-update",
			Consumes:  []string{"event_update"},
			Publishes: []string{"event_updated"},
			Table:     true,
		},
		{
			Name:      "event-cancel",
			Consumes:  []string{"event_cancellation"},
			Publishes: []string{"event_cancelled"},
			Table:     true,
		},
		{
			Name:      "cancel-stage",
			Consumes:  []string{"event_cancelled"},
			Publishes: []string{"event_cancellation_request"},
			Table:     true,
		},
		{
			Name:      "cancel-send",
			Consumes:  []string{"event_cancellation_request"},
			SendsMail: true,
		},
		{
			Name:      "invite-verify",
			Consumes:  []string{"new_event_invite_request"},
			Publishes: []string{"new_event_invite"},
			Table:     true,
		},
		{
			Name:      "invite-send",
			Consumes:  []string{"new_event_invite"},
			SendsMail: true,
			Table:     true,
		},
		{
			Name:     "rsvp-record",
			Consumes: []string{"new_event_reply"},
			Table:    true,
		},
		{
			Name:      "mail-reply-intake",
			Mailbox:   "rsvp mailbox",
			Publishes: []string{"new_event_reply"},
		},
		{
			Name:      "mail-bulk-intake",
			Mailbox:   "bulk mailbox",
			Publishes: []string{"new_event_invite"},
			SendsMail: true,
			Table:     true,
		},
		{
			Name: "organizer-notifier",
			Consumes: []string{
				"new_event_created", "event_updated",
				"event_limit_reached", "failed_event_create",
			},
			SendsMail: true,
		},
		{
			Name:     "stats-export",
			Schedule: "nightly",
			Table:    true,
		},
	}
}

// Topics returns every topic name appearing in the wiring, sorted.
func Topics() []string {
	seen := map[string]bool{}
	var names []string
	for _, s := range Stages() {
		for _, t := range append(append([]string{}, s.Consumes...), s.Publishes...) {
			if !seen[t] {
				seen[t] = true
				names = append(names, t)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// Renderer draws the pipeline graph.
type Renderer struct {
	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format
}

// Render writes the pipeline graph to w.
func (r *Renderer) Render(w io.Writer) error {
	graph := buildGraph()

	format := r.Format
	if format == "" {
		format = FormatDOT
	}

	var output string
	if format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidLeftToRight)
	} else {
		output = graph.String()
	}

	_, err := w.Write([]byte(output))
	return err
}

// RenderString is a convenience method that returns the graph as a string.
func (r *Renderer) RenderString() (string, error) {
	var sb strings.Builder
	if err := r.Render(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func buildGraph() *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "LR")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	topicNode := func(name string) dot.Node {
		n := graph.Node(name)
		n.Attr("shape", "ellipse")
		n.Label(name + "\\n[topic]")
		return n
	}

	for _, s := range Stages() {
		stage := graph.Node(s.Name)
		stage.Label(s.Name + "\\n[lambda]")

		if s.Mailbox != "" {
			mb := graph.Node(s.Mailbox)
			mb.Attr("shape", "ellipse")
			mb.Attr("style", "dashed")
			mb.Label(s.Mailbox + "\\n[ses]")
			graph.Edge(mb, stage).Attr("label", "s3")
		}
		if s.Schedule != "" {
			sched := graph.Node(s.Schedule)
			sched.Attr("shape", "ellipse")
			sched.Attr("style", "dashed")
			sched.Label(s.Schedule + "\\n[schedule]")
			graph.Edge(sched, stage)
		}
		for _, t := range s.Consumes {
			graph.Edge(topicNode(t), stage).Attr("label", "sqs")
		}
		for _, t := range s.Publishes {
			graph.Edge(stage, topicNode(t))
		}
	}
	return graph
}

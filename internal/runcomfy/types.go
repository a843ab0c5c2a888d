package runcomfy

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Credentials address one deployment on behalf of one API key.
type Credentials struct {
	APIKey       string
	DeploymentID string
}

// Valid reports whether both fields are present.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.DeploymentID) != ""
}

func (c Credentials) normalized() Credentials {
	return Credentials{
		APIKey:       strings.TrimSpace(c.APIKey),
		DeploymentID: strings.TrimSpace(c.DeploymentID),
	}
}

// NodeInputs holds the named input values replaced on a single workflow node.
type NodeInputs struct {
	Inputs map[string]any `json:"inputs"`
}

// Overrides maps workflow node ids to the inputs replaced for one job. The
// server is the only authority on which nodes and inputs exist.
type Overrides map[string]NodeInputs

// Set assigns one input value on a node, creating the node entry if needed.
func (o Overrides) Set(node, input string, value any) {
	entry, ok := o[node]
	if !ok || entry.Inputs == nil {
		entry = NodeInputs{Inputs: map[string]any{}}
	}
	entry.Inputs[input] = value
	o[node] = entry
}

// Result maps producing node ids to the image URLs they emitted.
type Result map[string][]string

// NodeIDs returns the result's node ids in ascending order. Numeric ids are
// compared by value so "9" sorts before "54".
func (r Result) NodeIDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessNodeID(ids[i], ids[j]) })
	return ids
}

// All flattens every node's images in NodeIDs order.
func (r Result) All() []string {
	urls := []string{}
	for _, id := range r.NodeIDs() {
		urls = append(urls, r[id]...)
	}
	return urls
}

// Node returns the images produced by a single node, or an empty slice.
func (r Result) Node(id string) []string {
	images := r[strings.TrimSpace(id)]
	out := make([]string, len(images))
	copy(out, images)
	return out
}

func lessNodeID(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		return ai < bi
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}

// Extraction selects which images Run returns.
type Extraction struct {
	node string
}

// ExtractAll flattens the images of every output node. Node order follows
// Result.NodeIDs; the service itself does not define one.
func ExtractAll() Extraction {
	return Extraction{}
}

// ExtractNode keeps only the images produced by the named node.
func ExtractNode(id string) Extraction {
	return Extraction{node: strings.TrimSpace(id)}
}

// Node returns the selected node id, empty for extract-all.
func (e Extraction) Node() string {
	return e.node
}

func (e Extraction) apply(r Result) []string {
	if e.node == "" {
		return r.All()
	}
	return r.Node(e.node)
}

func (e Extraction) String() string {
	if e.node == "" {
		return "all"
	}
	return "node:" + e.node
}

// JobState is a terminal job outcome.
type JobState string

const (
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// TerminalStatus is what Poll returns once the job stops running.
type TerminalStatus struct {
	State   JobState
	Status  string
	Details json.RawMessage
}

// Completed reports whether the job finished successfully.
func (s TerminalStatus) Completed() bool {
	return s.State == StateCompleted
}

// classifyStatus maps a raw status string to a terminal state. The second
// return value is false while the job is still pending or running.
func classifyStatus(status string) (JobState, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "succeeded":
		return StateCompleted, true
	case "failed", "error":
		return StateFailed, true
	default:
		return "", false
	}
}

type submitRequest struct {
	Overrides Overrides `json:"overrides"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type resultResponse struct {
	Outputs map[string]struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"outputs"`
}

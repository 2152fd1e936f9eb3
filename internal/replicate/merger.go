package replicate

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/exp/slices"
)

// ResponseMerger combines the set of NodeResponses for one completed
// request into the single payload the caller consuming it will see. Merge
// runs at most once per aggregator, lazily on first Consume.
type ResponseMerger interface {
	Merge(method, uriPath string, responses []NodeResponse) (*MergedResponse, error)
}

// mergerKey selects a ResponseMerger by the dimensions a request arrives
// with: its method, its path, and (for bodies that carry one) its
// Content-Type.
type mergerKey struct {
	method      string
	pathPrefix  string
	contentType string
}

// MergerRegistry selects a ResponseMerger for an incoming request by
// matching method, path prefix, and content type, falling back to a
// registry-wide default when nothing more specific matches.
type MergerRegistry struct {
	entries   []registeredMerger
	byDefault ResponseMerger
}

type registeredMerger struct {
	key    mergerKey
	merger ResponseMerger
}

// NewMergerRegistry builds a registry whose fallback is def.
func NewMergerRegistry(def ResponseMerger) *MergerRegistry {
	return &MergerRegistry{byDefault: def}
}

// Register associates merger with requests whose method, path prefix, and
// content type all match. Empty strings act as wildcards for that
// dimension. Select scans entries most-recent-first, so whenever two
// registrations both match, the later one wins; how specific each match
// is does not matter.
func (r *MergerRegistry) Register(method, pathPrefix, contentType string, merger ResponseMerger) {
	r.entries = append(r.entries, registeredMerger{
		key:    mergerKey{method: method, pathPrefix: pathPrefix, contentType: contentType},
		merger: merger,
	})
}

// Select returns the merger that should handle a request, falling back to
// the registry default if nothing registered matches.
func (r *MergerRegistry) Select(method, uriPath, contentType string) ResponseMerger {
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.key.method != "" && !strings.EqualFold(e.key.method, method) {
			continue
		}
		if e.key.pathPrefix != "" && !strings.HasPrefix(uriPath, e.key.pathPrefix) {
			continue
		}
		if e.key.contentType != "" && !strings.HasPrefix(contentType, e.key.contentType) {
			continue
		}
		return e.merger
	}
	return r.byDefault
}

// FirstSuccessMerger returns the first 2xx response it finds in node-ID
// order (deterministic across runs), or the first response of any kind if
// none succeeded. It is the right default for idempotent reads where any
// one node's answer is as good as another's.
type FirstSuccessMerger struct{}

// Merge implements ResponseMerger.
func (FirstSuccessMerger) Merge(_, _ string, responses []NodeResponse) (*MergedResponse, error) {
	if len(responses) == 0 {
		return nil, fmt.Errorf("no responses to merge")
	}
	ordered := make([]NodeResponse, len(responses))
	copy(ordered, responses)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].NodeID < ordered[j].NodeID })

	if idx := slices.IndexFunc(ordered, func(r NodeResponse) bool { return r.IsSuccess() }); idx >= 0 {
		return bodyOf(ordered[idx])
	}
	return bodyOf(ordered[0])
}

func bodyOf(r NodeResponse) (*MergedResponse, error) {
	if r.Body == nil {
		return &MergedResponse{Status: normalizeStatus(r.Status)}, nil
	}
	defer r.Body.Close()
	buf := make([]byte, 0, 512)
	chunk := make([]byte, 512)
	for {
		n, err := r.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	return &MergedResponse{Status: normalizeStatus(r.Status), Body: buf}, nil
}

func normalizeStatus(status int) int {
	if status == StatusError {
		return http.StatusBadGateway
	}
	return status
}

// JSONSumMerger combines N nodes' JSON-object responses into one object
// whose numeric fields are summed across nodes and whose non-numeric
// fields take the value from the first node that set them. It is the
// right default for write-confirmation bodies like {"written": 1} where
// the cluster-wide answer is the sum of each node's local answer.
type JSONSumMerger struct{}

// Merge implements ResponseMerger.
func (JSONSumMerger) Merge(_, _ string, responses []NodeResponse) (*MergedResponse, error) {
	if len(responses) == 0 {
		return nil, fmt.Errorf("no responses to merge")
	}

	status := http.StatusOK
	combined := make(map[string]any)
	sawAny := false
	for _, r := range responses {
		if r.IsError() {
			status = http.StatusBadGateway
			continue
		}
		if !r.IsSuccess() {
			if status == http.StatusOK {
				status = r.Status
			}
			r.CloseBody()
			continue
		}
		if r.Body == nil {
			continue
		}
		var decoded map[string]any
		if err := json.NewDecoder(r.Body).Decode(&decoded); err != nil {
			r.Body.Close()
			return nil, fmt.Errorf("decoding response from node %s: %w", r.NodeID, err)
		}
		r.Body.Close()
		sawAny = true
		for k, v := range decoded {
			mergeField(combined, k, v)
		}
	}
	if !sawAny {
		return &MergedResponse{Status: status}, nil
	}

	out, err := json.Marshal(combined)
	if err != nil {
		return nil, fmt.Errorf("encoding merged response: %w", err)
	}
	return &MergedResponse{Status: status, Body: out}, nil
}

func mergeField(combined map[string]any, key string, value any) {
	existing, ok := combined[key]
	if !ok {
		combined[key] = value
		return
	}
	existingNum, eok := existing.(float64)
	valueNum, vok := value.(float64)
	if eok && vok {
		combined[key] = existingNum + valueNum
	}
}

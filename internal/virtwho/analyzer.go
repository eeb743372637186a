package virtwho

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/virtwho-qe/harness/internal/models"
)

// Analyze turns a captured run into the structured result used for test
// assertions. It is pure over its inputs: every field is derived
// independently, no derivation throws, and malformed or absent data
// degrades to the field's default with a logged warning.
func Analyze(capture models.Capture, runCtx models.RunContext) models.AnalysisResult {
	result := models.AnalysisResult{
		Debug:      hasMatch(capture.Log, debugMarker),
		Oneshot:    hasMatch(capture.Log, oneshotMarker),
		Terminated: hasMatch(capture.Log, terminatedMarker),
		Threads:    capture.Threads,
		Send:       sendCount(capture.Log, runCtx),
		ReporterID: strings.TrimSpace(firstCapture(capture.Log, reporterIDPattern)),
		Interval:   intervalSeconds(capture.Log),
	}
	result.LoopInterval, result.LoopCount = loopInfo(capture.Log)
	result.Mappings = parseMappings(capture.Log, runCtx)
	result.HypervisorID = hypervisorID(result.Mappings, runCtx.GuestUUID)
	if capture.PrintJSON != "" {
		printJSON := capture.PrintJSON
		result.PrintJSON = &printJSON
	}
	result.ErrorCount, result.ErrorLines = taggedLines(capture.Log, "ERROR")
	result.WarningCount, result.WarningLines = taggedLines(capture.Log, "WARNING")

	zap.S().Named("analyzer").Infow("completed analysis",
		"send", result.Send,
		"threads", result.Threads,
		"loops", result.LoopCount,
		"errors", result.ErrorCount,
		"warnings", result.WarningCount,
	)
	return result
}

// intervalSeconds extracts the configured loop interval, nil when the
// infinite-loop start line is absent or unparsable.
func intervalSeconds(log string) *int {
	raw := strings.TrimSpace(firstCapture(log, intervalPattern))
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		zap.S().Named("analyzer").Warnw("unparsable interval", "value", raw)
		return nil
	}
	return &n
}

// loopInfo measures the report loop from the "gathered, placing in
// datastore" lines: the count of the first config's exact phrase minus
// one is the number of completed loops (the first occurrence only starts
// the first loop), and the wall-clock delta between the first two
// occurrences is the loop interval. -1 means "not measured".
func loopInfo(log string) (loopInterval, loopCount int) {
	loopInterval = -1

	name := firstCapture(log, reportLinePattern)
	if name == "" {
		return loopInterval, 0
	}
	phrase := fmt.Sprintf(`Report for config "%s" gathered, placing in datastore`, name)

	occurrences := strings.Count(log, phrase)
	if occurrences == 0 {
		return loopInterval, 0
	}
	loopCount = occurrences - 1
	if loopCount == 0 {
		return loopInterval, loopCount
	}

	var clocks []int
	for _, line := range strings.Split(log, "\n") {
		if !strings.Contains(line, phrase) {
			continue
		}
		stamp := firstCapture(line, "("+clockPattern+")")
		if stamp == "" {
			continue
		}
		clocks = append(clocks, secondsSinceMidnight(stamp))
		if len(clocks) == 2 {
			break
		}
	}
	if len(clocks) == 2 {
		loopInterval = clocks[1] - clocks[0]
	}
	return loopInterval, loopCount
}

func secondsSinceMidnight(clock string) int {
	parts := strings.Split(clock, ":")
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	s, _ := strconv.Atoi(parts[2])
	return h*3600 + m*60 + s
}

// taggedLines counts and collects log lines carrying a bracketed tag,
// e.g. [virtwho.main ERROR].
func taggedLines(log, tag string) (int, []string) {
	pattern := `\[.*` + tag + `.*\]`
	var lines []string
	for _, line := range strings.Split(log, "\n") {
		if hasMatch(line, pattern) {
			lines = append(lines, line)
		}
	}
	return len(lines), lines
}

// parseMappings extracts the host-to-guest data reported during the run.
func parseMappings(log string, runCtx models.RunContext) models.Mappings {
	if runCtx.Mode.IsLocal() {
		return localMappings(log)
	}
	return remoteMappings(log)
}

// wire shapes of the JSON blocks virt-who logs.
type wireGuest struct {
	GuestID    string          `json:"guestId"`
	State      json.RawMessage `json:"state"`
	Attributes struct {
		Active      json.RawMessage `json:"active"`
		VirtWhoType string          `json:"virtWhoType"`
	} `json:"attributes"`
}

type wireHypervisor struct {
	HypervisorID struct {
		HypervisorID string `json:"hypervisorId"`
	} `json:"hypervisorId"`
	Name     string                     `json:"name"`
	Facts    map[string]json.RawMessage `json:"facts"`
	GuestIDs []wireGuest                `json:"guestIds"`
}

type wireMapping struct {
	Hypervisors []wireHypervisor `json:"hypervisors"`
}

// localMappings parses the "Domain info:" JSON array of local mode.
// The decoder stops after the first complete array, which gives the
// lenient "ignore whatever follows" semantics the log format needs.
func localMappings(log string) models.Mappings {
	mappings := models.NewMappings()

	idx := strings.Index(log, domainInfoMarker)
	if idx < 0 {
		return mappings
	}
	block := log[idx+len(domainInfoMarker):]
	start := strings.Index(block, "[")
	if start < 0 {
		zap.S().Named("analyzer").Warnw("domain info marker without JSON array")
		return mappings
	}

	var guests []wireGuest
	if err := json.NewDecoder(strings.NewReader(block[start:])).Decode(&guests); err != nil {
		zap.S().Named("analyzer").Warnw("unparsable domain info block", "err", err)
		return mappings
	}

	for _, guest := range guests {
		mappings.Guests[guest.GuestID] = models.GuestFacts{
			State:  rawString(guest.State),
			Active: rawBool(guest.Attributes.Active),
			Type:   guest.Attributes.VirtWhoType,
		}
	}
	return mappings
}

// remoteMappings parses the per-organization mapping objects of remote
// modes. For each organization the last logged block is taken, spanning
// from the first brace after the "being sent to" line; decoding stops at
// the end of the object regardless of trailing log content.
func remoteMappings(log string) models.Mappings {
	mappings := models.NewMappings()

	// The mapping line repeats every loop; each org counts once.
	orgs := dedupe(allCaptures(log, orgPattern))
	if len(orgs) == 0 {
		return mappings
	}
	mappings.Orgs = orgs

	for _, org := range orgs {
		marker := fmt.Sprintf(mappingSentTemplate, org)
		idx := strings.LastIndex(log, marker)
		if idx < 0 {
			continue
		}
		block := log[idx+len(marker):]
		start := strings.Index(block, "{")
		if start < 0 {
			zap.S().Named("analyzer").Warnw("mapping line without JSON object", "org", org)
			continue
		}

		var wire wireMapping
		if err := json.NewDecoder(strings.NewReader(block[start:])).Decode(&wire); err != nil {
			zap.S().Named("analyzer").Warnw("unparsable mapping block", "org", org, "err", err)
			continue
		}

		orgMapping := models.NewOrgMapping()
		orgMapping.HypervisorCount = len(wire.Hypervisors)
		for _, hv := range wire.Hypervisors {
			hvID := hv.HypervisorID.HypervisorID
			facts := models.HypervisorFacts{
				Name:    hv.Name,
				Type:    rawString(hv.Facts["hypervisor.type"]),
				Version: rawString(hv.Facts["hypervisor.version"]),
				Socket:  rawString(hv.Facts["cpu.cpu_socket(s)"]),
				DMI:     rawString(hv.Facts["dmi.system.uuid"]),
				Cluster: rawString(hv.Facts["hypervisor.cluster"]),
			}
			for _, guest := range hv.GuestIDs {
				facts.Guests = append(facts.Guests, guest.GuestID)
				orgMapping.Guests[guest.GuestID] = models.GuestFacts{
					Hypervisor: hvID,
					State:      rawString(guest.State),
					Active:     rawBool(guest.Attributes.Active),
					Type:       guest.Attributes.VirtWhoType,
				}
			}
			orgMapping.Hypervisors[hvID] = facts
		}
		mappings.ByOrg[org] = orgMapping
	}
	return mappings
}

// dedupe keeps the first occurrence of each value, preserving order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// hypervisorID resolves the hypervisor owning the mode's own guest,
// looked up across all organizations. Empty when the guest never shows
// up in the mappings.
func hypervisorID(mappings models.Mappings, guestUUID string) string {
	if guestUUID == "" {
		return ""
	}
	for _, org := range mappings.Orgs {
		if facts, ok := mappings.ByOrg[org].Guests[guestUUID]; ok {
			return facts.Hypervisor
		}
	}
	return ""
}

// rawString renders a JSON scalar as a string: quoted strings lose the
// quotes, everything else keeps its literal form ("1", "true").
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// rawBool coerces the loosely-typed "active" attribute: true, 1 and
// their quoted forms all count as active.
func rawBool(raw json.RawMessage) bool {
	switch rawString(raw) {
	case "true", "True", "1":
		return true
	}
	return false
}

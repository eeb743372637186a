package models

// GuestFacts describes one guest as reported in a host-to-guest mapping.
// Hypervisor is empty for local mode, where guests are not owned by a
// reported hypervisor record.
type GuestFacts struct {
	Hypervisor string `json:"guest_hypervisor,omitempty"`
	State      string `json:"state"`
	Active     bool   `json:"active"`
	Type       string `json:"type"`
}

// HypervisorFacts describes one hypervisor entry of a remote-mode mapping.
type HypervisorFacts struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Version string   `json:"version"`
	Socket  string   `json:"socket"`
	DMI     string   `json:"dmi"`
	Cluster string   `json:"cluster"`
	Guests  []string `json:"guests"`
}

// OrgMapping is the mapping reported to a single organization.
type OrgMapping struct {
	HypervisorCount int                        `json:"hypervisor_num"`
	Hypervisors     map[string]HypervisorFacts `json:"hypervisors"`
	Guests          map[string]GuestFacts      `json:"guests"`
}

func NewOrgMapping() OrgMapping {
	return OrgMapping{
		Hypervisors: map[string]HypervisorFacts{},
		Guests:      map[string]GuestFacts{},
	}
}

// Mappings holds the parsed host-to-guest data of a run. Local mode
// fills Guests, remote mode fills Orgs and ByOrg. All containers are
// always non-nil; absence of data yields an empty structure.
type Mappings struct {
	Orgs   []string              `json:"orgs"`
	Guests map[string]GuestFacts `json:"guests"`
	ByOrg  map[string]OrgMapping `json:"by_org"`
}

func NewMappings() Mappings {
	return Mappings{
		Orgs:   []string{},
		Guests: map[string]GuestFacts{},
		ByOrg:  map[string]OrgMapping{},
	}
}

// Empty reports whether no mapping data was found at all.
func (m Mappings) Empty() bool {
	return len(m.Orgs) == 0 && len(m.Guests) == 0 && len(m.ByOrg) == 0
}

// AnalysisResult is the structured outcome of one run, derived from the
// captured log text. Produced once per run and never mutated afterwards;
// every field degrades to its zero value (or documented sentinel) when
// the log lacks the corresponding marker.
type AnalysisResult struct {
	Debug      bool `json:"debug"`
	Oneshot    bool `json:"oneshot"`
	Terminated bool `json:"terminated"`

	Threads int `json:"thread"`
	Send    int `json:"send"`

	ReporterID string `json:"reporter_id"`

	// Interval is the configured loop interval, nil when the agent
	// never logged the infinite-loop start line.
	Interval *int `json:"interval"`
	// LoopInterval is the measured seconds between the first two loop
	// boundaries, -1 when fewer than two were observed.
	LoopInterval int `json:"loop"`
	LoopCount    int `json:"loop_num"`

	Mappings     Mappings `json:"mappings"`
	HypervisorID string   `json:"hypervisor_id"`

	// PrintJSON is the agent's -p output, nil when the print file was
	// absent or empty.
	PrintJSON *string `json:"print_json"`

	ErrorCount   int      `json:"error"`
	ErrorLines   []string `json:"error_msg"`
	WarningCount int      `json:"warning"`
	WarningLines []string `json:"warning_msg"`
}

package virtwho

import (
	"github.com/virtwho-qe/harness/internal/models"
)

// Markers and patterns tied to the agent's logging format. The HTTP
// patterns below mirror virt-who's connection debug lines exactly; if
// the agent ever changes verb or path, send detection returns 0 instead
// of failing loudly. That fragility is a deliberate contract with the
// agent's current output, so keep the table as the single place to
// audit it.
const (
	rateLimitMarker   = "status=429"
	serverErrorMarker = `RemoteServerException: Server error attempting a GET.*returned status 500`

	zeroHostsMarker = "0 hypervisors and 0 guests found"

	debugMarker      = `\[.*DEBUG\]`
	oneshotMarker    = `Thread '.*' stopped after running once`
	terminatedMarker = "virt-who terminated"
	errorLineMarker  = `\[.*ERROR.*\]`

	reporterIDPattern   = `reporter_id='(.*?)'`
	intervalPattern     = `Starting infinite loop with(.*?)seconds interval`
	reportLinePattern   = `Report for config "(.*?)" gathered, placing in datastore`
	orgPattern          = `Host-to-guest mapping being sent to '(.*?)'`
	domainInfoMarker    = "Domain info: "
	clockPattern        = `\d{2}:\d{2}:\d{2}`
	mappingSentTemplate = "Host-to-guest mapping being sent to '%s'"
)

// Connection debug markers: presence of either selects the HTTP success
// patterns over the plain "sending" phrases.
var debugConnMarkers = []string{
	"virtwho.main DEBUG",
	"rhsm.connection DEBUG",
}

type sendScope struct {
	Register models.Register
	Local    bool
}

// connectionPatterns is the (register backend, scope) decision table for
// send detection when the connection debug log is present.
var connectionPatterns = map[sendScope]string{
	{models.RegisterSatellite, true}:  `Response: status=200, request="PUT /rhsm/consumers`,
	{models.RegisterSatellite, false}: `Response: status=200, request="POST /rhsm/hypervisors`,
	{models.RegisterRHSM, true}:       `Response: status=20.*requestUuid.*request="PUT /subscription/consumers`,
	{models.RegisterRHSM, false}:      `Response: status=20.*requestUuid.*request="POST /subscription/hypervisors`,
}

// sendingPatterns detects sends from the plain info-level log.
var sendingPatterns = map[bool]string{
	true:  "Sending update in guests lists for config",
	false: "Sending updated Host-to-guest mapping to",
}

// sendPattern picks the send-detection pattern for a log. Branch order
// matters: the explicit zero-hosts message wins, then the HTTP success
// patterns when connection debugging is on, then the plain phrases.
func sendPattern(log string, runCtx models.RunContext) string {
	if hasMatch(log, zeroHostsMarker) {
		return zeroHostsMarker
	}
	for _, marker := range debugConnMarkers {
		if hasMatch(log, marker) {
			return connectionPatterns[sendScope{runCtx.Register, runCtx.Mode.IsLocal()}]
		}
	}
	return sendingPatterns[runCtx.Mode.IsLocal()]
}

// sendCount counts detected sends in the log.
func sendCount(log string, runCtx models.RunContext) int {
	pattern := sendPattern(log, runCtx)
	if pattern == "" {
		return 0
	}
	return countMatches(log, pattern)
}

package virtwho_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/virtwho-qe/harness/internal/models"
	"github.com/virtwho-qe/harness/internal/virtwho"
)

const remoteSatelliteLog = `2024-03-01 10:00:00,100 [rhsm.connection DEBUG] MainProcess(2201):MainThread @connection.py:__init__:123 - Connection built: host=satellite.example.com port=443
2024-03-01 10:00:00,400 [virtwho.main DEBUG] MainProcess(2201):MainThread @executor.py:run:88 - Starting infinite loop with 3600 seconds interval
2024-03-01 10:00:01,000 [virtwho.main DEBUG] MainProcess(2201):Thread-1 @virt.py:_run:409 - Report for config "esx-conf" gathered, placing in datastore
2024-03-01 10:00:02,000 [virtwho.main INFO] MainProcess(2201):MainThread @subscriptionmanager.py:hypervisorCheckIn:231 - Sending updated Host-to-guest mapping to 'org1' including 1 hypervisors and 2 guests
2024-03-01 10:00:02,100 [virtwho.main DEBUG] MainProcess(2201):MainThread @subscriptionmanager.py:hypervisorCheckIn:233 - Host-to-guest mapping being sent to 'org1': {
  "hypervisors": [
    {
      "hypervisorId": {"hypervisorId": "hv-1"},
      "name": "esx-host-1.example.com",
      "facts": {
        "hypervisor.type": "VMware ESXi",
        "hypervisor.version": "7.0.3",
        "cpu.cpu_socket(s)": "2",
        "dmi.system.uuid": "4c4c4544-004d-3510-8052-b4c04f4e3732",
        "hypervisor.cluster": "cluster-a"
      },
      "guestIds": [
        {"guestId": "guest-1", "state": 1, "attributes": {"active": 1, "virtWhoType": "esx"}},
        {"guestId": "guest-2", "state": 5, "attributes": {"active": 0, "virtWhoType": "esx"}}
      ]
    }
  ]
}
202
2024-03-01 10:00:03,000 [rhsm.connection DEBUG] MainProcess(2201):MainThread @connection.py:_request:573 - Response: status=200, request="POST /rhsm/hypervisors/org1"
2024-03-01 10:00:03,200 [virtwho.main DEBUG] MainProcess(2201):MainThread @executor.py:send:120 - Report for config "esx-conf" sent, reporter_id='esx-host.example.com-5f1a'
2024-03-01 10:00:04,000 [virtwho.main DEBUG] MainProcess(2201):Thread-1 @virt.py:_run:430 - Thread 'esx-conf' stopped after running once
2024-03-01 10:00:04,500 [virtwho.main INFO] MainProcess(2201):MainThread @main.py:exit:201 - virt-who terminated
`

const localLog = `2024-03-01 09:00:00,100 [virtwho.main INFO] MainProcess(1800):MainThread @main.py:main:162 - Started virt-who
2024-03-01 09:00:01,000 [virtwho.main DEBUG] MainProcess(1800):Thread-1 @libvirtd.py:_run:220 - Domain info: [
  {
    "guestId": "g1",
    "state": "running",
    "attributes": {
      "active": true,
      "virtWhoType": "vdsm"
    }
  }
]
2024-03-01 09:00:02,000 [rhsm.connection DEBUG] MainProcess(1800):MainThread @connection.py:_request:573 - Response: status=200, requestUuid=9b0a3f2e, request="PUT /subscription/consumers/1a2b3c"
`

var _ = Describe("Analyze", func() {
	var (
		remoteCtx models.RunContext
		localCtx  models.RunContext
	)

	BeforeEach(func() {
		remoteCtx = models.NewRunContext(models.ModeEsx, models.RegisterSatellite)
		remoteCtx.GuestUUID = "guest-1"
		localCtx = models.NewRunContext(models.ModeLocal, models.RegisterRHSM)
	})

	Context("with an empty log", func() {
		It("should produce a complete result with defaults", func() {
			result := virtwho.Analyze(models.Capture{}, remoteCtx)

			Expect(result.Send).To(Equal(0))
			Expect(result.Debug).To(BeFalse())
			Expect(result.Oneshot).To(BeFalse())
			Expect(result.Terminated).To(BeFalse())
			Expect(result.ReporterID).To(BeEmpty())
			Expect(result.Interval).To(BeNil())
			Expect(result.LoopCount).To(Equal(0))
			Expect(result.LoopInterval).To(Equal(-1))
			Expect(result.HypervisorID).To(BeEmpty())
			Expect(result.PrintJSON).To(BeNil())
		})

		It("should never return nil mapping containers", func() {
			result := virtwho.Analyze(models.Capture{}, remoteCtx)

			Expect(result.Mappings.Empty()).To(BeTrue())
			Expect(result.Mappings.Orgs).NotTo(BeNil())
			Expect(result.Mappings.Guests).NotTo(BeNil())
			Expect(result.Mappings.ByOrg).NotTo(BeNil())
		})
	})

	Context("with a remote satellite log", func() {
		It("should count exactly one send through the POST /rhsm/hypervisors pattern", func() {
			result := virtwho.Analyze(models.Capture{Log: remoteSatelliteLog}, remoteCtx)
			Expect(result.Send).To(Equal(1))
		})

		It("should extract the run booleans", func() {
			result := virtwho.Analyze(models.Capture{Log: remoteSatelliteLog}, remoteCtx)

			Expect(result.Debug).To(BeTrue())
			Expect(result.Oneshot).To(BeTrue())
			Expect(result.Terminated).To(BeTrue())
		})

		It("should extract reporter id and interval", func() {
			result := virtwho.Analyze(models.Capture{Log: remoteSatelliteLog}, remoteCtx)

			Expect(result.ReporterID).To(Equal("esx-host.example.com-5f1a"))
			Expect(result.Interval).To(HaveValue(Equal(3600)))
		})

		It("should parse the organization mapping", func() {
			result := virtwho.Analyze(models.Capture{Log: remoteSatelliteLog}, remoteCtx)

			Expect(result.Mappings.Orgs).To(Equal([]string{"org1"}))
			org := result.Mappings.ByOrg["org1"]
			Expect(org.HypervisorCount).To(Equal(1))

			hv := org.Hypervisors["hv-1"]
			Expect(hv.Name).To(Equal("esx-host-1.example.com"))
			Expect(hv.Type).To(Equal("VMware ESXi"))
			Expect(hv.Version).To(Equal("7.0.3"))
			Expect(hv.Socket).To(Equal("2"))
			Expect(hv.DMI).To(Equal("4c4c4544-004d-3510-8052-b4c04f4e3732"))
			Expect(hv.Cluster).To(Equal("cluster-a"))
			Expect(hv.Guests).To(Equal([]string{"guest-1", "guest-2"}))

			Expect(org.Guests["guest-1"].Hypervisor).To(Equal("hv-1"))
			Expect(org.Guests["guest-1"].Active).To(BeTrue())
			Expect(org.Guests["guest-2"].Active).To(BeFalse())
			Expect(org.Guests["guest-2"].State).To(Equal("5"))
		})

		It("should resolve the hypervisor owning the self guest", func() {
			result := virtwho.Analyze(models.Capture{Log: remoteSatelliteLog}, remoteCtx)
			Expect(result.HypervisorID).To(Equal("hv-1"))
		})

		It("should return an empty hypervisor id for an unknown self guest", func() {
			ctx := remoteCtx
			ctx.GuestUUID = "guest-unknown"
			result := virtwho.Analyze(models.Capture{Log: remoteSatelliteLog}, ctx)
			Expect(result.HypervisorID).To(BeEmpty())
		})

		It("should count each organization once across loops", func() {
			looped := remoteSatelliteLog + remoteSatelliteLog
			result := virtwho.Analyze(models.Capture{Log: looped}, remoteCtx)

			Expect(result.Mappings.Orgs).To(Equal([]string{"org1"}))
			Expect(result.Mappings.ByOrg["org1"].HypervisorCount).To(Equal(1))
		})

		It("should be pure and idempotent", func() {
			capture := models.Capture{Log: remoteSatelliteLog, Threads: 1}
			first := virtwho.Analyze(capture, remoteCtx)
			second := virtwho.Analyze(capture, remoteCtx)
			Expect(first).To(Equal(second))
		})
	})

	Context("with a local mode log", func() {
		It("should round-trip the domain info block", func() {
			result := virtwho.Analyze(models.Capture{Log: localLog}, localCtx)

			Expect(result.Mappings.Guests).To(HaveLen(1))
			Expect(result.Mappings.Guests["g1"]).To(Equal(models.GuestFacts{
				State:  "running",
				Active: true,
				Type:   "vdsm",
			}))
		})

		It("should count the send through the consumers update response", func() {
			result := virtwho.Analyze(models.Capture{Log: localLog}, localCtx)
			Expect(result.Send).To(Equal(1))
		})

		It("should tolerate a garbled domain info block", func() {
			garbled := "2024-03-01 09:00:01,000 [virtwho.main DEBUG] - Domain info: [ {broken\n"
			result := virtwho.Analyze(models.Capture{Log: garbled}, localCtx)
			Expect(result.Mappings.Guests).To(BeEmpty())
		})
	})

	Context("loop accounting", func() {
		const loopLog = `2024-03-01 10:00:10,000 [virtwho.main DEBUG] - Report for config "esx-conf" gathered, placing in datastore
2024-03-01 10:01:25,000 [virtwho.main DEBUG] - Report for config "esx-conf" gathered, placing in datastore
2024-03-01 10:02:40,000 [virtwho.main DEBUG] - Report for config "esx-conf" gathered, placing in datastore
`

		It("should count completed loops as occurrences minus one", func() {
			result := virtwho.Analyze(models.Capture{Log: loopLog}, remoteCtx)
			Expect(result.LoopCount).To(Equal(2))
		})

		It("should measure the loop interval from the first two boundaries", func() {
			result := virtwho.Analyze(models.Capture{Log: loopLog}, remoteCtx)
			Expect(result.LoopInterval).To(Equal(75))
		})

		It("should report zero loops and the -1 sentinel for a single occurrence", func() {
			single := `2024-03-01 10:00:10,000 [virtwho.main DEBUG] - Report for config "esx-conf" gathered, placing in datastore` + "\n"
			result := virtwho.Analyze(models.Capture{Log: single}, remoteCtx)

			Expect(result.LoopCount).To(Equal(0))
			Expect(result.LoopInterval).To(Equal(-1))
		})
	})

	Context("error and warning tallies", func() {
		It("should capture the matching lines verbatim", func() {
			log := `2024-03-01 10:00:00,000 [virtwho.main ERROR] MainProcess(1):MainThread - Unable to login to ESX
2024-03-01 10:00:01,000 [virtwho.main WARNING] MainProcess(1):MainThread - Taking too long
`
			result := virtwho.Analyze(models.Capture{Log: log}, remoteCtx)

			Expect(result.ErrorCount).To(Equal(1))
			Expect(result.ErrorLines).To(ConsistOf(
				"2024-03-01 10:00:00,000 [virtwho.main ERROR] MainProcess(1):MainThread - Unable to login to ESX"))
			Expect(result.WarningCount).To(Equal(1))
			Expect(result.WarningLines).To(ConsistOf(
				"2024-03-01 10:00:01,000 [virtwho.main WARNING] MainProcess(1):MainThread - Taking too long"))
		})
	})

	Context("capture passthrough", func() {
		It("should carry thread count and print output into the result", func() {
			capture := models.Capture{Log: localLog, Threads: 2, PrintJSON: `[{"uuid": "g1"}]`}
			result := virtwho.Analyze(capture, localCtx)

			Expect(result.Threads).To(Equal(2))
			Expect(result.PrintJSON).To(HaveValue(Equal(`[{"uuid": "g1"}]`)))
		})

		It("should leave print output nil when the file was empty", func() {
			result := virtwho.Analyze(models.Capture{Log: localLog}, localCtx)
			Expect(result.PrintJSON).To(BeNil())
		})
	})
})

package store_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/virtwho-qe/harness/internal/models"
	"github.com/virtwho-qe/harness/internal/store"
	"github.com/virtwho-qe/harness/internal/store/migrations"
)

var _ = Describe("RunStore", func() {
	var (
		ctx  context.Context
		db   *sql.DB
		runs *store.RunStore
	)

	sampleResult := func(send int) models.AnalysisResult {
		result := models.AnalysisResult{
			Debug:        true,
			Oneshot:      true,
			Send:         send,
			LoopInterval: -1,
			Mappings:     models.NewMappings(),
		}
		result.Mappings.Orgs = append(result.Mappings.Orgs, "org1")
		return result
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		db, err = store.NewDB(":memory:")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = db.Close() })

		Expect(migrations.Run(ctx, db)).To(Succeed())
		runs = store.NewRunStore(store.NewQueryInterceptor(db))
	})

	It("should apply the migrations idempotently", func() {
		Expect(migrations.Run(ctx, db)).To(Succeed())
	})

	It("should list nothing on a fresh database", func() {
		records, err := runs.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeEmpty())
	})

	It("should round-trip a record", func() {
		runCtx := models.NewRunContext(models.ModeEsx, models.RegisterSatellite)
		record := store.NewRunRecord(runCtx, "virt-who -d -o", sampleResult(1))
		record.CreatedAt = time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

		Expect(runs.Save(ctx, record)).To(Succeed())

		records, err := runs.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))

		got := records[0]
		Expect(got.ID).To(Equal(record.ID))
		Expect(got.Mode).To(Equal(models.ModeEsx))
		Expect(got.Register).To(Equal(models.RegisterSatellite))
		Expect(got.Launch).To(Equal("virt-who -d -o"))
		Expect(got.Send).To(Equal(1))
		Expect(got.Result.Debug).To(BeTrue())
		Expect(got.Result.LoopInterval).To(Equal(-1))
		Expect(got.Result.Mappings.Orgs).To(Equal([]string{"org1"}))
	})

	It("should list newest records first", func() {
		runCtx := models.NewRunContext(models.ModeHyperv, models.RegisterRHSM)

		older := store.NewRunRecord(runCtx, "virt-who -o", sampleResult(0))
		older.CreatedAt = time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
		newer := store.NewRunRecord(runCtx, "virt-who -d -o", sampleResult(1))
		newer.CreatedAt = time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

		Expect(runs.Save(ctx, older)).To(Succeed())
		Expect(runs.Save(ctx, newer)).To(Succeed())

		records, err := runs.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0].ID).To(Equal(newer.ID))
		Expect(records[1].ID).To(Equal(older.ID))
	})

	It("should derive the summary columns from the analysis", func() {
		runCtx := models.NewRunContext(models.ModeLocal, models.RegisterRHSM)
		result := sampleResult(2)
		result.ErrorCount = 1
		result.WarningCount = 3
		result.LoopCount = 4

		record := store.NewRunRecord(runCtx, "virt-who -d", result)
		Expect(record.Send).To(Equal(2))
		Expect(record.ErrorCount).To(Equal(1))
		Expect(record.WarningCount).To(Equal(3))
		Expect(record.LoopCount).To(Equal(4))
		Expect(record.ID).NotTo(Equal(uuid.Nil))
	})
})

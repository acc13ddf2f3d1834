package engine

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/aisgo/ais-modelcode/database/sqlite"
	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/model"
	"github.com/aisgo/ais-modelcode/repository"

	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	db, err := sqlite.NewDB(sqlite.Params{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return New(Deps{DB: db})
}

func seedModel(t *testing.T, e *Engine, modelType string, threeLayer bool) *model.ModelClassification {
	t.Helper()
	ctx := context.Background()

	pts, err := e.Catalog.ListProductTypes(ctx)
	require.NoError(t, err)
	var ptID int64
	if len(pts) > 0 {
		ptID = pts[0].ID
	} else {
		pt, err := e.Catalog.CreateProductType(ctx, ProductTypeInput{Code: "PUMP", Name: "水泵"})
		require.NoError(t, err)
		ptID = pt.ID
	}

	mc, err := e.Catalog.CreateModelClassification(ctx, ModelClassificationInput{
		ProductTypeID:         ptID,
		Type:                  modelType,
		Descriptions:          []string{"test"},
		HasCodeClassification: threeLayer,
	})
	require.NoError(t, err)
	return mc
}

func seedClassification(t *testing.T, e *Engine, modelType, digit string) *model.CodeClassification {
	t.Helper()
	cc, err := e.Prealloc.CreateCodeClassification(context.Background(), CodeClassificationInput{
		ModelType: modelType,
		Code:      digit,
		Name:      "分类" + digit,
	})
	require.NoError(t, err)
	return cc
}

func pinned(modelType, digit, number string) CreateRequest {
	return CreateRequest{
		CodeKey:  CodeKey{ModelType: modelType, ClassificationNumber: digit, ActualNumber: number},
		Metadata: Metadata{ProductName: "泵体", OccupancyType: model.OccupancyWorkOrder},
	}
}

func TestPreallocationCreatesFullBlock(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "SLU", true)
	cc := seedClassification(t, e, "SLU", "5")

	rows, err := e.Queries.ByClassification(ctx, cc.ID)
	require.NoError(t, err)
	require.Len(t, rows, BlockSize)
	require.Equal(t, "SLU-500", rows[0].Model)
	require.Equal(t, "SLU-599", rows[BlockSize-1].Model)
	for _, r := range rows {
		require.Equal(t, model.StatePlanned, r.State)
	}

	stats, err := e.Queries.Stats(ctx, "SLU")
	require.NoError(t, err)
	require.EqualValues(t, BlockSize, stats.Planned)
	require.EqualValues(t, 0, stats.Allocated)
}

func TestCreateClassificationRules(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "SLU", true)
	seedModel(t, e, "AC", false)
	seedClassification(t, e, "SLU", "5")

	_, err := e.Prealloc.CreateCodeClassification(ctx, CodeClassificationInput{ModelType: "SLU", Code: "5", Name: "dup"})
	require.True(t, errors.IsConflict(err), "got %v", err)

	_, err = e.Prealloc.CreateCodeClassification(ctx, CodeClassificationInput{ModelType: "SLU", Code: "12", Name: "x"})
	require.Equal(t, errors.ErrCodeInvalidFormat, errors.Code(err))

	_, err = e.Prealloc.CreateCodeClassification(ctx, CodeClassificationInput{ModelType: "AC", Code: "1", Name: "x"})
	require.Equal(t, errors.ErrCodeInvalidFormat, errors.Code(err))
}

func TestConcurrentAllocateHasSingleWinner(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "SLU", true)
	seedClassification(t, e, "SLU", "5")

	avail, err := e.Availability.CheckAvailability(ctx, CodeKey{ModelType: "SLU", ClassificationNumber: "5", ActualNumber: "07"})
	require.NoError(t, err)
	require.Equal(t, Available, avail.Status)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		losers  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.Allocation.Allocate(ctx, avail.SlotID, Metadata{Requester: "u" + strconv.Itoa(i)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.IsAlreadyAllocated(err):
				losers++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, winners)
	require.Equal(t, workers-1, losers)

	row, err := e.Queries.Get(ctx, avail.SlotID)
	require.NoError(t, err)
	require.Equal(t, model.StateAllocated, row.State)
	require.Equal(t, "SLU-507", row.Model)
}

func TestAllocateNextPicksLowestAndExhausts(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "SLU", true)
	cc := seedClassification(t, e, "SLU", "3")

	_, err := e.Allocation.Create(ctx, pinned("SLU", "3", "00"))
	require.NoError(t, err)

	next, err := e.Allocation.AllocateNext(ctx, cc.ID, Metadata{})
	require.NoError(t, err)
	require.Equal(t, "SLU-301", next.Model)

	viaCreate, err := e.Allocation.Create(ctx, pinned("SLU", "3", ""))
	require.NoError(t, err)
	require.Equal(t, "SLU-302", viaCreate.Model)

	for i := 3; i < BlockSize; i++ {
		_, err := e.Allocation.AllocateNext(ctx, cc.ID, Metadata{})
		require.NoError(t, err)
	}
	_, err = e.Allocation.AllocateNext(ctx, cc.ID, Metadata{})
	require.True(t, errors.IsConflict(err), "got %v", err)
}

func TestPinnedCreateOutcomes(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "SLU", true)
	seedClassification(t, e, "SLU", "5")

	row, err := e.Allocation.Create(ctx, pinned("SLU", "5", "07"))
	require.NoError(t, err)
	require.Equal(t, model.OccupancyWorkOrder, row.OccupancyType)

	_, err = e.Allocation.Create(ctx, pinned("SLU", "5", "07"))
	require.True(t, errors.IsAlreadyAllocated(err), "got %v", err)

	_, err = e.Allocation.Create(ctx, pinned("SLU", "4", "07"))
	require.True(t, errors.IsNotFound(err), "got %v", err)

	_, err = e.Allocation.Create(ctx, pinned("SLU", "5", "7"))
	require.Equal(t, errors.ErrCodeInvalidFormat, errors.Code(err))

	bad := pinned("SLU", "5", "08")
	bad.OccupancyType = "借用"
	_, err = e.Allocation.Create(ctx, bad)
	require.Equal(t, errors.ErrCodeInvalidFormat, errors.Code(err))
}

func TestExtensionRequiresBaseAndIsUnique(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "SLU", true)
	seedClassification(t, e, "SLU", "5")

	req := pinned("SLU", "5", "07")
	req.Extension = "A"
	row, err := e.Allocation.Create(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "SLU-507-A", row.Model)
	require.Equal(t, model.StateAllocated, row.State)

	_, err = e.Allocation.Create(ctx, req)
	require.True(t, errors.IsConflict(err), "got %v", err)
}

func TestDeletedThreeLayerSlotIsReservedUntilRestored(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "SLU", true)
	seedClassification(t, e, "SLU", "5")

	row, err := e.Allocation.Create(ctx, pinned("SLU", "5", "07"))
	require.NoError(t, err)

	require.Equal(t, errors.ErrCodeInvalidArgument, errors.Code(e.Lifecycle.SoftDelete(ctx, row.ID, " ")))
	require.NoError(t, e.Lifecycle.SoftDelete(ctx, row.ID, "客户取消"))
	require.Equal(t, errors.ErrCodeInvalidArgument, errors.Code(e.Lifecycle.SoftDelete(ctx, row.ID, "again")))

	_, err = e.Allocation.Create(ctx, pinned("SLU", "5", "07"))
	require.True(t, errors.IsConflict(err), "got %v", err)
	_, err = e.Allocation.Allocate(ctx, row.ID, Metadata{})
	require.True(t, errors.IsConflict(err), "got %v", err)

	avail, err := e.Availability.CheckAvailability(ctx, CodeKey{ModelType: "SLU", ClassificationNumber: "5", ActualNumber: "07"})
	require.NoError(t, err)
	require.Equal(t, Taken, avail.Status)

	restored, err := e.Lifecycle.Restore(ctx, row.ID)
	require.NoError(t, err)
	require.Equal(t, model.StateAllocated, restored.State)
	require.Empty(t, restored.DeletedReason)
}

func TestTwoLayerRestoreConflictsWithNewHolder(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "AC", false)

	first, err := e.Allocation.CreateManual(ctx, ManualRequest{ModelType: "AC", ActualNumber: "123"})
	require.NoError(t, err)
	require.Equal(t, "AC-123", first.Model)

	_, err = e.Allocation.CreateManual(ctx, ManualRequest{ModelType: "AC", ActualNumber: "123"})
	require.True(t, errors.IsConflict(err), "got %v", err)

	require.NoError(t, e.Lifecycle.SoftDelete(ctx, first.ID, "作废"))
	second, err := e.Allocation.CreateManual(ctx, ManualRequest{ModelType: "AC", ActualNumber: "123"})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	_, err = e.Lifecycle.Restore(ctx, first.ID)
	require.True(t, errors.IsConflict(err), "got %v", err)

	page, err := e.Queries.List(ctx, CodeUsageFilter{ModelType: "AC", IncludeDeleted: true})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)
}

func TestRoutingByStructure(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "SLU", true)
	seedModel(t, e, "AC", false)

	_, err := e.Allocation.CreateManual(ctx, ManualRequest{ModelType: "SLU", ActualNumber: "507"})
	require.Equal(t, errors.ErrCodeInvalidFormat, errors.Code(err))

	_, err = e.Allocation.Create(ctx, pinned("AC", "1", "01"))
	require.Equal(t, errors.ErrCodeInvalidFormat, errors.Code(err))

	_, err = e.Allocation.CreateManual(ctx, ManualRequest{ModelType: "ZZ", ActualNumber: "1"})
	require.True(t, errors.IsNotFound(err), "got %v", err)

	s, err := e.Catalog.ResolveStructure(ctx, "AC")
	require.NoError(t, err)
	require.Equal(t, TwoLayer, s.Kind)
}

func TestImportReportsPartialFailure(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "AC", false)
	for _, n := range []string{"3", "7"} {
		_, err := e.Allocation.CreateManual(ctx, ManualRequest{ModelType: "AC", ActualNumber: n})
		require.NoError(t, err)
	}

	rows := make([]ImportRow, 0, 10)
	for i := 1; i <= 10; i++ {
		rows = append(rows, ImportRow{
			CodeKey:  CodeKey{ModelType: "AC", ActualNumber: strconv.Itoa(i)},
			Metadata: Metadata{OccupancyType: model.OccupancyPlanning},
		})
	}

	report, err := e.Batch.ImportCodeUsages(ctx, rows)
	require.NoError(t, err)
	require.Equal(t, 8, report.Succeeded())
	require.Equal(t, 2, report.Failed())
	require.Equal(t, errors.ErrCodePartialBatchFailure, errors.Code(report.Err()))
	for _, it := range report.Items {
		if it.Index == 2 || it.Index == 6 {
			require.False(t, it.Success)
			require.Equal(t, "CONFLICT", it.Code)
		} else {
			require.True(t, it.Success, "row %d: %s", it.Index, it.Message)
		}
	}
}

func TestImportThreeLayerAllocatedRowIsConflict(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "SLU", true)
	seedClassification(t, e, "SLU", "5")
	_, err := e.Allocation.Create(ctx, pinned("SLU", "5", "01"))
	require.NoError(t, err)

	report, err := e.Batch.ImportCodeUsages(ctx, []ImportRow{
		{CodeKey: CodeKey{ModelType: "SLU", ClassificationNumber: "5", ActualNumber: "01"}},
		{CodeKey: CodeKey{ModelType: "SLU", ClassificationNumber: "5", ActualNumber: "02"}},
	})
	require.NoError(t, err)
	require.Equal(t, "CONFLICT", report.Items[0].Code)
	require.True(t, report.Items[1].Success)
	require.Equal(t, "SLU-502", report.Items[1].Model)
}

func TestValidateImportIsDryRun(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "AC", false)

	report, err := e.Batch.ValidateImport(ctx, []ImportRow{
		{CodeKey: CodeKey{ModelType: "AC", ActualNumber: "10"}},
		{CodeKey: CodeKey{ModelType: "AC", ActualNumber: "10"}},
		{CodeKey: CodeKey{ModelType: "AC", ActualNumber: "1234567"}},
		{CodeKey: CodeKey{ModelType: "NOPE", ActualNumber: "1"}},
	})
	require.NoError(t, err)
	require.True(t, report.DryRun)
	require.True(t, report.Items[0].Success)
	require.Equal(t, "CONFLICT", report.Items[1].Code)
	require.Equal(t, "INVALID_FORMAT", report.Items[2].Code)
	require.Equal(t, "NOT_FOUND", report.Items[3].Code)

	stats, err := e.Queries.Stats(ctx, "AC")
	require.NoError(t, err)
	require.EqualValues(t, 0, stats.Total)
}

func TestBatchLifecycleAndOccupancy(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "AC", false)

	var ids []int64
	for _, n := range []string{"1", "2"} {
		row, err := e.Allocation.CreateManual(ctx, ManualRequest{ModelType: "AC", ActualNumber: n})
		require.NoError(t, err)
		ids = append(ids, row.ID)
	}

	report, err := e.Batch.UpdateOccupancyTypes(ctx, []OccupancyUpdate{
		{ID: ids[0], OccupancyType: model.OccupancySuspended},
		{ID: ids[1], OccupancyType: "借用"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded())

	report, err = e.Batch.SoftDeleteCodes(ctx, append(ids, 42), "清理")
	require.NoError(t, err)
	require.Equal(t, 2, report.Succeeded())
	require.Equal(t, "NOT_FOUND", report.Items[2].Code)

	report, err = e.Batch.RestoreCodes(ctx, ids)
	require.NoError(t, err)
	require.Equal(t, 2, report.Succeeded())
	require.NoError(t, report.Err())

	_, err = e.Batch.RestoreCodes(ctx, nil)
	require.Equal(t, errors.ErrCodeInvalidArgument, errors.Code(err))
}

func TestDeleteCodeClassification(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "SLU", true)
	busy := seedClassification(t, e, "SLU", "1")
	idle := seedClassification(t, e, "SLU", "2")

	_, err := e.Allocation.Create(ctx, pinned("SLU", "1", "00"))
	require.NoError(t, err)
	require.True(t, errors.IsConflict(e.Catalog.DeleteCodeClassification(ctx, busy.ID)))

	require.NoError(t, e.Catalog.DeleteCodeClassification(ctx, idle.ID))
	_, err = e.Queries.ByClassification(ctx, idle.ID)
	require.True(t, errors.IsNotFound(err), "got %v", err)

	stats, err := e.Queries.Stats(ctx, "SLU")
	require.NoError(t, err)
	require.EqualValues(t, BlockSize-1, stats.Planned)
	require.EqualValues(t, 1, stats.Allocated)
	require.EqualValues(t, BlockSize, stats.Deleted)

	// 同一数字可重新创建，新槽位不与已删除的冲突
	again := seedClassification(t, e, "SLU", "2")
	rows, err := e.Queries.ByClassification(ctx, again.ID)
	require.NoError(t, err)
	require.Len(t, rows, BlockSize)
}

func TestModelClassificationStructureLockedByChildren(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mc := seedModel(t, e, "SLU", true)
	seedClassification(t, e, "SLU", "5")

	flat := false
	_, err := e.Catalog.UpdateModelClassification(ctx, mc.ID, ModelClassificationPatch{HasCodeClassification: &flat})
	require.True(t, errors.IsConflict(err), "got %v", err)

	updated, err := e.Catalog.UpdateModelClassification(ctx, mc.ID, ModelClassificationPatch{Descriptions: []string{"a", " ", "b"}})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, []string(updated.Descriptions))

	require.True(t, errors.IsConflict(e.Catalog.DeleteModelClassification(ctx, mc.ID)))
}

func TestPreallocationCollisionLeavesNothingBehind(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mc := seedModel(t, e, "SLU", true)

	require.NoError(t, e.Repos.Codes.Create(ctx, &model.CodeUsage{
		ModelClassificationID:    mc.ID,
		Model:                    "SLU-442",
		ModelType:                "SLU",
		CodeClassificationNumber: "4",
		ActualNumber:             "42",
		State:                    model.StateAllocated,
	}))

	_, err := e.Prealloc.CreateCodeClassification(ctx, CodeClassificationInput{ModelType: "SLU", Code: "4", Name: "分类4"})
	require.True(t, errors.IsConflict(err), "got %v", err)

	classes, err := e.Repos.CodeClasses.Count(ctx, "model_type = ? AND code = ?", "SLU", "4")
	require.NoError(t, err)
	require.Zero(t, classes)

	planned, err := e.Repos.Codes.CountWithOpts(ctx, "model_type = ? AND code_classification_number = ? AND state = ?",
		[]repository.Option{repository.WithUnscoped()}, "SLU", "4", model.StatePlanned)
	require.NoError(t, err)
	require.Zero(t, planned)

	total, err := e.Repos.Codes.Count(ctx, "model_type = ? AND code_classification_number = ?", "SLU", "4")
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestDeleteCodeClassificationKeepsDeletedHistory(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedModel(t, e, "SLU", true)
	cc := seedClassification(t, e, "SLU", "1")

	row, err := e.Allocation.Create(ctx, pinned("SLU", "1", "01"))
	require.NoError(t, err)
	require.NoError(t, e.Lifecycle.SoftDelete(ctx, row.ID, "客户取消"))

	err = e.Catalog.DeleteCodeClassification(ctx, cc.ID)
	require.True(t, errors.IsConflict(err), "got %v", err)

	stats, err := e.Queries.Stats(ctx, "")
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Deleted)
	require.EqualValues(t, BlockSize-1, stats.Planned)
	require.EqualValues(t, BlockSize, stats.Total)

	// 分类仍在，SLU-101 只能经恢复复用
	_, err = e.Allocation.Create(ctx, pinned("SLU", "1", "01"))
	require.True(t, errors.IsConflict(err), "got %v", err)
	restored, err := e.Lifecycle.Restore(ctx, row.ID)
	require.NoError(t, err)
	require.Equal(t, "SLU-101", restored.Model)
}

func TestDeletedCodesStillLockStructure(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	ac := seedModel(t, e, "AC", false)

	row, err := e.Allocation.CreateManual(ctx, ManualRequest{ModelType: "AC", ActualNumber: "50"})
	require.NoError(t, err)
	require.NoError(t, e.Lifecycle.SoftDelete(ctx, row.ID, "作废"))

	layered := true
	_, err = e.Catalog.UpdateModelClassification(ctx, ac.ID, ModelClassificationPatch{HasCodeClassification: &layered})
	require.True(t, errors.IsConflict(err), "got %v", err)
	require.True(t, errors.IsConflict(e.Catalog.DeleteModelClassification(ctx, ac.ID)))

	restored, err := e.Lifecycle.Restore(ctx, row.ID)
	require.NoError(t, err)
	require.Equal(t, "AC-50", restored.Model)

	// 只剩分类删除时清理的槽位，结构可以调整，但这些槽位不能以新结构恢复
	slu := seedModel(t, e, "SLU", true)
	cc := seedClassification(t, e, "SLU", "3")
	require.NoError(t, e.Catalog.DeleteCodeClassification(ctx, cc.ID))

	flat := false
	_, err = e.Catalog.UpdateModelClassification(ctx, slu.ID, ModelClassificationPatch{HasCodeClassification: &flat})
	require.NoError(t, err)

	slot, err := e.Repos.Codes.FindOneWithOpts(ctx, "model = ?", []repository.Option{repository.WithUnscoped()}, "SLU-300")
	require.NoError(t, err)
	_, err = e.Lifecycle.Restore(ctx, slot.ID)
	require.True(t, errors.IsConflict(err), "got %v", err)
	require.Contains(t, err.Error(), "2-layer")
}

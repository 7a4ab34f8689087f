package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	products   map[int64]decimal.Decimal
	warehouses map[int64]bool
	rows       map[int64]StockRow
	movements  []Movement
	transfers  []TransferHeader
	documents  map[string]bool
	nextID     int64
}

type memoryTx struct {
	repo     *memoryRepo
	entityID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products:   map[int64]decimal.Decimal{1: decimal.NewFromInt(500), 2: decimal.NewFromInt(1200)},
		warehouses: map[int64]bool{10: true, 20: true},
		rows:       make(map[int64]StockRow),
		documents:  make(map[string]bool),
	}
}

// WithTx serialises transactions and restores the previous state on error.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make(map[int64]StockRow, len(r.rows))
	for id, row := range r.rows {
		rows[id] = row
	}
	movements := append([]Movement(nil), r.movements...)
	transfers := append([]TransferHeader(nil), r.transfers...)
	documents := make(map[string]bool, len(r.documents))
	for key := range r.documents {
		documents[key] = true
	}
	next := r.nextID
	if err := fn(ctx, &memoryTx{repo: r, entityID: 1}); err != nil {
		r.rows, r.movements, r.transfers, r.documents, r.nextID = rows, movements, transfers, documents, next
		return err
	}
	return nil
}

func (r *memoryRepo) ListStock(ctx context.Context, q StockQuery) ([]StockRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StockRow
	for _, row := range r.rows {
		if row.EntityID == q.EntityID && (q.ProductID == 0 || row.ProductID == q.ProductID) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, q MovementQuery) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Movement
	for _, mv := range r.movements {
		if mv.EntityID == q.EntityID && (q.TransferID == 0 || mv.TransferID == q.TransferID) {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (r *memoryRepo) row(productID, warehouseID int64) (StockRow, bool) {
	for _, row := range r.rows {
		if row.ProductID == productID && row.WarehouseID == warehouseID {
			return row, true
		}
	}
	return StockRow{}, false
}

func (r *memoryRepo) seed(productID, warehouseID int64, qty int64) StockRow {
	r.nextID++
	row := StockRow{
		ID:              r.nextID,
		EntityID:        1,
		ProductID:       productID,
		WarehouseID:     warehouseID,
		Quantity:        decimal.NewFromInt(qty),
		InitialQuantity: decimal.NewFromInt(qty),
		Version:         1,
	}
	r.rows[row.ID] = row
	return row
}

func (tx *memoryTx) ProductCost(ctx context.Context, entityID, productID int64) (decimal.Decimal, error) {
	cost, ok := tx.repo.products[productID]
	if !ok || entityID != tx.entityID {
		return decimal.Zero, shared.NotFound("product", productID)
	}
	return cost, nil
}

func (tx *memoryTx) CheckWarehouse(ctx context.Context, entityID, warehouseID int64) error {
	if !tx.repo.warehouses[warehouseID] || entityID != tx.entityID {
		return shared.NotFound("warehouse", warehouseID)
	}
	return nil
}

func (tx *memoryTx) GetRowForUpdate(ctx context.Context, entityID, productID, warehouseID int64) (StockRow, error) {
	if row, ok := tx.repo.row(productID, warehouseID); ok {
		return row, nil
	}
	return StockRow{EntityID: entityID, ProductID: productID, WarehouseID: warehouseID}, ErrRowNotFound
}

func (tx *memoryTx) GetRowByIDForUpdate(ctx context.Context, id int64) (StockRow, error) {
	row, ok := tx.repo.rows[id]
	if !ok {
		return StockRow{}, shared.NotFound("stock row", id)
	}
	return row, nil
}

func (tx *memoryTx) InsertRow(ctx context.Context, row StockRow) (StockRow, error) {
	tx.repo.nextID++
	row.ID = tx.repo.nextID
	row.Quantity = row.InitialQuantity
	row.Version = 1
	tx.repo.rows[row.ID] = row
	return row, nil
}

func (tx *memoryTx) UpdateRowQuantity(ctx context.Context, row StockRow, quantity decimal.Decimal) (StockRow, error) {
	current := tx.repo.rows[row.ID]
	if current.Version != row.Version {
		return StockRow{}, ErrVersionConflict
	}
	current.Quantity = quantity
	current.Version++
	tx.repo.rows[row.ID] = current
	return current, nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, mv Movement) (Movement, error) {
	tx.repo.nextID++
	mv.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, mv)
	return mv, nil
}

func (tx *memoryTx) InsertTransfer(ctx context.Context, header TransferHeader) (TransferHeader, error) {
	tx.repo.nextID++
	header.ID = tx.repo.nextID
	for i := range header.Lines {
		tx.repo.nextID++
		header.Lines[i].ID = tx.repo.nextID
		header.Lines[i].TransferID = header.ID
	}
	tx.repo.transfers = append(tx.repo.transfers, header)
	return header, nil
}

func (tx *memoryTx) ClaimDocument(ctx context.Context, entityID int64, key string) (bool, error) {
	k := fmt.Sprintf("%d/%s", entityID, key)
	if tx.repo.documents[k] {
		return false, nil
	}
	tx.repo.documents[k] = true
	return true, nil
}

type recordingIntegration struct {
	events []TransferPostedEvent
	err    error
}

func (r *recordingIntegration) HandleTransferPosted(ctx context.Context, evt TransferPostedEvent) error {
	r.events = append(r.events, evt)
	return r.err
}

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newTestService(repo *memoryRepo, integration IntegrationHandler) *Service {
	svc := NewService(repo, nil, integration, nil)
	svc.WithNow(func() time.Time { return time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC) })
	return svc
}

func requireQuantityMatchesLog(t *testing.T, repo *memoryRepo) {
	t.Helper()
	for _, row := range repo.rows {
		expected := row.InitialQuantity
		for _, mv := range repo.movements {
			if mv.ProductID != row.ProductID || mv.WarehouseID != row.WarehouseID {
				continue
			}
			if mv.Type == MovementIn {
				expected = expected.Add(mv.Quantity)
			} else {
				expected = expected.Sub(mv.Quantity)
			}
		}
		require.True(t, expected.Equal(row.Quantity), "row %d: log %s, stored %s", row.ID, expected, row.Quantity)
	}
}

func TestRecordExitDecrementsAndLogs(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, 15)
	svc := newTestService(repo, nil)

	mv, err := svc.RecordExit(context.Background(), MovementInput{EntityID: 1, ProductID: 1, WarehouseID: 10, Quantity: qty(10), ActorID: 4})
	require.NoError(t, err)
	require.Equal(t, MovementOut, mv.Type)
	require.True(t, mv.Quantity.Equal(qty(10)))

	row, _ := repo.row(1, 10)
	require.True(t, row.Quantity.Equal(qty(5)))
	require.Len(t, repo.movements, 1)
	requireQuantityMatchesLog(t, repo)
}

func TestRecordExitInsufficientLeavesNoTrace(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, 3)
	svc := newTestService(repo, nil)

	_, err := svc.RecordExit(context.Background(), MovementInput{EntityID: 1, ProductID: 1, WarehouseID: 10, Quantity: qty(4)})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	var stockErr *shared.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	require.True(t, stockErr.Available.Equal(qty(3)))
	require.Empty(t, repo.movements)

	_, err = svc.RecordExit(context.Background(), MovementInput{EntityID: 1, ProductID: 2, WarehouseID: 20, Quantity: qty(1)})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	_, found := repo.row(2, 20)
	require.False(t, found)
}

func TestRecordEntryCreatesRowLazily(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	mv, err := svc.RecordEntry(context.Background(), MovementInput{EntityID: 1, ProductID: 2, WarehouseID: 20, Quantity: decimal.RequireFromString("2.5")})
	require.NoError(t, err)
	require.Equal(t, MovementIn, mv.Type)
	row, found := repo.row(2, 20)
	require.True(t, found)
	require.True(t, row.InitialQuantity.IsZero())
	require.True(t, row.Quantity.Equal(decimal.RequireFromString("2.5")))
	requireQuantityMatchesLog(t, repo)
}

func TestRecordRejectsBadInput(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.RecordEntry(ctx, MovementInput{EntityID: 1, ProductID: 1, WarehouseID: 10, Quantity: qty(0)})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.RecordEntry(ctx, MovementInput{EntityID: 1, ProductID: 1, WarehouseID: 10, Quantity: qty(-2)})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.RecordEntry(ctx, MovementInput{EntityID: 1, ProductID: 99, WarehouseID: 10, Quantity: qty(1)})
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.RecordEntry(ctx, MovementInput{EntityID: 1, ProductID: 1, WarehouseID: 99, Quantity: qty(1)})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.rows)
}

func TestValuesFinerThanColumnScaleAreRejected(t *testing.T) {
	repo := newMemoryRepo()
	row := repo.seed(1, 10, 5)
	svc := newTestService(repo, nil)
	ctx := context.Background()
	d := decimal.RequireFromString

	_, err := svc.RecordEntry(ctx, MovementInput{EntityID: 1, ProductID: 1, WarehouseID: 10, Quantity: d("0.00004")})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.RecordExit(ctx, MovementInput{EntityID: 1, ProductID: 1, WarehouseID: 10, Quantity: d("1.00001")})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Reconcile(ctx, ReconcileInput{EntityID: 1, Counts: []Count{{StockRowID: row.ID, Counted: d("5.00004")}}})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Transfer(ctx, TransferInput{EntityID: 1, OriginWarehouseID: 10, DestinationWarehouseID: 20,
		Lines: []TransferLineInput{{ProductID: 1, Quantity: d("0.00001")}}})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Transfer(ctx, TransferInput{EntityID: 1, OriginWarehouseID: 10, DestinationWarehouseID: 20,
		Lines: []TransferLineInput{{ProductID: 1, Quantity: qty(1), UnitCost: d("1.005")}}})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.movements)
	require.True(t, repo.rows[row.ID].Quantity.Equal(qty(5)))

	mv, err := svc.RecordEntry(ctx, MovementInput{EntityID: 1, ProductID: 1, WarehouseID: 10, Quantity: d("0.0004")})
	require.NoError(t, err)
	require.True(t, mv.Quantity.Equal(d("0.0004")))
	require.True(t, repo.rows[row.ID].Quantity.Equal(d("5.0004")))
	requireQuantityMatchesLog(t, repo)
}

func TestIssueDocumentChecksEveryLineFirst(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, 10)
	repo.seed(2, 10, 1)
	svc := newTestService(repo, nil)

	_, err := svc.IssueDocument(context.Background(), DocumentStockInput{
		EntityID:  1,
		Key:       "SALE:1",
		Reference: "FAC-1",
		Lines: []DocumentLine{
			{ProductID: 1, WarehouseID: 10, Quantity: qty(4)},
			{ProductID: 2, WarehouseID: 10, Quantity: qty(2)},
		},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	row, _ := repo.row(1, 10)
	require.True(t, row.Quantity.Equal(qty(10)))
	require.Empty(t, repo.movements)
}

func TestIssueDocumentAggregatesDuplicateLines(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, 10)
	svc := newTestService(repo, nil)

	_, err := svc.IssueDocument(context.Background(), DocumentStockInput{
		EntityID:  1,
		Key:       "SALE:2",
		Reference: "FAC-2",
		Lines: []DocumentLine{
			{ProductID: 1, WarehouseID: 10, Quantity: qty(6)},
			{ProductID: 1, WarehouseID: 10, Quantity: qty(6)},
		},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Empty(t, repo.movements)

	movements, err := svc.IssueDocument(context.Background(), DocumentStockInput{
		EntityID:  1,
		Key:       "SALE:3",
		Reference: "FAC-3",
		Lines: []DocumentLine{
			{ProductID: 1, WarehouseID: 10, Quantity: qty(6)},
			{ProductID: 1, WarehouseID: 10, Quantity: qty(4)},
		},
	})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	require.Equal(t, "FAC-3", movements[0].Note)
	row, _ := repo.row(1, 10)
	require.True(t, row.Quantity.IsZero())
	requireQuantityMatchesLog(t, repo)
}

func TestDocumentStockAppliesOnce(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, 10)
	svc := newTestService(repo, nil)
	ctx := context.Background()
	sale := DocumentStockInput{
		EntityID:  1,
		Key:       "SALE:7",
		Reference: "FAC-7",
		Lines:     []DocumentLine{{ProductID: 1, WarehouseID: 10, Quantity: qty(3)}},
	}

	_, err := svc.IssueDocument(ctx, sale)
	require.NoError(t, err)
	_, err = svc.IssueDocument(ctx, sale)
	require.ErrorIs(t, err, ErrDocumentApplied)
	row, _ := repo.row(1, 10)
	require.True(t, row.Quantity.Equal(qty(7)))
	require.Len(t, repo.movements, 1)

	purchase := sale
	purchase.Key = "PURCHASE:7"
	_, err = svc.ReceiveDocument(ctx, purchase)
	require.NoError(t, err)
	row, _ = repo.row(1, 10)
	require.True(t, row.Quantity.Equal(qty(10)))

	big := sale
	big.Key = "SALE:8"
	big.Lines = []DocumentLine{{ProductID: 1, WarehouseID: 10, Quantity: qty(50)}}
	_, err = svc.IssueDocument(ctx, big)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	big.Lines[0].Quantity = qty(4)
	_, err = svc.IssueDocument(ctx, big)
	require.NoError(t, err)
	requireQuantityMatchesLog(t, repo)
}

func TestConcurrentSalesCannotOversell(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, 15)
	svc := newTestService(repo, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.IssueDocument(context.Background(), DocumentStockInput{
				EntityID:  1,
				Key:       fmt.Sprintf("SALE:%d", 10+i),
				Reference: "FAC-C",
				Lines:     []DocumentLine{{ProductID: 1, WarehouseID: 10, Quantity: qty(10)}},
			})
		}(i)
	}
	wg.Wait()
	var failed int
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, shared.ErrInsufficientStock)
			failed++
		}
	}
	require.Equal(t, 1, failed)
	row, _ := repo.row(1, 10)
	require.True(t, row.Quantity.Equal(qty(5)))
}

func TestTransferCreatesDestinationRow(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, 10)
	integration := &recordingIntegration{}
	svc := newTestService(repo, integration)

	result, err := svc.Transfer(context.Background(), TransferInput{
		EntityID:               1,
		OriginWarehouseID:      10,
		DestinationWarehouseID: 20,
		ActorID:                4,
		Lines:                  []TransferLineInput{{ProductID: 1, Quantity: qty(3)}},
	})
	require.NoError(t, err)
	require.Empty(t, result.Warnings)

	origin, _ := repo.row(1, 10)
	dest, found := repo.row(1, 20)
	require.True(t, found)
	require.True(t, origin.Quantity.Equal(qty(7)))
	require.True(t, dest.Quantity.Equal(qty(3)))

	require.Len(t, repo.movements, 2)
	require.Len(t, repo.transfers, 1)
	types := map[MovementType]int{}
	for _, mv := range repo.movements {
		require.Equal(t, result.Header.ID, mv.TransferID)
		types[mv.Type]++
	}
	require.Equal(t, map[MovementType]int{MovementIn: 1, MovementOut: 1}, types)

	require.True(t, result.Value.Equal(qty(1500)))
	require.Len(t, integration.events, 1)
	require.True(t, integration.events[0].Value.Equal(qty(1500)))
	require.Equal(t, result.Header.ID, integration.events[0].TransferID)
	requireQuantityMatchesLog(t, repo)
}

func TestTransferIsAllOrNothing(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, 10)
	repo.seed(2, 10, 1)
	integration := &recordingIntegration{}
	svc := newTestService(repo, integration)

	_, err := svc.Transfer(context.Background(), TransferInput{
		EntityID:               1,
		OriginWarehouseID:      10,
		DestinationWarehouseID: 20,
		Lines: []TransferLineInput{
			{ProductID: 1, Quantity: qty(3)},
			{ProductID: 2, Quantity: qty(5)},
		},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Empty(t, repo.movements)
	require.Empty(t, repo.transfers)
	require.Len(t, repo.rows, 2)
	require.Empty(t, integration.events)
}

func TestTransferValidation(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, 10)
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.Transfer(ctx, TransferInput{EntityID: 1, OriginWarehouseID: 10, DestinationWarehouseID: 10,
		Lines: []TransferLineInput{{ProductID: 1, Quantity: qty(1)}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Transfer(ctx, TransferInput{EntityID: 1, OriginWarehouseID: 10, DestinationWarehouseID: 20})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Transfer(ctx, TransferInput{EntityID: 1, OriginWarehouseID: 10, DestinationWarehouseID: 20,
		Lines: []TransferLineInput{{ProductID: 1, Quantity: qty(0)}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Transfer(ctx, TransferInput{EntityID: 1, OriginWarehouseID: 10, DestinationWarehouseID: 30,
		Lines: []TransferLineInput{{ProductID: 1, Quantity: qty(1)}}})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.movements)
}

func TestTransferPostingFailureIsAWarning(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, 10)
	integration := &recordingIntegration{err: errors.New("queue unavailable")}
	svc := newTestService(repo, integration)

	result, err := svc.Transfer(context.Background(), TransferInput{
		EntityID:               1,
		OriginWarehouseID:      10,
		DestinationWarehouseID: 20,
		Lines:                  []TransferLineInput{{ProductID: 1, Quantity: qty(2), UnitCost: qty(100)}},
	})
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	require.ErrorIs(t, result.Warnings[0], shared.ErrPostingFailure)
	require.True(t, result.Value.Equal(qty(200)))
	require.Len(t, repo.movements, 2)
}

func TestReconcileSetsCountedQuantities(t *testing.T) {
	repo := newMemoryRepo()
	a := repo.seed(1, 10, 12)
	b := repo.seed(2, 10, 4)
	c := repo.seed(1, 20, 7)
	svc := newTestService(repo, nil)

	outcomes, err := svc.Reconcile(context.Background(), ReconcileInput{
		EntityID: 1,
		Counts: []Count{
			{StockRowID: a.ID, Counted: qty(8)},
			{StockRowID: b.ID, Counted: qty(6)},
			{StockRowID: c.ID, Counted: qty(7)},
		},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	require.True(t, outcomes[0].Delta.Equal(qty(-4)))
	require.Zero(t, outcomes[2].MovementID)

	require.Len(t, repo.movements, 2)
	out := repo.movements[0]
	require.Equal(t, MovementOut, out.Type)
	require.True(t, out.Quantity.Equal(qty(4)))
	require.Equal(t, AdjustmentNote, out.Note)
	require.Equal(t, MovementIn, repo.movements[1].Type)

	require.True(t, repo.rows[a.ID].Quantity.Equal(qty(8)))
	require.True(t, repo.rows[b.ID].Quantity.Equal(qty(6)))
	require.True(t, repo.rows[c.ID].Quantity.Equal(qty(7)))
	requireQuantityMatchesLog(t, repo)
}

func TestReconcileFailureKeepsEveryRow(t *testing.T) {
	repo := newMemoryRepo()
	a := repo.seed(1, 10, 12)
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.Reconcile(ctx, ReconcileInput{EntityID: 1, Counts: []Count{
		{StockRowID: a.ID, Counted: qty(8)},
		{StockRowID: 999, Counted: qty(1)},
	}})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.True(t, repo.rows[a.ID].Quantity.Equal(qty(12)))
	require.Empty(t, repo.movements)

	_, err = svc.Reconcile(ctx, ReconcileInput{EntityID: 1, Counts: []Count{{StockRowID: a.ID, Counted: qty(-1)}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Reconcile(ctx, ReconcileInput{EntityID: 1, Counts: []Count{
		{StockRowID: a.ID, Counted: qty(1)},
		{StockRowID: a.ID, Counted: qty(2)},
	}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Reconcile(ctx, ReconcileInput{EntityID: 2, Counts: []Count{{StockRowID: a.ID, Counted: qty(1)}}})
	require.ErrorIs(t, err, shared.ErrAuthorization)
	require.Empty(t, repo.movements)
}

func TestListMovementsForcesActorEntity(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, 10, 10)
	svc := newTestService(repo, nil)
	_, err := svc.RecordExit(context.Background(), MovementInput{EntityID: 1, ProductID: 1, WarehouseID: 10, Quantity: qty(1)})
	require.NoError(t, err)

	mine, err := svc.ListMovements(context.Background(), shared.Actor{EntityID: 1}, MovementQuery{EntityID: 2})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, err = svc.ListMovements(context.Background(), shared.Actor{EntityID: 1}, MovementQuery{Type: "SIDEWAYS"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

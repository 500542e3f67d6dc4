package ledger

import (
	"testing"

	"github.com/autogcm/rewards-ledger/internal/domain"
	"github.com/autogcm/rewards-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sheetOf(entries ...MerchantBalance) BalanceSheet {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Balance)
	}
	return BalanceSheet{Entries: entries, Total: total}
}

func TestPlanAllocationSplitsInOrder(t *testing.T) {
	user := uuid.New()
	merchantA := uuid.New()
	merchantB := uuid.New()
	sheet := sheetOf(
		MerchantBalance{MerchantID: merchantA, Balance: pts("30.00")},
		MerchantBalance{MerchantID: merchantB, Balance: pts("20.00")},
	)

	bank := models.BankDetails{BankName: "First Bank", AccountNumber: "0123456789", HolderName: "A. User"}
	records, err := PlanAllocation(AllocationRequest{UserID: user, Amount: pts("35.00"), Bank: bank}, sheet)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, merchantA, records[0].MerchantID)
	assert.True(t, records[0].Amount.Equal(pts("30.00")))
	assert.Equal(t, merchantB, records[1].MerchantID)
	assert.True(t, records[1].Amount.Equal(pts("5.00")))
	for _, rec := range records {
		assert.Equal(t, domain.WithdrawalStatusPending, rec.Status)
		assert.Equal(t, user, rec.UserID)
		assert.Equal(t, bank, rec.Bank)
	}
}

func TestPlanAllocationStopsAtRequestedAmount(t *testing.T) {
	user := uuid.New()
	sheet := sheetOf(
		MerchantBalance{MerchantID: uuid.New(), Balance: pts("10.00")},
		MerchantBalance{MerchantID: uuid.New(), Balance: pts("10.00")},
		MerchantBalance{MerchantID: uuid.New(), Balance: pts("10.00")},
	)

	records, err := PlanAllocation(AllocationRequest{UserID: user, Amount: pts("10.00")}, sheet)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Amount.Equal(pts("10.00")))
}

func TestPlanAllocationSkipsZeroBalances(t *testing.T) {
	user := uuid.New()
	funded := uuid.New()
	sheet := sheetOf(
		MerchantBalance{MerchantID: uuid.New(), Balance: decimal.Zero},
		MerchantBalance{MerchantID: funded, Balance: pts("15.00")},
	)

	records, err := PlanAllocation(AllocationRequest{UserID: user, Amount: pts("5.00")}, sheet)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, funded, records[0].MerchantID)
}

func TestPlanAllocationRejectsOverdraw(t *testing.T) {
	sheet := sheetOf(
		MerchantBalance{MerchantID: uuid.New(), Balance: pts("30.00")},
		MerchantBalance{MerchantID: uuid.New(), Balance: pts("20.00")},
	)

	records, err := PlanAllocation(AllocationRequest{UserID: uuid.New(), Amount: pts("51.00")}, sheet)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Nil(t, records)
}

func TestPlanAllocationRejectsNonPositiveAmount(t *testing.T) {
	sheet := sheetOf(MerchantBalance{MerchantID: uuid.New(), Balance: pts("30.00")})

	for _, amount := range []string{"0", "-1.00"} {
		records, err := PlanAllocation(AllocationRequest{UserID: uuid.New(), Amount: pts(amount)}, sheet)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, "amount %s", amount)
		assert.Nil(t, records)
	}
}

func TestPlanAllocationShortfallIsInternal(t *testing.T) {
	// A sheet whose total claims more than its entries can cover should
	// never exist; if it does, the planner must flag a defect rather
	// than reject the user.
	sheet := BalanceSheet{
		Entries: []MerchantBalance{{MerchantID: uuid.New(), Balance: pts("10.00")}},
		Total:   pts("50.00"),
	}

	records, err := PlanAllocation(AllocationRequest{UserID: uuid.New(), Amount: pts("20.00")}, sheet)
	assert.ErrorIs(t, err, domain.ErrAllocationShortfall)
	assert.Nil(t, records)
}

func TestPlanAllocationExactDrain(t *testing.T) {
	merchantA := uuid.New()
	merchantB := uuid.New()
	sheet := sheetOf(
		MerchantBalance{MerchantID: merchantA, Balance: pts("30.00")},
		MerchantBalance{MerchantID: merchantB, Balance: pts("20.00")},
	)

	records, err := PlanAllocation(AllocationRequest{UserID: uuid.New(), Amount: pts("50.00")}, sheet)
	require.NoError(t, err)
	require.Len(t, records, 2)

	drained := decimal.Zero
	for _, rec := range records {
		drained = drained.Add(rec.Amount)
	}
	assert.True(t, drained.Equal(pts("50.00")))
}

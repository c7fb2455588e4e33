package payroll

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodStatus_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    PeriodStatus
		event   PeriodEvent
		want    PeriodStatus
		wantErr error
	}{
		{"generate on open stays open", PeriodStatusOpen, PeriodEventGenerate, PeriodStatusOpen, nil},
		{"close on open closes", PeriodStatusOpen, PeriodEventClose, PeriodStatusClosed, nil},
		{"generate on closed", PeriodStatusClosed, PeriodEventGenerate, PeriodStatusClosed, ErrPeriodClosed},
		{"close on closed", PeriodStatusClosed, PeriodEventClose, PeriodStatusClosed, ErrPeriodClosed},
		{"unknown event", PeriodStatusOpen, PeriodEvent("reopen"), PeriodStatusOpen, ErrIllegalTransition},
		{"unknown state", PeriodStatus("archived"), PeriodEventGenerate, PeriodStatus("archived"), ErrIllegalTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.from.Transition(tt.event)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReceiptStatusFor(t *testing.T) {
	assert.Equal(t, ReceiptStatusGenerated, ReceiptStatusFor(PeriodStatusOpen))
	assert.Equal(t, ReceiptStatusClosed, ReceiptStatusFor(PeriodStatusClosed))
	assert.True(t, ReceiptStatusGenerated.CanReplace())
	assert.False(t, ReceiptStatusClosed.CanReplace())
}

func TestPeriod(t *testing.T) {
	p, err := NewPeriod(2025, 2)
	require.NoError(t, err)
	assert.Equal(t, "2025-02", p.String())
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), p.Start())
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), p.End())

	for _, idx := range []int{p.Index() - 13, p.Index() - 1, p.Index(), p.Index() + 11} {
		assert.Equal(t, idx, PeriodFromIndex(idx).Index())
	}
	assert.Equal(t, Period{Year: 2024, Month: 12}, PeriodFromIndex(p.Index()-2))
	assert.Equal(t, Period{Year: 2025, Month: 2}, PeriodOf(time.Date(2025, 2, 17, 10, 0, 0, 0, time.UTC)))

	for _, bad := range []Period{{2025, 0}, {2025, 13}, {1999, 5}} {
		_, err := NewPeriod(bad.Year, bad.Month)
		assert.ErrorIs(t, err, ErrInvalidPeriod, "%v", bad)
	}
}

func TestParseReceiptKind(t *testing.T) {
	kind, err := ParseReceiptKind("commission")
	require.NoError(t, err)
	assert.Equal(t, ReceiptKindCommission, kind)

	_, err = ParseReceiptKind("bonus")
	assert.ErrorIs(t, err, ErrInvalidReceiptKind)
}

func TestSalaryReceipt_Amounts(t *testing.T) {
	r := SalaryReceipt{
		GrossSalary: decimal.RequireFromString("1000"),
		Bonuses:     decimal.RequireFromString("50"),
		Deductions:  decimal.RequireFromString("90"),
		NetSalary:   decimal.RequireFromString("960"),
	}
	assert.True(t, r.Reconciles())
	assert.True(t, r.TotalEarnings().Equal(decimal.RequireFromString("1050")))

	o := r
	o.ID = "other"
	assert.True(t, r.SameAmounts(o))
	o.NetSalary = decimal.RequireFromString("961")
	assert.False(t, r.SameAmounts(o))
	assert.False(t, o.Reconciles())
}

func TestRunSummary_Merge(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewRunSummary(ReceiptKindSalary, Period{Year: 2025, Month: 3}, 6, start)

	s = s.Merge(EmployeeResult{EmployeeID: "a", Outcome: OutcomeCreated, Amount: decimal.NewFromInt(100)})
	s = s.Merge(EmployeeResult{EmployeeID: "b", Outcome: OutcomeUpdated, Amount: decimal.NewFromInt(50)})
	s = s.Merge(EmployeeResult{EmployeeID: "c", Outcome: OutcomeUnchanged, Amount: decimal.NewFromInt(25)})
	s = s.Merge(EmployeeResult{EmployeeID: "d", Outcome: OutcomeSkipped})
	before := s
	s = s.Merge(EmployeeResult{EmployeeID: "e", EmployeeCode: "E", Outcome: OutcomeFailed, Err: errors.New("boom"), Amount: decimal.NewFromInt(999)})
	s = s.Merge(EmployeeResult{EmployeeID: "f", Outcome: OutcomeCancelled})

	assert.Equal(t, 1, s.Created)
	assert.Equal(t, 1, s.Updated)
	assert.Equal(t, 1, s.Unchanged)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.NotProcessed)
	assert.Equal(t, 3, s.Succeeded())
	assert.True(t, s.Cancelled)
	assert.True(t, s.TotalAmount.Equal(decimal.NewFromInt(175)), "failed amounts are not totalled")
	require.Len(t, s.Failures, 1)
	assert.Equal(t, RunFailure{EmployeeID: "e", EmployeeCode: "E", Reason: "boom"}, s.Failures[0])

	// earlier values are not mutated by later merges
	assert.Empty(t, before.Failures)
	assert.False(t, before.Cancelled)
}

func TestIncompletePeriodError(t *testing.T) {
	err := error(&IncompletePeriodError{
		Period:      Period{Year: 2025, Month: 3},
		Kind:        ReceiptKindSalary,
		EmployeeIDs: []string{"a", "b"},
	})

	assert.ErrorIs(t, err, ErrIncompletePeriod)
	var incomplete *IncompletePeriodError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"a", "b"}, incomplete.EmployeeIDs)
	assert.Contains(t, err.Error(), "2025-03")
	assert.Contains(t, err.Error(), "a, b")
}

func TestClosePeriodRequest_Validate(t *testing.T) {
	req := ClosePeriodRequest{PeriodMonth: 3, PeriodYear: 2025, Kind: ReceiptKindCommission}
	require.NoError(t, req.Validate())
	assert.Equal(t, Period{Year: 2025, Month: 3}, req.Period())

	bad := GeneratePeriodRequest{PeriodMonth: 13, PeriodYear: 1990}
	assert.Error(t, bad.Validate())
}

package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCurve() Curve {
	return NewCurve([]Breakpoint{
		{PremiumPct: -5.0, AllocationPct: 100, Action: BuyKRW},
		{PremiumPct: -2.0, AllocationPct: 70, Action: BuyKRW},
		{PremiumPct: 0.0, AllocationPct: 20, Action: Flat},
		{PremiumPct: 2.0, AllocationPct: 25, Action: SellKRW},
		{PremiumPct: 5.0, AllocationPct: 75, Action: SellKRW},
	})
}

func TestCurveInterpolatesBetweenBreakpoints(t *testing.T) {
	c := testCurve()
	alloc := c.Evaluate(3.5, 100_000)
	assert.InDelta(t, 50.0, alloc.TargetAllocationPct, 0.01)
	assert.InDelta(t, 50_000, alloc.RecommendedNotionalUSD, 0.01)
	assert.Equal(t, SellKRW, alloc.RecommendedAction)
}

func TestCurveClampsBelowLowestBreakpoint(t *testing.T) {
	c := testCurve()
	alloc := c.Evaluate(-20, 100_000)
	assert.Equal(t, 100.0, alloc.TargetAllocationPct)
	assert.Equal(t, BuyKRW, alloc.RecommendedAction)
}

func TestCurveClampsAboveHighestBreakpoint(t *testing.T) {
	c := testCurve()
	alloc := c.Evaluate(20, 100_000)
	assert.Equal(t, 75.0, alloc.TargetAllocationPct)
	assert.Equal(t, SellKRW, alloc.RecommendedAction)
}

func TestCurveExactBreakpointHit(t *testing.T) {
	c := testCurve()
	alloc := c.Evaluate(0, 100_000)
	assert.Equal(t, 20.0, alloc.TargetAllocationPct)
	assert.Equal(t, Flat, alloc.RecommendedAction)
}

func TestCurveEvaluateOnEmptyCurve(t *testing.T) {
	c := NewCurve(nil)
	alloc := c.Evaluate(3, 100_000)
	assert.Equal(t, Allocation{}, alloc)
}

func TestNewCurveDoesNotMutateInput(t *testing.T) {
	points := []Breakpoint{
		{PremiumPct: 5, AllocationPct: 1},
		{PremiumPct: -5, AllocationPct: 2},
	}
	_ = NewCurve(points)
	assert.Equal(t, float64(5), points[0].PremiumPct, "NewCurve must not sort the caller's slice in place")
}

package hooks

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvokeRunsInPriorityOrderThenInsertionOrder(t *testing.T) {
	m := New()
	var order []string
	m.Register(KindBar, 10, func(Context) Result { order = append(order, "b"); return Continue })
	m.Register(KindBar, 5, func(Context) Result { order = append(order, "a"); return Continue })
	m.Register(KindBar, 10, func(Context) Result { order = append(order, "c"); return Continue })

	require.Equal(t, Continue, m.Invoke(KindBar, nil))
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestInvokeSkipStopsHooksButReturnsContinue(t *testing.T) {
	m := New()
	var ran []string
	m.Register(KindTick, 0, func(Context) Result { ran = append(ran, "first"); return Skip })
	m.Register(KindTick, 1, func(Context) Result { ran = append(ran, "second"); return Continue })

	require.Equal(t, Continue, m.Invoke(KindTick, nil))
	require.Equal(t, []string{"first"}, ran)
}

func TestInvokeCancelShortCircuitsAndPropagates(t *testing.T) {
	m := New()
	var ran []string
	m.Register(KindOrderSubmit, 0, func(Context) Result { ran = append(ran, "first"); return Cancel })
	m.Register(KindOrderSubmit, 1, func(Context) Result { ran = append(ran, "second"); return Continue })

	require.Equal(t, Cancel, m.Invoke(KindOrderSubmit, nil))
	require.Equal(t, []string{"first"}, ran)
}

func TestInvokeWithNoRegistrationsIsContinue(t *testing.T) {
	m := New()
	require.Equal(t, Continue, m.Invoke(KindFill, nil))
}
